package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/cache"
	"listing-ingest/pkg/config"
	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

// maxPageBytes caps how much of a listing page is read into memory.
const maxPageBytes = 32 << 20

// HTMLFetcher is the cache-first page fetcher. On a cache miss it walks a
// fixed sequence: offline guard, robots.txt, raw GET (always persisted),
// CAPTCHA detection with render fallback, DOM dump, optional render, and
// metadata finalization. It never retries; a failed fetch surfaces
// immediately with one of the taxonomy sentinels.
type HTMLFetcher struct {
	fetcher  *Fetcher
	robots   *RobotsHandler
	renderer Renderer // nil disables JS rendering regardless of policy
	log      *logrus.Entry
}

// NewHTMLFetcher wires the fetcher with its collaborators.
func NewHTMLFetcher(fetcher *Fetcher, robots *RobotsHandler, renderer Renderer, log *logrus.Entry) *HTMLFetcher {
	return &HTMLFetcher{fetcher: fetcher, robots: robots, renderer: renderer, log: log}
}

// Fetch returns a snapshot for pageURL under the given policy. Cached
// artifacts are served without touching the network; identical inputs yield
// byte-identical cache layouts. Errors always wrap one of the five fetch
// sentinels.
func (hf *HTMLFetcher) Fetch(ctx context.Context, pageURL string, policy *config.FetchPolicy) (*models.Snapshot, error) {
	snap, err := hf.fetch(ctx, pageURL, policy)
	if err != nil {
		return nil, utils.ClassifyFetchError(err, policy.StrictDOM)
	}
	return snap, nil
}

func (hf *HTMLFetcher) fetch(ctx context.Context, pageURL string, policy *config.FetchPolicy) (*models.Snapshot, error) {
	paths, err := cache.PathsFor(pageURL, policy.CacheDir)
	if err != nil {
		return nil, err
	}
	fetchLog := hf.log.WithField("url", pageURL)

	// Cache-first: rendered artifact when rendering is requested, raw otherwise.
	if policy.RenderJS && cache.HasArtifact(paths.HTMLRendered) {
		fetchLog.Debug("Cache hit (rendered)")
		return hf.snapshotFromCache(pageURL, paths, models.ModeRendered)
	}
	if cache.HasArtifact(paths.HTMLRaw) {
		fetchLog.Debug("Cache hit (raw)")
		return hf.snapshotFromCache(pageURL, paths, models.ModeRaw)
	}

	if !policy.AllowNetwork {
		return nil, fmt.Errorf("%w: cache miss for %s", utils.ErrOfflineRequired, pageURL)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", utils.ErrNetwork, pageURL, err)
	}

	if policy.RespectRobots && !hf.robots.Allowed(ctx, parsed) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, pageURL)
	}

	status, content, err := hf.getPage(ctx, pageURL, policy)
	if err != nil {
		return nil, err
	}

	// Raw bytes are always persisted, even for error pages, so a rerun can
	// inspect exactly what the site served.
	if err := os.WriteFile(paths.HTMLRaw, content, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, paths.HTMLRaw, err)
	}

	if !policy.AllowNon200 && status >= 400 {
		return nil, fmt.Errorf("%w: HTTP status %d for %s", utils.ErrNetwork, status, pageURL)
	}

	captchaSuspected := false
	var renderedBytes []byte

	if CaptchaSuspected(status, content) {
		fetchLog.WithField("status", status).Warn("Response looks like a WAF/CAPTCHA challenge")

		// A headless render sometimes clears a JS-based challenge; try it
		// before deciding how to treat the block.
		if policy.RenderJS && hf.renderer != nil {
			rendered := hf.renderToCache(ctx, pageURL, policy, paths, fetchLog)
			if rendered != nil && visibleTextLen(string(rendered)) >= policy.MinBodyText {
				hf.writeRawTree(content, paths, fetchLog)
				return hf.finalize(pageURL, paths, models.ModeRendered, status, paths.HTMLRendered, treeIfExists(paths.TreeRendered), rendered, false)
			}
			renderedBytes = nil // challenge page renders do not count as content
		}

		switch policy.CaptchaMode {
		case "strict":
			hf.writeRawTree(content, paths, fetchLog)
			return nil, fmt.Errorf("%w: %s (status=%d)", utils.ErrCaptchaBlocked, pageURL, status)
		case "off":
			// proceed as if nothing was detected
		default: // soft
			captchaSuspected = true
		}
	}

	if err := hf.writeRawTreeStrict(content, paths, policy, fetchLog); err != nil {
		return nil, err
	}

	if policy.RenderJS && hf.renderer != nil && renderedBytes == nil {
		renderedBytes = hf.renderToCache(ctx, pageURL, policy, paths, fetchLog)
	}

	if policy.RenderJS && renderedBytes != nil {
		return hf.finalize(pageURL, paths, models.ModeRendered, status, paths.HTMLRendered, treeIfExists(paths.TreeRendered), renderedBytes, captchaSuspected)
	}
	return hf.finalize(pageURL, paths, models.ModeRaw, status, paths.HTMLRaw, treeIfExists(paths.TreeRaw), content, captchaSuspected)
}

// getPage performs the raw GET and drains the body.
func (hf *HTMLFetcher) getPage(ctx context.Context, pageURL string, policy *config.FetchPolicy) (int, []byte, error) {
	resp, err := hf.fetcher.Get(ctx, pageURL, policy.UserAgent, policy.Timeout, "")
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading body of %s: %w", utils.ErrNetwork, pageURL, err)
	}
	return resp.StatusCode, content, nil
}

// renderToCache runs the headless renderer and persists the rendered HTML,
// its DOM dump, and the optional screenshot. Render failures are soft: the
// raw artifact already exists, so nil is returned and the caller falls back.
func (hf *HTMLFetcher) renderToCache(ctx context.Context, pageURL string, policy *config.FetchPolicy, paths cache.Paths, fetchLog *logrus.Entry) []byte {
	result, err := hf.renderer.Render(ctx, pageURL, policy)
	if err != nil {
		fetchLog.Warnf("Headless render failed, keeping raw snapshot: %v", err)
		return nil
	}

	rendered := []byte(result.HTML)
	if err := os.WriteFile(paths.HTMLRendered, rendered, 0o644); err != nil {
		fetchLog.Errorf("Writing rendered HTML failed: %v", err)
		return nil
	}
	if tree, err := PrettyTree(rendered); err == nil {
		if err := os.WriteFile(paths.TreeRendered, []byte(tree), 0o644); err != nil {
			fetchLog.Warnf("Writing rendered DOM dump failed: %v", err)
		}
	} else {
		fetchLog.Warnf("Parsing rendered HTML failed: %v", err)
	}
	if policy.SaveScreenshot && len(result.Screenshot) > 0 {
		if err := os.WriteFile(paths.Screenshot, result.Screenshot, 0o644); err != nil {
			fetchLog.Warnf("Writing screenshot failed: %v", err)
		}
	}
	return rendered
}

// writeRawTree persists the raw DOM dump best-effort.
func (hf *HTMLFetcher) writeRawTree(content []byte, paths cache.Paths, fetchLog *logrus.Entry) {
	tree, err := PrettyTree(content)
	if err != nil {
		fetchLog.Debugf("Parsing raw HTML failed: %v", err)
		return
	}
	if err := os.WriteFile(paths.TreeRaw, []byte(tree), 0o644); err != nil {
		fetchLog.Warnf("Writing raw DOM dump failed: %v", err)
	}
}

// writeRawTreeStrict persists the raw DOM dump; a parse failure is fatal only
// under strict_dom.
func (hf *HTMLFetcher) writeRawTreeStrict(content []byte, paths cache.Paths, policy *config.FetchPolicy, fetchLog *logrus.Entry) error {
	tree, err := PrettyTree(content)
	if err != nil {
		if policy.StrictDOM {
			return fmt.Errorf("%w: parsing raw HTML: %w", utils.ErrInvalidHTML, err)
		}
		fetchLog.Debugf("Parsing raw HTML failed: %v", err)
		return nil
	}
	if err := os.WriteFile(paths.TreeRaw, []byte(tree), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, paths.TreeRaw, err)
	}
	return nil
}

// snapshotFromCache rebuilds a snapshot from persisted artifacts. The status
// code comes from meta.json, defaulting to 200 when absent.
func (hf *HTMLFetcher) snapshotFromCache(pageURL string, paths cache.Paths, mode models.FetchMode) (*models.Snapshot, error) {
	htmlPath, treePath := paths.HTMLRaw, paths.TreeRaw
	if mode == models.ModeRendered {
		htmlPath, treePath = paths.HTMLRendered, paths.TreeRendered
	}

	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", utils.ErrFilesystem, htmlPath, err)
	}

	status := cache.ReadMeta(paths.Meta).StatusCode
	if status == 0 {
		status = 200
	}
	return hf.finalize(pageURL, paths, mode, status, htmlPath, treeIfExists(treePath), raw, false)
}

// finalize merges metadata and builds the snapshot. FirstFetchedAt survives
// refetches; a captcha annotation is sticky once set.
func (hf *HTMLFetcher) finalize(pageURL string, paths cache.Paths, mode models.FetchMode, status int, htmlPath, treePath string, raw []byte, captchaSuspected bool) (*models.Snapshot, error) {
	now := time.Now().UTC()
	merged, err := cache.MergeMeta(paths.Meta, models.Meta{
		LastFetchedAt:    now.Format(time.RFC3339Nano),
		StatusCode:       status,
		Mode:             string(mode),
		TreePath:         treePath,
		CaptchaSuspected: captchaSuspected,
	})
	if err != nil {
		return nil, err
	}

	return &models.Snapshot{
		URL:              pageURL,
		FetchedAt:        now,
		StatusCode:       status,
		Mode:             mode,
		HTMLPath:         htmlPath,
		TreePath:         treePath,
		BytesSize:        int64(len(raw)),
		SHA256:           utils.BytesSHA256(raw),
		CaptchaSuspected: merged.CaptchaSuspected,
	}, nil
}

func treeIfExists(treePath string) string {
	if cache.HasArtifact(treePath) {
		return treePath
	}
	return ""
}

// visibleTextLen measures how much human-visible text a document carries.
// Script, style, and noscript contents are excluded; whitespace runs collapse
// to single spaces. Challenge interstitials score low, listings score high.
func visibleTextLen(htmlStr string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return 0
	}
	doc.Find("script, style, noscript").Remove()
	return len(strings.Join(strings.Fields(doc.Text()), " "))
}
