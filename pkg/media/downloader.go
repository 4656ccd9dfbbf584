package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/fetch"
	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

// AssetRecorder persists per-URL download outcomes so repeated runs can skip
// known failures and reuse known-good files. Recording is best-effort; a
// failed write never fails a download.
type AssetRecorder interface {
	CheckAsset(url string) (models.AssetStatus, *models.AssetDBEntry, error)
	RecordAsset(url string, entry models.AssetDBEntry) error
}

// failureRetryAfter is how long a recorded failure suppresses re-attempts of
// the same media URL.
const failureRetryAfter = 24 * time.Hour

// Downloader fetches selected candidates into a per-listing media directory
// with content-addressed filenames. Work is spread over a bounded worker
// pool; per-host concurrency and pacing are enforced through the shared
// semaphore pool and rate limiter.
type Downloader struct {
	fetcher  *fetch.Fetcher
	limiter  *fetch.RateLimiter
	hostSems *fetch.HostSemaphorePool
	recorder AssetRecorder // nil disables the index
	cfg      config.MediaConfig
	log      *logrus.Entry
}

// NewDownloader wires a downloader. recorder may be nil.
func NewDownloader(
	fetcher *fetch.Fetcher,
	limiter *fetch.RateLimiter,
	hostSems *fetch.HostSemaphorePool,
	recorder AssetRecorder,
	cfg config.MediaConfig,
	log *logrus.Entry,
) *Downloader {
	return &Downloader{
		fetcher:  fetcher,
		limiter:  limiter,
		hostSems: hostSems,
		recorder: recorder,
		cfg:      cfg,
		log:      log,
	}
}

// Download runs the full selection and download pipeline. With networking
// disabled by policy it returns an empty slice immediately. One candidate's
// failure never aborts the batch; failures are logged, recorded in the index,
// and skipped.
func (d *Downloader) Download(ctx context.Context, candidates []models.MediaCandidate, mediaDir string, policy *config.FetchPolicy) ([]models.MediaAsset, error) {
	if !policy.AllowNetwork {
		d.log.Debug("Networking disabled by policy, skipping media downloads")
		return []models.MediaAsset{}, nil
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", utils.ErrFilesystem, mediaDir, err)
	}

	selected := d.selectCandidates(candidates)
	if len(selected) == 0 {
		return []models.MediaAsset{}, nil
	}
	d.log.WithFields(logrus.Fields{
		"candidates": len(candidates), "selected": len(selected),
	}).Info("Starting media downloads")

	numWorkers := d.cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if numWorkers > len(selected) {
		numWorkers = len(selected)
	}

	jobs := make(chan models.MediaCandidate, len(selected))
	var (
		mu      sync.Mutex
		assets  []models.MediaAsset
		claimed = make(map[string]bool) // content hash -> already kept
	)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				asset := d.downloadOne(ctx, cand, mediaDir, policy, &mu, claimed)
				if asset != nil {
					mu.Lock()
					assets = append(assets, *asset)
					mu.Unlock()
				}
			}
		}()
	}
	for _, cand := range selected {
		jobs <- cand
	}
	close(jobs)
	wg.Wait()

	// Stable output order regardless of worker scheduling.
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].URL != assets[j].URL {
			return assets[i].URL < assets[j].URL
		}
		return assets[i].SHA256 < assets[j].SHA256
	})

	d.log.WithFields(logrus.Fields{"assets": len(assets)}).Info("Media downloads finished")
	return assets, nil
}

// selectCandidates applies the pre-download gates and caps the batch,
// preferring higher trust tiers, then gallery order, then URL.
func (d *Downloader) selectCandidates(candidates []models.MediaCandidate) []models.MediaCandidate {
	allowed := d.cfg.AllowedKindSet()

	var selected []models.MediaCandidate
	for _, c := range candidates {
		if prefilterCandidate(c, allowed, d.cfg) {
			selected = append(selected, c)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Priority != selected[j].Priority {
			return selected[i].Priority > selected[j].Priority
		}
		pi, pj := selected[i].PageIndex, selected[j].PageIndex
		if pi >= 0 && pj >= 0 && pi != pj {
			return pi < pj
		}
		if (pi >= 0) != (pj >= 0) {
			return pi >= 0
		}
		return selected[i].URL < selected[j].URL
	})

	maxItems := d.cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 64
	}
	if len(selected) > maxItems {
		selected = selected[:maxItems]
	}
	return selected
}

// downloadOne handles a single candidate end to end. Returns nil when the
// candidate was skipped or failed; the outcome is recorded in the index
// either way.
func (d *Downloader) downloadOne(ctx context.Context, cand models.MediaCandidate, mediaDir string, policy *config.FetchPolicy, mu *sync.Mutex, claimed map[string]bool) *models.MediaAsset {
	candLog := d.log.WithField("media_url", cand.URL)

	if asset, decided := d.consultIndex(cand, mu, claimed, candLog); decided {
		return asset
	}

	asset, err := d.tryDownload(ctx, cand, mediaDir, policy, mu, claimed, candLog)
	if err != nil {
		candLog.Warnf("Media download failed: %v", err)
		d.record(cand.URL, models.AssetDBEntry{
			Status:      models.AssetStatusFailure,
			Kind:        string(cand.Kind),
			ErrorType:   utils.CategorizeError(err),
			LastAttempt: time.Now().UTC(),
		})
		return nil
	}
	if asset == nil {
		d.record(cand.URL, models.AssetDBEntry{
			Status:      models.AssetStatusSkipped,
			Kind:        string(cand.Kind),
			LastAttempt: time.Now().UTC(),
		})
		return nil
	}

	d.record(cand.URL, models.AssetDBEntry{
		Status:      models.AssetStatusSuccess,
		SHA256:      asset.SHA256,
		LocalPath:   asset.LocalPath,
		Kind:        string(asset.Kind),
		LastAttempt: time.Now().UTC(),
	})
	return asset
}

// consultIndex checks the asset index before touching the network. A prior
// success whose file is still in the media dir is reused with its dimensions
// re-probed; a recent failure suppresses the attempt. Index trouble or a
// cleared media dir falls through to a fresh download. The second return is
// true when the index decided the candidate's fate.
func (d *Downloader) consultIndex(cand models.MediaCandidate, mu *sync.Mutex, claimed map[string]bool, candLog *logrus.Entry) (*models.MediaAsset, bool) {
	if d.recorder == nil {
		return nil, false
	}
	status, entry, err := d.recorder.CheckAsset(cand.URL)
	if err != nil || entry == nil {
		return nil, false
	}

	switch status {
	case models.AssetStatusSuccess:
		info, statErr := os.Stat(entry.LocalPath)
		if statErr != nil {
			return nil, false
		}

		mu.Lock()
		alreadyClaimed := claimed[entry.SHA256]
		if !alreadyClaimed {
			claimed[entry.SHA256] = true
		}
		mu.Unlock()
		if alreadyClaimed {
			candLog.WithField("sha256", entry.SHA256).Debug("Indexed content already claimed this run")
			return nil, true
		}

		asset := &models.MediaAsset{
			LocalPath: entry.LocalPath,
			URL:       cand.URL,
			Kind:      models.MediaKind(entry.Kind),
			Source:    cand.Source,
			BytesSize: info.Size(),
			SHA256:    entry.SHA256,
			CreatedAt: info.ModTime().UTC(),
		}
		if asset.Kind == models.KindImage {
			if w, h, probeErr := probeImageDims(entry.LocalPath); probeErr == nil {
				asset.Width, asset.Height = w, h
			}
		}
		candLog.WithField("sha256", entry.SHA256).Debug("Reusing indexed download")
		return asset, true

	case models.AssetStatusFailure:
		if time.Since(entry.LastAttempt) < failureRetryAfter {
			candLog.WithField("error_type", entry.ErrorType).Debug("Skipping recently failed media URL")
			return nil, true
		}
	}
	return nil, false
}

func (d *Downloader) tryDownload(ctx context.Context, cand models.MediaCandidate, mediaDir string, policy *config.FetchPolicy, mu *sync.Mutex, claimed map[string]bool, candLog *logrus.Entry) (*models.MediaAsset, error) {
	parsed, err := url.Parse(cand.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", utils.ErrNetwork, cand.URL, err)
	}
	host := parsed.Hostname()

	semTimeout := d.cfg.SemaphoreAcquireTimeout
	if semTimeout <= 0 {
		semTimeout = 30 * time.Second
	}
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, semTimeout)
	err = d.hostSems.Acquire(acquireCtx, host)
	cancelAcquire()
	if err != nil {
		return nil, fmt.Errorf("%w: host %s: %w", utils.ErrSemaphoreTimeout, host, err)
	}
	defer d.hostSems.Release(host)

	d.limiter.ApplyDelay(host, d.cfg.DelayPerHost)
	resp, err := d.fetcher.Get(ctx, cand.URL, policy.UserAgent, policy.Timeout, cand.RefererURL)
	d.limiter.UpdateLastRequestTime(host)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if (resp.StatusCode < 200 || resp.StatusCode >= 400) && !policy.AllowNon200 {
		candLog.WithField("status", resp.StatusCode).Debug("Skipping non-2xx media response")
		return nil, nil
	}

	contentType := resp.Header.Get("Content-Type")
	finalKind := coerceKind(cand.Kind, contentType)
	if !d.cfg.AllowedKindSet()[finalKind] {
		candLog.WithField("kind", finalKind).Debug("Coerced kind not allowed, discarding")
		return nil, nil
	}
	ext := guessExt(contentType, cand.URL)

	var warnings []string

	tmpPath := filepath.Join(mediaDir, "dl_"+uuid.NewString()+".part")
	size, err := d.streamToFile(resp.Body, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	digest, err := utils.FileSHA256(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: hashing %s: %w", utils.ErrFilesystem, tmpPath, err)
	}

	// Content-addressed claim: exactly one asset may exist per hash. Losers
	// drop their temp copy.
	mu.Lock()
	alreadyClaimed := claimed[digest]
	if !alreadyClaimed {
		claimed[digest] = true
	}
	mu.Unlock()
	if alreadyClaimed {
		os.Remove(tmpPath)
		candLog.WithField("sha256", digest).Debug("Duplicate content, discarding")
		return nil, nil
	}

	finalPath := filepath.Join(mediaDir, digest+"."+ext)
	if _, statErr := os.Stat(finalPath); statErr == nil {
		os.Remove(tmpPath)
	} else if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: renaming to %s: %w", utils.ErrFilesystem, finalPath, err)
	}

	minBytes := d.cfg.MinBytes
	if minBytes <= 0 {
		minBytes = 1024
	}
	if size < minBytes {
		candLog.WithField("bytes", size).Debug("File under byte floor, deleting")
		os.Remove(finalPath)
		return nil, nil
	}

	width, height := 0, 0
	if finalKind == models.KindImage && (strings.HasPrefix(normalizeContentType(contentType), "image/") || imageFileExts[ext]) {
		width, height, err = probeImageDims(finalPath)
		if err != nil {
			warnings = append(warnings, "image_probe_error:"+err.Error())
			width, height = 0, 0
		}
		if !postfilterImage(width, height, size, d.cfg) {
			candLog.WithFields(logrus.Fields{"width": width, "height": height, "bytes": size}).
				Debug("Image failed quality gates, deleting")
			os.Remove(finalPath)
			return nil, nil
		}
	}

	return &models.MediaAsset{
		LocalPath:   finalPath,
		URL:         cand.URL,
		Kind:        finalKind,
		Source:      cand.Source,
		ContentType: normalizeContentType(contentType),
		BytesSize:   size,
		SHA256:      digest,
		Width:       width,
		Height:      height,
		CreatedAt:   time.Now().UTC(),
		Warnings:    warnings,
	}, nil
}

// streamToFile copies the body to path, honoring the per-file byte cap.
func (d *Downloader) streamToFile(body io.Reader, path string) (int64, error) {
	if d.cfg.MaxFileBytes > 0 {
		body = io.LimitReader(body, d.cfg.MaxFileBytes)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %w", utils.ErrFilesystem, path, err)
	}
	size, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("%w: writing %s: %w", utils.ErrNetwork, path, err)
	}
	return size, nil
}

func (d *Downloader) record(url string, entry models.AssetDBEntry) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordAsset(url, entry); err != nil {
		d.log.WithField("media_url", url).Warnf("Recording asset outcome failed: %v", err)
	}
}
