// Package ingest ties the pipeline together: fetch (or load) a listing
// document, discover media references, download them into the listing's
// cache entry, and derive media insights.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/cache"
	"listing-ingest/pkg/config"
	"listing-ingest/pkg/fetch"
	"listing-ingest/pkg/intel"
	"listing-ingest/pkg/media"
	"listing-ingest/pkg/models"
)

// Options selects what to ingest. Exactly one of URL or FilePath must be
// set.
type Options struct {
	URL      string
	FilePath string // local HTML document instead of a fetch
	BaseURL  string // base for resolving relative media URLs when FilePath is set

	// PhotosDir points at a local directory of photos to analyze instead
	// of (or in addition to) downloaded media.
	PhotosDir string

	// DownloadMedia enables the discovery + download stages.
	DownloadMedia bool

	// EnableIntelligence overrides the configured intelligence toggle for
	// this run when non-nil.
	EnableIntelligence *bool
}

// Result is the output of one ingest run.
type Result struct {
	Snapshot *models.Snapshot
	Finder   models.FinderResult
	Assets   []models.MediaAsset
	Insights *models.MediaInsights
}

// Pipeline executes ingest runs with shared collaborators.
type Pipeline struct {
	fetcher    *fetch.HTMLFetcher
	finders    []media.MediaFinder
	downloader *media.Downloader
	cfg        *config.AppConfig
	log        *logrus.Entry
}

// NewPipeline wires a pipeline.
func NewPipeline(fetcher *fetch.HTMLFetcher, finders []media.MediaFinder, downloader *media.Downloader, cfg *config.AppConfig, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		finders:    finders,
		downloader: downloader,
		cfg:        cfg,
		log:        log,
	}
}

// Fetch runs just the fetch stage with the given policy, bypassing media
// discovery. Callers may pass a modified copy of the configured policy.
func (p *Pipeline) Fetch(ctx context.Context, url string, policy *config.FetchPolicy) (*models.Snapshot, error) {
	return p.fetcher.Fetch(ctx, url, policy)
}

// Ingest runs the pipeline for one listing.
func (p *Pipeline) Ingest(ctx context.Context, opts Options) (*Result, error) {
	if opts.URL == "" && opts.FilePath == "" {
		return nil, fmt.Errorf("either a URL or a file path must be provided")
	}

	result := &Result{Finder: models.FinderResult{PhotoCountHint: -1}}

	var pageURL string
	switch {
	case opts.URL != "":
		pageURL = opts.URL
		snap, err := p.fetcher.Fetch(ctx, opts.URL, &p.cfg.Policy)
		if err != nil {
			return nil, err
		}
		result.Snapshot = snap
	default:
		var err error
		pageURL, result.Snapshot, err = snapshotFromFile(opts.FilePath, opts.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	// The cache key is the ingest identity: URL when fetching, file path
	// when loading locally.
	cacheKey := opts.URL
	if cacheKey == "" {
		cacheKey = opts.FilePath
	}
	paths, err := cache.PathsFor(cacheKey, p.cfg.Policy.CacheDir)
	if err != nil {
		return nil, err
	}

	if opts.DownloadMedia {
		result.Finder = media.Discover(p.finders, pageURL, result.Snapshot, p.log)
		assets, err := p.downloader.Download(ctx, result.Finder.Candidates, paths.MediaDir, &p.cfg.Policy)
		if err != nil {
			return nil, err
		}
		result.Assets = assets
	}

	if opts.PhotosDir != "" {
		local, err := ScanPhotosDir(opts.PhotosDir, p.log)
		if err != nil {
			return nil, err
		}
		result.Assets = append(result.Assets, local...)
	}

	if len(result.Assets) > 0 {
		insights := intel.AnalyzeMedia(result.Assets)
		enrich := p.cfg.Media.EnableIntelligence
		if opts.EnableIntelligence != nil {
			enrich = *opts.EnableIntelligence
		}
		if enrich {
			intel.EnrichWithIntelligence(result.Assets, &insights, p.log)
		}
		result.Insights = &insights
	}

	p.log.WithFields(logrus.Fields{
		"url":        pageURL,
		"candidates": len(result.Finder.Candidates),
		"assets":     len(result.Assets),
	}).Info("Ingest complete")
	return result, nil
}

// snapshotFromFile builds a snapshot for a local HTML document without
// touching the cache or the network.
func snapshotFromFile(filePath, baseURL string) (string, *models.Snapshot, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving %s: %w", filePath, err)
	}
	pageURL := baseURL
	if pageURL == "" {
		pageURL = "file://" + abs
	}
	if !cache.HasArtifact(abs) {
		return "", nil, fmt.Errorf("document %s does not exist", abs)
	}
	return pageURL, &models.Snapshot{
		URL:        pageURL,
		StatusCode: 200,
		Mode:       models.ModeRaw,
		HTMLPath:   abs,
	}, nil
}
