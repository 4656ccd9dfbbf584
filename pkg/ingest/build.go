package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/fetch"
	"listing-ingest/pkg/media"
	"listing-ingest/pkg/storage"
)

// hostSlotEvictInterval paces the sweep of idle per-host semaphore slots.
const hostSlotEvictInterval = 5 * time.Minute

// Build wires a Pipeline from configuration: shared HTTP client, robots
// handler, optional headless renderer, per-host politeness, finders,
// downloader, and the optional Badger asset index. Background maintenance
// loops (index GC, host slot eviction) run until ctx is cancelled. The
// returned cleanup function closes the index and must be called on shutdown.
func Build(ctx context.Context, cfg *config.AppConfig, logger *logrus.Logger) (*Pipeline, func(), error) {
	client := fetch.NewClient(cfg.HTTPClientSettings, logger)
	fetcher := fetch.NewFetcher(client, logger)
	robots := fetch.NewRobotsHandler(fetcher, cfg.Policy.UserAgent, cfg.Policy.Timeout, logger.WithField("component", "robots"))

	var renderer fetch.Renderer
	if cfg.Policy.RenderJS {
		renderer = fetch.NewChromedpRenderer(logger.WithField("component", "render"))
	}
	htmlFetcher := fetch.NewHTMLFetcher(fetcher, robots, renderer, logger.WithField("component", "fetch"))

	limiter := fetch.NewRateLimiter(cfg.Media.DelayPerHost, logger)
	hostSems := fetch.NewHostSemaphorePool(cfg.Media.MaxRequestsPerHost, logger.WithField("component", "hostsem"))
	go hostSems.RunEviction(ctx, hostSlotEvictInterval)

	cleanup := func() {}
	var recorder media.AssetRecorder
	if cfg.StateDir != "" {
		store, err := storage.NewBadgerAssetStore(cfg.StateDir, logger.WithField("component", "storage"))
		if err != nil {
			return nil, nil, err
		}
		recorder = store
		go store.RunGC(ctx, cfg.DBGCInterval)
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warnf("Closing asset index failed: %v", err)
			}
		}
	}

	downloader := media.NewDownloader(fetcher, limiter, hostSems, recorder, cfg.Media, logger.WithField("component", "media"))
	finders := []media.MediaFinder{media.NewHTMLFinder()}

	pipeline := NewPipeline(htmlFetcher, finders, downloader, cfg, logger.WithField("component", "ingest"))
	return pipeline, cleanup, nil
}
