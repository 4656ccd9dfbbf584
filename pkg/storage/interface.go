package storage

import (
	"context"
	"time"

	"listing-ingest/pkg/models"
)

// AssetStore is the persistent index of media download outcomes, keyed by
// media URL. It lets repeated ingests of the same listing report what was
// downloaded, skipped, or failed on earlier runs.
type AssetStore interface {
	// CheckAsset retrieves the recorded outcome for a media URL.
	// Returns AssetStatusNotFound when the URL was never attempted.
	CheckAsset(mediaURL string) (status models.AssetStatus, entry *models.AssetDBEntry, err error)

	// RecordAsset stores the outcome of processing a media URL,
	// overwriting any previous record.
	RecordAsset(mediaURL string, entry models.AssetDBEntry) error

	// Count returns the number of indexed media URLs.
	Count() (int, error)

	// RunGC runs periodic value-log garbage collection. Run in a goroutine.
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the underlying database.
	Close() error
}
