// Package media discovers media references on listing pages and downloads
// them into the per-listing cache with content-addressed names.
package media

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/models"
)

// MediaFinder discovers media candidates for a listing. Finders are
// read-only: they inspect the snapshot (or external sources keyed off the
// URL) and never download bytes.
type MediaFinder interface {
	// Name identifies the finder in logs and notes.
	Name() string
	// Find returns candidates for the listing at url. snapshot may be nil
	// for finders that do not need page content.
	Find(url string, snapshot *models.Snapshot) (models.FinderResult, error)
}

// Discover fans out over all finders and merges their results. One broken
// finder never hides what the others found: its failure becomes a note on
// the merged result.
func Discover(finders []MediaFinder, url string, snapshot *models.Snapshot, log *logrus.Entry) models.FinderResult {
	merged := models.FinderResult{PhotoCountHint: -1}
	for _, f := range finders {
		result, err := f.Find(url, snapshot)
		if err != nil {
			log.WithFields(logrus.Fields{"finder": f.Name(), "url": url}).Warnf("Finder failed: %v", err)
			merged.Notes = append(merged.Notes, fmt.Sprintf("finder_error:%s", f.Name()))
			continue
		}
		merged = merged.Merge(result)
	}
	return merged
}
