package cache

import (
	"encoding/json"
	"fmt"
	"os"

	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

// ReadMeta loads meta.json for a cache entry. A missing or corrupt file
// yields a zero Meta and no error: metadata is advisory.
func ReadMeta(metaPath string) models.Meta {
	var meta models.Meta
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.Meta{}
	}
	return meta
}

// MergeMeta merges an update into the persisted metadata and writes it back.
// FirstFetchedAt is preserved from the existing file (or seeded from the
// update's LastFetchedAt on first write); every other non-zero field of the
// update wins. Last writer wins on concurrent updates, which is acceptable
// because metadata is advisory, not a lock.
func MergeMeta(metaPath string, update models.Meta) (models.Meta, error) {
	merged := ReadMeta(metaPath)

	if merged.FirstFetchedAt == "" {
		merged.FirstFetchedAt = update.LastFetchedAt
	}
	if update.LastFetchedAt != "" {
		merged.LastFetchedAt = update.LastFetchedAt
	}
	if update.StatusCode != 0 {
		merged.StatusCode = update.StatusCode
	}
	if update.Mode != "" {
		merged.Mode = update.Mode
	}
	if update.TreePath != "" {
		merged.TreePath = update.TreePath
	}
	if update.CaptchaSuspected {
		merged.CaptchaSuspected = true
	}

	if err := WriteMeta(metaPath, merged); err != nil {
		return merged, err
	}
	return merged, nil
}

// WriteMeta persists metadata as JSON.
func WriteMeta(metaPath string, meta models.Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, metaPath, err)
	}
	return nil
}

// HasArtifact reports whether a cache artifact exists and is a regular file.
func HasArtifact(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
