package models

import "time"

// AssetStatus represents the download state of a media URL in the asset index
type AssetStatus string

const (
	AssetStatusUnset    AssetStatus = ""          // Zero value = unset/unknown
	AssetStatusSuccess  AssetStatus = "success"   // Downloaded and kept
	AssetStatusFailure  AssetStatus = "failure"   // Download or probe failed
	AssetStatusSkipped  AssetStatus = "skipped"   // Dropped by a size/kind/quality gate
	AssetStatusNotFound AssetStatus = "not_found" // URL not in index
	AssetStatusDBError  AssetStatus = "db_error"  // Index lookup failed
)

// String implements fmt.Stringer for logging
func (s AssetStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetStatusSuccess, AssetStatusFailure, AssetStatusSkipped:
		return true
	}
	return false
}

// AssetDBEntry stores the result of processing a media URL in the asset index
type AssetDBEntry struct {
	Status      AssetStatus `json:"status"`
	SHA256      string      `json:"sha256,omitempty"`     // Content hash (on success)
	LocalPath   string      `json:"local_path,omitempty"` // Content-addressed path (on success)
	Kind        string      `json:"kind,omitempty"`
	ErrorType   string      `json:"error_type,omitempty"` // Error category (on failure/skip)
	LastAttempt time.Time   `json:"last_attempt"`
}
