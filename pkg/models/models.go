package models

import "time"

// FetchMode identifies which artifact variant a snapshot points at.
type FetchMode string

const (
	ModeRaw      FetchMode = "raw"
	ModeRendered FetchMode = "rendered"
)

// Snapshot describes a cached HTML artifact for one listing URL. It is
// immutable once returned by the fetcher; a later fetch supersedes it by
// overwriting the cache files and metadata rather than mutating it.
type Snapshot struct {
	URL              string
	FetchedAt        time.Time
	StatusCode       int
	Mode             FetchMode
	HTMLPath         string
	TreePath         string // pretty DOM dump, empty if parsing was skipped
	BytesSize        int64
	SHA256           string
	CaptchaSuspected bool
}

// Meta is the persisted meta.json for a cache entry. FirstFetchedAt is
// preserved across refetches; the remaining fields track the latest fetch.
type Meta struct {
	FirstFetchedAt   string `json:"first_fetched_at,omitempty"`
	LastFetchedAt    string `json:"last_fetched_at,omitempty"`
	StatusCode       int    `json:"status_code,omitempty"`
	Mode             string `json:"mode,omitempty"`
	TreePath         string `json:"tree_path,omitempty"`
	CaptchaSuspected bool   `json:"captcha_suspected,omitempty"`
}

// MediaKind is the canonical media type classification.
type MediaKind string

const (
	KindImage     MediaKind = "image"
	KindVideo     MediaKind = "video"
	KindFloorplan MediaKind = "floorplan"
	KindDocument  MediaKind = "document"
	KindOther     MediaKind = "other"
)

// MediaSource records where a media reference was discovered.
type MediaSource string

const (
	SourceHTML    MediaSource = "html"
	SourceMLSAPI  MediaSource = "mls_api"
	SourceFeed    MediaSource = "feed"
	SourceManual  MediaSource = "manual"
	SourceUnknown MediaSource = "unknown"
)

// CandidateKey is the stable identity of a candidate: two candidates with the
// same key are the same discovery and get deduplicated.
type CandidateKey struct {
	URL    string
	Kind   MediaKind
	Source MediaSource
}

// MediaCandidate is a discovered media reference before download. It is a
// pointer with lightweight hints and never holds file bytes.
type MediaCandidate struct {
	URL    string
	Kind   MediaKind
	Source MediaSource

	// Hints from the page to improve selection and ordering.
	MIMEHint   string
	WidthHint  int
	HeightHint int
	BytesHint  int64
	Priority   float64 // higher is better; finders derive this from trust tiers
	AltText    string
	PageIndex  int // 0-based gallery position; -1 when unknown
	RefererURL string
	Attributes map[string]string
}

// Key returns the candidate's dedup identity.
func (c MediaCandidate) Key() CandidateKey {
	return CandidateKey{URL: c.URL, Kind: c.Kind, Source: c.Source}
}

// FinderResult is the output of one MediaFinder: discovered candidates plus
// coarse page-level flags.
type FinderResult struct {
	HasMedia       bool
	PhotoCountHint int // -1 when the page gave no count
	Candidates     []MediaCandidate
	Notes          []string
}

// Merge combines another FinderResult into this one. Candidates are
// deduplicated by identity keeping the highest-priority entry; the first
// non-negative photo count hint wins; notes are unioned.
func (r FinderResult) Merge(other FinderResult) FinderResult {
	merged := FinderResult{
		HasMedia:       r.HasMedia || other.HasMedia,
		PhotoCountHint: r.PhotoCountHint,
	}
	if merged.PhotoCountHint < 0 {
		merged.PhotoCountHint = other.PhotoCountHint
	}

	best := make(map[CandidateKey]MediaCandidate, len(r.Candidates)+len(other.Candidates))
	order := make([]CandidateKey, 0, len(r.Candidates)+len(other.Candidates))
	for _, c := range append(append([]MediaCandidate{}, r.Candidates...), other.Candidates...) {
		key := c.Key()
		prev, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = c
			continue
		}
		if c.Priority > prev.Priority {
			best[key] = c
		}
	}
	for _, key := range order {
		merged.Candidates = append(merged.Candidates, best[key])
	}

	noteSet := make(map[string]struct{}, len(r.Notes)+len(other.Notes))
	for _, n := range append(append([]string{}, r.Notes...), other.Notes...) {
		if _, ok := noteSet[n]; ok {
			continue
		}
		noteSet[n] = struct{}{}
		merged.Notes = append(merged.Notes, n)
	}
	return merged
}

// MediaAsset is a persisted media file on disk after download. Files are
// content-addressed: exactly one asset exists per unique content hash.
type MediaAsset struct {
	LocalPath   string      `json:"local_path"`
	URL         string      `json:"url,omitempty"`
	Kind        MediaKind   `json:"kind"`
	Source      MediaSource `json:"source"`
	ContentType string      `json:"content_type,omitempty"`
	BytesSize   int64       `json:"bytes_size"`
	SHA256      string      `json:"sha256"`
	Width       int         `json:"width,omitempty"` // 0 when not detectable (non-images)
	Height      int         `json:"height,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Warnings    []string    `json:"warnings,omitempty"` // non-fatal issues from download or probing
}

// QualityMetrics are the per-image quality signals computed by the
// intelligence layer. All values are non-negative.
type QualityMetrics struct {
	Sharpness  float64 `json:"sharpness"`  // variance of Laplacian
	Brightness float64 `json:"brightness"` // mean luminance, 0..255
	Contrast   float64 `json:"contrast"`   // stddev of luminance, 0..255
}

// MediaInsights is the derived summary over a set of assets. It is recomputed
// on demand from the current asset list, never incrementally maintained.
type MediaInsights struct {
	TotalAssets   int   `json:"total_assets"`
	ImageCount    int   `json:"image_count"`
	VideoCount    int   `json:"video_count"`
	DocumentCount int   `json:"document_count"`
	OtherCount    int   `json:"other_count"`
	BytesTotal    int64 `json:"bytes_total"`

	MinWidth  int     `json:"min_width,omitempty"`
	MaxWidth  int     `json:"max_width,omitempty"`
	MinHeight int     `json:"min_height,omitempty"`
	MaxHeight int     `json:"max_height,omitempty"`
	AvgWidth  float64 `json:"avg_width,omitempty"`
	AvgHeight float64 `json:"avg_height,omitempty"`

	PortraitCount  int `json:"portrait_count"`
	LandscapeCount int `json:"landscape_count"`
	SquareCount    int `json:"square_count"`

	// Exact-content duplicates: hashes that appear on more than one asset.
	DuplicateHashes []string `json:"duplicate_hashes,omitempty"`
	// Near-duplicate clusters from perceptual hashing, each sorted by hash.
	DuplicateClusters [][]string `json:"duplicate_clusters,omitempty"`

	HeroSHA256 string `json:"hero_sha256,omitempty"`

	ImageQuality map[string]QualityMetrics `json:"image_quality,omitempty"` // sha256 -> metrics
	Palettes     map[string][]string       `json:"palettes,omitempty"`      // sha256 -> hex colors

	Warnings []string `json:"warnings,omitempty"`
}
