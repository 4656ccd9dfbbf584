package media

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

// Substrings that almost always mark icons, logos, sprites, or social
// chrome rather than listing photos.
var iconSubstrings = []string{
	"favicon", "sprite", "logo", "brandmark", "glyph",
	"icon-", "/icons/", "/sprites/", "/logos/",
	"social-", "facebook", "twitter", "linkedin", "instagram",
	"pinterest", "youtube", "ytimg",
}

// Extensions that are usually decorative.
var iconExts = map[string]bool{"ico": true, "svg": true}

// Candidates at or above this tier came from explicit page metadata
// (OpenGraph, JSON-LD) and override the icon heuristic.
const iconOverridePriority = priorityJSONLD

// Canonical extension per content type; mime.ExtensionsByType is
// platform-dependent in its ordering, so the common cases are pinned.
var extByContentType = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"image/svg+xml":   "svg",
	"image/x-icon":    "ico",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
	"application/pdf": "pdf",
}

var imageFileExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true,
	"gif": true, "bmp": true, "tif": true, "tiff": true,
}

// normalizeContentType strips parameters and lowercases the media type.
func normalizeContentType(contentType string) string {
	ct, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		ct = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return ct
}

// guessExt picks a file extension from the content type, falling back to the
// URL path, then "bin".
func guessExt(contentType, rawURL string) string {
	if ct := normalizeContentType(contentType); ct != "" {
		if ext, ok := extByContentType[ct]; ok {
			return ext
		}
		if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
			return strings.TrimPrefix(exts[0], ".")
		}
	}
	if parsed, err := url.Parse(rawURL); err == nil {
		// The decoded URL path can smuggle characters that are not valid in
		// filenames; the extension ends up in the on-disk asset name.
		if ext := strings.TrimPrefix(strings.ToLower(path.Ext(parsed.Path)), "."); ext != "" {
			return utils.SanitizeFilename(ext)
		}
	}
	return "bin"
}

// coerceKind overrides the finder's guess with what the server actually
// served. An unrecognized content type keeps the finder's kind.
func coerceKind(declared models.MediaKind, contentType string) models.MediaKind {
	ct := normalizeContentType(contentType)
	switch {
	case ct == "":
		return declared
	case strings.HasPrefix(ct, "image/"):
		return models.KindImage
	case strings.HasPrefix(ct, "video/"):
		return models.KindVideo
	case ct == "application/pdf":
		return models.KindDocument
	default:
		return declared
	}
}

// looksLikeIconOrLogo flags URLs whose path matches decorative-asset
// patterns.
func looksLikeIconOrLogo(rawURL string) bool {
	low := strings.ToLower(rawURL)
	for _, s := range iconSubstrings {
		if strings.Contains(low, s) {
			return true
		}
	}
	if parsed, err := url.Parse(low); err == nil {
		return iconExts[strings.TrimPrefix(path.Ext(parsed.Path), ".")]
	}
	return false
}

// prefilterCandidate applies the cheap pre-download gates: kind allowlist,
// finder size hints, and the icon heuristic. Icon-looking URLs survive only
// with a counter-signal: a known gallery position, high priority, or hints
// at least twice the configured minimums.
func prefilterCandidate(c models.MediaCandidate, allowed map[models.MediaKind]bool, cfg config.MediaConfig) bool {
	if !allowed[c.Kind] {
		return false
	}

	if cfg.MinWidthHint > 0 && c.WidthHint > 0 && c.WidthHint < cfg.MinWidthHint {
		return false
	}
	if cfg.MinHeightHint > 0 && c.HeightHint > 0 && c.HeightHint < cfg.MinHeightHint {
		return false
	}
	if cfg.MinBytesHint > 0 && c.BytesHint > 0 && c.BytesHint < cfg.MinBytesHint {
		return false
	}

	if looksLikeIconOrLogo(c.URL) {
		counterSignal := c.PageIndex >= 0 ||
			c.Priority >= iconOverridePriority ||
			(c.WidthHint > 0 && c.WidthHint >= cfg.MinWidthHint*2) ||
			(c.HeightHint > 0 && c.HeightHint >= cfg.MinHeightHint*2) ||
			(c.BytesHint > 0 && c.BytesHint >= cfg.MinBytesHint*2)
		if !counterSignal {
			return false
		}
	}
	return true
}

// postfilterImage decides whether a downloaded image looks like a real photo
// rather than a thumbnail or banner. With known dimensions it enforces the
// width/height/area/aspect gates; without them it falls back to a 30 KiB
// byte floor.
func postfilterImage(width, height int, bytesSize int64, cfg config.MediaConfig) bool {
	if width > 0 && height > 0 {
		if width < cfg.MinWidth || height < cfg.MinHeight {
			return false
		}
		if width*height < cfg.EffectiveMinArea() {
			return false
		}
		w, h := float64(width), float64(height)
		longSide, shortSide := w, h
		if h > w {
			longSide, shortSide = h, w
		}
		if shortSide < 1 {
			shortSide = 1
		}
		return longSide/shortSide <= cfg.EffectiveMaxAspect()
	}
	return bytesSize >= 30*1024
}
