package media

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing-ingest/pkg/models"
)

// Trust tiers for HTML discovery. A URL found through several routes keeps
// the highest tier.
const (
	priorityOGImage    = 1000
	priorityJSONLD     = 900
	priorityImgSrcset  = 800
	priorityImgSrc     = 700
	prioritySourceElem = 600
	priorityInlineBG   = 500
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".webm": true, ".ogg": true, ".mov": true, ".m4v": true,
}

var (
	bgImageURLRe = regexp.MustCompile(`(?i)url\((['"]?)([^)'"]+)['"]?\)`)
	// Listing portals often embed a tracking blob like
	// property: { hasphoto: 'yes', photos: '39', ... }
	portalBlobRe = regexp.MustCompile(`(?is)property\s*:\s*\{([^}]+)\}`)
	portalKVRe   = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*:\s*['"]?([^,'"\n]*)`)
)

// HTMLFinder scans a cached HTML snapshot for media references: OpenGraph
// images, JSON-LD image objects, img/source elements, and inline CSS
// backgrounds.
type HTMLFinder struct{}

// NewHTMLFinder creates the finder.
func NewHTMLFinder() *HTMLFinder { return &HTMLFinder{} }

func (f *HTMLFinder) Name() string { return "html" }

// Find parses the snapshot's HTML artifact and returns candidates with their
// trust-tier priorities. A nil snapshot or missing artifact yields an empty
// result, not an error.
func (f *HTMLFinder) Find(pageURL string, snapshot *models.Snapshot) (models.FinderResult, error) {
	result := models.FinderResult{PhotoCountHint: -1}

	var htmlText string
	if snapshot != nil && snapshot.HTMLPath != "" {
		data, err := os.ReadFile(snapshot.HTMLPath)
		if err == nil {
			htmlText = string(data)
		}
	}
	if htmlText == "" {
		return result, nil
	}

	hasPhotoHint, countHint := portalPhotoHints(htmlText)
	result.PhotoCountHint = countHint
	if hasPhotoHint {
		result.Notes = append(result.Notes, "site_hint:hasphoto")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return result, fmt.Errorf("parsing HTML for %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var candidates []models.MediaCandidate
	add := func(rawURL string, kind models.MediaKind, priority float64, altText string, attrs map[string]string) {
		abs := absolutize(base, rawURL)
		if abs == "" {
			return
		}
		candidates = append(candidates, models.MediaCandidate{
			URL:        abs,
			Kind:       kind,
			Source:     models.SourceHTML,
			Priority:   priority,
			AltText:    altText,
			PageIndex:  -1,
			RefererURL: pageURL,
			Attributes: attrs,
		})
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""), models.KindImage, priorityOGImage, "", map[string]string{"og": "image"})
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		for _, u := range imageURLsFromJSONLD(s.Text()) {
			add(u, kindFromExt(u), priorityJSONLD, "", map[string]string{"jsonld": "1"})
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt := s.AttrOr("alt", "")
		for _, u := range parseSrcset(s.AttrOr("srcset", "")) {
			add(u, models.KindImage, priorityImgSrcset, alt, nil)
		}
		if src := s.AttrOr("src", ""); src != "" {
			add(src, models.KindImage, priorityImgSrc, alt, nil)
		}
	})

	doc.Find("source").Each(func(_ int, s *goquery.Selection) {
		for _, u := range parseSrcset(s.AttrOr("srcset", "")) {
			add(u, kindFromExt(u), prioritySourceElem, "", nil)
		}
		if src := s.AttrOr("src", ""); src != "" {
			add(src, kindFromExt(src), prioritySourceElem, "", nil)
		}
	})

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style := s.AttrOr("style", "")
		for _, m := range bgImageURLRe.FindAllStringSubmatch(style, -1) {
			add(m[2], kindFromExt(m[2]), priorityInlineBG, "", nil)
		}
	})

	// Dedup by URL keeping the highest tier, preserving first-seen order.
	best := make(map[string]int, len(candidates))
	var unique []models.MediaCandidate
	for _, c := range candidates {
		idx, seen := best[c.URL]
		if !seen {
			best[c.URL] = len(unique)
			unique = append(unique, c)
			continue
		}
		if c.Priority > unique[idx].Priority {
			unique[idx] = c
		}
	}

	result.Candidates = unique
	result.HasMedia = hasPhotoHint || len(unique) > 0
	return result, nil
}

// portalPhotoHints extracts hasphoto/photos values from embedded portal
// tracking blobs.
func portalPhotoHints(htmlText string) (hasPhoto bool, count int) {
	count = -1
	m := portalBlobRe.FindStringSubmatch(htmlText)
	if m == nil {
		return false, count
	}
	for _, kv := range portalKVRe.FindAllStringSubmatch(m[1], -1) {
		key := strings.ToLower(kv[1])
		val := strings.TrimSpace(kv[2])
		switch key {
		case "hasphoto":
			switch strings.ToLower(val) {
			case "yes", "y", "true", "1":
				hasPhoto = true
			}
		case "photos":
			if n, err := strconv.Atoi(val); err == nil && n >= 0 {
				count = n
			}
		}
	}
	return hasPhoto, count
}

// imageURLsFromJSONLD walks arbitrary JSON-LD and collects image URLs from
// "image" properties and ImageObject nodes.
func imageURLsFromJSONLD(raw string) []string {
	var data interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	keep := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	var walk func(node interface{})
	walk = func(node interface{}) {
		switch v := node.(type) {
		case map[string]interface{}:
			switch img := v["image"].(type) {
			case string:
				keep(img)
			case []interface{}:
				for _, item := range img {
					if s, ok := item.(string); ok {
						keep(s)
					}
				}
			case map[string]interface{}:
				keep(stringProp(img, "url", "contentUrl"))
			}
			if t, _ := v["@type"].(string); t == "ImageObject" {
				keep(stringProp(v, "url", "contentUrl"))
			}
			for _, child := range v {
				walk(child)
			}
		case []interface{}:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(data)
	return out
}

func stringProp(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// parseSrcset splits a srcset attribute into its URLs, dropping the size
// descriptors.
func parseSrcset(srcset string) []string {
	var out []string
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) > 0 && fields[0] != "" {
			out = append(out, fields[0])
		}
	}
	return out
}

// kindFromExt guesses a media kind from the URL's file extension.
func kindFromExt(rawURL string) models.MediaKind {
	trimmed := rawURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := strings.ToLower(path.Ext(trimmed))
	switch {
	case imageExts[ext]:
		return models.KindImage
	case videoExts[ext]:
		return models.KindVideo
	default:
		return models.KindOther
	}
}

func absolutize(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
