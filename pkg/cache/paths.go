// Package cache derives deterministic on-disk locations for fetched listing
// artifacts. A URL maps to baseDir/<first 16 hex chars of sha256(url)>; the
// truncation keeps paths readable and is an accepted dedup risk (collisions
// need ~2^32 distinct URLs before they become likely).
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"listing-ingest/pkg/utils"
)

const keyHexLen = 16

// Paths is the fixed layout of one cache entry.
type Paths struct {
	Root         string
	HTMLRaw      string
	TreeRaw      string
	HTMLRendered string
	TreeRendered string
	Screenshot   string
	Meta         string
	MediaDir     string
}

// Key returns the cache key for a URL: the first 16 hex characters of its
// SHA-256. Same URL always yields the same key.
func Key(url string) string {
	return utils.StringSHA256(url)[:keyHexLen]
}

// PathsFor builds the cache layout for a URL under baseDir and ensures the
// media subdirectory exists. Two calls with the same (url, baseDir) return
// identical paths.
func PathsFor(url, baseDir string) (Paths, error) {
	root := filepath.Join(baseDir, Key(url))
	p := Paths{
		Root:         root,
		HTMLRaw:      filepath.Join(root, "index.raw.html"),
		TreeRaw:      filepath.Join(root, "tree.raw.html"),
		HTMLRendered: filepath.Join(root, "index.rendered.html"),
		TreeRendered: filepath.Join(root, "tree.rendered.html"),
		Screenshot:   filepath.Join(root, "page.png"),
		Meta:         filepath.Join(root, "meta.json"),
		MediaDir:     filepath.Join(root, "media"),
	}
	if err := os.MkdirAll(p.MediaDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("%w: creating media directory %s: %w", utils.ErrFilesystem, p.MediaDir, err)
	}
	return p, nil
}
