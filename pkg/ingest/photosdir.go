package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/models"
	"listing-ingest/pkg/utils"
)

var localPhotoExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// ScanPhotosDir turns a local directory of photos into assets so agent-
// supplied photo sets go through the same insight pipeline as downloaded
// media. Files are hashed and probed but never copied.
func ScanPhotosDir(dir string, log *logrus.Entry) ([]models.MediaAsset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading photos directory %s: %w", utils.ErrFilesystem, dir, err)
	}

	var assets []models.MediaAsset
	for _, entry := range entries {
		if entry.IsDir() || !localPhotoExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			continue
		}
		digest, err := utils.FileSHA256(path)
		if err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			continue
		}

		asset := models.MediaAsset{
			LocalPath: path,
			Kind:      models.KindImage,
			Source:    models.SourceManual,
			BytesSize: info.Size(),
			SHA256:    digest,
			CreatedAt: info.ModTime().UTC(),
		}
		if w, h, err := probeDims(path); err == nil {
			asset.Width, asset.Height = w, h
		} else {
			asset.Warnings = append(asset.Warnings, "image_probe_error:"+err.Error())
		}
		assets = append(assets, asset)
	}

	// Directory iteration order is platform-dependent; pin it.
	sort.Slice(assets, func(i, j int) bool { return assets[i].LocalPath < assets[j].LocalPath })
	return assets, nil
}
