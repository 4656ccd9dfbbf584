package media

import (
	"image"
	"os"

	// Decoders for dimension probing. Listing photos are overwhelmingly
	// JPEG, but portals also serve png, webp, gif, and scanned floorplans
	// as bmp/tiff.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// probeImageDims reads just enough of the file to determine pixel
// dimensions. Returns (0, 0, err) when the format is unknown or corrupt.
func probeImageDims(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
