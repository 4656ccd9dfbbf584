package intel

import (
	"math"

	"listing-ingest/pkg/models"
)

// ComputeQuality derives fast per-image quality signals from the luminance
// plane: sharpness as the variance of the Laplacian, brightness as the mean,
// contrast as the standard deviation.
func ComputeQuality(path string) (models.QualityMetrics, error) {
	img, err := loadImage(path)
	if err != nil {
		return models.QualityMetrics{}, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := luminance(img)

	var sum, sumSq float64
	for _, v := range lum {
		sum += v
		sumSq += v * v
	}
	n := float64(len(lum))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0 // floating point drift on flat images
	}

	return models.QualityMetrics{
		Sharpness:  laplacianVariance(lum, w, h),
		Brightness: mean,
		Contrast:   math.Sqrt(variance),
	}, nil
}

// laplacianVariance convolves the luminance plane with the 3x3 Laplacian
// kernel (4-neighbor, zero padding) and returns the variance of the result.
// Blurry photos produce a flat response; sharp edges produce a wide one.
func laplacianVariance(lum []float64, w, h int) float64 {
	if w == 0 || h == 0 {
		return 0
	}
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return lum[y*w+x]
	}

	n := float64(w * h)
	var sum, sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance
}
