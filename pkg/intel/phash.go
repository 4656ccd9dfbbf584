package intel

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
)

const (
	phashSize    = 32 // resize target before the DCT
	phashLowFreq = 8  // low-frequency block kept, 8x8 = 64 bits
)

// ComputePHash returns the 64-bit DCT perceptual hash of the image at path
// as a 16-character hex string. Pipeline: grayscale, resize to 32x32, 2D
// DCT, keep the 8x8 low-frequency block, binarize against the mean of the
// AC coefficients.
func ComputePHash(path string) (string, error) {
	img, err := loadImage(path)
	if err != nil {
		return "", err
	}

	pixels := grayPixels(img, phashSize)
	coeffs := dct2D(pixels, phashSize)

	low := make([]float64, 0, phashLowFreq*phashLowFreq)
	for y := 0; y < phashLowFreq; y++ {
		for x := 0; x < phashLowFreq; x++ {
			low = append(low, coeffs[y*phashSize+x])
		}
	}

	// The DC coefficient dwarfs everything else; exclude it from the mean.
	var sum float64
	for _, v := range low[1:] {
		sum += v
	}
	threshold := sum / float64(len(low)-1)

	var hash uint64
	for _, v := range low {
		hash <<= 1
		if v > threshold {
			hash |= 1
		}
	}
	return fmt.Sprintf("%016x", hash), nil
}

// HammingHex returns the bit distance between two equal-length hex hashes.
func HammingHex(h1, h2 string) (int, error) {
	if len(h1) != len(h2) {
		return 0, fmt.Errorf("hash lengths differ: %d vs %d", len(h1), len(h2))
	}
	a, err := strconv.ParseUint(h1, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", h1, err)
	}
	b, err := strconv.ParseUint(h2, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", h2, err)
	}
	return bits.OnesCount64(a ^ b), nil
}

// dct2D applies a separable DCT-II over a size x size row-major matrix,
// rows first, then columns.
func dct2D(m []float64, size int) []float64 {
	tmp := make([]float64, size*size)
	row := make([]float64, size)
	for y := 0; y < size; y++ {
		copy(row, m[y*size:(y+1)*size])
		out := dct1D(row)
		copy(tmp[y*size:(y+1)*size], out)
	}

	result := make([]float64, size*size)
	col := make([]float64, size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			col[y] = tmp[y*size+x]
		}
		out := dct1D(col)
		for y := 0; y < size; y++ {
			result[y*size+x] = out[y]
		}
	}
	return result
}

// dct1D computes the unnormalized DCT-II of x.
func dct1D(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		out[k] = sum
	}
	return out
}
