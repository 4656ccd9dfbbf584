package intel

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	paletteThumbSide = 256
	paletteMaxIter   = 15
	paletteSeed      = 42 // fixed seed keeps palettes reproducible run to run
)

// ExtractPalette returns the k dominant colors of the image at path as
// "#rrggbb" hex strings, computed with k-means++ over a bounded thumbnail.
// The same file always yields the same palette.
func ExtractPalette(path string, k int) ([]string, error) {
	if k <= 0 {
		return nil, fmt.Errorf("palette size must be positive, got %d", k)
	}
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}

	thumb := boundedThumbnail(img, paletteThumbSide)
	b := thumb.Bounds()
	n := b.Dx() * b.Dy()
	pixels := make([][3]float64, 0, n)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := thumb.At(x, y).RGBA()
			pixels = append(pixels, [3]float64{float64(r >> 8), float64(g >> 8), float64(bl >> 8)})
		}
	}
	if len(pixels) == 0 {
		return nil, fmt.Errorf("image %s has no pixels", path)
	}

	centers := kMeans(pixels, k)

	out := make([]string, 0, k)
	for _, c := range centers {
		out = append(out, fmt.Sprintf("#%02x%02x%02x", clampByte(c[0]), clampByte(c[1]), clampByte(c[2])))
	}
	return out, nil
}

func kMeans(pixels [][3]float64, k int) [][3]float64 {
	rng := rand.New(rand.NewSource(paletteSeed))
	centers := initPlusPlus(pixels, k, rng)

	assign := make([]int, len(pixels))
	for iter := 0; iter < paletteMaxIter; iter++ {
		for i, p := range pixels {
			best, bestDist := 0, math.Inf(1)
			for ci, c := range centers {
				if d := dist2(p, c); d < bestDist {
					best, bestDist = ci, d
				}
			}
			assign[i] = best
		}

		next := make([][3]float64, k)
		counts := make([]int, k)
		for i, p := range pixels {
			ci := assign[i]
			next[ci][0] += p[0]
			next[ci][1] += p[1]
			next[ci][2] += p[2]
			counts[ci]++
		}
		moved := false
		for ci := range next {
			if counts[ci] == 0 {
				next[ci] = centers[ci] // empty cluster keeps its center
				continue
			}
			for d := 0; d < 3; d++ {
				next[ci][d] /= float64(counts[ci])
				if math.Abs(next[ci][d]-centers[ci][d]) > 1e-4 {
					moved = true
				}
			}
		}
		centers = next
		if !moved {
			break
		}
	}
	return centers
}

// initPlusPlus seeds centers with k-means++: each new center is drawn with
// probability proportional to its squared distance from the nearest center
// chosen so far.
func initPlusPlus(pixels [][3]float64, k int, rng *rand.Rand) [][3]float64 {
	centers := make([][3]float64, 0, k)
	centers = append(centers, pixels[rng.Intn(len(pixels))])

	d2 := make([]float64, len(pixels))
	for i := range d2 {
		d2[i] = math.Inf(1)
	}
	for len(centers) < k {
		last := centers[len(centers)-1]
		var total float64
		for i, p := range pixels {
			if d := dist2(p, last); d < d2[i] {
				d2[i] = d
			}
			total += d2[i]
		}
		if total <= 0 {
			// All pixels coincide with a center; repeat it.
			centers = append(centers, last)
			continue
		}
		target := rng.Float64() * total
		var acc float64
		chosen := len(pixels) - 1
		for i, d := range d2 {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centers = append(centers, pixels[chosen])
	}
	return centers
}

func dist2(a, b [3]float64) float64 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}

func clampByte(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return r
}
