package intel

import (
	"listing-ingest/pkg/models"
)

// HeroSignal is the per-image input to hero ranking.
type HeroSignal struct {
	Area        float64
	IsDuplicate bool
	Quality     models.QualityMetrics
}

const duplicatePenalty = 0.25

// RankHero deterministically picks the best cover image and returns its
// content hash, or "" when no image qualifies.
//
// Score = 0.5*areaNorm + 0.4*sharpnessNorm + 0.1*contrastNorm, minus a
// penalty for members of a near-duplicate cluster. Ties break by score, then
// raw area, then lexicographic hash, so the result never depends on input
// order.
func RankHero(assets []models.MediaAsset, signals map[string]HeroSignal) string {
	if len(assets) == 0 {
		return ""
	}

	areas := make([]float64, 0, len(assets))
	sharps := make([]float64, 0, len(assets))
	contrs := make([]float64, 0, len(assets))
	for _, a := range assets {
		s := signals[a.SHA256]
		areas = append(areas, s.Area)
		sharps = append(sharps, s.Quality.Sharpness)
		contrs = append(contrs, s.Quality.Contrast)
	}

	bestHash := ""
	var bestScore, bestArea float64
	for _, a := range assets {
		s := signals[a.SHA256]
		score := 0.5*normalize(s.Area, areas) +
			0.4*normalize(s.Quality.Sharpness, sharps) +
			0.1*normalize(s.Quality.Contrast, contrs)
		if s.IsDuplicate {
			score -= duplicatePenalty
		}
		if bestHash == "" || better(score, s.Area, a.SHA256, bestScore, bestArea, bestHash) {
			bestHash, bestScore, bestArea = a.SHA256, score, s.Area
		}
	}
	return bestHash
}

func better(score, area float64, hash string, bestScore, bestArea float64, bestHash string) bool {
	if score != bestScore {
		return score > bestScore
	}
	if area != bestArea {
		return area > bestArea
	}
	return hash > bestHash
}

// normalize maps x into [0, 1] within the observed range of xs. A flat range
// maps to 0.
func normalize(x float64, xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mn, mx := xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	if mx <= mn {
		return 0
	}
	return (x - mn) / (mx - mn)
}
