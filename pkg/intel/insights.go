package intel

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"listing-ingest/pkg/models"
)

// PHashThreshold is the Hamming distance at or below which two perceptual
// hashes are treated as near-duplicates.
const PHashThreshold = 10

const paletteColors = 5

// AnalyzeMedia computes descriptive statistics over a set of assets: counts
// by kind, byte totals, image dimension ranges, orientation breakdown,
// exact-content duplicates, and a size-based hero fallback. It is pure
// bookkeeping and never opens the files.
func AnalyzeMedia(assets []models.MediaAsset) models.MediaInsights {
	insights := models.MediaInsights{TotalAssets: len(assets)}

	var images []models.MediaAsset
	for _, a := range assets {
		insights.BytesTotal += a.BytesSize
		switch a.Kind {
		case models.KindImage:
			insights.ImageCount++
			images = append(images, a)
		case models.KindVideo:
			insights.VideoCount++
		case models.KindDocument:
			insights.DocumentCount++
		default:
			insights.OtherCount++
		}
	}

	var sumW, sumH, dimCount int
	for _, a := range images {
		if a.Width <= 0 || a.Height <= 0 {
			continue
		}
		if dimCount == 0 {
			insights.MinWidth, insights.MaxWidth = a.Width, a.Width
			insights.MinHeight, insights.MaxHeight = a.Height, a.Height
		} else {
			insights.MinWidth = min(insights.MinWidth, a.Width)
			insights.MaxWidth = max(insights.MaxWidth, a.Width)
			insights.MinHeight = min(insights.MinHeight, a.Height)
			insights.MaxHeight = max(insights.MaxHeight, a.Height)
		}
		sumW += a.Width
		sumH += a.Height
		dimCount++

		switch {
		case a.Width > a.Height:
			insights.LandscapeCount++
		case a.Height > a.Width:
			insights.PortraitCount++
		default:
			insights.SquareCount++
		}
	}
	if dimCount > 0 {
		insights.AvgWidth = float64(sumW) / float64(dimCount)
		insights.AvgHeight = float64(sumH) / float64(dimCount)
	}

	seen := make(map[string]int, len(assets))
	for _, a := range assets {
		seen[a.SHA256]++
		if seen[a.SHA256] == 2 {
			insights.DuplicateHashes = append(insights.DuplicateHashes, a.SHA256)
		}
	}

	// Largest pixel area wins the fallback hero slot; the intelligence pass
	// replaces it with a quality-aware choice when enabled.
	maxArea := -1
	for _, a := range images {
		if a.Width > 0 && a.Height > 0 && a.Width*a.Height > maxArea {
			maxArea = a.Width * a.Height
			insights.HeroSHA256 = a.SHA256
		}
	}

	return insights
}

// EnrichWithIntelligence adds perceptual signals to insights in place:
// per-image quality metrics and palettes, near-duplicate clusters, and a
// quality-aware hero. Images that fail to decode are skipped with a warning;
// one bad file never blocks the rest.
func EnrichWithIntelligence(assets []models.MediaAsset, insights *models.MediaInsights, log *logrus.Entry) {
	var images []models.MediaAsset
	for _, a := range assets {
		if a.Kind == models.KindImage {
			images = append(images, a)
		}
	}
	if len(images) == 0 {
		return
	}

	phashes := make(map[string]string, len(images))
	signals := make(map[string]HeroSignal, len(images))
	insights.ImageQuality = make(map[string]models.QualityMetrics, len(images))
	insights.Palettes = make(map[string][]string, len(images))

	var analyzed []models.MediaAsset
	for _, a := range images {
		if _, done := signals[a.SHA256]; done {
			continue
		}
		ph, err := ComputePHash(a.LocalPath)
		if err != nil {
			skipAsset(insights, log, a, err)
			continue
		}
		quality, err := ComputeQuality(a.LocalPath)
		if err != nil {
			skipAsset(insights, log, a, err)
			continue
		}
		palette, err := ExtractPalette(a.LocalPath, paletteColors)
		if err != nil {
			skipAsset(insights, log, a, err)
			continue
		}

		phashes[a.SHA256] = ph
		insights.ImageQuality[a.SHA256] = quality
		insights.Palettes[a.SHA256] = palette
		signals[a.SHA256] = HeroSignal{
			Area:    float64(a.Width * a.Height),
			Quality: quality,
		}
		analyzed = append(analyzed, a)
	}

	insights.DuplicateClusters = clusterByPHash(analyzed, phashes, signals)
	if hero := RankHero(analyzed, signals); hero != "" {
		insights.HeroSHA256 = hero
	}
}

// clusterByPHash greedily groups images whose hashes are within
// PHashThreshold bits of a cluster seed. Members of multi-image clusters are
// flagged as duplicates in signals. Cluster members are sorted by hash.
func clusterByPHash(images []models.MediaAsset, phashes map[string]string, signals map[string]HeroSignal) [][]string {
	hashes := make([]string, 0, len(images))
	for _, a := range images {
		if _, ok := phashes[a.SHA256]; ok {
			hashes = append(hashes, a.SHA256)
		}
	}

	used := make(map[string]bool, len(hashes))
	var clusters [][]string
	for i, s1 := range hashes {
		if used[s1] {
			continue
		}
		cluster := []string{s1}
		for _, s2 := range hashes[i+1:] {
			if used[s2] {
				continue
			}
			dist, err := HammingHex(phashes[s1], phashes[s2])
			if err == nil && dist <= PHashThreshold {
				cluster = append(cluster, s2)
				used[s2] = true
			}
		}
		used[s1] = true
		if len(cluster) > 1 {
			for _, s := range cluster {
				sig := signals[s]
				sig.IsDuplicate = true
				signals[s] = sig
			}
			sort.Strings(cluster)
			clusters = append(clusters, cluster)
		}
	}
	return clusters
}

func skipAsset(insights *models.MediaInsights, log *logrus.Entry, a models.MediaAsset, err error) {
	log.WithField("sha256", a.SHA256).Warnf("Skipping image in intelligence pass: %v", err)
	insights.Warnings = append(insights.Warnings, fmt.Sprintf("intel-skip:%s", a.SHA256))
}
