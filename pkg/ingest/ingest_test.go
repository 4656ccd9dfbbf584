package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/models"
)

const localListingHTML = `<!DOCTYPE html>
<html><head><title>4 Maple Court</title></head>
<body>
  <img src="/photos/front.jpg" alt="Front of house">
  <img src="/photos/garden.jpg" alt="Garden">
</body></html>`

func localPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Policy.CacheDir = t.TempDir()
	return NewPipeline(nil, nil, nil, &cfg, testEntry())
}

func TestIngest_RequiresURLOrFile(t *testing.T) {
	p := localPipeline(t)

	_, err := p.Ingest(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL or a file path")
}

func TestIngest_MissingFile(t *testing.T) {
	p := localPipeline(t)

	_, err := p.Ingest(context.Background(), Options{FilePath: filepath.Join(t.TempDir(), "gone.html")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestIngest_LocalFileSnapshot(t *testing.T) {
	p := localPipeline(t)

	htmlPath := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(localListingHTML), 0o644))

	result, err := p.Ingest(context.Background(), Options{FilePath: htmlPath})
	require.NoError(t, err)
	require.NotNil(t, result.Snapshot)

	abs, err := filepath.Abs(htmlPath)
	require.NoError(t, err)
	assert.Equal(t, "file://"+abs, result.Snapshot.URL)
	assert.Equal(t, 200, result.Snapshot.StatusCode)
	assert.Equal(t, models.ModeRaw, result.Snapshot.Mode)
	assert.Equal(t, abs, result.Snapshot.HTMLPath)

	// No download, no local photos: nothing downstream runs.
	assert.Empty(t, result.Finder.Candidates)
	assert.Equal(t, -1, result.Finder.PhotoCountHint)
	assert.Empty(t, result.Assets)
	assert.Nil(t, result.Insights)
}

func TestIngest_LocalFileWithBaseURL(t *testing.T) {
	p := localPipeline(t)

	htmlPath := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(localListingHTML), 0o644))

	result, err := p.Ingest(context.Background(), Options{
		FilePath: htmlPath,
		BaseURL:  "https://portal.example.com/listings/42",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/listings/42", result.Snapshot.URL)
}

func TestIngest_PhotosDirFeedsInsights(t *testing.T) {
	p := localPipeline(t)

	htmlPath := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(localListingHTML), 0o644))

	photos := t.TempDir()
	writeTestPNG(t, filepath.Join(photos, "01.png"), 320, 240)
	writeTestPNG(t, filepath.Join(photos, "02.png"), 240, 320)

	result, err := p.Ingest(context.Background(), Options{FilePath: htmlPath, PhotosDir: photos})
	require.NoError(t, err)

	require.Len(t, result.Assets, 2)
	require.NotNil(t, result.Insights)
	assert.Equal(t, 2, result.Insights.TotalAssets)
	assert.Equal(t, 2, result.Insights.ImageCount)
	assert.Equal(t, 1, result.Insights.LandscapeCount)
	assert.Equal(t, 1, result.Insights.PortraitCount)

	// Intelligence is off by default: summary only, no per-image metrics.
	assert.Nil(t, result.Insights.ImageQuality)
	assert.Equal(t, result.Assets[0].SHA256, result.Insights.HeroSHA256, "size fallback picks the first largest image")
}

func TestIngest_IntelligenceOverride(t *testing.T) {
	p := localPipeline(t)

	htmlPath := filepath.Join(t.TempDir(), "listing.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(localListingHTML), 0o644))

	photos := t.TempDir()
	writeTestPNG(t, filepath.Join(photos, "01.png"), 320, 240)
	writeTestPNG(t, filepath.Join(photos, "02.png"), 240, 320)

	enable := true
	result, err := p.Ingest(context.Background(), Options{
		FilePath:           htmlPath,
		PhotosDir:          photos,
		EnableIntelligence: &enable,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Insights)

	assert.Len(t, result.Insights.ImageQuality, 2)
	assert.Len(t, result.Insights.Palettes, 2)
	assert.NotEmpty(t, result.Insights.HeroSHA256)
}
