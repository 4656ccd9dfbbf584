package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"listing-ingest/pkg/config"
	"listing-ingest/pkg/models"
)

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", normalizeContentType("image/jpeg"))
	assert.Equal(t, "image/jpeg", normalizeContentType("IMAGE/JPEG; charset=binary"))
	assert.Equal(t, "text/html", normalizeContentType("text/html; charset=utf-8"))
	assert.Equal(t, "", normalizeContentType(""))
}

func TestGuessExt(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		want        string
	}{
		{"jpeg content type", "image/jpeg", "https://cdn.example.com/x", "jpg"},
		{"png content type", "image/png", "https://cdn.example.com/x", "png"},
		{"webp content type", "image/webp", "https://cdn.example.com/x", "webp"},
		{"pdf content type", "application/pdf", "https://cdn.example.com/x", "pdf"},
		{"content type beats url", "image/png", "https://cdn.example.com/photo.jpg", "png"},
		{"url fallback", "", "https://cdn.example.com/photo.JPG?w=800", "jpg"},
		{"url ext is sanitized", "", "https://cdn.example.com/photo.j%22pg", "j_pg"},
		{"nothing known", "", "https://cdn.example.com/stream", "bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guessExt(tt.contentType, tt.url))
		})
	}
}

func TestCoerceKind(t *testing.T) {
	tests := []struct {
		declared    models.MediaKind
		contentType string
		want        models.MediaKind
	}{
		{models.KindOther, "image/jpeg", models.KindImage},
		{models.KindImage, "video/mp4", models.KindVideo},
		{models.KindImage, "application/pdf", models.KindDocument},
		{models.KindImage, "", models.KindImage},
		{models.KindFloorplan, "text/html", models.KindFloorplan},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceKind(tt.declared, tt.contentType),
			"coerceKind(%s, %q)", tt.declared, tt.contentType)
	}
}

func TestLooksLikeIconOrLogo(t *testing.T) {
	icons := []string{
		"https://example.com/favicon.ico",
		"https://cdn.example.com/assets/logo.png",
		"https://cdn.example.com/sprites/social-share.png",
		"https://cdn.example.com/img/icon-search.png",
		"https://static.example.com/facebook-badge.png",
		"https://cdn.example.com/art.svg",
	}
	for _, u := range icons {
		assert.True(t, looksLikeIconOrLogo(u), "%s should look decorative", u)
	}

	photos := []string{
		"https://cdn.example.com/listings/42/kitchen-01.jpg",
		"https://photos.example.com/p/abc123.webp",
	}
	for _, u := range photos {
		assert.False(t, looksLikeIconOrLogo(u), "%s should look like a photo", u)
	}
}

func TestPrefilterCandidate(t *testing.T) {
	cfg := config.DefaultMedia()
	allowed := cfg.AllowedKindSet()

	photo := models.MediaCandidate{
		URL: "https://cdn.example.com/listings/42/kitchen-01.jpg", Kind: models.KindImage, PageIndex: -1,
	}
	assert.True(t, prefilterCandidate(photo, allowed, cfg))

	other := photo
	other.Kind = models.KindOther
	assert.False(t, prefilterCandidate(other, allowed, cfg), "kind outside the allowlist is dropped")

	smallHint := photo
	smallHint.WidthHint = 64
	assert.False(t, prefilterCandidate(smallHint, allowed, cfg), "width hint below minimum is dropped")

	noHint := photo
	noHint.WidthHint = 0
	assert.True(t, prefilterCandidate(noHint, allowed, cfg), "absent hints never drop a candidate")
}

func TestPrefilterCandidate_IconHeuristic(t *testing.T) {
	cfg := config.DefaultMedia()
	allowed := cfg.AllowedKindSet()

	icon := models.MediaCandidate{
		URL: "https://cdn.example.com/logos/brand.png", Kind: models.KindImage, PageIndex: -1, Priority: 700,
	}
	assert.False(t, prefilterCandidate(icon, allowed, cfg), "icon-looking URL with no counter-signal is dropped")

	// Counter-signal: explicit page metadata tier.
	trusted := icon
	trusted.Priority = priorityOGImage
	assert.True(t, prefilterCandidate(trusted, allowed, cfg))

	// Counter-signal: known gallery position.
	positioned := icon
	positioned.PageIndex = 3
	assert.True(t, prefilterCandidate(positioned, allowed, cfg))

	// Counter-signal: hints well above the minimums.
	big := icon
	big.WidthHint = cfg.MinWidthHint * 2
	assert.True(t, prefilterCandidate(big, allowed, cfg))
}

func TestPostfilterImage(t *testing.T) {
	cfg := config.DefaultMedia() // 150x150 minimum, 4.0 aspect cap

	assert.True(t, postfilterImage(800, 600, 50_000, cfg))
	assert.False(t, postfilterImage(100, 600, 50_000, cfg), "width below minimum")
	assert.False(t, postfilterImage(800, 100, 50_000, cfg), "height below minimum")
	assert.False(t, postfilterImage(1600, 200, 50_000, cfg), "aspect ratio over the cap")
	assert.True(t, postfilterImage(600, 150, 50_000, cfg), "4:1 is exactly at the cap")
}

func TestPostfilterImage_MinArea(t *testing.T) {
	cfg := config.DefaultMedia()
	cfg.MinWidth, cfg.MinHeight = 100, 100
	cfg.MinArea = 50_000

	assert.False(t, postfilterImage(150, 150, 40_000, cfg), "22500 px below the configured area floor")
	assert.True(t, postfilterImage(300, 200, 40_000, cfg))
}

func TestPostfilterImage_NoDimensionsFallsBackToBytes(t *testing.T) {
	cfg := config.DefaultMedia()

	assert.False(t, postfilterImage(0, 0, 10*1024, cfg))
	assert.True(t, postfilterImage(0, 0, 40*1024, cfg))
}
