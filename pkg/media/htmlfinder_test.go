package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-ingest/pkg/models"
)

const listingFixture = `<!DOCTYPE html>
<html>
<head>
  <meta property="og:image" content="https://cdn.example.com/listings/42/hero.jpg">
  <script type="application/ld+json">
  {
    "@context": "https://schema.org",
    "@type": "RealEstateListing",
    "image": ["https://cdn.example.com/listings/42/hero.jpg", "https://cdn.example.com/listings/42/yard.jpg"],
    "photo": {"@type": "ImageObject", "contentUrl": "https://cdn.example.com/listings/42/plan.jpg"}
  }
  </script>
  <script>
  var tracking = { property: { hasphoto: 'yes', photos: '12', beds: '3' } };
  </script>
</head>
<body>
  <img src="/photos/kitchen.jpg" alt="Kitchen" srcset="/photos/kitchen-400.jpg 400w, /photos/kitchen-800.jpg 800w">
  <picture>
    <source srcset="/photos/bath.webp">
    <img src="/photos/bath.jpg">
  </picture>
  <div style="background-image: url('/photos/exterior.jpg')">exterior</div>
</body>
</html>`

func snapshotForHTML(t *testing.T, html string) *models.Snapshot {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.raw.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return &models.Snapshot{HTMLPath: path}
}

func candidateByURL(result models.FinderResult, url string) *models.MediaCandidate {
	for i := range result.Candidates {
		if result.Candidates[i].URL == url {
			return &result.Candidates[i]
		}
	}
	return nil
}

func TestHTMLFinder_Find(t *testing.T) {
	finder := NewHTMLFinder()
	pageURL := "https://portal.example.com/listing/42"

	result, err := finder.Find(pageURL, snapshotForHTML(t, listingFixture))
	require.NoError(t, err)

	assert.True(t, result.HasMedia)
	assert.Equal(t, 12, result.PhotoCountHint)
	assert.Contains(t, result.Notes, "site_hint:hasphoto")

	// OpenGraph beats JSON-LD for the same URL.
	hero := candidateByURL(result, "https://cdn.example.com/listings/42/hero.jpg")
	require.NotNil(t, hero)
	assert.Equal(t, float64(priorityOGImage), hero.Priority)

	yard := candidateByURL(result, "https://cdn.example.com/listings/42/yard.jpg")
	require.NotNil(t, yard)
	assert.Equal(t, float64(priorityJSONLD), yard.Priority)

	plan := candidateByURL(result, "https://cdn.example.com/listings/42/plan.jpg")
	require.NotNil(t, plan, "ImageObject contentUrl is discovered")

	// Relative srcset/src URLs resolve against the page URL.
	srcsetCand := candidateByURL(result, "https://portal.example.com/photos/kitchen-800.jpg")
	require.NotNil(t, srcsetCand)
	assert.Equal(t, float64(priorityImgSrcset), srcsetCand.Priority)
	assert.Equal(t, "Kitchen", srcsetCand.AltText)

	srcCand := candidateByURL(result, "https://portal.example.com/photos/kitchen.jpg")
	require.NotNil(t, srcCand)
	assert.Equal(t, float64(priorityImgSrc), srcCand.Priority)

	sourceCand := candidateByURL(result, "https://portal.example.com/photos/bath.webp")
	require.NotNil(t, sourceCand)
	assert.Equal(t, float64(prioritySourceElem), sourceCand.Priority)
	assert.Equal(t, models.KindImage, sourceCand.Kind)

	bgCand := candidateByURL(result, "https://portal.example.com/photos/exterior.jpg")
	require.NotNil(t, bgCand)
	assert.Equal(t, float64(priorityInlineBG), bgCand.Priority)

	for _, c := range result.Candidates {
		assert.Equal(t, models.SourceHTML, c.Source)
		assert.Equal(t, pageURL, c.RefererURL)
		assert.Equal(t, -1, c.PageIndex)
	}
}

func TestHTMLFinder_DedupKeepsHighestTier(t *testing.T) {
	html := `<html><head>
	<meta property="og:image" content="https://cdn.example.com/photo.jpg">
	</head><body>
	<img src="https://cdn.example.com/photo.jpg">
	</body></html>`

	result, err := NewHTMLFinder().Find("https://portal.example.com/listing/1", snapshotForHTML(t, html))
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, float64(priorityOGImage), result.Candidates[0].Priority)
}

func TestHTMLFinder_NilSnapshot(t *testing.T) {
	result, err := NewHTMLFinder().Find("https://portal.example.com/listing/1", nil)
	require.NoError(t, err)

	assert.False(t, result.HasMedia)
	assert.Equal(t, -1, result.PhotoCountHint)
	assert.Empty(t, result.Candidates)
}

func TestHTMLFinder_MissingArtifact(t *testing.T) {
	snap := &models.Snapshot{HTMLPath: filepath.Join(t.TempDir(), "gone.html")}
	result, err := NewHTMLFinder().Find("https://portal.example.com/listing/1", snap)
	require.NoError(t, err)
	assert.False(t, result.HasMedia)
}

func TestHTMLFinder_PortalHintWithoutMarkupMedia(t *testing.T) {
	html := `<html><head><script>
	var tracking = { property: { hasphoto: 'y', photos: '0' } };
	</script></head><body><p>No gallery rendered server side.</p></body></html>`

	result, err := NewHTMLFinder().Find("https://portal.example.com/listing/1", snapshotForHTML(t, html))
	require.NoError(t, err)

	assert.True(t, result.HasMedia, "the portal hint alone marks the page as having media")
	assert.Equal(t, 0, result.PhotoCountHint)
	assert.Empty(t, result.Candidates)
}

func TestParseSrcset(t *testing.T) {
	got := parseSrcset("/a.jpg 400w, /b.jpg 800w,/c.jpg 2x")
	assert.Equal(t, []string{"/a.jpg", "/b.jpg", "/c.jpg"}, got)

	assert.Empty(t, parseSrcset(""))
}

func TestKindFromExt(t *testing.T) {
	assert.Equal(t, models.KindImage, kindFromExt("https://x/photo.jpg?w=800"))
	assert.Equal(t, models.KindVideo, kindFromExt("https://x/tour.mp4"))
	assert.Equal(t, models.KindOther, kindFromExt("https://x/doc"))
}
