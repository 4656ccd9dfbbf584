package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"listing-ingest/pkg/models"
)

type stubFinder struct {
	name   string
	result models.FinderResult
	err    error
}

func (s stubFinder) Name() string { return s.name }
func (s stubFinder) Find(string, *models.Snapshot) (models.FinderResult, error) {
	return s.result, s.err
}

func TestDiscover_MergesAcrossFinders(t *testing.T) {
	finders := []MediaFinder{
		stubFinder{name: "html", result: models.FinderResult{
			HasMedia:       true,
			PhotoCountHint: -1,
			Candidates: []models.MediaCandidate{
				{URL: "https://cdn.example.com/1.jpg", Kind: models.KindImage, Source: models.SourceHTML, Priority: 700},
			},
		}},
		stubFinder{name: "mls", result: models.FinderResult{
			PhotoCountHint: 8,
			Candidates: []models.MediaCandidate{
				{URL: "https://cdn.example.com/2.jpg", Kind: models.KindImage, Source: models.SourceMLSAPI, Priority: 900},
			},
		}},
	}

	merged := Discover(finders, "https://portal.example.com/listing/1", nil, testLogEntry())

	assert.True(t, merged.HasMedia)
	assert.Equal(t, 8, merged.PhotoCountHint)
	assert.Len(t, merged.Candidates, 2)
}

func TestDiscover_BrokenFinderBecomesNote(t *testing.T) {
	finders := []MediaFinder{
		stubFinder{name: "broken", err: errors.New("upstream down")},
		stubFinder{name: "html", result: models.FinderResult{
			HasMedia:       true,
			PhotoCountHint: -1,
			Candidates: []models.MediaCandidate{
				{URL: "https://cdn.example.com/1.jpg", Kind: models.KindImage, Source: models.SourceHTML, Priority: 700},
			},
		}},
	}

	merged := Discover(finders, "https://portal.example.com/listing/1", nil, testLogEntry())

	assert.Len(t, merged.Candidates, 1, "one broken finder never hides the others")
	assert.Contains(t, merged.Notes, "finder_error:broken")
}
