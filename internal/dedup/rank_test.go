// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/literature-engine/pkg/types"
)

func fixedClock(year int) Clock {
	return func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
}

func TestRecencyBonus(t *testing.T) {
	tests := []struct {
		name string
		year *int
		want float64
	}{
		{"unknown", nil, 0},
		{"this year", types.IntPtr(2025), 1},
		{"future", types.IntPtr(2026), 1},
		{"five years", types.IntPtr(2020), 0.75},
		{"ten years", types.IntPtr(2015), 0.5},
		{"fifteen years", types.IntPtr(2010), 0.25},
		{"twenty years", types.IntPtr(2005), 0},
		{"ancient", types.IntPtr(1950), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RecencyBonus(tt.year, 2025), 1e-9)
		})
	}
}

func TestSourceQuality(t *testing.T) {
	assert.Equal(t, 0.15, SourceQuality("semanticscholar"))
	assert.Equal(t, 0.10, SourceQuality("arxiv"))
	assert.Equal(t, 0.05, SourceQuality("openalex"))
}

func TestCompleteness(t *testing.T) {
	r := types.SearchResult{DOI: "10.1/x", Abstract: strings.Repeat("a", 101), Venue: "V", PDFURL: "u"}
	assert.Equal(t, 1.0, Completeness(r))
	assert.InDelta(t, 0.2, Completeness(types.SearchResult{DOI: "10.1/x", Abstract: "short"}), 1e-9)
	assert.Zero(t, Completeness(types.SearchResult{}))
}

func TestScore(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := types.SearchResult{
		Source:        "semanticscholar",
		Year:          types.IntPtr(2025),
		CitationCount: types.IntPtr(250),
		DOI:           "10.1/x",
		PDFURL:        "https://x/y.pdf",
	}
	// 0.4*1 + 0.3*1 + 0.1*0.15 + 0.2*0.5
	assert.InDelta(t, 0.815, Score(r, now), 1e-9)
}

func TestRank_SortsDescendingAndStable(t *testing.T) {
	old := types.SearchResult{Title: "old", Source: "x", Year: types.IntPtr(1990)}
	recent := types.SearchResult{Title: "recent", Source: "x", Year: types.IntPtr(2024)}
	tieA := types.SearchResult{Title: "tie-a", Source: "x"}
	tieB := types.SearchResult{Title: "tie-b", Source: "x"}
	cited := types.SearchResult{Title: "cited", Source: "x", CitationCount: types.IntPtr(100)}

	ranked := Rank([]types.SearchResult{tieA, old, recent, tieB, cited}, fixedClock(2025))

	titles := make([]string, len(ranked))
	for i, r := range ranked {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"cited", "recent", "tie-a", "old", "tie-b"}, titles)
}

func TestRank_ClockControlsRecency(t *testing.T) {
	a := types.SearchResult{Title: "a", Year: types.IntPtr(2015)}
	b := types.SearchResult{Title: "b", CitationCount: types.IntPtr(30)}

	// In 2015 a is brand new: 0.3 > 0.12.
	assert.Equal(t, "a", Rank([]types.SearchResult{b, a}, fixedClock(2015))[0].Title)
	// In 2035 a has decayed to zero.
	assert.Equal(t, "b", Rank([]types.SearchResult{a, b}, fixedClock(2035))[0].Title)
}
