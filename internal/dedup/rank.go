// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// Score weights.
const (
	weightCitations    = 0.4
	weightRecency      = 0.3
	weightSource       = 0.1
	weightCompleteness = 0.2
)

// longAbstract is the abstract length above which the abstract counts
// toward metadata completeness.
const longAbstract = 100

// sourceQuality is the per-source prior; unknown sources get defaultSourceQuality.
var sourceQuality = map[string]float64{
	"arxiv":           0.10,
	"semanticscholar": 0.15,
	"pubmed":          0.10,
	"crossref":        0.10,
}

const defaultSourceQuality = 0.05

// Clock returns the current time. Ranking takes a Clock so that scores are
// reproducible in tests and stable within a run.
type Clock func() time.Time

// Scored pairs a result with its relevance score.
type Scored struct {
	Result types.SearchResult
	Score  float64
}

// Rank scores every result against clock() and returns them sorted by
// descending score. The sort is stable, so equal scores keep input order.
// A nil clock uses time.Now.
func Rank(results []types.SearchResult, clock Clock) []types.SearchResult {
	scored := RankScored(results, clock)
	out := make([]types.SearchResult, len(scored))
	for i, s := range scored {
		out[i] = s.Result
	}
	return out
}

// RankScored is Rank that also returns the scores.
func RankScored(results []types.SearchResult, clock Clock) []Scored {
	if clock == nil {
		clock = time.Now
	}
	now := clock()

	scored := make([]Scored, len(results))
	for i, r := range results {
		scored[i] = Scored{Result: r, Score: Score(r, now)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Score computes
//
//	0.4·min(1, citations/100) + 0.3·recency + 0.1·source_quality + 0.2·completeness
func Score(r types.SearchResult, now time.Time) float64 {
	citations := math.Min(1, float64(r.Citations())/100)
	return weightCitations*citations +
		weightRecency*RecencyBonus(r.Year, now.Year()) +
		weightSource*SourceQuality(r.Source) +
		weightCompleteness*Completeness(r)
}

// RecencyBonus decays linearly from 1 (current year or later) to 0.5 at
// ten years old, then to 0 at twenty years old. Unknown years score 0.
func RecencyBonus(year *int, currentYear int) float64 {
	if year == nil {
		return 0
	}
	age := float64(currentYear - *year)
	switch {
	case age <= 0:
		return 1
	case age <= 10:
		return 1 - 0.05*age
	case age <= 20:
		return 0.5 - 0.05*(age-10)
	default:
		return 0
	}
}

// SourceQuality returns the table prior for a source tag.
func SourceQuality(source string) float64 {
	if q, ok := sourceQuality[source]; ok {
		return q
	}
	return defaultSourceQuality
}

// Completeness scores metadata presence: DOI 0.2, long abstract 0.3,
// venue 0.2, PDF URL 0.3, capped at 1.
func Completeness(r types.SearchResult) float64 {
	var c float64
	if r.DOI != "" {
		c += 0.2
	}
	if len(r.Abstract) > longAbstract {
		c += 0.3
	}
	if r.Venue != "" {
		c += 0.2
	}
	if r.PDFURL != "" {
		c += 0.3
	}
	return math.Min(1, c)
}
