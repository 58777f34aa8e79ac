// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/literature-engine/pkg/types"
)

func result(title, doi, source string) types.SearchResult {
	return types.SearchResult{Title: title, DOI: doi, Source: source}
}

func TestDeduplicate_ExactDOI(t *testing.T) {
	in := []types.SearchResult{
		result("Paper One", "10.1/x", "arxiv"),
		result("Paper Two", "10.1/y", "arxiv"),
		result("Paper One (v2)", "https://doi.org/10.1/X", "crossref"),
	}
	in[2].CitationCount = types.IntPtr(12)

	out, stats := Deduplicate(in, DefaultOptions())
	require.Len(t, out, 2)
	assert.Equal(t, 1, stats.DOIDups)
	assert.Equal(t, "crossref", out[0].Source, "higher citation count wins the DOI bucket")
	assert.Equal(t, "Paper Two", out[1].Title)
}

func TestDeduplicate_FuzzyTitle(t *testing.T) {
	in := []types.SearchResult{
		result("Active Inference: A Process Theory", "", "arxiv"),
		result("Active inference - a process theory.", "", "semanticscholar"),
		result("Active Inferance: A Process Theory", "", "openalex"),
		result("Something Entirely Different", "", "arxiv"),
	}
	in[2].Abstract = "longer abstract wins"

	out, stats := Deduplicate(in, DefaultOptions())
	require.Len(t, out, 2)
	assert.Equal(t, 2, stats.TitleDups)
	assert.Equal(t, "openalex", out[0].Source)
	assert.Equal(t, "Something Entirely Different", out[1].Title)
}

func TestDeduplicate_DOIAbsorbsTitleDuplicates(t *testing.T) {
	in := []types.SearchResult{
		result("Free Energy Principle", "", "arxiv"),
		result("The Free Energy Principle", "10.5/fep", "crossref"),
		result("Free Energy Principle", "", "semanticscholar"),
		result("The free-energy principle", "", "openalex"),
	}

	out, _ := Deduplicate(in, DefaultOptions())
	require.Len(t, out, 2)
	assert.Equal(t, "arxiv", out[0].Source)
	assert.Equal(t, "crossref", out[1].Source)
}

func TestDeduplicate_ThresholdRespected(t *testing.T) {
	in := []types.SearchResult{
		result("Neural networks for vision", "", "a"),
		result("Neural networks for speech", "", "b"),
	}
	out, _ := Deduplicate(in, Options{TitleThreshold: 0.95})
	assert.Len(t, out, 2)

	out, _ = Deduplicate(in, Options{TitleThreshold: 0.5})
	assert.Len(t, out, 1)
}

func TestBetter(t *testing.T) {
	base := result("T", "", "x")
	withDOI := result("T", "10.1/a", "x")
	cited := base
	cited.CitationCount = types.IntPtr(5)
	abstract := base
	abstract.Abstract = "abc"
	venue := base
	venue.Venue = "Nature"

	assert.True(t, Better(withDOI, cited))
	assert.False(t, Better(cited, withDOI))
	assert.True(t, Better(cited, abstract))
	assert.True(t, Better(abstract, venue))
	assert.True(t, Better(venue, base))
	assert.False(t, Better(base, base))
}

func TestTitleSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, TitleSimilarity("abc", "abc"))
	assert.Equal(t, 1.0, TitleSimilarity("", ""))
	assert.InDelta(t, 0.75, TitleSimilarity("abcd", "abcx"), 1e-9)
	assert.Equal(t, 0.0, TitleSimilarity("abc", ""))
}

// randomResults builds a corpus with deliberate DOI and title collisions.
func randomResults(rng *rand.Rand, n int) []types.SearchResult {
	words := []string{"active", "inference", "free", "energy", "bayesian", "brain", "model", "learning"}
	out := make([]types.SearchResult, n)
	for i := range out {
		k := 2 + rng.Intn(3)
		parts := make([]string, k)
		for j := range parts {
			parts[j] = words[rng.Intn(len(words))]
		}
		r := types.SearchResult{
			Title:  strings.Join(parts, " "),
			Source: []string{"arxiv", "crossref", "openalex"}[rng.Intn(3)],
		}
		if rng.Intn(2) == 0 {
			r.DOI = fmt.Sprintf("10.1/%d", rng.Intn(n/2+1))
		}
		if rng.Intn(3) == 0 {
			r.CitationCount = types.IntPtr(rng.Intn(50))
		}
		out[i] = r
	}
	return out
}

func TestDeduplicate_SubsetAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := range 25 {
		all := randomResults(rng, 30)
		subset := all[:rng.Intn(len(all))+1]

		once, _ := Deduplicate(subset, DefaultOptions())
		twice, _ := Deduplicate(once, DefaultOptions())

		for _, r := range once {
			assert.Contains(t, subset, r, "trial %d: output must be drawn from the input", trial)
		}
		assert.Equal(t, once, twice, "trial %d: deduplicate must be idempotent", trial)

		seen := map[string]bool{}
		for _, r := range once {
			if d := types.NormalizeDOI(r.DOI); d != "" {
				assert.False(t, seen[d], "trial %d: duplicate DOI %s", trial, d)
				seen[d] = true
			}
		}
	}
}

func TestDeduplicate_ChainedTitlesMergeToFixedPoint(t *testing.T) {
	a20 := strings.Repeat("a", 20)
	a15b5 := strings.Repeat("a", 15) + strings.Repeat("b", 5)
	a18bb := strings.Repeat("a", 18) + "bb"
	require.Less(t, TitleSimilarity(a20, a15b5), DefaultTitleThreshold)
	require.GreaterOrEqual(t, TitleSimilarity(a15b5, a18bb), DefaultTitleThreshold)

	in := []types.SearchResult{
		result(a20, "", "arxiv"),
		result(a15b5, "", "arxiv"),
		result(a18bb, "", "openalex"),
	}
	in[2].CitationCount = types.IntPtr(50)

	once, stats := Deduplicate(in, DefaultOptions())
	require.Len(t, once, 1)
	assert.Equal(t, a18bb, once[0].Title)
	assert.Equal(t, 2, stats.TitleDups)
	assert.Equal(t, 1, stats.Output)

	twice, _ := Deduplicate(once, DefaultOptions())
	assert.Equal(t, once, twice)
}
