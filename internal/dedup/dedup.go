// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup merges search results that describe the same paper and
// ranks the survivors by relevance.
//
// Deduplication never synthesizes records: every result it returns is one
// of its inputs, so the output is a subset of the input and running it
// twice gives the same answer.
package dedup

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// DefaultTitleThreshold is the minimum title similarity for two DOI-less
// results to be treated as the same paper.
const DefaultTitleThreshold = 0.85

// Options tunes deduplication.
type Options struct {
	// TitleThreshold is the fuzzy title similarity cutoff in (0, 1].
	TitleThreshold float64
}

// DefaultOptions returns the standard settings.
func DefaultOptions() Options {
	return Options{TitleThreshold: DefaultTitleThreshold}
}

// Stats counts what Deduplicate removed.
type Stats struct {
	Input     int
	Output    int
	DOIDups   int
	TitleDups int
}

// Removed is the total number of results dropped.
func (s Stats) Removed() int { return s.DOIDups + s.TitleDups }

// cluster is one group of results believed to be the same paper.
type cluster struct {
	best   types.SearchResult
	titles []string
}

// Deduplicate removes duplicate results in two passes. Pass 1 buckets
// results by normalized DOI. Pass 2 matches DOI-less results by normalized
// title, exactly or by similarity >= opts.TitleThreshold, against every
// title already seen in a cluster; a DOI-bearing cluster absorbs DOI-less
// duplicates. Within a cluster the better result wins (see Better).
// Output order follows the first appearance of each cluster.
//
// Matching against every title in a cluster can leave two survivors that
// are themselves within the threshold, so the passes repeat over the
// survivors until nothing merges. The result is a fixed point:
// deduplicating it again changes nothing.
func Deduplicate(results []types.SearchResult, opts Options) ([]types.SearchResult, Stats) {
	if opts.TitleThreshold <= 0 || opts.TitleThreshold > 1 {
		opts.TitleThreshold = DefaultTitleThreshold
	}
	stats := Stats{Input: len(results)}
	out := results
	for {
		next, round := dedupOnce(out, opts)
		stats.DOIDups += round.DOIDups
		stats.TitleDups += round.TitleDups
		out = next
		if round.Removed() == 0 {
			break
		}
	}
	stats.Output = len(out)
	return out, stats
}

func dedupOnce(results []types.SearchResult, opts Options) ([]types.SearchResult, Stats) {
	stats := Stats{Input: len(results)}

	var doiClusters, titleClusters []*cluster
	byDOI := make(map[string]*cluster)

	// Pass 1: exact DOI.
	order := make([]*cluster, len(results))
	for i, r := range results {
		doi := types.NormalizeDOI(r.DOI)
		if doi == "" {
			continue
		}
		if c, ok := byDOI[doi]; ok {
			if Better(r, c.best) {
				c.best = r
			}
			c.titles = appendTitle(c.titles, r.Title)
			stats.DOIDups++
			continue
		}
		c := &cluster{best: r, titles: appendTitle(nil, r.Title)}
		byDOI[doi] = c
		doiClusters = append(doiClusters, c)
		order[i] = c
	}

	// Pass 2: fuzzy title for results without a DOI.
	byTitle := make(map[string]*cluster)
	for _, c := range doiClusters {
		for _, t := range c.titles {
			if _, ok := byTitle[t]; !ok {
				byTitle[t] = c
			}
		}
	}
	for i, r := range results {
		if types.NormalizeDOI(r.DOI) != "" {
			continue
		}
		title := types.NormalizeTitle(r.Title)
		c := byTitle[title]
		if c == nil && title != "" {
			c = findSimilar(doiClusters, titleClusters, title, opts.TitleThreshold)
		}
		if c == nil {
			c = &cluster{best: r, titles: appendTitle(nil, r.Title)}
			order[i] = c
			titleClusters = append(titleClusters, c)
			if title != "" {
				byTitle[title] = c
			}
			continue
		}
		if Better(r, c.best) {
			c.best = r
		}
		c.titles = appendTitle(c.titles, r.Title)
		if title != "" {
			if _, ok := byTitle[title]; !ok {
				byTitle[title] = c
			}
		}
		stats.TitleDups++
	}

	out := make([]types.SearchResult, 0, len(results)-stats.Removed())
	for _, c := range order {
		if c != nil {
			out = append(out, c.best)
		}
	}
	stats.Output = len(out)
	return out, stats
}

// findSimilar returns the first cluster holding a title within threshold.
// DOI clusters are checked before DOI-less ones so a DOI winner absorbs
// its DOI-less duplicates.
func findSimilar(doiClusters, titleClusters []*cluster, title string, threshold float64) *cluster {
	var best *cluster
	bestScore := 0.0
	consider := func(c *cluster) {
		for _, t := range c.titles {
			if s := TitleSimilarity(title, t); s >= threshold && s > bestScore {
				best, bestScore = c, s
			}
		}
	}
	for _, c := range doiClusters {
		consider(c)
	}
	if best != nil {
		return best
	}
	for _, c := range titleClusters {
		consider(c)
	}
	return best
}

func appendTitle(titles []string, title string) []string {
	t := types.NormalizeTitle(title)
	if t == "" {
		return titles
	}
	for _, existing := range titles {
		if existing == t {
			return titles
		}
	}
	return append(titles, t)
}

// TitleSimilarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over
// runes of the already-normalized titles. Two empty titles are identical.
func TitleSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Better reports whether a should replace b as the representative of a
// duplicate group: a DOI beats no DOI, then more citations, then a longer
// abstract, then having a venue. Ties keep b.
func Better(a, b types.SearchResult) bool {
	aDOI, bDOI := types.NormalizeDOI(a.DOI) != "", types.NormalizeDOI(b.DOI) != ""
	if aDOI != bDOI {
		return aDOI
	}
	if ac, bc := a.Citations(), b.Citations(); ac != bc {
		return ac > bc
	}
	if la, lb := len(a.Abstract), len(b.Abstract); la != lb {
		return la > lb
	}
	return a.Venue != "" && b.Venue == ""
}
