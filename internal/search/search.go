// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/dedup"
	"github.com/pdiddy/literature-engine/internal/logging"
	"github.com/pdiddy/literature-engine/internal/metrics"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// SourceStats accumulates per-source counters across a multi-keyword search.
type SourceStats struct {
	Queries     int `json:"queries" yaml:"queries"`
	Results     int `json:"results" yaml:"results"`
	Failures    int `json:"failures" yaml:"failures"`
	RateLimited int `json:"rate_limited" yaml:"rate_limited"`
	Skipped     int `json:"skipped" yaml:"skipped"`
}

// SourceOutcome records one (keyword, source) query.
type SourceOutcome struct {
	Keyword string
	Source  string
	Results int
	Err     error
}

// RateLimited reports whether the query failed on a rate limit.
func (o SourceOutcome) RateLimited() bool {
	return errors.Is(o.Err, ErrRateLimited)
}

// Output is the merged result of SearchKeywords.
type Output struct {
	// Results is deduplicated, ranked, and capped at MaxResults.
	Results []types.SearchResult

	// Raw is the number of results before deduplication.
	Raw int

	// DuplicatesRemoved counts results dropped by deduplication.
	DuplicatesRemoved int

	// Stats is keyed by source name.
	Stats map[string]*SourceStats

	// Outcomes lists every query issued, in order.
	Outcomes []SourceOutcome
}

// Errors returns the failed outcomes formatted as "source (keyword): error".
func (o Output) Errors() []string {
	var errs []string
	for _, oc := range o.Outcomes {
		if oc.Err != nil {
			errs = append(errs, fmt.Sprintf("%s (%s): %v", oc.Source, oc.Keyword, oc.Err))
		}
	}
	return errs
}

// Searcher fans keywords out over sources and merges the results.
type Searcher struct {
	Sources    []Source
	Dedup      dedup.Options
	MaxResults int
	Clock      dedup.Clock
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// SearchKeywords queries every search-capable source for every keyword.
// Keywords run sequentially; within a keyword, sources run sequentially in
// configured order. When only is non-empty it restricts (and orders) the
// sources by name. A failing source is recorded and skipped for that
// query; no single-source failure aborts the search. Sources with CapHealth
// that have become unhealthy are skipped.
//
// Results are deduplicated across all keywords, ranked, and capped.
func (s *Searcher) SearchKeywords(ctx context.Context, keywords []string, limit int, only []string) (Output, error) {
	out := Output{Stats: make(map[string]*SourceStats)}
	if len(keywords) == 0 {
		return out, fmt.Errorf("no keywords given")
	}

	sources, err := s.selectSources(only)
	if err != nil {
		return out, err
	}
	for _, src := range sources {
		out.Stats[src.Name()] = &SourceStats{}
	}

	var all []types.SearchResult
	for _, keyword := range keywords {
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			results, skipped := s.query(ctx, src, keyword, limit, &out)
			if skipped {
				continue
			}
			all = append(all, results...)
		}
	}

	out.Raw = len(all)
	deduped, stats := dedup.Deduplicate(all, s.Dedup)
	out.DuplicatesRemoved = stats.Removed()

	ranked := dedup.Rank(deduped, s.Clock)
	if s.MaxResults > 0 && len(ranked) > s.MaxResults {
		ranked = ranked[:s.MaxResults]
	}
	out.Results = ranked
	return out, nil
}

// query runs one (source, keyword) search and records its outcome.
func (s *Searcher) query(ctx context.Context, src Source, keyword string, limit int, out *Output) ([]types.SearchResult, bool) {
	stats := out.Stats[src.Name()]
	log := logging.WithSource(s.Logger, src.Name(), keyword)

	caps := src.Capabilities()
	var health *Health
	if caps.Has(CapHealth) {
		health = src.Health()
	}
	if health != nil && !health.IsHealthy() {
		stats.Skipped++
		log.Warn().Int("consecutive_failures", health.Status().ConsecutiveFailures).Msg("skipping unhealthy source")
		return nil, true
	}

	stats.Queries++
	results, err := src.Search(ctx, keyword, limit)
	outcome := SourceOutcome{Keyword: keyword, Source: src.Name(), Results: len(results), Err: err}
	out.Outcomes = append(out.Outcomes, outcome)

	if err != nil {
		stats.Failures++
		if outcome.RateLimited() {
			stats.RateLimited++
		}
		if health != nil {
			health.RecordFailure()
		}
		s.Metrics.RecordSearchFailure(src.Name(), outcome.RateLimited())
		log.Warn().Err(err).Msg("source query failed")
		return nil, false
	}

	if health != nil {
		health.RecordSuccess()
	}
	stats.Results += len(results)
	s.Metrics.RecordSearch(src.Name(), len(results))
	log.Info().Int("results", len(results)).Msg("source query complete")
	return results, false
}

// selectSources returns the search-capable sources, optionally restricted
// to the names in only. Lookup-only sources are silently dropped.
func (s *Searcher) selectSources(only []string) ([]Source, error) {
	byName := make(map[string]Source, len(s.Sources))
	for _, src := range s.Sources {
		byName[src.Name()] = src
	}

	var candidates []Source
	if len(only) == 0 {
		candidates = s.Sources
	} else {
		for _, name := range only {
			src, ok := byName[CanonicalName(name)]
			if !ok {
				return nil, fmt.Errorf("source %q is not configured", name)
			}
			candidates = append(candidates, src)
		}
	}

	var sources []Source
	for _, src := range candidates {
		if src.Capabilities().Has(CapSearch) {
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no search-capable sources configured")
	}
	return sources, nil
}

// FormatStats writes per-source statistics as a table to w.
func FormatStats(out Output, w io.Writer) {
	fmt.Fprintf(w, "%-16s  %7s  %7s  %8s  %12s  %7s\n", "Source", "Queries", "Results", "Failures", "Rate-limited", "Skipped")
	fmt.Fprintln(w, strings.Repeat("-", 68))
	for _, name := range sortedKeys(out.Stats) {
		st := out.Stats[name]
		fmt.Fprintf(w, "%-16s  %7d  %7d  %8d  %12d  %7d\n", name, st.Queries, st.Results, st.Failures, st.RateLimited, st.Skipped)
	}
	fmt.Fprintf(w, "\n%d unique papers (%d raw, %d duplicates removed)\n", len(out.Results), out.Raw, out.DuplicatesRemoved)
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(results []types.SearchResult, w io.Writer) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %s\n", "Rank", "Title", "Authors", "Year", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for i, r := range results {
		year := ""
		if r.Year != nil {
			year = fmt.Sprintf("%d", *r.Year)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), year, r.Source)
	}
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 13) + " et al."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
