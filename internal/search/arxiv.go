// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivMaxResults is the largest page the arXiv API serves in one call.
const arxivMaxResults = 2000

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	api    *apiClient
	health *Health
}

// NewArxiv creates an arXiv source.
func NewArxiv(opts Options) *Arxiv {
	return &Arxiv{
		api:    newAPIClient("arxiv", opts),
		health: NewHealth("arxiv", opts.FailureThreshold),
	}
}

// Name returns the source identifier.
func (a *Arxiv) Name() string { return "arxiv" }

// Capabilities reports search and health.
func (a *Arxiv) Capabilities() Capability { return CapSearch | CapHealth }

// Health returns the source health tracker.
func (a *Arxiv) Health() *Health { return a.health }

// Lookup is not supported by arXiv.
func (a *Arxiv) Lookup(context.Context, string) (*types.SearchResult, error) {
	return nil, ErrUnsupported
}

// Search queries arXiv for query across all fields, sorted by relevance.
func (a *Arxiv) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	q := buildArxivQuery(query)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}
	if limit <= 0 || limit > arxivMaxResults {
		limit = arxivMaxResults
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	resp, err := a.api.get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The Atom parser keeps rel="related" links, which carry the
	// versioned PDF URL.
	feed, err := (&atom.Parser{}).Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var results []types.SearchResult
	for _, entry := range feed.Entries {
		if r, ok := arxivResult(entry); ok {
			results = append(results, r)
		}
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func arxivResult(entry *atom.Entry) (types.SearchResult, bool) {
	id := extractArxivID(entry.ID)
	if id == "" {
		for _, link := range entry.Links {
			if link.Rel == "" || link.Rel == "alternate" {
				id = extractArxivID(link.Href)
				break
			}
		}
	}
	title := strings.Join(strings.Fields(entry.Title), " ")
	if id == "" || title == "" {
		return types.SearchResult{}, false
	}

	r := types.SearchResult{
		Title:    title,
		Abstract: strings.Join(strings.Fields(entry.Summary), " "),
		URL:      "https://arxiv.org/abs/" + id,
		PDFURL:   "https://arxiv.org/pdf/" + id,
		Source:   "arxiv",
		DOI:      types.NormalizeDOI(arxivExtension(entry.Extensions, "doi")),
		Venue:    strings.TrimSpace(arxivExtension(entry.Extensions, "journal_ref")),
	}
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			r.PDFURL = link.Href
			break
		}
	}
	for _, a := range entry.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}
	}
	if entry.PublishedParsed != nil {
		r.Year = types.IntPtr(entry.PublishedParsed.Year())
	}
	return r, true
}

// arxivExtension returns the first value of an arxiv: namespaced element.
func arxivExtension(exts ext.Extensions, name string) string {
	arxiv, ok := exts["arxiv"]
	if !ok {
		return ""
	}
	values := arxiv[name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// buildArxivQuery searches all fields. Multi-word keywords are quoted so
// arXiv treats them as a phrase.
func buildArxivQuery(query string) string {
	terms := strings.Fields(query)
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return "all:" + terms[0]
	default:
		return `all:"` + strings.Join(terms, " ") + `"`
	}
}

// extractArxivID pulls the arXiv ID from an abs URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" yields "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]
	return stripArxivVersion(id)
}

// stripArxivVersion removes a trailing version suffix such as "v2".
func stripArxivVersion(id string) string {
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			return id[:vIdx]
		}
	}
	return id
}
