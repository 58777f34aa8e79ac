// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

const openAlexMaxPerPage = 200

// OpenAlex queries the OpenAlex Works API. It supports search and DOI
// lookup; lookups expose the best open-access PDF location.
type OpenAlex struct {
	api    *apiClient
	email  string
	health *Health
}

// NewOpenAlex creates an OpenAlex source. An email in opts joins the polite pool.
func NewOpenAlex(opts Options) *OpenAlex {
	return &OpenAlex{
		api:    newAPIClient("openalex", opts),
		email:  opts.Email,
		health: NewHealth("openalex", opts.FailureThreshold),
	}
}

// Name returns the source identifier.
func (o *OpenAlex) Name() string { return "openalex" }

// Capabilities reports search, lookup and health.
func (o *OpenAlex) Capabilities() Capability { return CapSearch | CapLookup | CapHealth }

// Health returns the source health tracker.
func (o *OpenAlex) Health() *Health { return o.health }

// Search queries OpenAlex full-text search, relevance ordered.
func (o *OpenAlex) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	if limit <= 0 || limit > openAlexMaxPerPage {
		limit = openAlexMaxPerPage
	}

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(limit)},
		"page":     {"1"},
	}
	if o.email != "" {
		params.Set("mailto", o.email)
	}

	var resp openAlexResponse
	if err := o.api.getJSON(ctx, openAlexAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(resp.Results))
	for _, work := range resp.Results {
		if work.Title == "" {
			continue
		}
		results = append(results, work.toResult())
	}
	return results, nil
}

// Lookup fetches one work by DOI. It returns nil when the DOI is unknown.
func (o *OpenAlex) Lookup(ctx context.Context, doi string) (*types.SearchResult, error) {
	doi = types.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	reqURL := openAlexAPIBase + "/https://doi.org/" + doi
	if o.email != "" {
		reqURL += "?mailto=" + url.QueryEscape(o.email)
	}

	var work openAlexWork
	if err := o.api.getJSON(ctx, reqURL, nil, &work); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	r := work.toResult()
	return &r, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          *int                 `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexLocation struct {
	PDFURL         string `json:"pdf_url"`
	LandingPageURL string `json:"landing_page_url"`
	Source         *struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

func (w openAlexWork) toResult() types.SearchResult {
	r := types.SearchResult{
		Title:         w.Title,
		Abstract:      reconstructAbstract(w.AbstractInvertedIndex),
		DOI:           types.NormalizeDOI(w.DOI),
		Source:        "openalex",
		CitationCount: w.CitedByCount,
		URL:           w.ID,
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			r.Authors = append(r.Authors, a.Author.DisplayName)
		}
	}
	if w.PublicationYear > 0 {
		r.Year = types.IntPtr(w.PublicationYear)
	}
	if loc := w.PrimaryLocation; loc != nil {
		if loc.LandingPageURL != "" {
			r.URL = loc.LandingPageURL
		}
		if loc.Source != nil {
			r.Venue = loc.Source.DisplayName
		}
	}
	if w.BestOALocation != nil && w.BestOALocation.PDFURL != "" {
		r.PDFURL = w.BestOALocation.PDFURL
	}
	return r
}
