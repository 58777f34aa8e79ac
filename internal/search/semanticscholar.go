// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,abstract,authors,externalIds,year,venue,citationCount,openAccessPdf,url"

// semanticMaxLimit is the largest page the search endpoint accepts.
const semanticMaxLimit = 100

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	api    *apiClient
	apiKey string
	health *Health
}

// NewSemanticScholar creates a Semantic Scholar source. An API key in opts
// raises the rate limit.
func NewSemanticScholar(opts Options) *SemanticScholar {
	return &SemanticScholar{
		api:    newAPIClient("semanticscholar", opts),
		apiKey: opts.APIKey,
		health: NewHealth("semanticscholar", opts.FailureThreshold),
	}
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() string { return "semanticscholar" }

// Capabilities reports search, lookup and health.
func (s *SemanticScholar) Capabilities() Capability { return CapSearch | CapLookup | CapHealth }

// Health returns the source health tracker.
func (s *SemanticScholar) Health() *Health { return s.health }

// Search queries the paper search endpoint.
func (s *SemanticScholar) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	if limit <= 0 || limit > semanticMaxLimit {
		limit = semanticMaxLimit
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"fields": {semanticFields},
	}

	var sr semanticResponse
	if err := s.api.getJSON(ctx, semanticAPIBase+"/paper/search?"+params.Encode(), s.header(), &sr); err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(sr.Data))
	for _, paper := range sr.Data {
		if paper.Title == "" {
			continue
		}
		results = append(results, paper.toResult())
	}
	return results, nil
}

// Lookup fetches one paper by DOI. It returns nil when the DOI is unknown.
func (s *SemanticScholar) Lookup(ctx context.Context, doi string) (*types.SearchResult, error) {
	doi = types.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	reqURL := semanticAPIBase + "/paper/DOI:" + url.PathEscape(doi) + "?fields=" + url.QueryEscape(semanticFields)

	var paper semanticPaper
	if err := s.api.getJSON(ctx, reqURL, s.header(), &paper); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	r := paper.toResult()
	return &r, nil
}

func (s *SemanticScholar) header() http.Header {
	if s.apiKey == "" {
		return nil
	}
	return http.Header{"X-Api-Key": {s.apiKey}}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Venue         string              `json:"venue"`
	URL           string              `json:"url"`
	CitationCount *int                `json:"citationCount"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF *semanticPDF        `json:"openAccessPdf"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticPDF struct {
	URL string `json:"url"`
}

func (p semanticPaper) toResult() types.SearchResult {
	r := types.SearchResult{
		Title:         p.Title,
		Abstract:      p.Abstract,
		URL:           p.URL,
		DOI:           types.NormalizeDOI(p.ExternalIDs.DOI),
		Source:        "semanticscholar",
		Venue:         p.Venue,
		CitationCount: p.CitationCount,
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			r.Authors = append(r.Authors, a.Name)
		}
	}
	if p.Year > 0 {
		r.Year = types.IntPtr(p.Year)
	}
	if p.OpenAccessPDF != nil && p.OpenAccessPDF.URL != "" {
		r.PDFURL = p.OpenAccessPDF.URL
	} else if p.ExternalIDs.ArXiv != "" {
		r.PDFURL = "https://arxiv.org/pdf/" + p.ExternalIDs.ArXiv
	}
	if r.URL == "" && p.PaperID != "" {
		r.URL = "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	return r
}
