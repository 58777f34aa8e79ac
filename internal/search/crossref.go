// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works"

const crossrefMaxRows = 1000

// jatsTag matches JATS XML tags embedded in CrossRef abstracts.
var jatsTag = regexp.MustCompile(`<[^>]+>`)

// Crossref queries the CrossRef REST API.
type Crossref struct {
	api    *apiClient
	email  string
	health *Health
}

// NewCrossref creates a CrossRef source. An email in opts joins the polite pool.
func NewCrossref(opts Options) *Crossref {
	return &Crossref{
		api:    newAPIClient("crossref", opts),
		email:  opts.Email,
		health: NewHealth("crossref", opts.FailureThreshold),
	}
}

// Name returns the source identifier.
func (c *Crossref) Name() string { return "crossref" }

// Capabilities reports search, lookup and health.
func (c *Crossref) Capabilities() Capability { return CapSearch | CapLookup | CapHealth }

// Health returns the source health tracker.
func (c *Crossref) Health() *Health { return c.health }

// Search queries CrossRef bibliographic search.
func (c *Crossref) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty CrossRef query")
	}
	if limit <= 0 || limit > crossrefMaxRows {
		limit = crossrefMaxRows
	}

	params := url.Values{
		"query": {query},
		"rows":  {strconv.Itoa(limit)},
	}
	if c.email != "" {
		params.Set("mailto", c.email)
	}

	var resp crossrefSearchResponse
	if err := c.api.getJSON(ctx, crossrefAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, len(resp.Message.Items))
	for _, item := range resp.Message.Items {
		r := item.toResult()
		if r.Title == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Lookup fetches one work by DOI. It returns nil when the DOI is unknown.
func (c *Crossref) Lookup(ctx context.Context, doi string) (*types.SearchResult, error) {
	doi = types.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	reqURL := crossrefAPIBase + "/" + doi
	if c.email != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.email)
	}

	var resp crossrefWorkResponse
	if err := c.api.getJSON(ctx, reqURL, nil, &resp); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	r := resp.Message.toResult()
	return &r, nil
}

// CrossRef API JSON structures.
type crossrefSearchResponse struct {
	Message struct {
		Items []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefWorkResponse struct {
	Message crossrefItem `json:"message"`
}

type crossrefItem struct {
	DOI            string   `json:"DOI"`
	URL            string   `json:"URL"`
	Title          []string `json:"title"`
	ContainerTitle []string `json:"container-title"`
	Abstract       string   `json:"abstract"`
	ReferencedBy   *int     `json:"is-referenced-by-count"`
	Author         []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		Name   string `json:"name"`
	} `json:"author"`
	Issued struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"issued"`
	Link []struct {
		URL         string `json:"URL"`
		ContentType string `json:"content-type"`
	} `json:"link"`
}

func (item crossrefItem) toResult() types.SearchResult {
	r := types.SearchResult{
		DOI:           types.NormalizeDOI(item.DOI),
		URL:           item.URL,
		Abstract:      cleanJATS(item.Abstract),
		Source:        "crossref",
		CitationCount: item.ReferencedBy,
	}
	if len(item.Title) > 0 {
		r.Title = strings.Join(strings.Fields(item.Title[0]), " ")
	}
	if len(item.ContainerTitle) > 0 {
		r.Venue = item.ContainerTitle[0]
	}
	for _, a := range item.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			name = strings.TrimSpace(a.Name)
		}
		if name != "" {
			r.Authors = append(r.Authors, name)
		}
	}
	if len(item.Issued.DateParts) > 0 && len(item.Issued.DateParts[0]) > 0 && item.Issued.DateParts[0][0] > 0 {
		r.Year = types.IntPtr(item.Issued.DateParts[0][0])
	}
	for _, link := range item.Link {
		if link.ContentType == "application/pdf" {
			r.PDFURL = link.URL
			break
		}
	}
	if r.URL == "" && r.DOI != "" {
		r.URL = "https://doi.org/" + r.DOI
	}
	return r
}

// cleanJATS strips JATS markup and collapses whitespace.
func cleanJATS(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(jatsTag.ReplaceAllString(s, " ")), " ")
}
