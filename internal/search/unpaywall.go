// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// unpaywallAPIBase is the Unpaywall v2 endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2"

// Unpaywall resolves DOIs to open-access locations. It has no search
// endpoint and is used only for PDF URL resolution.
type Unpaywall struct {
	api    *apiClient
	email  string
	health *Health
}

// NewUnpaywall creates an Unpaywall source. Unpaywall requires a contact
// email; callers check for one before constructing the source.
func NewUnpaywall(opts Options) *Unpaywall {
	return &Unpaywall{
		api:    newAPIClient("unpaywall", opts),
		email:  opts.Email,
		health: NewHealth("unpaywall", opts.FailureThreshold),
	}
}

// Name returns the source identifier.
func (u *Unpaywall) Name() string { return "unpaywall" }

// Capabilities reports lookup and health.
func (u *Unpaywall) Capabilities() Capability { return CapLookup | CapHealth }

// Health returns the source health tracker.
func (u *Unpaywall) Health() *Health { return u.health }

// Search is not supported by Unpaywall.
func (u *Unpaywall) Search(context.Context, string, int) ([]types.SearchResult, error) {
	return nil, ErrUnsupported
}

// Lookup returns the DOI's metadata with PDFURL set to the best open-access
// PDF, or nil when the DOI is unknown.
func (u *Unpaywall) Lookup(ctx context.Context, doi string) (*types.SearchResult, error) {
	doi = types.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	reqURL := unpaywallAPIBase + "/" + doi + "?email=" + url.QueryEscape(u.email)

	var rec unpaywallRecord
	if err := u.api.getJSON(ctx, reqURL, nil, &rec); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}

	r := types.SearchResult{
		Title:  rec.Title,
		DOI:    types.NormalizeDOI(rec.DOI),
		URL:    rec.DOIURL,
		Venue:  rec.JournalName,
		Source: "unpaywall",
	}
	if rec.Year > 0 {
		r.Year = types.IntPtr(rec.Year)
	}
	for _, a := range rec.ZAuthors {
		if name := strings.TrimSpace(a.Given + " " + a.Family); name != "" {
			r.Authors = append(r.Authors, name)
		}
	}
	if loc := rec.BestOALocation; rec.IsOA && loc != nil {
		r.PDFURL = loc.URLForPDF
		if r.URL == "" {
			r.URL = loc.URL
		}
	}
	return &r, nil
}

type unpaywallRecord struct {
	DOI            string `json:"doi"`
	DOIURL         string `json:"doi_url"`
	Title          string `json:"title"`
	Year           int    `json:"year"`
	JournalName    string `json:"journal_name"`
	IsOA           bool   `json:"is_oa"`
	BestOALocation *struct {
		URL       string `json:"url"`
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
	ZAuthors []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"z_authors"`
}
