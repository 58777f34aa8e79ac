// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the literature-engine pipeline:
// search candidates, library entries, download outcomes, the failed-download
// ledger, per-run summarization progress, and summarization results.
package types

import (
	"strings"
	"unicode"
)

// SearchResult is a candidate paper returned by one bibliographic source for
// one query. Results are short-lived and owned by the orchestrator during a run.
type SearchResult struct {
	// Title is the paper title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year, nil when the source did not report one.
	Year *int `json:"year,omitempty" yaml:"year,omitempty"`

	// Abstract is the paper abstract, possibly empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	// URL is the landing page of the paper.
	URL string `json:"url" yaml:"url"`

	// PDFURL is a direct PDF link when the source knows one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// DOI is the lowercase normalized DOI, empty when absent.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// Source names the API that produced the result (e.g. "arxiv").
	Source string `json:"source" yaml:"source"`

	// Venue is the journal or conference, empty when absent.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// CitationCount is nil when the source does not report citations.
	CitationCount *int `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
}

// Key returns the equality key of the result: the normalized DOI when present,
// otherwise the normalized title.
func (r SearchResult) Key() string {
	if doi := NormalizeDOI(r.DOI); doi != "" {
		return "doi:" + doi
	}
	return "title:" + NormalizeTitle(r.Title)
}

// Citations returns the citation count or zero.
func (r SearchResult) Citations() int {
	if r.CitationCount == nil {
		return 0
	}
	return *r.CitationCount
}

// IntPtr returns a pointer to v. Sources use it for optional numeric fields.
func IntPtr(v int) *int { return &v }

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI strips resolver prefixes and surrounding whitespace and
// lowercases the DOI. It returns "" for an empty input.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		d = strings.TrimPrefix(d, p)
	}
	return strings.TrimSpace(d)
}

// NormalizeTitle lowercases the title, strips punctuation, and collapses
// whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
