// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// LibraryEntry is the canonical record of a paper the library knows about.
// The library index exclusively owns entries and mediates all mutations.
type LibraryEntry struct {
	// CitationKey is the primary key and the filename stem for PDFs,
	// extracted text, and summaries.
	CitationKey string `json:"citation_key" yaml:"citation_key"`

	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`
	Year    *int     `json:"year" yaml:"year"`

	// DOI is the normalized DOI or nil.
	DOI *string `json:"doi" yaml:"doi"`

	Source string `json:"source" yaml:"source"`
	URL    string `json:"url" yaml:"url"`

	// PDFPath is relative to the library root (the data directory), nil
	// until a PDF has been downloaded.
	PDFPath *string `json:"pdf_path" yaml:"pdf_path"`

	// AddedDate is an ISO-8601 timestamp.
	AddedDate string `json:"added_date" yaml:"added_date"`

	Abstract      string  `json:"abstract" yaml:"abstract"`
	Venue         *string `json:"venue" yaml:"venue"`
	CitationCount *int    `json:"citation_count" yaml:"citation_count"`

	// Metadata carries source-specific extras such as pdf_url.
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
}

// HasPDF reports whether a PDF path has been recorded.
func (e LibraryEntry) HasPDF() bool {
	return e.PDFPath != nil && *e.PDFPath != ""
}

// DOIValue returns the DOI or "".
func (e LibraryEntry) DOIValue() string {
	if e.DOI == nil {
		return ""
	}
	return *e.DOI
}

// VenueValue returns the venue or "".
func (e LibraryEntry) VenueValue() string {
	if e.Venue == nil {
		return ""
	}
	return *e.Venue
}

// PDFURL returns the pdf_url recorded in metadata, or "".
func (e LibraryEntry) PDFURL() string {
	if v, ok := e.Metadata["pdf_url"].(string); ok {
		return v
	}
	return ""
}

// ToSearchResult rebuilds a SearchResult from a library entry so that
// download-only runs can drive the acquirer from the library alone.
func (e LibraryEntry) ToSearchResult() SearchResult {
	return SearchResult{
		Title:         e.Title,
		Authors:       e.Authors,
		Year:          e.Year,
		Abstract:      e.Abstract,
		URL:           e.URL,
		PDFURL:        e.PDFURL(),
		DOI:           e.DOIValue(),
		Source:        e.Source,
		Venue:         e.VenueValue(),
		CitationCount: e.CitationCount,
	}
}
