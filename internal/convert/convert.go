// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts plain text from downloaded PDFs and stores it
// under extracted_text/{citation_key}.txt.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNoText is returned when a PDF yields no extractable text, as with
// scanned documents without an OCR layer.
var ErrNoText = errors.New("no extractable text")

// Extractor turns a PDF file into plain text. The native PDF reader and
// the markitdown container implement it.
type Extractor interface {
	// Name identifies the backend in logs.
	Name() string

	// ExtractText reads the PDF at pdfPath and returns its text.
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// Outcome is the result of extracting one paper.
type Outcome struct {
	CitationKey string `json:"citation_key"`
	Success     bool   `json:"success"`
	Skipped     bool   `json:"skipped"`
	CharCount   int    `json:"char_count"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResult holds the outcome of a batch extraction run.
type BatchResult struct {
	Extracted int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
}

// Add records one outcome.
func (r *BatchResult) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Skipped:
		r.Skipped++
	case o.Success:
		r.Extracted++
	default:
		r.Failed++
	}
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Extracted + r.Skipped + r.Failed
}

// HasFailures reports whether any paper failed extraction.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Report writes one progress line for o.
func Report(w io.Writer, o Outcome) {
	switch {
	case o.Skipped:
		fmt.Fprintf(w, "skipped: %s (already exists)\n", o.CitationKey)
	case o.Success:
		fmt.Fprintf(w, "extracted: %s (%d chars)\n", o.CitationKey, o.CharCount)
	default:
		fmt.Fprintf(w, "failed:  %s (%s)\n", o.CitationKey, o.Error)
	}
}

// Summary writes the batch totals.
func (r BatchResult) Summary(w io.Writer) {
	fmt.Fprintf(w, "\nExtraction summary: %d extracted, %d skipped, %d failed (total: %d)\n",
		r.Extracted, r.Skipped, r.Failed, r.Total())
}
