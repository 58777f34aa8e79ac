// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// Stats summarizes the library.
type Stats struct {
	TotalEntries            int            `json:"total_entries"`
	DownloadedPDFs          int            `json:"downloaded_pdfs"`
	MissingPDFs             int            `json:"missing_pdfs"`
	EntriesWithDOI          int            `json:"entries_with_doi"`
	Sources                 map[string]int `json:"sources"`
	Years                   map[string]int `json:"years"`
	OldestYear              *int           `json:"oldest_year"`
	NewestYear              *int           `json:"newest_year"`
	PDFSizeMB               float64        `json:"pdf_size_mb"`
	Summaries               int            `json:"summaries"`
	SummaryPercentage       float64        `json:"summary_percentage"`
	ExtractedTexts          int            `json:"extracted_texts"`
	ExtractedTextPercentage float64        `json:"extracted_text_percentage"`
}

// Stats computes library statistics. Summary and extracted-text coverage
// are measured by the files present under paths.
func (idx *Index) Stats(paths types.PathsConfig) Stats {
	entries := idx.ListEntries()
	st := Stats{
		TotalEntries: len(entries),
		Sources:      make(map[string]int),
		Years:        make(map[string]int),
	}

	var pdfBytes int64
	for _, e := range entries {
		if e.Source != "" {
			st.Sources[e.Source]++
		}
		if e.DOIValue() != "" {
			st.EntriesWithDOI++
		}
		if e.Year != nil {
			y := *e.Year
			st.Years[strconv.Itoa(y)]++
			if st.OldestYear == nil || y < *st.OldestYear {
				st.OldestYear = types.IntPtr(y)
			}
			if st.NewestYear == nil || y > *st.NewestYear {
				st.NewestYear = types.IntPtr(y)
			}
		}
		if e.HasPDF() {
			if info, err := os.Stat(idx.PDFAbsPath(e)); err == nil {
				st.DownloadedPDFs++
				pdfBytes += info.Size()
			} else {
				st.MissingPDFs++
			}
		}
		if paths.SummariesDir != "" && fsutil.NonEmpty(paths.SummaryPath(e.CitationKey)) {
			st.Summaries++
		}
		if paths.TextDir != "" && fsutil.NonEmpty(paths.TextPath(e.CitationKey)) {
			st.ExtractedTexts++
		}
	}

	st.PDFSizeMB = round2(float64(pdfBytes) / (1024 * 1024))
	st.SummaryPercentage = percent(st.Summaries, st.TotalEntries)
	st.ExtractedTextPercentage = percent(st.ExtractedTexts, st.TotalEntries)
	return st
}

// Format writes the statistics for humans.
func (st Stats) Format(w io.Writer) {
	fmt.Fprintf(w, "Library entries:     %d\n", st.TotalEntries)
	fmt.Fprintf(w, "Downloaded PDFs:     %d (%.2f MB)\n", st.DownloadedPDFs, st.PDFSizeMB)
	if st.MissingPDFs > 0 {
		fmt.Fprintf(w, "Missing PDF files:   %d\n", st.MissingPDFs)
	}
	fmt.Fprintf(w, "Entries with DOI:    %d\n", st.EntriesWithDOI)
	fmt.Fprintf(w, "Extracted text:      %d (%.1f%%)\n", st.ExtractedTexts, st.ExtractedTextPercentage)
	fmt.Fprintf(w, "Summaries:           %d (%.1f%%)\n", st.Summaries, st.SummaryPercentage)
	if st.OldestYear != nil {
		fmt.Fprintf(w, "Years:               %d-%d\n", *st.OldestYear, *st.NewestYear)
	}
	if len(st.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, name := range slices.Sorted(maps.Keys(st.Sources)) {
			fmt.Fprintf(w, "  %-16s %d\n", name, st.Sources[name])
		}
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
