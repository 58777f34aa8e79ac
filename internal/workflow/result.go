// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/literature-engine/internal/search"
	"github.com/pdiddy/literature-engine/internal/summarize"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// Failure categories reported for summaries that did not succeed.
const (
	CategoryRepetition    = "repetition"
	CategoryHallucination = "hallucination"
	CategoryTitleMismatch = "title_mismatch"
	CategoryLLMConnection = "llm_connection"
	CategoryTimeout       = "timeout"
	CategoryContextLimit  = "context_limit"
	CategoryPDFExtraction = "pdf_extraction"
	CategoryEmpty         = "empty"
	CategoryOther         = "other"
)

// Categorize returns the failure category of a failed summarization.
// Validation failures are split by the most specific complaint.
func Categorize(res types.SummarizationResult) string {
	switch res.ErrorClass {
	case summarize.ClassValidation:
		var repetition, titleMissing bool
		for _, e := range res.ValidationErrors {
			switch {
			case strings.HasPrefix(e, summarize.MsgHallucinated):
				return CategoryHallucination
			case strings.HasPrefix(e, summarize.MsgRepetition):
				repetition = true
			case strings.HasPrefix(e, summarize.MsgTitleMissing):
				titleMissing = true
			}
		}
		switch {
		case repetition:
			return CategoryRepetition
		case titleMissing:
			return CategoryTitleMismatch
		}
		return CategoryOther
	case CategoryLLMConnection, CategoryTimeout, CategoryContextLimit, CategoryPDFExtraction, CategoryEmpty:
		return res.ErrorClass
	}
	return CategoryOther
}

// WorkflowResult is the report of one orchestrated run.
type WorkflowResult struct {
	RunID    string
	Keywords []string
	Resumed  bool

	// PapersFound is the number of unique papers after deduplication.
	PapersFound  int
	SourceStats  map[string]*search.SourceStats
	SearchErrors []string

	Downloads []types.DownloadResult
	Summaries []types.SummarizationResult

	// FailureCategories counts failed summaries by category.
	FailureCategories map[string]int

	// CompletionPercentage is taken from the progress run at the end.
	CompletionPercentage float64

	Duration    time.Duration
	Interrupted bool
}

func newResult() WorkflowResult {
	return WorkflowResult{FailureCategories: make(map[string]int)}
}

func (r *WorkflowResult) addSummary(res types.SummarizationResult) {
	r.Summaries = append(r.Summaries, res)
	if !res.Success && res.ErrorClass != summarize.ClassCancelled {
		r.FailureCategories[Categorize(res)]++
	}
}

// SuccessfulDownloads counts downloads that produced a PDF, including
// files already present.
func (r WorkflowResult) SuccessfulDownloads() int {
	n := 0
	for _, d := range r.Downloads {
		if d.Success {
			n++
		}
	}
	return n
}

// SummaryCounts returns generated, skipped and failed summary counts.
func (r WorkflowResult) SummaryCounts() (generated, skipped, failed int) {
	for _, s := range r.Summaries {
		switch {
		case s.Skipped:
			skipped++
		case s.Success:
			generated++
		default:
			failed++
		}
	}
	return generated, skipped, failed
}

// Report writes a human-readable summary of the run.
func (r WorkflowResult) Report(w io.Writer) {
	fmt.Fprintf(w, "\nWorkflow summary")
	if r.RunID != "" {
		fmt.Fprintf(w, " (run %s)", r.RunID)
	}
	fmt.Fprintln(w)
	if len(r.Keywords) > 0 {
		fmt.Fprintf(w, "  keywords:    %s\n", strings.Join(r.Keywords, ", "))
	}
	if r.Resumed {
		fmt.Fprintln(w, "  resumed existing run")
	} else {
		fmt.Fprintf(w, "  papers found: %d\n", r.PapersFound)
	}
	for _, name := range slices.Sorted(maps.Keys(r.SourceStats)) {
		st := r.SourceStats[name]
		fmt.Fprintf(w, "    %-16s %d results, %d failures (%d rate limited)\n", name, st.Results, st.Failures, st.RateLimited)
	}
	if len(r.Downloads) > 0 {
		fmt.Fprintf(w, "  downloads:   %d of %d\n", r.SuccessfulDownloads(), len(r.Downloads))
	}
	generated, skipped, failed := r.SummaryCounts()
	fmt.Fprintf(w, "  summaries:   %d generated, %d skipped, %d failed\n", generated, skipped, failed)
	for _, cat := range slices.Sorted(maps.Keys(r.FailureCategories)) {
		fmt.Fprintf(w, "    %-16s %d\n", cat, r.FailureCategories[cat])
	}
	fmt.Fprintf(w, "  completion:  %.1f%%\n", r.CompletionPercentage)
	fmt.Fprintf(w, "  duration:    %s\n", r.Duration.Round(time.Second))
	if r.Interrupted {
		fmt.Fprintln(w, "  interrupted: progress saved, rerun with --resume to continue")
	}
}
