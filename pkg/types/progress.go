// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ProgressStatus is the per-paper state in a summarization run.
type ProgressStatus string

const (
	StatusPending    ProgressStatus = "pending"
	StatusDownloaded ProgressStatus = "downloaded"
	StatusProcessing ProgressStatus = "processing"
	StatusSummarized ProgressStatus = "summarized"
	StatusFailed     ProgressStatus = "failed"
)

// Terminal reports whether the status ends the state machine.
func (s ProgressStatus) Terminal() bool {
	return s == StatusSummarized || s == StatusFailed
}

// rank orders statuses along pending → downloaded → processing → terminal.
func (s ProgressStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusDownloaded:
		return 1
	case StatusProcessing:
		return 2
	case StatusSummarized, StatusFailed:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a forward step of
// the state machine. Re-asserting the same non-terminal status is allowed.
func (s ProgressStatus) CanTransition(next ProgressStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	if s.Terminal() {
		return false
	}
	return to >= from
}

// ProgressEntry is the per-paper record owned by the progress tracker.
type ProgressEntry struct {
	CitationKey      string         `json:"citation_key"`
	PDFPath          string         `json:"pdf_path"`
	Status           ProgressStatus `json:"status"`
	DownloadAttempts int            `json:"download_attempts"`
	SummaryAttempts  int            `json:"summary_attempts"`
	LastError        string         `json:"last_error,omitempty"`
	SummaryPath      string         `json:"summary_path,omitempty"`
	DownloadTime     float64        `json:"download_time,omitempty"`
	SummaryTime      float64        `json:"summary_time,omitempty"`
}

// SummarizationProgress is the run-level container persisted to
// summarization_progress.json.
type SummarizationProgress struct {
	RunID       string                    `json:"run_id"`
	Keywords    []string                  `json:"keywords"`
	TotalPapers int                       `json:"total_papers"`
	StartTime   string                    `json:"start_time"`
	LastUpdate  string                    `json:"last_update"`
	Entries     map[string]*ProgressEntry `json:"entries"`
}

func (p *SummarizationProgress) count(statuses ...ProgressStatus) int {
	n := 0
	for _, e := range p.Entries {
		for _, s := range statuses {
			if e.Status == s {
				n++
				break
			}
		}
	}
	return n
}

// CompletedSummaries counts entries in a terminal state.
func (p *SummarizationProgress) CompletedSummaries() int {
	return p.count(StatusSummarized, StatusFailed)
}

// SuccessfulSummaries counts summarized entries.
func (p *SummarizationProgress) SuccessfulSummaries() int {
	return p.count(StatusSummarized)
}

// FailedSummaries counts failed entries.
func (p *SummarizationProgress) FailedSummaries() int {
	return p.count(StatusFailed)
}

// PendingSummaries counts entries that have not reached a terminal state.
func (p *SummarizationProgress) PendingSummaries() int {
	return len(p.Entries) - p.CompletedSummaries()
}

// CompletionPercentage is completed / total papers, in percent. The total
// is the larger of TotalPapers and the number of tracked entries.
func (p *SummarizationProgress) CompletionPercentage() float64 {
	total := p.TotalPapers
	if len(p.Entries) > total {
		total = len(p.Entries)
	}
	if total == 0 {
		return 0
	}
	return float64(p.CompletedSummaries()) / float64(total) * 100
}

// SuccessRate is successful / completed, in percent.
func (p *SummarizationProgress) SuccessRate() float64 {
	completed := p.CompletedSummaries()
	if completed == 0 {
		return 0
	}
	return float64(p.SuccessfulSummaries()) / float64(completed) * 100
}
