// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SummarizationResult is the per-paper outcome of the summarization engine.
type SummarizationResult struct {
	CitationKey string `json:"citation_key"`
	Success     bool   `json:"success"`

	// Skipped is true when a summary already existed on disk and the LLM
	// was not invoked.
	Skipped bool `json:"skipped"`

	SummaryText      string   `json:"summary_text,omitempty"`
	SummaryPath      string   `json:"summary_path,omitempty"`
	InputWords       int      `json:"input_words"`
	OutputWords      int      `json:"output_words"`
	QualityScore     float64  `json:"quality_score"`
	GenerationTime   float64  `json:"generation_time"`
	Attempts         int      `json:"attempts"`
	Error            string   `json:"error,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`

	// ErrorClass names the failing step: pdf_extraction, empty,
	// validation, cancelled, or an LLM error class.
	ErrorClass string `json:"error_class,omitempty"`
}

// Stage names one step of the summarization pipeline.
type Stage string

const (
	StagePDFExtraction     Stage = "pdf_extraction"
	StageContextExtraction Stage = "context_extraction"
	StageDraftGeneration   Stage = "draft_generation"
	StageValidation        Stage = "validation"
	StageRefinement        Stage = "refinement"
)

// EventStatus is the lifecycle state reported in a ProgressEvent.
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventStreaming EventStatus = "streaming"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// ProgressEvent is delivered to summarization callbacks for each stage
// transition and for periodic streaming snapshots.
type ProgressEvent struct {
	CitationKey string         `json:"citation_key"`
	Stage       Stage          `json:"stage"`
	Status      EventStatus    `json:"status"`
	Message     string         `json:"message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
