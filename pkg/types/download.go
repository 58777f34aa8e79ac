// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FailureReason classifies why a PDF download did not succeed.
type FailureReason string

const (
	FailureNone                   FailureReason = ""
	FailureNoPDFURL               FailureReason = "no_pdf_url"
	FailureAccessDenied           FailureReason = "access_denied"
	FailureNotFound               FailureReason = "not_found"
	FailureTimeout                FailureReason = "timeout"
	FailureNetworkError           FailureReason = "network_error"
	FailureException              FailureReason = "exception"
	FailureSkippedPreviousFailure FailureReason = "skipped_previous_failure"
)

// Retriable reports whether a later run may reasonably succeed without
// operator intervention.
func (r FailureReason) Retriable() bool {
	return r == FailureTimeout || r == FailureNetworkError
}

// DownloadResult is the outcome of one acquisition attempt for one paper.
type DownloadResult struct {
	CitationKey    string        `json:"citation_key" yaml:"citation_key"`
	Success        bool          `json:"success" yaml:"success"`
	PDFPath        string        `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	AlreadyExisted bool          `json:"already_existed" yaml:"already_existed"`
	FailureReason  FailureReason `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty" yaml:"failure_message,omitempty"`
	AttemptedURLs  []string      `json:"attempted_urls" yaml:"attempted_urls"`
}

// Suppressed reports whether the ledger suppressed this download. A
// suppressed result is neither a real failure nor a success.
func (r DownloadResult) Suppressed() bool {
	return r.FailureReason == FailureSkippedPreviousFailure
}

// Failed reports whether the result is an active failure.
func (r DownloadResult) Failed() bool {
	return !r.Success && !r.Suppressed()
}

// FailedDownload is one ledger record.
type FailedDownload struct {
	CitationKey    string        `json:"citation_key"`
	FailureReason  FailureReason `json:"failure_reason"`
	FailureMessage string        `json:"failure_message"`
	AttemptedURLs  []string      `json:"attempted_urls"`
	Title          string        `json:"title"`
	Source         string        `json:"source"`
	Timestamp      string        `json:"timestamp"`
}

// Retriable reports whether the recorded failure is transient.
func (f FailedDownload) Retriable() bool {
	return f.FailureReason.Retriable()
}
