// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "literature-engine/0.1 (mailto:me@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// DefaultLimit caps results per source per keyword (default 25).
	DefaultLimit int `json:"default_limit" yaml:"default_limit"`

	// MaxResults caps the deduplicated, ranked result list (default 100).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Sources lists the enabled search sources in query order.
	Sources []string `json:"sources" yaml:"sources"`

	// ArxivDelay is the minimum spacing between arXiv calls (default 3s).
	ArxivDelay time.Duration `json:"arxiv_delay" yaml:"arxiv_delay"`

	// SemanticScholarDelay is the minimum spacing between Semantic Scholar calls (default 1.5s).
	SemanticScholarDelay time.Duration `json:"semanticscholar_delay" yaml:"semanticscholar_delay"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"-" yaml:"-"`

	// RetryAttempts is the generic API retry count (default 3).
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RetryDelay is the generic API retry base delay (default 5s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// OpenAlexEmail joins the OpenAlex polite pool when set.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// TitleSimilarity is the fuzzy-title dedup threshold (default 0.85).
	TitleSimilarity float64 `json:"title_similarity" yaml:"title_similarity"`
}

// DownloadConfig holds settings for the PDF acquirer.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// UseUnpaywall enables the Unpaywall rung; it also requires UnpaywallEmail.
	UseUnpaywall bool `json:"use_unpaywall" yaml:"use_unpaywall"`

	// UnpaywallEmail is the contact address Unpaywall requires.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`

	// RetryAttempts is the per-URL retry count for connection errors and timeouts (default 2).
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RetryDelay is the exponential backoff base (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// UseBrowserUserAgent retries 403 responses with a browser-style User-Agent.
	UseBrowserUserAgent bool `json:"use_browser_user_agent" yaml:"use_browser_user_agent"`

	// MaxParallel is the download worker count (default 1).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
}

// UnpaywallEnabled reports whether the Unpaywall rung can run.
func (d DownloadConfig) UnpaywallEnabled() bool {
	return d.UseUnpaywall && d.UnpaywallEmail != ""
}

// PathsConfig locates persisted state. Relative paths are resolved against
// DataDir by the config loader.
type PathsConfig struct {
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	BibTeXFile   string `json:"bibtex_file" yaml:"bibtex_file"`
	LibraryIndex string `json:"library_index" yaml:"library_index"`
	FailedLedger string `json:"failed_downloads" yaml:"failed_downloads"`
	ProgressFile string `json:"progress_file" yaml:"progress_file"`
	DownloadDir  string `json:"download_dir" yaml:"download_dir"`
	TextDir      string `json:"extracted_text_dir" yaml:"extracted_text_dir"`
	SummariesDir string `json:"summaries_dir" yaml:"summaries_dir"`
	CatalogFile  string `json:"catalog_file" yaml:"catalog_file"`
}

// PDFPath returns the download location for a citation key.
func (p PathsConfig) PDFPath(key string) string {
	return filepath.Join(p.DownloadDir, key+".pdf")
}

// TextPath returns the extracted-text cache location for a citation key.
func (p PathsConfig) TextPath(key string) string {
	return filepath.Join(p.TextDir, key+".txt")
}

// SummaryPath returns the summary location for a citation key.
func (p PathsConfig) SummaryPath(key string) string {
	return filepath.Join(p.SummariesDir, key+"_summary.md")
}

// LLMProvider identifies the LLM backend.
type LLMProvider string

const (
	ProviderOllama    LLMProvider = "ollama"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig holds settings for the summarization LLM.
type LLMConfig struct {
	// Provider selects the backend: ollama (default) or anthropic.
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey authenticates hosted providers.
	APIKey string `json:"-" yaml:"-"`

	// Timeout bounds one LLM call (default 600s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Temperature is passed through to the provider.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens caps the response length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// ConversionBackend identifies the PDF text extraction tool.
type ConversionBackend string

const (
	BackendNative     ConversionBackend = "native"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// SummarizationConfig holds settings for the summarization engine and pool.
type SummarizationConfig struct {
	// MaxParallel is the summarization worker count (default 1).
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`

	// MaxAttempts bounds draft + refinement attempts per paper (default 2).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Kind selects the summary template (default executive_summary).
	Kind string `json:"kind" yaml:"kind"`

	// MaxInputWords truncates extracted text before prompting.
	MaxInputWords int `json:"max_input_words" yaml:"max_input_words"`

	// RepetitionLimit is the maximum repeats of any 4-gram (default 3).
	RepetitionLimit int `json:"repetition_limit" yaml:"repetition_limit"`

	// StreamSnapshotEvery emits a streaming event every N chunks (default 50).
	StreamSnapshotEvery int `json:"stream_snapshot_every" yaml:"stream_snapshot_every"`

	// ConversionBackend selects the text extractor (native or markitdown).
	ConversionBackend ConversionBackend `json:"conversion_backend" yaml:"conversion_backend"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format"`

	// Output is stderr or stdout.
	Output string `json:"output" yaml:"output"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	// File is written at the end of a run when non-empty.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Config groups all settings. It is built once at startup and passed by
// value to constructors.
type Config struct {
	Search        SearchConfig        `json:"search" yaml:"search"`
	Download      DownloadConfig      `json:"download" yaml:"download"`
	Paths         PathsConfig         `json:"paths" yaml:"paths"`
	LLM           LLMConfig           `json:"llm" yaml:"llm"`
	Summarization SummarizationConfig `json:"summarization" yaml:"summarization"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Metrics       MetricsConfig       `json:"metrics" yaml:"metrics"`
}
