// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the immutable types.Config value from a viper
// instance (config file + environment) and the secrets directory.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/literature-engine/internal/secrets"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// DefaultUserAgent identifies the CLI to bibliographic APIs.
const DefaultUserAgent = "literature-engine/0.1"

// Viper keys.
const (
	KeyDataDir              = "data_dir"
	KeyDefaultLimit         = "search.default_limit"
	KeyMaxResults           = "search.max_results"
	KeySources              = "search.sources"
	KeyArxivDelay           = "search.arxiv_delay"
	KeySemanticScholarDelay = "search.semanticscholar_delay"
	KeySemanticScholarKey   = "search.semanticscholar_api_key"
	KeyRetryAttempts        = "search.retry_attempts"
	KeyRetryDelay           = "search.retry_delay"
	KeyOpenAlexEmail        = "search.openalex_email"
	KeyTitleSimilarity      = "search.title_similarity"
	KeyHTTPTimeout          = "http.timeout"
	KeyUserAgent            = "http.user_agent"

	KeyDownloadDir           = "paths.download_dir"
	KeyBibTeXFile            = "paths.bibtex_file"
	KeyLibraryIndex          = "paths.library_index"
	KeyFailedDownloads       = "paths.failed_downloads"
	KeyProgressFile          = "paths.progress_file"
	KeyTextDir               = "paths.extracted_text_dir"
	KeySummariesDir          = "paths.summaries_dir"
	KeyCatalogFile           = "paths.catalog_file"
	KeyUseUnpaywall          = "download.use_unpaywall"
	KeyUnpaywallEmail        = "download.unpaywall_email"
	KeyDownloadRetryAttempts = "download.retry_attempts"
	KeyDownloadRetryDelay    = "download.retry_delay"
	KeyBrowserUserAgent      = "download.use_browser_user_agent"
	KeyMaxParallelDownloads  = "download.max_parallel"

	KeyLLMProvider    = "llm.provider"
	KeyLLMModel       = "llm.model"
	KeyLLMBaseURL     = "llm.base_url"
	KeyLLMAPIKey      = "llm.api_key"
	KeyLLMTimeout     = "llm.timeout"
	KeyLLMTemperature = "llm.temperature"
	KeyLLMMaxTokens   = "llm.max_tokens"

	KeyMaxParallelSummaries = "summarization.max_parallel"
	KeySummaryMaxAttempts   = "summarization.max_attempts"
	KeySummaryKind          = "summarization.kind"
	KeyMaxInputWords        = "summarization.max_input_words"
	KeyRepetitionLimit      = "summarization.repetition_limit"
	KeySnapshotEvery        = "summarization.stream_snapshot_every"
	KeyConversionBackend    = "summarization.conversion_backend"

	KeyLogLevel    = "logging.level"
	KeyLogFormat   = "logging.format"
	KeyLogOutput   = "logging.output"
	KeyMetricsFile = "metrics.file"
)

// envBindings maps viper keys to the environment variables that override them.
var envBindings = map[string]string{
	KeyDataDir:               "LITERATURE_DATA_DIR",
	KeyDefaultLimit:          "LITERATURE_DEFAULT_LIMIT",
	KeyMaxResults:            "LITERATURE_MAX_RESULTS",
	KeyArxivDelay:            "LITERATURE_ARXIV_DELAY",
	KeySemanticScholarDelay:  "LITERATURE_SEMANTICSCHOLAR_DELAY",
	KeyRetryAttempts:         "LITERATURE_RETRY_ATTEMPTS",
	KeyRetryDelay:            "LITERATURE_RETRY_DELAY",
	KeyDownloadDir:           "LITERATURE_DOWNLOAD_DIR",
	KeyBibTeXFile:            "LITERATURE_BIBTEX_FILE",
	KeyLibraryIndex:          "LITERATURE_LIBRARY_INDEX",
	KeySources:               "LITERATURE_SOURCES",
	KeyUseUnpaywall:          "LITERATURE_USE_UNPAYWALL",
	KeyUnpaywallEmail:        "UNPAYWALL_EMAIL",
	KeyDownloadRetryAttempts: "LITERATURE_DOWNLOAD_RETRY_ATTEMPTS",
	KeyDownloadRetryDelay:    "LITERATURE_DOWNLOAD_RETRY_DELAY",
	KeyBrowserUserAgent:      "LITERATURE_USE_BROWSER_USER_AGENT",
	KeyMaxParallelSummaries:  "MAX_PARALLEL_SUMMARIES",
	KeyLLMTimeout:            "LLM_SUMMARIZATION_TIMEOUT",
	KeySemanticScholarKey:    "SEMANTICSCHOLAR_API_KEY",
	KeyLogLevel:              "LITERATURE_LOG_LEVEL",
	KeyLogFormat:             "LITERATURE_LOG_FORMAT",
	KeyLLMProvider:           "LLM_PROVIDER",
	KeyLLMModel:              "LLM_MODEL",
	KeyLLMBaseURL:            "LLM_BASE_URL",
	KeyLLMAPIKey:             "ANTHROPIC_API_KEY",
	KeyMaxParallelDownloads:  "LITERATURE_MAX_PARALLEL_DOWNLOADS",
	KeyOpenAlexEmail:         "LITERATURE_OPENALEX_EMAIL",
	KeyMetricsFile:           "LITERATURE_METRICS_FILE",
}

// SetDefaults registers default values and environment bindings on v.
// Durations are expressed in seconds (fractions allowed).
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "data")
	v.SetDefault(KeyDefaultLimit, 25)
	v.SetDefault(KeyMaxResults, 100)
	v.SetDefault(KeySources, "arxiv,semanticscholar")
	v.SetDefault(KeyArxivDelay, 3.0)
	v.SetDefault(KeySemanticScholarDelay, 1.5)
	v.SetDefault(KeyRetryAttempts, 3)
	v.SetDefault(KeyRetryDelay, 5.0)
	v.SetDefault(KeyTitleSimilarity, 0.85)
	v.SetDefault(KeyHTTPTimeout, 60.0)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)

	v.SetDefault(KeyUseUnpaywall, true)
	v.SetDefault(KeyDownloadRetryAttempts, 2)
	v.SetDefault(KeyDownloadRetryDelay, 2.0)
	v.SetDefault(KeyBrowserUserAgent, true)
	v.SetDefault(KeyMaxParallelDownloads, 1)

	v.SetDefault(KeyLLMProvider, string(types.ProviderOllama))
	v.SetDefault(KeyLLMTimeout, 600.0)
	v.SetDefault(KeyLLMTemperature, 0.3)
	v.SetDefault(KeyLLMMaxTokens, 4096)

	v.SetDefault(KeyMaxParallelSummaries, 1)
	v.SetDefault(KeySummaryMaxAttempts, 2)
	v.SetDefault(KeySummaryKind, "executive_summary")
	v.SetDefault(KeyMaxInputWords, 12000)
	v.SetDefault(KeyRepetitionLimit, 3)
	v.SetDefault(KeySnapshotEvery, 50)
	v.SetDefault(KeyConversionBackend, string(types.BackendNative))

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogOutput, "stderr")

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
}

// Load builds a Config from v, falling back to secrets for credentials
// that are not set in the environment or config file.
func Load(v *viper.Viper, sec secrets.Set) (types.Config, error) {
	var cfg types.Config

	httpCfg := types.HTTPConfig{
		Timeout:   seconds(v, KeyHTTPTimeout),
		UserAgent: v.GetString(KeyUserAgent),
	}

	cfg.Search = types.SearchConfig{
		HTTPConfig:            httpCfg,
		DefaultLimit:          v.GetInt(KeyDefaultLimit),
		MaxResults:            v.GetInt(KeyMaxResults),
		Sources:               ParseList(v.Get(KeySources)),
		ArxivDelay:            seconds(v, KeyArxivDelay),
		SemanticScholarDelay:  seconds(v, KeySemanticScholarDelay),
		SemanticScholarAPIKey: firstNonEmpty(v.GetString(KeySemanticScholarKey), sec.Get(secrets.SemanticScholarAPIKey)),
		RetryAttempts:         v.GetInt(KeyRetryAttempts),
		RetryDelay:            seconds(v, KeyRetryDelay),
		OpenAlexEmail:         firstNonEmpty(v.GetString(KeyOpenAlexEmail), sec.Get(secrets.OpenAlexEmail)),
		TitleSimilarity:       v.GetFloat64(KeyTitleSimilarity),
	}

	cfg.Download = types.DownloadConfig{
		HTTPConfig:          httpCfg,
		UseUnpaywall:        v.GetBool(KeyUseUnpaywall),
		UnpaywallEmail:      firstNonEmpty(v.GetString(KeyUnpaywallEmail), sec.Get(secrets.UnpaywallEmail)),
		RetryAttempts:       v.GetInt(KeyDownloadRetryAttempts),
		RetryDelay:          seconds(v, KeyDownloadRetryDelay),
		UseBrowserUserAgent: v.GetBool(KeyBrowserUserAgent),
		MaxParallel:         v.GetInt(KeyMaxParallelDownloads),
	}
	if email := cfg.Download.UnpaywallEmail; email != "" && !strings.Contains(httpCfg.UserAgent, "mailto:") {
		ua := fmt.Sprintf("%s (mailto:%s)", httpCfg.UserAgent, email)
		cfg.Download.UserAgent = ua
		cfg.Search.UserAgent = ua
	}

	dataDir := v.GetString(KeyDataDir)
	cfg.Paths = types.PathsConfig{
		DataDir:      dataDir,
		BibTeXFile:   pathOr(v, KeyBibTeXFile, dataDir, "references.bib"),
		LibraryIndex: pathOr(v, KeyLibraryIndex, dataDir, "library.json"),
		FailedLedger: pathOr(v, KeyFailedDownloads, dataDir, "failed_downloads.json"),
		ProgressFile: pathOr(v, KeyProgressFile, dataDir, "summarization_progress.json"),
		DownloadDir:  pathOr(v, KeyDownloadDir, dataDir, "pdfs"),
		TextDir:      pathOr(v, KeyTextDir, dataDir, "extracted_text"),
		SummariesDir: pathOr(v, KeySummariesDir, dataDir, "summaries"),
		CatalogFile:  pathOr(v, KeyCatalogFile, dataDir, "library.db"),
	}

	cfg.LLM = types.LLMConfig{
		Provider:    types.LLMProvider(strings.ToLower(v.GetString(KeyLLMProvider))),
		Model:       v.GetString(KeyLLMModel),
		BaseURL:     v.GetString(KeyLLMBaseURL),
		APIKey:      firstNonEmpty(v.GetString(KeyLLMAPIKey), sec.Get(secrets.AnthropicAPIKey)),
		Timeout:     seconds(v, KeyLLMTimeout),
		Temperature: v.GetFloat64(KeyLLMTemperature),
		MaxTokens:   v.GetInt(KeyLLMMaxTokens),
	}

	cfg.Summarization = types.SummarizationConfig{
		MaxParallel:         v.GetInt(KeyMaxParallelSummaries),
		MaxAttempts:         v.GetInt(KeySummaryMaxAttempts),
		Kind:                v.GetString(KeySummaryKind),
		MaxInputWords:       v.GetInt(KeyMaxInputWords),
		RepetitionLimit:     v.GetInt(KeyRepetitionLimit),
		StreamSnapshotEvery: v.GetInt(KeySnapshotEvery),
		ConversionBackend:   types.ConversionBackend(strings.ToLower(v.GetString(KeyConversionBackend))),
	}

	cfg.Logging = types.LoggingConfig{
		Level:  v.GetString(KeyLogLevel),
		Format: v.GetString(KeyLogFormat),
		Output: v.GetString(KeyLogOutput),
	}
	cfg.Metrics = types.MetricsConfig{File: v.GetString(KeyMetricsFile)}

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func Validate(cfg types.Config) error {
	var problems []string
	if cfg.Search.DefaultLimit < 1 {
		problems = append(problems, "search.default_limit must be at least 1")
	}
	if cfg.Search.MaxResults < 1 {
		problems = append(problems, "search.max_results must be at least 1")
	}
	if len(cfg.Search.Sources) == 0 {
		problems = append(problems, "search.sources must name at least one source")
	}
	if s := cfg.Search.TitleSimilarity; s <= 0 || s > 1 {
		problems = append(problems, "search.title_similarity must be in (0, 1]")
	}
	if cfg.Download.MaxParallel < 1 {
		problems = append(problems, "download.max_parallel must be at least 1")
	}
	if cfg.Summarization.MaxParallel < 1 {
		problems = append(problems, "summarization.max_parallel must be at least 1")
	}
	if cfg.Summarization.MaxAttempts < 1 {
		problems = append(problems, "summarization.max_attempts must be at least 1")
	}
	switch cfg.LLM.Provider {
	case types.ProviderOllama, types.ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider %q is not one of ollama, anthropic", cfg.LLM.Provider))
	}
	switch cfg.Summarization.ConversionBackend {
	case types.BackendNative, types.BackendMarkitdown:
	default:
		problems = append(problems, fmt.Sprintf("summarization.conversion_backend %q is not one of native, markitdown", cfg.Summarization.ConversionBackend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ParseList accepts a comma-separated string or a list and returns trimmed,
// lowercased, non-empty items.
func ParseList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.Split(val, ",")
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	}
	var out []string
	for _, item := range items {
		if s := strings.ToLower(strings.TrimSpace(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

func pathOr(v *viper.Viper, key, dataDir, name string) string {
	if p := v.GetString(key); p != "" {
		return p
	}
	return filepath.Join(dataDir, name)
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
