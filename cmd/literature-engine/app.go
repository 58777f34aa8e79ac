// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/literature-engine/internal/acquire"
	"github.com/pdiddy/literature-engine/internal/config"
	"github.com/pdiddy/literature-engine/internal/container"
	"github.com/pdiddy/literature-engine/internal/convert"
	"github.com/pdiddy/literature-engine/internal/dedup"
	"github.com/pdiddy/literature-engine/internal/ledger"
	"github.com/pdiddy/literature-engine/internal/library"
	"github.com/pdiddy/literature-engine/internal/llm"
	"github.com/pdiddy/literature-engine/internal/logging"
	"github.com/pdiddy/literature-engine/internal/metrics"
	"github.com/pdiddy/literature-engine/internal/progress"
	"github.com/pdiddy/literature-engine/internal/search"
	"github.com/pdiddy/literature-engine/internal/summarize"
	"github.com/pdiddy/literature-engine/internal/workflow"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// app holds the components one CLI invocation works with.
type app struct {
	cfg      types.Config
	log      zerolog.Logger
	metrics  *metrics.Metrics
	out      io.Writer
	index    *library.Index
	bib      *library.BibFile
	ledger   *ledger.Ledger
	tracker  *progress.Tracker
	registry *search.Registry
	orch     *workflow.Orchestrator
}

// loadConfig builds the configuration from viper and the loaded secrets.
// Invalid settings are configuration errors.
func loadConfig() (types.Config, error) {
	cfg, err := config.Load(viper.GetViper(), loadedSecrets)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", workflow.ErrConfiguration, err)
	}
	return cfg, nil
}

// newApp opens the persisted state and wires the pipeline. The LLM and
// summarizer are built only when withLLM is set.
func newApp(ctx context.Context, out io.Writer, withLLM bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		log:     logging.New(cfg.Logging),
		metrics: metrics.New(),
		out:     out,
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	a.bib = library.NewBibFile(cfg.Paths.BibTeXFile)
	a.index, err = library.Open(cfg.Paths.LibraryIndex, library.Options{
		Root:   cfg.Paths.DataDir,
		BibTeX: a.bib,
		Logger: a.log,
	})
	if err != nil {
		return nil, err
	}
	if a.ledger, err = ledger.Open(cfg.Paths.FailedLedger, a.log); err != nil {
		return nil, err
	}
	a.tracker = progress.New(cfg.Paths.ProgressFile, a.log)

	client := &http.Client{Timeout: cfg.Search.Timeout}
	if a.registry, err = search.NewRegistry(cfg, client); err != nil {
		return nil, fmt.Errorf("%w: %v", workflow.ErrConfiguration, err)
	}
	searcher := &search.Searcher{
		Sources:    a.registry.Search,
		Dedup:      dedup.Options{TitleThreshold: cfg.Search.TitleSimilarity},
		MaxResults: cfg.Search.MaxResults,
		Logger:     a.log,
		Metrics:    a.metrics,
	}

	var resolvers []acquire.Resolver
	for _, src := range a.registry.Lookups() {
		resolvers = append(resolvers, src)
	}
	downloader := acquire.New(acquire.Options{
		Client:      &http.Client{Timeout: cfg.Download.Timeout},
		Config:      cfg.Download,
		DownloadDir: cfg.Paths.DownloadDir,
		Resolvers:   resolvers,
		Logger:      a.log,
		Metrics:     a.metrics,
	})

	texts := convert.NewTextStore(cfg.Paths.TextDir, a.extractor(ctx), a.log)

	opts := workflow.Options{
		Config:     cfg,
		Searcher:   searcher,
		Index:      a.index,
		BibTeX:     a.bib,
		Ledger:     a.ledger,
		Downloader: downloader,
		Texts:      texts,
		Progress:   a.tracker,
		Logger:     a.log,
		Metrics:    a.metrics,
		Out:        out,
	}
	if withLLM {
		client, err := llm.New(cfg.LLM, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrConfiguration, err)
		}
		engine, err := summarize.New(summarize.Options{
			Client:       client,
			Texts:        texts,
			SummariesDir: cfg.Paths.SummariesDir,
			Config:       cfg.Summarization,
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			LLMTimeout:   cfg.LLM.Timeout,
			Logger:       a.log,
			Metrics:      a.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrConfiguration, err)
		}
		opts.LLM = client
		opts.Summarizer = engine
		a.log.Debug().Str("llm", client.Name()).Str("kind", string(engine.Kind())).Msg("summarizer ready")
	}
	a.orch = workflow.New(opts)
	return a, nil
}

// extractor returns the configured text extractor. The markitdown backend
// falls back to the native reader when no container runtime or image is
// available.
func (a *app) extractor(ctx context.Context) convert.Extractor {
	if a.cfg.Summarization.ConversionBackend != types.BackendMarkitdown {
		return convert.PDFExtractor{}
	}
	rt, err := container.DetectRuntime(ctx)
	if err == nil {
		var m *convert.MarkitdownExtractor
		if m, err = convert.NewMarkitdownExtractor(ctx, rt); err == nil {
			return m
		}
	}
	a.log.Warn().Err(err).Msg("markitdown unavailable, using native PDF extraction")
	return convert.PDFExtractor{}
}

// close writes the metrics textfile when one is configured.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
		a.log.Warn().Err(err).Msg("writing metrics")
	}
}

// logResult logs the final outcome of an operation at a level matching err.
func (a *app) logResult(op string, err error) {
	switch {
	case err == nil:
		a.log.Info().Str("operation", op).Msg("done")
	case errors.Is(err, workflow.ErrSkipped):
		a.log.Warn().Err(err).Str("operation", op).Msg("skipped")
	case errors.Is(err, workflow.ErrInterrupted):
		a.log.Warn().Str("operation", op).Msg("interrupted, progress saved")
	default:
		a.log.Error().Err(err).Str("operation", op).Msg("failed")
	}
}
