// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns extracted paper text into a validated Markdown
// summary through an LLM. Each paper moves through five stages: text
// loading, context extraction, draft generation, validation and refinement.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/convert"
	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/internal/llm"
	"github.com/pdiddy/literature-engine/internal/metrics"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// Engine defaults.
const (
	DefaultMaxAttempts         = 2
	DefaultStreamSnapshotEvery = 50
	DefaultMaxInputWords       = 12000
)

// Error classes set on a failed result in addition to the llm classes.
const (
	ClassPDFExtraction = "pdf_extraction"
	ClassEmpty         = "empty"
	ClassValidation    = "validation"
	ClassCancelled     = "cancelled"
)

// Options configures an Engine.
type Options struct {
	Client       llm.Client
	Texts        *convert.TextStore
	SummariesDir string
	Config       types.SummarizationConfig

	// Temperature and MaxTokens are passed on every LLM call.
	Temperature float64
	MaxTokens   int

	// LLMTimeout bounds each LLM call. Zero means no per-call limit.
	LLMTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Now is the clock for generation timing; defaults to time.Now.
	Now func() time.Time
}

// Engine summarizes papers. It is safe for concurrent use when its LLM
// client is.
type Engine struct {
	opts      Options
	kind      Kind
	validator *Validator
}

// New returns an Engine for opts.
func New(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, errors.New("summarize: no LLM client")
	}
	if opts.Texts == nil {
		return nil, errors.New("summarize: no text store")
	}
	if opts.SummariesDir == "" {
		return nil, errors.New("summarize: no summaries directory")
	}
	kind, err := ParseKind(opts.Config.Kind)
	if err != nil {
		return nil, err
	}
	if opts.Config.MaxAttempts <= 0 {
		opts.Config.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Config.StreamSnapshotEvery <= 0 {
		opts.Config.StreamSnapshotEvery = DefaultStreamSnapshotEvery
	}
	if opts.Config.MaxInputWords <= 0 {
		opts.Config.MaxInputWords = DefaultMaxInputWords
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts, kind: kind, validator: NewValidator(opts.Config.RepetitionLimit)}, nil
}

// Kind returns the summary kind the engine produces.
func (e *Engine) Kind() Kind { return e.kind }

// Paper is the metadata the engine needs about one paper.
type Paper struct {
	CitationKey string
	Title       string
	Authors     []string
	Year        int
	Venue       string
	Abstract    string

	// PDFPath is the absolute PDF location, used when no extracted text
	// is cached yet.
	PDFPath string
}

// PaperFromEntry builds a Paper from a library entry and the absolute path
// of its PDF.
func PaperFromEntry(e types.LibraryEntry, pdfPath string) Paper {
	p := Paper{
		CitationKey: e.CitationKey,
		Title:       e.Title,
		Authors:     e.Authors,
		Venue:       e.VenueValue(),
		Abstract:    e.Abstract,
		PDFPath:     pdfPath,
	}
	if e.Year != nil {
		p.Year = *e.Year
	}
	return p
}

// SummaryPath returns where the summary for key is written.
func (e *Engine) SummaryPath(key string) string {
	return filepath.Join(e.opts.SummariesDir, key+"_summary.md")
}

// HasSummary reports whether a summary file for key exists.
func (e *Engine) HasSummary(key string) bool {
	return fsutil.Exists(e.SummaryPath(key))
}

// SummarizePaper produces and saves the summary for p. An existing summary
// file is reported as skipped without calling the LLM. When every attempt
// fails validation the last draft is still written and the result carries
// success=false together with the validator complaints. onEvent may be nil.
func (e *Engine) SummarizePaper(ctx context.Context, p Paper, onEvent func(types.ProgressEvent)) types.SummarizationResult {
	start := e.opts.Now()
	key := p.CitationKey
	log := e.opts.Logger.With().Str("citation_key", key).Logger()
	res := types.SummarizationResult{CitationKey: key, SummaryPath: e.SummaryPath(key)}

	emit := func(stage types.Stage, status types.EventStatus, msg string, meta map[string]any) {
		if onEvent == nil {
			return
		}
		onEvent(types.ProgressEvent{CitationKey: key, Stage: stage, Status: status, Message: msg, Metadata: meta})
	}
	fail := func(stage types.Stage, class, msg string) types.SummarizationResult {
		if ctx.Err() != nil {
			class, msg = ClassCancelled, "cancellation"
		}
		res.Error = msg
		res.ErrorClass = class
		res.GenerationTime = e.opts.Now().Sub(start).Seconds()
		emit(stage, types.EventFailed, msg, nil)
		e.opts.Metrics.RecordSummary("failed", res.GenerationTime)
		log.Warn().Str("stage", string(stage)).Str("class", class).Msg(msg)
		return res
	}

	if e.HasSummary(key) {
		res.Success = true
		res.Skipped = true
		if data, err := os.ReadFile(res.SummaryPath); err == nil {
			res.SummaryText = string(data)
			res.OutputWords = wordCount(res.SummaryText)
		}
		e.opts.Metrics.RecordSummary("skipped", 0)
		log.Debug().Msg("summary exists, skipping")
		return res
	}

	// Text loading.
	emit(types.StagePDFExtraction, types.EventStarted, "", nil)
	text, class, err := e.loadText(ctx, p)
	if err != nil {
		return fail(types.StagePDFExtraction, class, err.Error())
	}
	emit(types.StagePDFExtraction, types.EventCompleted, "", map[string]any{"chars": len(text)})

	// Context extraction.
	emit(types.StageContextExtraction, types.EventStarted, "", nil)
	pc := ExtractContext(text)
	emit(types.StageContextExtraction, types.EventCompleted, "", pc.Profile.Metadata())

	input := text
	if pc.Profile.Words > e.opts.Config.MaxInputWords {
		input = limitWords(text, e.opts.Config.MaxInputWords)
	}
	res.InputWords = wordCount(input)
	if ctx.Err() != nil {
		return fail(types.StageContextExtraction, ClassCancelled, "cancellation")
	}

	// Draft.
	prompt, err := renderDraftPrompt(p, e.kind, pc, input)
	if err != nil {
		return fail(types.StageDraftGeneration, string(llm.ClassOther), err.Error())
	}
	emit(types.StageDraftGeneration, types.EventStarted, e.opts.Client.Name(), nil)
	draft, err := e.generate(ctx, prompt, types.StageDraftGeneration, emit)
	res.Attempts = 1
	if err != nil {
		return fail(types.StageDraftGeneration, string(llm.ClassifyError(err)), fmt.Sprintf("draft generation: %v", err))
	}
	emit(types.StageDraftGeneration, types.EventCompleted, "", map[string]any{"words": wordCount(draft)})

	// Validate, refining while attempts remain.
	var v Validation
	var llmErr error
	for {
		emit(types.StageValidation, types.EventStarted, "", nil)
		v = e.validator.Validate(draft, p.Title, e.kind)
		meta := map[string]any{"score": v.Score, "words": v.Words, "attempt": res.Attempts}
		if v.Passed() {
			emit(types.StageValidation, types.EventCompleted, "", meta)
			break
		}
		meta["errors"] = v.Errors
		emit(types.StageValidation, types.EventFailed, strings.Join(v.Errors, "; "), meta)
		if res.Attempts >= e.opts.Config.MaxAttempts {
			break
		}

		emit(types.StageRefinement, types.EventStarted, "", map[string]any{"attempt": res.Attempts + 1})
		prompt, err := renderRefinePrompt(p, e.kind, pc, draft, v.Errors, e.validator.limit())
		if err != nil {
			llmErr = err
			break
		}
		refined, err := e.generate(ctx, prompt, types.StageRefinement, emit)
		res.Attempts++
		if err != nil {
			llmErr = err
			emit(types.StageRefinement, types.EventFailed, err.Error(), nil)
			break
		}
		draft = refined
		emit(types.StageRefinement, types.EventCompleted, "", map[string]any{"words": wordCount(draft)})
	}

	res.SummaryText = draft
	res.OutputWords = v.Words
	res.QualityScore = v.Score
	res.ValidationErrors = v.Errors
	if err := fsutil.WriteFileAtomic(res.SummaryPath, []byte(strings.TrimRight(draft, "\n")+"\n")); err != nil {
		res.SummaryPath = ""
		return fail(types.StageValidation, string(llm.ClassOther), fmt.Sprintf("saving summary: %v", err))
	}
	res.GenerationTime = e.opts.Now().Sub(start).Seconds()

	switch {
	case llmErr != nil:
		class := string(llm.ClassifyError(llmErr))
		if ctx.Err() != nil {
			class = ClassCancelled
		}
		res.Error = fmt.Sprintf("refinement: %v", llmErr)
		res.ErrorClass = class
		e.opts.Metrics.RecordSummary("failed", res.GenerationTime)
	case !v.Passed():
		res.Error = fmt.Sprintf("validation failed after %d attempts", res.Attempts)
		res.ErrorClass = ClassValidation
		e.opts.Metrics.RecordSummary("invalid", res.GenerationTime)
	default:
		res.Success = true
		e.opts.Metrics.RecordSummary("success", res.GenerationTime)
	}
	log.Info().Bool("success", res.Success).Int("attempts", res.Attempts).Float64("score", res.QualityScore).Msg("summary saved")
	return res
}

// loadText returns the cached extracted text, extracting from the PDF first
// when needed.
func (e *Engine) loadText(ctx context.Context, p Paper) (string, string, error) {
	store := e.opts.Texts
	if !store.HasExtractedText(p.CitationKey) {
		if p.PDFPath == "" {
			return "", ClassPDFExtraction, fmt.Errorf("no PDF for %s", p.CitationKey)
		}
		out := store.ExtractAndSave(ctx, p.PDFPath, p.CitationKey)
		if !out.Success {
			if out.Error == convert.ErrNoText.Error() {
				return "", ClassEmpty, convert.ErrNoText
			}
			return "", ClassPDFExtraction, errors.New(out.Error)
		}
	}
	text, err := store.Load(p.CitationKey)
	if err != nil {
		return "", ClassPDFExtraction, err
	}
	if strings.TrimSpace(text) == "" {
		return "", ClassEmpty, convert.ErrNoText
	}
	return text, "", nil
}

// generate runs one LLM call under the per-call timeout, reporting a
// streaming snapshot every StreamSnapshotEvery chunks.
func (e *Engine) generate(ctx context.Context, prompt string, stage types.Stage, emit func(types.Stage, types.EventStatus, string, map[string]any)) (string, error) {
	if e.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.LLMTimeout)
		defer cancel()
	}

	start := e.opts.Now()
	every := e.opts.Config.StreamSnapshotEvery
	var received strings.Builder
	chunks := 0
	opts := llm.Options{
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		OnChunk: func(c llm.Chunk) {
			received.WriteString(c.Text)
			chunks++
			if chunks%every != 0 {
				return
			}
			emit(stage, types.EventStreaming, "", map[string]any{
				"chars_received": received.Len(),
				"words_received": wordCount(received.String()),
				"elapsed_time":   e.opts.Now().Sub(start).Seconds(),
			})
		},
	}

	out, err := e.opts.Client.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("empty response from model")
	}
	return out, nil
}
