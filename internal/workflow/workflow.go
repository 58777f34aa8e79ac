// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow orchestrates the literature pipeline: search, library
// update, PDF download, progress bootstrap and summarization.
//
// Downloads and summaries run on worker pools. Workers only compute
// per-paper results; the goroutine that calls into the Orchestrator applies
// every result to the library index, the failed-download ledger and the
// progress tracker, so those are never written concurrently.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/acquire"
	"github.com/pdiddy/literature-engine/internal/convert"
	"github.com/pdiddy/literature-engine/internal/ledger"
	"github.com/pdiddy/literature-engine/internal/library"
	"github.com/pdiddy/literature-engine/internal/llm"
	"github.com/pdiddy/literature-engine/internal/logging"
	"github.com/pdiddy/literature-engine/internal/metrics"
	"github.com/pdiddy/literature-engine/internal/progress"
	"github.com/pdiddy/literature-engine/internal/search"
	"github.com/pdiddy/literature-engine/internal/summarize"
	"github.com/pdiddy/literature-engine/pkg/types"
)

var (
	// ErrConfiguration marks missing or invalid inputs. It is fatal.
	ErrConfiguration = errors.New("configuration error")

	// ErrSkipped means an operation could not run because the LLM is
	// unavailable.
	ErrSkipped = errors.New("skipped")

	// ErrInterrupted is returned after a cancelled run has saved its state.
	ErrInterrupted = errors.New("interrupted")
)

// Searcher runs a multi-keyword search. *search.Searcher implements it.
type Searcher interface {
	SearchKeywords(ctx context.Context, keywords []string, limit int, only []string) (search.Output, error)
}

// Downloader fetches one PDF. *acquire.Acquirer implements it.
type Downloader interface {
	Download(ctx context.Context, key string, r types.SearchResult) types.DownloadResult

	// Existing returns the path of a valid PDF already on disk for key.
	Existing(key string) (string, bool)
}

// Summarizer produces one summary. *summarize.Engine implements it.
type Summarizer interface {
	SummarizePaper(ctx context.Context, p summarize.Paper, onEvent func(types.ProgressEvent)) types.SummarizationResult
	SummaryPath(key string) string
	HasSummary(key string) bool
}

// Options wires an Orchestrator.
type Options struct {
	Config     types.Config
	Searcher   Searcher
	Index      *library.Index
	BibTeX     *library.BibFile
	Ledger     *ledger.Ledger
	Downloader Downloader
	Texts      *convert.TextStore
	Summarizer Summarizer

	// LLM is pinged before summaries are generated. Nil skips the check.
	LLM llm.Client

	Progress *progress.Tracker
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics

	// Out receives human-readable progress lines.
	Out io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator runs the pipeline operations.
type Orchestrator struct {
	opts Options
	log  zerolog.Logger
	out  io.Writer
	now  func() time.Time
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{opts: opts, log: opts.Logger, out: opts.Out, now: opts.Now}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Request parameterizes a pipeline run.
type Request struct {
	Keywords []string

	// Limit is the per-source, per-keyword result cap; zero uses the
	// configured default.
	Limit int

	// Sources restricts the search to these source names.
	Sources []string

	MaxParallelDownloads int
	MaxParallelSummaries int

	// ResumeExisting adopts the persisted progress run, if any, instead
	// of searching again.
	ResumeExisting bool

	// RetryFailed bypasses failed-download suppression and retries failed
	// summaries.
	RetryFailed bool

	// FromQuery loads results from a saved query file instead of
	// searching.
	FromQuery string

	// SaveQuery writes the search results to a query file.
	SaveQuery string
}

func (o *Orchestrator) downloadWorkers(req Request) int {
	if req.MaxParallelDownloads > 0 {
		return req.MaxParallelDownloads
	}
	return max(o.opts.Config.Download.MaxParallel, 1)
}

func (o *Orchestrator) summaryWorkers(req Request) int {
	if req.MaxParallelSummaries > 0 {
		return req.MaxParallelSummaries
	}
	return max(o.opts.Config.Summarization.MaxParallel, 1)
}

// ExecuteSearchAndSummarize runs the full pipeline:
//
//  1. adopt an existing progress run when resuming
//  2. search every keyword and deduplicate
//  3. add results to the library and download their PDFs
//  4. start a progress run holding every downloaded paper
//  5. summarize every paper that has no summary yet
//
// A resumed run skips steps 2 to 4. Per-paper failures are reported in the
// result and never abort the run.
func (o *Orchestrator) ExecuteSearchAndSummarize(ctx context.Context, req Request) (WorkflowResult, error) {
	start := o.now()
	res := newResult()
	finish := func(err error) (WorkflowResult, error) {
		res.Duration = o.now().Sub(start)
		if cur := o.opts.Progress.Current(); cur != nil {
			res.CompletionPercentage = cur.CompletionPercentage()
		}
		if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			res.Interrupted = true
			if o.opts.Progress.Current() != nil {
				if serr := o.opts.Progress.Save(); serr != nil {
					o.log.Error().Err(serr).Msg("saving progress after interrupt")
				}
			}
			return res, ErrInterrupted
		}
		return res, err
	}

	if req.ResumeExisting {
		p, err := o.opts.Progress.LoadExistingRun()
		if err != nil {
			return finish(err)
		}
		if p != nil {
			res.Resumed = true
			res.RunID = p.RunID
			res.Keywords = p.Keywords
			fmt.Fprintf(o.out, "Resuming run %s: %d papers, %.1f%% complete\n", p.RunID, len(p.Entries), p.CompletionPercentage())
		}
	}

	if !res.Resumed {
		if len(req.Keywords) == 0 && req.FromQuery == "" {
			return finish(fmt.Errorf("%w: no keywords given", ErrConfiguration))
		}
		hits, err := o.search(ctx, req, &res)
		if err != nil {
			return finish(err)
		}
		tasks, err := o.addToLibrary(hits)
		if err != nil {
			return finish(err)
		}
		if err := o.downloadAll(ctx, req, tasks, &res); err != nil {
			return finish(err)
		}
		if ctx.Err() != nil {
			return finish(nil)
		}
		if err := o.bootstrapProgress(res.Keywords, res.Downloads); err != nil {
			return finish(err)
		}
		res.RunID = o.opts.Progress.Current().RunID
	}

	if ctx.Err() != nil {
		return finish(nil)
	}
	return finish(o.summarizeRun(ctx, req, &res))
}

// bootstrapProgress archives any previous run and starts a new one holding
// every successfully downloaded paper.
func (o *Orchestrator) bootstrapProgress(keywords []string, downloads []types.DownloadResult) error {
	if path, err := o.opts.Progress.ArchiveProgress(); err != nil {
		return err
	} else if path != "" {
		o.log.Info().Str("path", path).Msg("previous run archived")
	}
	if _, err := o.opts.Progress.StartNewRun(keywords, 0); err != nil {
		return err
	}
	n := 0
	for _, d := range downloads {
		if !d.Success {
			continue
		}
		if _, err := o.opts.Progress.AddPaper(d.CitationKey, d.PDFPath); err != nil {
			return err
		}
		n++
	}
	return o.opts.Progress.SetTotalPapers(n)
}

// SearchOnly searches and adds the results to the library without
// downloading anything.
func (o *Orchestrator) SearchOnly(ctx context.Context, req Request) (WorkflowResult, error) {
	start := o.now()
	res := newResult()
	if len(req.Keywords) == 0 && req.FromQuery == "" {
		return res, fmt.Errorf("%w: no keywords given", ErrConfiguration)
	}
	hits, err := o.search(ctx, req, &res)
	if err == nil {
		_, err = o.addToLibrary(hits)
	}
	res.Duration = o.now().Sub(start)
	if ctx.Err() != nil {
		res.Interrupted = true
		return res, ErrInterrupted
	}
	return res, err
}

func (o *Orchestrator) search(ctx context.Context, req Request, res *WorkflowResult) ([]types.SearchResult, error) {
	if req.FromQuery != "" {
		qf, err := search.ReadQueryFile(req.FromQuery)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		res.Keywords = qf.Keywords
		res.PapersFound = len(qf.Results)
		fmt.Fprintf(o.out, "Loaded %d papers from %s\n", len(qf.Results), req.FromQuery)
		return qf.Results, nil
	}

	res.Keywords = req.Keywords
	limit := req.Limit
	if limit <= 0 {
		limit = o.opts.Config.Search.DefaultLimit
	}
	out, err := o.opts.Searcher.SearchKeywords(ctx, req.Keywords, limit, req.Sources)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	res.PapersFound = len(out.Results)
	res.SourceStats = out.Stats
	res.SearchErrors = out.Errors()
	search.FormatStats(out, o.out)

	if req.SaveQuery != "" {
		cfg := search.QueryFileConfig{
			Limit:           limit,
			MaxResults:      o.opts.Config.Search.MaxResults,
			TitleSimilarity: o.opts.Config.Search.TitleSimilarity,
		}
		qf := search.NewQueryFile(req.Keywords, req.Sources, cfg, out, o.now())
		if err := search.WriteQueryFile(req.SaveQuery, qf); err != nil {
			o.log.Warn().Err(err).Str("path", req.SaveQuery).Msg("writing query file")
		}
	}
	return out.Results, nil
}

// downloadTask is one paper to fetch.
type downloadTask struct {
	key    string
	result types.SearchResult
}

// addToLibrary adds every hit to the index and returns one download task
// per distinct citation key.
func (o *Orchestrator) addToLibrary(hits []types.SearchResult) ([]downloadTask, error) {
	seen := make(map[string]bool, len(hits))
	var tasks []downloadTask
	added := 0
	for _, r := range hits {
		key, isNew, err := o.opts.Index.AddEntry(library.ParamsFromResult(r))
		if err != nil {
			return nil, err
		}
		if isNew {
			added++
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		tasks = append(tasks, downloadTask{key: key, result: r})
	}
	fmt.Fprintf(o.out, "Library: %d new entries (%d total)\n", added, o.opts.Index.Len())
	return tasks, nil
}

// downloadAll fetches every task's PDF. A valid PDF already on disk wins
// over the failed-download ledger and clears its entry. Other papers in the
// ledger are suppressed unless req.RetryFailed. Results are applied to the
// index and ledger as they complete.
func (o *Orchestrator) downloadAll(ctx context.Context, req Request, tasks []downloadTask, res *WorkflowResult) error {
	byKey := make(map[string]downloadTask, len(tasks))
	var dispatch []downloadTask
	var persistErr error
	for _, t := range tasks {
		if path, ok := o.opts.Downloader.Existing(t.key); ok {
			r := types.DownloadResult{
				CitationKey:    t.key,
				Success:        true,
				AlreadyExisted: true,
				PDFPath:        path,
				AttemptedURLs:  []string{},
			}
			o.opts.Metrics.RecordDownload("already_existed")
			if err := o.applyDownload(ctx, res, r, t); err != nil && persistErr == nil {
				persistErr = err
			}
			continue
		}
		if !req.RetryFailed {
			if prev, ok := o.opts.Ledger.Get(t.key); ok {
				r := types.DownloadResult{
					CitationKey:    t.key,
					FailureReason:  types.FailureSkippedPreviousFailure,
					FailureMessage: string(prev.FailureReason),
					AttemptedURLs:  []string{},
				}
				res.Downloads = append(res.Downloads, r)
				o.opts.Metrics.RecordDownload(string(types.FailureSkippedPreviousFailure))
				acquire.Report(o.out, r)
				continue
			}
		}
		byKey[t.key] = t
		dispatch = append(dispatch, t)
	}

	results := RunPool(ctx, o.downloadWorkers(req), dispatch, func(ctx context.Context, t downloadTask) types.DownloadResult {
		return o.opts.Downloader.Download(ctx, t.key, t.result)
	})
	for r := range results {
		if err := o.applyDownload(ctx, res, r, byKey[r.CitationKey]); err != nil && persistErr == nil {
			persistErr = err
		}
	}
	return persistErr
}

// applyDownload records one download result in res, the index and the
// ledger.
func (o *Orchestrator) applyDownload(ctx context.Context, res *WorkflowResult, r types.DownloadResult, t downloadTask) error {
	res.Downloads = append(res.Downloads, r)
	acquire.Report(o.out, r)
	switch {
	case r.Success:
		if _, err := o.opts.Ledger.RemoveSuccessful(r.CitationKey); err != nil {
			o.log.Warn().Err(err).Str("citation_key", r.CitationKey).Msg("updating failed-download ledger")
		}
		return o.opts.Index.UpdatePDFPath(r.CitationKey, r.PDFPath)
	case ctx.Err() != nil:
		// Cancelled downloads are not recorded as failures.
	default:
		if err := o.opts.Ledger.SaveFailed(r, t.result.Title, t.result.Source); err != nil {
			o.log.Warn().Err(err).Str("citation_key", r.CitationKey).Msg("updating failed-download ledger")
		}
	}
	return nil
}

// DownloadOnly downloads missing PDFs for entries already in the library.
// Stale pdf paths are cleared first.
func (o *Orchestrator) DownloadOnly(ctx context.Context, req Request) (WorkflowResult, error) {
	start := o.now()
	res := newResult()
	cleared, err := o.opts.Index.ClearMissingPDFs()
	if err != nil {
		return res, err
	}
	if len(cleared) > 0 {
		o.log.Info().Int("entries", len(cleared)).Msg("cleared stale pdf paths")
	}

	var tasks []downloadTask
	for _, e := range o.opts.Index.ListEntries() {
		if !e.HasPDF() {
			tasks = append(tasks, downloadTask{key: e.CitationKey, result: e.ToSearchResult()})
		}
	}
	fmt.Fprintf(o.out, "%d entries without a PDF\n", len(tasks))
	err = o.downloadAll(ctx, req, tasks, &res)
	res.Duration = o.now().Sub(start)
	if ctx.Err() != nil {
		res.Interrupted = true
		return res, ErrInterrupted
	}
	return res, err
}

// ExtractText extracts text for every library entry with a PDF and no
// cached text.
func (o *Orchestrator) ExtractText(ctx context.Context, workers int) (convert.BatchResult, error) {
	type task struct{ key, pdf string }
	var tasks []task
	for _, e := range o.opts.Index.ListEntries() {
		if e.HasPDF() {
			tasks = append(tasks, task{e.CitationKey, o.opts.Index.PDFAbsPath(e)})
		}
	}

	start := o.now()
	var batch convert.BatchResult
	for out := range RunPool(ctx, workers, tasks, func(ctx context.Context, t task) convert.Outcome {
		return o.opts.Texts.ExtractAndSave(ctx, t.pdf, t.key)
	}) {
		batch.Add(out)
		convert.Report(o.out, out)
	}
	batch.Summary(o.out)
	o.log.Info().Int("extracted", batch.Extracted).Int("failed", batch.Failed).
		Dur("elapsed", o.now().Sub(start)).Msg("text extraction finished")
	if ctx.Err() != nil {
		return batch, ErrInterrupted
	}
	return batch, nil
}

// SummarizeExisting summarizes every library entry that has a PDF. Entries
// that already have a summary are counted as skipped even without a PDF.
// It adopts the persisted run when req.ResumeExisting, otherwise it starts
// a new one.
func (o *Orchestrator) SummarizeExisting(ctx context.Context, req Request) (WorkflowResult, error) {
	start := o.now()
	res := newResult()

	var entries []types.LibraryEntry
	for _, e := range o.opts.Index.ListEntries() {
		if e.HasPDF() || (o.opts.Summarizer != nil && o.opts.Summarizer.HasSummary(e.CitationKey)) {
			entries = append(entries, e)
		}
	}

	var p *types.SummarizationProgress
	var err error
	if req.ResumeExisting {
		if p, err = o.opts.Progress.LoadExistingRun(); err != nil {
			return res, err
		}
		res.Resumed = p != nil
	}
	if p == nil {
		if _, err := o.opts.Progress.ArchiveProgress(); err != nil {
			return res, err
		}
		if p, err = o.opts.Progress.StartNewRun(req.Keywords, len(entries)); err != nil {
			return res, err
		}
	}
	res.RunID = p.RunID
	res.Keywords = p.Keywords
	for _, e := range entries {
		if _, err := o.opts.Progress.AddPaper(e.CitationKey, o.opts.Index.PDFAbsPath(e)); err != nil {
			return res, err
		}
	}

	err = o.summarizeRun(ctx, req, &res)
	res.Duration = o.now().Sub(start)
	if cur := o.opts.Progress.Current(); cur != nil {
		res.CompletionPercentage = cur.CompletionPercentage()
	}
	if ctx.Err() != nil && err == nil {
		res.Interrupted = true
		return res, ErrInterrupted
	}
	return res, err
}

// summaryTask is one paper to summarize.
type summaryTask struct {
	paper summarize.Paper
}

// summarizeRun summarizes the papers of the current progress run. Papers
// whose summary file exists are recorded as skipped without the LLM.
// Summarized papers whose file has gone missing are regenerated.
func (o *Orchestrator) summarizeRun(ctx context.Context, req Request, res *WorkflowResult) error {
	cur := o.opts.Progress.Current()
	if cur == nil {
		return progress.ErrNoRun
	}
	log := logging.WithRun(o.log, cur.RunID)
	if o.opts.Summarizer == nil {
		return fmt.Errorf("%w: no LLM configured", ErrSkipped)
	}

	var tasks []summaryTask
	var persistErr error
	keep := func(err error) {
		if err != nil && persistErr == nil {
			persistErr = err
		}
	}
	for _, key := range sortedKeys(cur.Entries) {
		e := cur.Entries[key]
		has := o.opts.Summarizer.HasSummary(key)
		switch {
		case e.Status == types.StatusFailed && !req.RetryFailed:
			continue
		case e.Status == types.StatusSummarized && has:
			res.addSummary(skippedSummary(key, o.opts.Summarizer.SummaryPath(key)))
			continue
		case e.Status.Terminal():
			_, err := o.opts.Progress.Retry(key)
			keep(err)
		}
		if has {
			r := skippedSummary(key, o.opts.Summarizer.SummaryPath(key))
			res.addSummary(r)
			keep(o.applySummary(r))
			reportSummary(o.out, r)
			continue
		}
		tasks = append(tasks, summaryTask{paper: o.paper(key, e.PDFPath)})
	}
	if persistErr != nil {
		return persistErr
	}
	if len(tasks) == 0 {
		return nil
	}

	if o.opts.LLM != nil {
		if err := o.opts.LLM.Ping(ctx); err != nil {
			log.Error().Err(err).Str("llm", o.opts.LLM.Name()).Msg("LLM unavailable")
			return fmt.Errorf("%w: %v", ErrSkipped, err)
		}
	}
	for _, t := range tasks {
		_, err := o.opts.Progress.UpdateEntryStatus(t.paper.CitationKey, types.StatusProcessing, progress.Update{})
		keep(err)
	}
	if persistErr != nil {
		return persistErr
	}

	fmt.Fprintf(o.out, "Summarizing %d papers with %d workers\n", len(tasks), o.summaryWorkers(req))
	results := RunPool(ctx, o.summaryWorkers(req), tasks, func(ctx context.Context, t summaryTask) types.SummarizationResult {
		return o.opts.Summarizer.SummarizePaper(ctx, t.paper, o.eventLogger(log, t.paper.CitationKey))
	})
	for r := range results {
		res.addSummary(r)
		keep(o.applySummary(r))
		reportSummary(o.out, r)
	}
	return persistErr
}

// applySummary records a summarization result in the progress run. A
// cancelled paper stays in processing so a resumed run picks it up.
func (o *Orchestrator) applySummary(r types.SummarizationResult) error {
	var err error
	switch {
	case r.Success:
		_, err = o.opts.Progress.UpdateEntryStatus(r.CitationKey, types.StatusSummarized, progress.Update{
			SummaryPath:     r.SummaryPath,
			SummaryTime:     r.GenerationTime,
			SummaryAttempts: r.Attempts,
			ClearError:      true,
		})
	case r.ErrorClass == summarize.ClassCancelled:
	default:
		_, err = o.opts.Progress.UpdateEntryStatus(r.CitationKey, types.StatusFailed, progress.Update{
			LastError:       r.Error,
			SummaryPath:     r.SummaryPath,
			SummaryTime:     r.GenerationTime,
			SummaryAttempts: r.Attempts,
		})
	}
	return err
}

// paper builds the summarizer input from the library entry for key,
// falling back to the progress record when the entry is gone.
func (o *Orchestrator) paper(key, pdfPath string) summarize.Paper {
	if e, ok := o.opts.Index.GetEntry(key); ok {
		if abs := o.opts.Index.PDFAbsPath(e); abs != "" {
			pdfPath = abs
		}
		return summarize.PaperFromEntry(e, pdfPath)
	}
	return summarize.Paper{CitationKey: key, PDFPath: pdfPath}
}

func (o *Orchestrator) eventLogger(log zerolog.Logger, key string) func(types.ProgressEvent) {
	log = logging.WithPaper(log, key)
	return func(ev types.ProgressEvent) {
		level := zerolog.DebugLevel
		switch ev.Status {
		case types.EventStreaming:
			level = zerolog.TraceLevel
		case types.EventFailed:
			level = zerolog.InfoLevel
		}
		log.WithLevel(level).Str("stage", string(ev.Stage)).Str("status", string(ev.Status)).
			Fields(ev.Metadata).Msg(ev.Message)
	}
}

func skippedSummary(key, path string) types.SummarizationResult {
	return types.SummarizationResult{CitationKey: key, Success: true, Skipped: true, SummaryPath: path}
}

func reportSummary(w io.Writer, r types.SummarizationResult) {
	switch {
	case r.Skipped:
		fmt.Fprintf(w, "skipped: %s (summary exists)\n", r.CitationKey)
	case r.Success:
		fmt.Fprintf(w, "summarized: %s (%d words, score %.2f, %d attempts)\n", r.CitationKey, r.OutputWords, r.QualityScore, r.Attempts)
	default:
		fmt.Fprintf(w, "failed:  %s (%s)\n", r.CitationKey, r.Error)
	}
}
