// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/literature-engine/internal/convert"
	"github.com/pdiddy/literature-engine/internal/dedup"
	"github.com/pdiddy/literature-engine/internal/ledger"
	"github.com/pdiddy/literature-engine/internal/library"
	"github.com/pdiddy/literature-engine/internal/llm"
	"github.com/pdiddy/literature-engine/internal/progress"
	"github.com/pdiddy/literature-engine/internal/search"
	"github.com/pdiddy/literature-engine/internal/summarize"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// fakeSource returns canned results for every keyword.
type fakeSource struct {
	mu      sync.Mutex
	results []types.SearchResult
	calls   int
}

func (f *fakeSource) Name() string                    { return "arxiv" }
func (f *fakeSource) Capabilities() search.Capability { return search.CapSearch }
func (f *fakeSource) Health() *search.Health          { return nil }

func (f *fakeSource) Lookup(context.Context, string) (*types.SearchResult, error) {
	return nil, search.ErrUnsupported
}

func (f *fakeSource) Search(_ context.Context, _ string, limit int) ([]types.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if limit > 0 && len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

// fakeDownloader writes a valid PDF for every key not listed in fail.
type fakeDownloader struct {
	mu    sync.Mutex
	dir   string
	fail  map[string]types.FailureReason
	calls []string
}

func (d *fakeDownloader) Download(_ context.Context, key string, _ types.SearchResult) types.DownloadResult {
	d.mu.Lock()
	d.calls = append(d.calls, key)
	d.mu.Unlock()

	res := types.DownloadResult{CitationKey: key, AttemptedURLs: []string{"https://example.org/" + key + ".pdf"}}
	if reason, ok := d.fail[key]; ok {
		res.FailureReason = reason
		res.FailureMessage = "HTTP 403"
		return res
	}
	path := filepath.Join(d.dir, key+".pdf")
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		res.FailureReason = types.FailureException
		return res
	}
	body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		res.FailureReason = types.FailureException
		return res
	}
	res.Success = true
	res.PDFPath = path
	return res
}

func (d *fakeDownloader) Existing(key string) (string, bool) {
	path := filepath.Join(d.dir, key+".pdf")
	data, err := os.ReadFile(path)
	if err != nil || len(data) < 1024 || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", false
	}
	return path, true
}

func (d *fakeDownloader) called(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == key {
			return true
		}
	}
	return false
}

var promptTitle = regexp.MustCompile(`(?m)^Title: (.+)$`)

// fakeLLM writes a valid executive summary for the title in the prompt.
// When cancelAfter is set it cancels after that many calls.
type fakeLLM struct {
	mu          sync.Mutex
	calls       int
	pingErr     error
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Ping(context.Context) error { return f.pingErr }

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ llm.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.cancelAfter > 0 && n == f.cancelAfter {
		f.cancel()
	}

	title := "untitled"
	if m := promptTitle.FindStringSubmatch(prompt); m != nil {
		title = m[1]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Executive Summary: %s\n\n", title)
	term := 0
	for _, s := range summarize.KindExecutiveSummary.Rules().Sections {
		fmt.Fprintf(&b, "## %s\n\n", s)
		for range 60 {
			fmt.Fprintf(&b, "term%d ", term)
			term++
		}
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticExtractor struct{}

func (staticExtractor) Name() string { return "static" }

func (staticExtractor) ExtractText(context.Context, string) (string, error) {
	return "Abstract\nWe study a problem.\n\n1. Introduction\nThe problem matters.\n", nil
}

type env struct {
	cfg     types.Config
	src     *fakeSource
	dl      *fakeDownloader
	llm     *fakeLLM
	index   *library.Index
	bib     *library.BibFile
	ledger  *ledger.Ledger
	tracker *progress.Tracker
	engine  *summarize.Engine
	out     *bytes.Buffer
}

func newEnv(t *testing.T, results []types.SearchResult) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := types.Config{
		Search: types.SearchConfig{DefaultLimit: 25},
		Paths: types.PathsConfig{
			DataDir:      dir,
			BibTeXFile:   filepath.Join(dir, "references.bib"),
			LibraryIndex: filepath.Join(dir, "library.json"),
			FailedLedger: filepath.Join(dir, "failed_downloads.json"),
			ProgressFile: filepath.Join(dir, "summarization_progress.json"),
			DownloadDir:  filepath.Join(dir, "pdfs"),
			TextDir:      filepath.Join(dir, "extracted_text"),
			SummariesDir: filepath.Join(dir, "summaries"),
		},
	}

	e := &env{cfg: cfg, src: &fakeSource{results: results}, llm: &fakeLLM{}, out: &bytes.Buffer{}}
	e.dl = &fakeDownloader{dir: cfg.Paths.DownloadDir, fail: map[string]types.FailureReason{}}
	e.bib = library.NewBibFile(cfg.Paths.BibTeXFile)
	var err error
	e.index, err = library.Open(cfg.Paths.LibraryIndex, library.Options{Root: dir, BibTeX: e.bib, Logger: zerolog.Nop()})
	require.NoError(t, err)
	e.ledger, err = ledger.Open(cfg.Paths.FailedLedger, zerolog.Nop())
	require.NoError(t, err)
	e.tracker = progress.New(cfg.Paths.ProgressFile, zerolog.Nop())
	e.engine, err = summarize.New(summarize.Options{
		Client:       e.llm,
		Texts:        convert.NewTextStore(cfg.Paths.TextDir, staticExtractor{}, zerolog.Nop()),
		SummariesDir: cfg.Paths.SummariesDir,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return e
}

func (e *env) orchestrator() *Orchestrator {
	return New(Options{
		Config: e.cfg,
		Searcher: &search.Searcher{
			Sources: []search.Source{e.src},
			Dedup:   dedup.DefaultOptions(),
			Clock:   func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
			Logger:  zerolog.Nop(),
		},
		Index:      e.index,
		BibTeX:     e.bib,
		Ledger:     e.ledger,
		Downloader: e.dl,
		Texts:      convert.NewTextStore(e.cfg.Paths.TextDir, staticExtractor{}, zerolog.Nop()),
		Summarizer: e.engine,
		LLM:        e.llm,
		Progress:   e.tracker,
		Logger:     zerolog.Nop(),
		Out:        e.out,
	})
}

func result(title, author string, year int, doi string) types.SearchResult {
	return types.SearchResult{
		Title:   title,
		Authors: []string{author},
		Year:    types.IntPtr(year),
		DOI:     doi,
		Source:  "arxiv",
		URL:     "https://arxiv.org/abs/" + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
	}
}

func tenPapers() []types.SearchResult {
	var out []types.SearchResult
	for i := range 10 {
		out = append(out, result(fmt.Sprintf("Paper Number %s", string(rune('A'+i))), fmt.Sprintf("Author%c Person", 'a'+i), 2020+i%5, fmt.Sprintf("10.1/p%d", i)))
	}
	return out
}

func TestSearchWithDeduplication(t *testing.T) {
	e := newEnv(t, []types.SearchResult{
		result("Active Inference Primer", "Karl Friston", 2017, "10.1/x"),
		result("Active Inference: A Primer (preprint)", "Karl Friston", 2017, "https://doi.org/10.1/X"),
		result("Free Energy Principle", "Thomas Parr", 2019, "10.1/y"),
		result("Predictive Coding Networks", "Rafal Bogacz", 2020, ""),
		result("Planning as Inference", "Matthew Botvinick", 2012, "10.1/z"),
	})

	res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{
		Keywords: []string{"active inference"},
		Sources:  []string{"arxiv"},
		Limit:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.PapersFound)
	assert.Equal(t, 4, e.index.Len())

	keys, err := e.bib.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	assert.Equal(t, 4, res.SuccessfulDownloads())
	generated, skipped, failed := res.SummaryCounts()
	assert.Equal(t, 4, generated)
	assert.Zero(t, skipped)
	assert.Zero(t, failed)
	assert.Equal(t, 100.0, res.CompletionPercentage)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Interrupted)

	for _, entry := range e.index.ListEntries() {
		assert.True(t, entry.HasPDF(), entry.CitationKey)
		assert.FileExists(t, e.cfg.Paths.SummaryPath(entry.CitationKey))
	}
}

func TestFailedDownloadSuppression(t *testing.T) {
	for _, retry := range []bool{false, true} {
		t.Run(fmt.Sprintf("retry=%v", retry), func(t *testing.T) {
			e := newEnv(t, []types.SearchResult{result("Foo Bar", "John Smith", 2023, "")})
			require.NoError(t, e.ledger.SaveFailed(types.DownloadResult{
				CitationKey:   "smith2023foo",
				FailureReason: types.FailureAccessDenied,
			}, "Foo Bar", "arxiv"))

			res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{
				Keywords:    []string{"foo"},
				RetryFailed: retry,
			})
			require.NoError(t, err)
			require.Len(t, res.Downloads, 1)
			d := res.Downloads[0]
			assert.Equal(t, "smith2023foo", d.CitationKey)

			if !retry {
				assert.False(t, e.dl.called("smith2023foo"))
				assert.Equal(t, types.FailureSkippedPreviousFailure, d.FailureReason)
				assert.True(t, d.Suppressed())
				assert.Contains(t, e.out.String(), "skipped: smith2023foo (previous failure: access_denied)")
				assert.True(t, e.ledger.IsFailed("smith2023foo"))
				return
			}
			assert.True(t, e.dl.called("smith2023foo"))
			assert.True(t, d.Success)
			assert.False(t, e.ledger.IsFailed("smith2023foo"))
		})
	}
}

func TestPlacedPDFClearsLedgerEntry(t *testing.T) {
	e := newEnv(t, []types.SearchResult{result("Foo Bar", "John Smith", 2023, "")})
	require.NoError(t, e.ledger.SaveFailed(types.DownloadResult{
		CitationKey:   "smith2023foo",
		FailureReason: types.FailureAccessDenied,
	}, "Foo Bar", "arxiv"))
	placed := filepath.Join(e.cfg.Paths.DownloadDir, "smith2023foo.pdf")
	require.NoError(t, os.MkdirAll(e.cfg.Paths.DownloadDir, 0o755))
	require.NoError(t, os.WriteFile(placed, append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2048)...), 0o644))

	res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{Keywords: []string{"foo"}})
	require.NoError(t, err)
	require.Len(t, res.Downloads, 1)
	d := res.Downloads[0]
	assert.True(t, d.Success)
	assert.True(t, d.AlreadyExisted)
	assert.Equal(t, placed, d.PDFPath)
	assert.False(t, e.dl.called("smith2023foo"))
	assert.False(t, e.ledger.IsFailed("smith2023foo"))

	entry, ok := e.index.GetEntry("smith2023foo")
	require.True(t, ok)
	assert.True(t, entry.HasPDF())
}

func TestDownloadFailureRecordedInLedger(t *testing.T) {
	e := newEnv(t, []types.SearchResult{result("Foo Bar", "John Smith", 2023, "")})
	e.dl.fail["smith2023foo"] = types.FailureAccessDenied

	res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{Keywords: []string{"foo"}})
	require.NoError(t, err)
	require.Len(t, res.Downloads, 1)
	assert.False(t, res.Downloads[0].Success)

	f, ok := e.ledger.Get("smith2023foo")
	require.True(t, ok)
	assert.Equal(t, types.FailureAccessDenied, f.FailureReason)
	assert.Equal(t, "Foo Bar", f.Title)
	assert.Empty(t, res.Summaries)
	assert.Zero(t, e.llm.callCount())
}

func TestSummarizeExistingSkipsExistingSummary(t *testing.T) {
	e := newEnv(t, nil)
	key, _, err := e.index.AddEntry(library.AddParams{Title: "Bar Baz", Authors: []string{"Ann Jones"}, Year: types.IntPtr(2024)})
	require.NoError(t, err)
	require.Equal(t, "jones2024bar", key)
	pdf := filepath.Join(e.cfg.Paths.DownloadDir, key+".pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(pdf), 0o755))
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, e.index.UpdatePDFPath(key, pdf))

	summaryPath := e.cfg.Paths.SummaryPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(summaryPath), 0o755))
	require.NoError(t, os.WriteFile(summaryPath, []byte("# Already"), 0o644))

	res, err := e.orchestrator().SummarizeExisting(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	s := res.Summaries[0]
	assert.True(t, s.Skipped)
	assert.True(t, s.Success)
	assert.Equal(t, summaryPath, s.SummaryPath)
	assert.Zero(t, e.llm.callCount())

	entry, ok := e.tracker.Entry(key)
	require.True(t, ok)
	assert.Equal(t, types.StatusSummarized, entry.Status)
}

func TestSummarizeExistingCountsSummaryWithoutPDF(t *testing.T) {
	e := newEnv(t, nil)
	key, _, err := e.index.AddEntry(library.AddParams{Title: "Bar Baz", Authors: []string{"Ann Jones"}, Year: types.IntPtr(2024)})
	require.NoError(t, err)
	bare, _, err := e.index.AddEntry(library.AddParams{Title: "Neither File Present", Authors: []string{"Bo Lee"}, Year: types.IntPtr(2021)})
	require.NoError(t, err)

	summaryPath := e.cfg.Paths.SummaryPath(key)
	require.NoError(t, os.MkdirAll(filepath.Dir(summaryPath), 0o755))
	require.NoError(t, os.WriteFile(summaryPath, []byte("# Already"), 0o644))

	res, err := e.orchestrator().SummarizeExisting(context.Background(), Request{})
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, key, res.Summaries[0].CitationKey)
	assert.True(t, res.Summaries[0].Skipped)
	_, skipped, _ := res.SummaryCounts()
	assert.Equal(t, 1, skipped)
	assert.Zero(t, e.llm.callCount())

	entry, ok := e.tracker.Entry(key)
	require.True(t, ok)
	assert.Equal(t, types.StatusSummarized, entry.Status)
	_, tracked := e.tracker.Entry(bare)
	assert.False(t, tracked)
}

func TestCrashAndResume(t *testing.T) {
	e := newEnv(t, tenPapers())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.llm.cancelAfter = 4
	e.llm.cancel = cancel

	req := Request{Keywords: []string{"papers"}, MaxParallelSummaries: 1}
	first, err := e.orchestrator().ExecuteSearchAndSummarize(ctx, req)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, first.Interrupted)
	assert.Equal(t, 10, first.SuccessfulDownloads())
	generated, _, _ := first.SummaryCounts()
	assert.Equal(t, 4, generated)
	assert.Equal(t, 1, e.src.calls)

	// A fresh tracker reads the state the interrupted run persisted.
	e.tracker = progress.New(e.cfg.Paths.ProgressFile, zerolog.Nop())
	e.llm.cancelAfter = 0
	callsBefore := e.llm.callCount()

	req.ResumeExisting = true
	second, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 1, e.src.calls, "resume must not search again")

	generated, skipped, failed := second.SummaryCounts()
	assert.Equal(t, 4, skipped)
	assert.Equal(t, 6, generated)
	assert.Zero(t, failed)
	assert.Equal(t, 6, e.llm.callCount()-callsBefore)
	assert.Equal(t, 100.0, second.CompletionPercentage)
}

func TestRegeneratesMissingSummary(t *testing.T) {
	e := newEnv(t, []types.SearchResult{result("Foo Bar", "John Smith", 2023, "")})
	_, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{Keywords: []string{"foo"}})
	require.NoError(t, err)
	require.NoError(t, os.Remove(e.cfg.Paths.SummaryPath("smith2023foo")))

	res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{ResumeExisting: true})
	require.NoError(t, err)
	generated, skipped, _ := res.SummaryCounts()
	assert.Equal(t, 1, generated)
	assert.Zero(t, skipped)
	assert.FileExists(t, e.cfg.Paths.SummaryPath("smith2023foo"))
}

func TestLLMUnavailableSkips(t *testing.T) {
	e := newEnv(t, []types.SearchResult{result("Foo Bar", "John Smith", 2023, "")})
	e.llm.pingErr = fmt.Errorf("ollama not reachable: %w", llm.ErrUnavailable)

	res, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{Keywords: []string{"foo"}})
	require.ErrorIs(t, err, ErrSkipped)
	assert.Equal(t, 1, res.SuccessfulDownloads())
	assert.Empty(t, res.Summaries)
	assert.Zero(t, e.llm.callCount())
}

func TestNoKeywordsIsConfigurationError(t *testing.T) {
	e := newEnv(t, nil)
	_, err := e.orchestrator().ExecuteSearchAndSummarize(context.Background(), Request{})
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = e.orchestrator().SearchOnly(context.Background(), Request{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSearchOnlySavesQueryAndReloads(t *testing.T) {
	e := newEnv(t, tenPapers()[:3])
	queryPath := filepath.Join(t.TempDir(), "query.yaml")

	res, err := e.orchestrator().SearchOnly(context.Background(), Request{Keywords: []string{"papers"}, SaveQuery: queryPath})
	require.NoError(t, err)
	assert.Equal(t, 3, res.PapersFound)
	assert.Equal(t, 3, e.index.Len())
	assert.Empty(t, e.dl.calls)

	other := newEnv(t, nil)
	res, err = other.orchestrator().SearchOnly(context.Background(), Request{FromQuery: queryPath})
	require.NoError(t, err)
	assert.Equal(t, []string{"papers"}, res.Keywords)
	assert.Equal(t, 3, other.index.Len())
	assert.Zero(t, other.src.calls)
}

func TestDownloadOnlyAndCleanup(t *testing.T) {
	e := newEnv(t, tenPapers()[:3])
	o := e.orchestrator()
	_, err := o.SearchOnly(context.Background(), Request{Keywords: []string{"papers"}})
	require.NoError(t, err)

	keys := make([]string, 0, 3)
	for _, entry := range e.index.ListEntries() {
		keys = append(keys, entry.CitationKey)
	}
	e.dl.fail[keys[0]] = types.FailureNotFound

	res, err := o.DownloadOnly(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessfulDownloads())
	assert.True(t, e.ledger.IsFailed(keys[0]))

	removed, err := o.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, e.index.Len())
}

func TestExtractTextAndCatalog(t *testing.T) {
	e := newEnv(t, tenPapers()[:2])
	o := e.orchestrator()
	_, err := o.SearchOnly(context.Background(), Request{Keywords: []string{"papers"}})
	require.NoError(t, err)
	_, err = o.DownloadOnly(context.Background(), Request{})
	require.NoError(t, err)

	batch, err := o.ExtractText(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Extracted)
	assert.Contains(t, e.out.String(), "Extraction summary")

	sum, err := o.ExportCatalog(context.Background(), filepath.Join(e.cfg.Paths.DataDir, "library.db"))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
}

func TestClearOperations(t *testing.T) {
	e := newEnv(t, tenPapers()[:2])
	o := e.orchestrator()
	_, err := o.ExecuteSearchAndSummarize(context.Background(), Request{Keywords: []string{"papers"}})
	require.NoError(t, err)

	n, err := o.ClearSummaries()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = o.ClearPDFs()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, entry := range e.index.ListEntries() {
		assert.False(t, entry.HasPDF())
	}

	require.NoError(t, o.ClearLibrary())
	assert.Zero(t, e.index.Len())
	assert.NoFileExists(t, e.cfg.Paths.BibTeXFile)
	assert.NoFileExists(t, e.cfg.Paths.ProgressFile)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		res  types.SummarizationResult
		want string
	}{
		{"hallucination wins", types.SummarizationResult{ErrorClass: summarize.ClassValidation, ValidationErrors: []string{
			summarize.MsgRepetition + ` "a b c d" appears 5 times`, summarize.MsgHallucinated + `: "Other"`,
		}}, CategoryHallucination},
		{"repetition", types.SummarizationResult{ErrorClass: summarize.ClassValidation, ValidationErrors: []string{
			summarize.MsgWordCount + ": 10 words", summarize.MsgRepetition + ` "a b c d" appears 5 times`,
		}}, CategoryRepetition},
		{"title mismatch", types.SummarizationResult{ErrorClass: summarize.ClassValidation, ValidationErrors: []string{
			summarize.MsgTitleMissing + `: "X"`,
		}}, CategoryTitleMismatch},
		{"short only", types.SummarizationResult{ErrorClass: summarize.ClassValidation, ValidationErrors: []string{
			summarize.MsgWordCount + ": 10 words",
		}}, CategoryOther},
		{"connection", types.SummarizationResult{ErrorClass: string(llm.ClassConnection)}, CategoryLLMConnection},
		{"timeout", types.SummarizationResult{ErrorClass: string(llm.ClassTimeout)}, CategoryTimeout},
		{"context", types.SummarizationResult{ErrorClass: string(llm.ClassContextLimit)}, CategoryContextLimit},
		{"pdf", types.SummarizationResult{ErrorClass: summarize.ClassPDFExtraction}, CategoryPDFExtraction},
		{"empty", types.SummarizationResult{ErrorClass: summarize.ClassEmpty}, CategoryEmpty},
		{"rate", types.SummarizationResult{ErrorClass: string(llm.ClassRate)}, CategoryOther},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Categorize(tc.res))
		})
	}
}

func TestReport(t *testing.T) {
	res := newResult()
	res.RunID = "run-1"
	res.Keywords = []string{"a", "b"}
	res.PapersFound = 3
	res.addSummary(types.SummarizationResult{Success: true})
	res.addSummary(types.SummarizationResult{Success: true, Skipped: true})
	res.addSummary(types.SummarizationResult{ErrorClass: string(llm.ClassTimeout)})
	res.addSummary(types.SummarizationResult{ErrorClass: summarize.ClassCancelled})
	res.Interrupted = true

	var buf bytes.Buffer
	res.Report(&buf)
	out := buf.String()
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "papers found: 3")
	assert.Contains(t, out, "1 generated, 1 skipped, 2 failed")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "--resume")
	assert.Equal(t, map[string]int{CategoryTimeout: 1}, res.FailureCategories)
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrSkipped, ErrInterrupted))
	assert.False(t, errors.Is(ErrConfiguration, ErrSkipped))
}
