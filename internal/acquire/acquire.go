// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs through a fallback ladder and
// classifies failures for the failed-download ledger.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/internal/httputil"
	"github.com/pdiddy/literature-engine/internal/metrics"
	"github.com/pdiddy/literature-engine/pkg/types"
)

// MinPDFSize is the smallest body accepted as a real PDF.
const MinPDFSize = 1024

// BrowserUserAgent is sent on the retry after an HTTP 403.
const BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// maxLandingLinks caps the links tried from one landing page.
const maxLandingLinks = 5

var pdfMagic = []byte("%PDF-")

// Resolver looks up open-access metadata for a DOI. Unpaywall and OpenAlex
// search sources satisfy it.
type Resolver interface {
	Name() string
	Lookup(ctx context.Context, doi string) (*types.SearchResult, error)
}

// Options configures an Acquirer.
type Options struct {
	Client      *http.Client
	Config      types.DownloadConfig
	DownloadDir string

	// Resolvers are consulted in order for DOI-based PDF URLs.
	Resolvers []Resolver

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Acquirer downloads PDFs to DownloadDir/{citation_key}.pdf. Download is
// safe to call from multiple goroutines for distinct keys.
type Acquirer struct {
	client    *http.Client
	cfg       types.DownloadConfig
	dir       string
	resolvers []Resolver
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// New creates an Acquirer.
func New(opts Options) *Acquirer {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Config.Timeout}
	}
	return &Acquirer{
		client:    client,
		cfg:       opts.Config,
		dir:       opts.DownloadDir,
		resolvers: opts.Resolvers,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// PDFPath returns the destination for key.
func (a *Acquirer) PDFPath(key string) string {
	return filepath.Join(a.dir, key+".pdf")
}

// Existing returns the path of an already downloaded, valid PDF for key.
func (a *Acquirer) Existing(key string) (string, bool) {
	path := a.PDFPath(key)
	if validPDFFile(path) {
		return path, true
	}
	return "", false
}

// attempt tracks one paper's walk down the ladder.
type attempt struct {
	key   string
	dest  string
	tried map[string]bool
	urls  []string
	errs  []error
	links []string
	pages []string
}

// Download walks the fallback ladder for one paper and stops at the first
// URL that yields a valid PDF:
//
//  1. the result's pdf_url
//  2. DOI lookups through the configured resolvers
//  3. arXiv PDF URLs reconstructed from the DOI or URL
//  4. PDF links parsed from landing pages
//
// Download never returns an error; failures are classified in the result.
func (a *Acquirer) Download(ctx context.Context, key string, r types.SearchResult) types.DownloadResult {
	log := a.log.With().Str("citation_key", key).Logger()
	res := a.download(ctx, key, r, log)

	switch {
	case res.AlreadyExisted:
		a.metrics.RecordDownload("already_existed")
	case res.Success:
		a.metrics.RecordDownload("downloaded")
		log.Info().Str("pdf_path", res.PDFPath).Int("attempts", len(res.AttemptedURLs)).Msg("pdf downloaded")
	default:
		a.metrics.RecordDownload(string(res.FailureReason))
		log.Warn().Str("reason", string(res.FailureReason)).Str("error", res.FailureMessage).Msg("pdf download failed")
	}
	return res
}

func (a *Acquirer) download(ctx context.Context, key string, r types.SearchResult, log zerolog.Logger) types.DownloadResult {
	res := types.DownloadResult{CitationKey: key, AttemptedURLs: []string{}}

	if path, ok := a.Existing(key); ok {
		res.Success = true
		res.AlreadyExisted = true
		res.PDFPath = path
		return res
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		res.FailureReason = types.FailureException
		res.FailureMessage = fmt.Sprintf("creating download directory: %v", err)
		return res
	}

	st := &attempt{key: key, dest: a.PDFPath(key), tried: make(map[string]bool)}
	done := func() types.DownloadResult {
		res.AttemptedURLs = append(res.AttemptedURLs, st.urls...)
		res.Success = true
		res.PDFPath = st.dest
		return res
	}

	// Rung 1.
	if a.try(ctx, st, r.PDFURL) {
		return done()
	}

	// Rung 2.
	if doi := types.NormalizeDOI(r.DOI); doi != "" {
		for _, resolver := range a.resolvers {
			if ctx.Err() != nil {
				break
			}
			found, err := resolver.Lookup(ctx, doi)
			if err != nil {
				log.Debug().Err(err).Str("resolver", resolver.Name()).Msg("doi lookup failed")
				continue
			}
			if found == nil {
				continue
			}
			if a.try(ctx, st, found.PDFURL) {
				return done()
			}
			if found.URL != "" && !looksLikePDF(found.URL) {
				st.pages = append(st.pages, found.URL)
			}
		}
	}

	// Rung 3.
	for _, u := range arxivCandidates(r) {
		if a.try(ctx, st, u) {
			return done()
		}
	}

	// Rung 4: links already seen on HTML responses, then landing pages.
	if a.tryLinks(ctx, st) {
		return done()
	}
	for _, page := range append(landingPages(r), st.pages...) {
		if ctx.Err() != nil {
			break
		}
		if a.try(ctx, st, page) {
			return done()
		}
		if a.tryLinks(ctx, st) {
			return done()
		}
	}

	res.AttemptedURLs = append(res.AttemptedURLs, st.urls...)
	if err := ctx.Err(); err != nil {
		res.FailureReason = types.FailureException
		res.FailureMessage = fmt.Sprintf("download cancelled: %v", err)
		return res
	}
	res.FailureReason = classifyAttempts(st.errs)
	if len(st.errs) == 0 {
		res.FailureMessage = "no candidate PDF URL"
	} else {
		res.FailureMessage = st.errs[len(st.errs)-1].Error()
	}
	return res
}

// tryLinks tries pending landing-page links, at most maxLandingLinks per call.
func (a *Acquirer) tryLinks(ctx context.Context, st *attempt) bool {
	links := st.links
	st.links = nil
	if len(links) > maxLandingLinks {
		links = links[:maxLandingLinks]
	}
	for _, link := range links {
		if a.try(ctx, st, link) {
			return true
		}
	}
	return false
}

// try downloads one candidate URL unless it was already attempted.
func (a *Acquirer) try(ctx context.Context, st *attempt, rawURL string) bool {
	u := strings.TrimSpace(rawURL)
	if u == "" || st.tried[u] || ctx.Err() != nil {
		return false
	}
	st.tried[u] = true
	st.urls = append(st.urls, u)

	err := a.fetchWithRetry(ctx, u, st.dest)
	if err == nil {
		return true
	}
	var notPDF *NotPDFError
	if errors.As(err, &notPDF) && len(notPDF.Links) > 0 {
		st.links = append(st.links, notPDF.Links...)
	}
	if !errors.Is(err, context.Canceled) {
		st.errs = append(st.errs, err)
	}
	a.log.Debug().Err(err).Str("citation_key", st.key).Str("url", u).Msg("pdf candidate failed")
	return false
}

// fetchWithRetry retries connection errors and timeouts with exponential
// backoff. HTTP 403 is retried once with the browser User-Agent when
// enabled; other statuses are not retried.
func (a *Acquirer) fetchWithRetry(ctx context.Context, rawURL, dest string) error {
	for try := 0; ; try++ {
		err := a.fetch(ctx, rawURL, dest, a.cfg.UserAgent)

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden &&
			a.cfg.UseBrowserUserAgent && a.cfg.UserAgent != BrowserUserAgent {
			err = a.fetch(ctx, rawURL, dest, BrowserUserAgent)
		}

		if err == nil || !retriable(err) || try >= a.cfg.RetryAttempts {
			return err
		}
		if sleepErr := httputil.Sleep(ctx, httputil.Backoff(a.cfg.RetryDelay, try)); sleepErr != nil {
			return sleepErr
		}
	}
}

// fetch performs one GET and, when the body is a valid PDF, moves it to
// dest through a temp file.
func (a *Acquirer) fetch(ctx context.Context, rawURL, dest, userAgent string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body := bufio.NewReaderSize(resp.Body, 4096)
	head, _ := body.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return notPDF(resp, body)
	}

	var size int64
	err = fsutil.WriteAtomic(dest, func(w io.Writer) error {
		n, err := io.Copy(w, body)
		size = n
		if err != nil {
			return err
		}
		if n < MinPDFSize {
			return &NotPDFError{URL: rawURL, Size: n}
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.log.Debug().Str("url", rawURL).Int64("bytes", size).Msg("pdf saved")
	return nil
}

// notPDF builds the error for a non-PDF body, parsing HTML for links.
func notPDF(resp *http.Response, body io.Reader) error {
	finalURL := resp.Request.URL
	e := &NotPDFError{URL: finalURL.String()}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	br := bufio.NewReader(body)
	peek, _ := br.Peek(512)
	trimmed := bytes.TrimSpace(peek)
	if strings.Contains(ct, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		e.HTML = true
		if links, err := LandingPDFLinks(finalURL, br); err == nil {
			e.Links = links
		}
	}
	return e
}

// validPDFFile reports whether path holds at least MinPDFSize bytes
// beginning with the PDF magic.
func validPDFFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() < MinPDFSize {
		return false
	}
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, pdfMagic)
}

// BatchResult tallies a batch of downloads.
type BatchResult struct {
	Downloaded int
	Existing   int
	Suppressed int
	Failed     int
	Results    []types.DownloadResult
	Duration   time.Duration
}

// Add records one result.
func (b *BatchResult) Add(r types.DownloadResult) {
	b.Results = append(b.Results, r)
	switch {
	case r.AlreadyExisted:
		b.Existing++
	case r.Success:
		b.Downloaded++
	case r.Suppressed():
		b.Suppressed++
	default:
		b.Failed++
	}
}

// Total returns the number of papers processed.
func (b BatchResult) Total() int {
	return b.Downloaded + b.Existing + b.Suppressed + b.Failed
}

// HasFailures reports whether any paper failed.
func (b BatchResult) HasFailures() bool {
	return b.Failed > 0
}

// ByReason tallies failures by reason.
func (b BatchResult) ByReason() map[types.FailureReason]int {
	counts := make(map[types.FailureReason]int)
	for _, r := range b.Results {
		if r.Failed() {
			counts[r.FailureReason]++
		}
	}
	return counts
}

// Report writes one progress line for r.
func Report(w io.Writer, r types.DownloadResult) {
	switch {
	case r.AlreadyExisted:
		fmt.Fprintf(w, "skipped: %s (already exists)\n", r.CitationKey)
	case r.Success:
		fmt.Fprintf(w, "downloaded: %s\n", r.CitationKey)
	case r.Suppressed():
		fmt.Fprintf(w, "skipped: %s (previous failure: %s)\n", r.CitationKey, r.FailureMessage)
	default:
		fmt.Fprintf(w, "failed:  %s (%s: %s)\n", r.CitationKey, r.FailureReason, r.FailureMessage)
	}
}

// Summary writes the batch totals.
func (b BatchResult) Summary(w io.Writer) {
	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d already present, %d suppressed, %d failed (total: %d)\n",
		b.Downloaded, b.Existing, b.Suppressed, b.Failed, b.Total())
}
