// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// testOpts keeps retries fast so 429 paths finish quickly.
func testOpts(ts *httptest.Server) Options {
	return Options{
		Client:     ts.Client(),
		UserAgent:  "literature-engine-test",
		Retries:    1,
		RetryDelay: time.Millisecond,
	}
}

// swap points *base at url for the duration of the test.
func swap(t *testing.T, base *string, url string) {
	t.Helper()
	old := *base
	*base = url
	t.Cleanup(func() { *base = old })
}

// --- arXiv ---

const sampleArxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <updated>2023-08-02T00:41:18Z</updated>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on
      recurrent networks.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <published>2023-01-01T00:00:00Z</published>
    <updated>2023-01-01T00:00:00Z</updated>
    <title>Second Paper</title>
    <summary>Short.</summary>
    <author><name>Jane Doe</name></author>
  </entry>
</feed>`

func TestArxivSearch(t *testing.T) {
	var gotQuery, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search_query")
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Query().Get("max_results") != "5" {
			t.Errorf("max_results = %q, want 5", r.URL.Query().Get("max_results"))
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, sampleArxivFeed)
	}))
	defer ts.Close()
	swap(t, &arxivAPIBase, ts.URL)

	src := NewArxiv(testOpts(ts))
	results, err := src.Search(context.Background(), "attention mechanism", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != `all:"attention mechanism"` {
		t.Errorf("search_query = %q", gotQuery)
	}
	if gotUA != "literature-engine-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	r := results[0]
	if r.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Abstract != "The dominant sequence transduction models are based on recurrent networks." {
		t.Errorf("Abstract = %q", r.Abstract)
	}
	if r.URL != "https://arxiv.org/abs/1706.03762" {
		t.Errorf("URL = %q", r.URL)
	}
	if r.PDFURL != "http://arxiv.org/pdf/1706.03762v7" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if r.DOI != "10.48550/arxiv.1706.03762" {
		t.Errorf("DOI = %q", r.DOI)
	}
	if r.Venue != "NeurIPS 2017" {
		t.Errorf("Venue = %q", r.Venue)
	}
	if r.Year == nil || *r.Year != 2017 {
		t.Errorf("Year = %v, want 2017", r.Year)
	}
	if len(r.Authors) != 2 || r.Authors[0] != "Ashish Vaswani" {
		t.Errorf("Authors = %v", r.Authors)
	}
	if r.Source != "arxiv" {
		t.Errorf("Source = %q", r.Source)
	}

	if results[1].PDFURL != "https://arxiv.org/pdf/2301.00001" {
		t.Errorf("fallback PDFURL = %q", results[1].PDFURL)
	}
	if results[1].DOI != "" {
		t.Errorf("DOI = %q, want empty", results[1].DOI)
	}
}

func TestArxivSearchRateLimited(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()
	swap(t, &arxivAPIBase, ts.URL)

	_, err := NewArxiv(testOpts(ts)).Search(context.Background(), "x", 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.Source != "arxiv" {
		t.Errorf("err = %#v, want *RateLimitError for arxiv", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", calls.Load())
	}
}

func TestArxivLookupUnsupported(t *testing.T) {
	src := NewArxiv(Options{})
	if _, err := src.Lookup(context.Background(), "10.1/x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if src.Capabilities().Has(CapLookup) {
		t.Error("arXiv should not advertise lookup")
	}
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"transformers", "all:transformers"},
		{"active  inference", `all:"active inference"`},
	}
	for _, tt := range tests {
		if got := buildArxivQuery(tt.in); got != tt.want {
			t.Errorf("buildArxivQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001"},
		{"https://example.com/paper", ""},
	}
	for _, tt := range tests {
		if got := extractArxivID(tt.in); got != tt.want {
			t.Errorf("extractArxivID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Semantic Scholar ---

const sampleSemanticJSON = `{
  "total": 2,
  "data": [
    {
      "paperId": "abc123",
      "title": "Attention Is All You Need",
      "abstract": "Transformers.",
      "year": 2017,
      "venue": "NeurIPS",
      "url": "https://www.semanticscholar.org/paper/abc123",
      "citationCount": 90000,
      "authors": [{"name": "Ashish Vaswani"}, {"name": ""}],
      "externalIds": {"DOI": "10.5555/3295222", "ArXiv": "1706.03762"},
      "openAccessPdf": null
    },
    {
      "paperId": "def456",
      "title": "",
      "year": 2020
    }
  ]
}`

func TestSemanticScholarSearch(t *testing.T) {
	var gotKey, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPath = r.URL.Path
		if r.URL.Query().Get("query") != "attention" {
			t.Errorf("query = %q", r.URL.Query().Get("query"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleSemanticJSON)
	}))
	defer ts.Close()
	swap(t, &semanticAPIBase, ts.URL)

	opts := testOpts(ts)
	opts.APIKey = "secret"
	results, err := NewSemanticScholar(opts).Search(context.Background(), "attention", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotPath != "/paper/search" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (untitled dropped)", len(results))
	}
	r := results[0]
	if r.DOI != "10.5555/3295222" {
		t.Errorf("DOI = %q", r.DOI)
	}
	if r.PDFURL != "https://arxiv.org/pdf/1706.03762" {
		t.Errorf("PDFURL = %q, want arXiv fallback", r.PDFURL)
	}
	if r.CitationCount == nil || *r.CitationCount != 90000 {
		t.Errorf("CitationCount = %v", r.CitationCount)
	}
	if len(r.Authors) != 1 {
		t.Errorf("Authors = %v, want empty names dropped", r.Authors)
	}
	if r.Source != "semanticscholar" {
		t.Errorf("Source = %q", r.Source)
	}
}

func TestSemanticScholarNoKeyHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Api-Key"]; ok {
			t.Error("X-Api-Key sent without a configured key")
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer ts.Close()
	swap(t, &semanticAPIBase, ts.URL)

	results, err := NewSemanticScholar(testOpts(ts)).Search(context.Background(), "x", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestSemanticScholarLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/paper/DOI:") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"title": "Found", "externalIds": {"DOI": "10.1/found"}, "openAccessPdf": {"url": "https://oa.example/p.pdf"}}`)
	}))
	defer ts.Close()
	swap(t, &semanticAPIBase, ts.URL)

	src := NewSemanticScholar(testOpts(ts))
	r, err := src.Lookup(context.Background(), "https://doi.org/10.1/FOUND")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r == nil || r.PDFURL != "https://oa.example/p.pdf" {
		t.Fatalf("Lookup = %+v", r)
	}

	r, err = src.Lookup(context.Background(), "10.1/missing")
	if err != nil || r != nil {
		t.Errorf("missing DOI: got (%v, %v), want (nil, nil)", r, err)
	}
}

func TestSemanticScholarServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	swap(t, &semanticAPIBase, ts.URL)

	_, err := NewSemanticScholar(testOpts(ts)).Search(context.Background(), "x", 1)
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("err = %v, want HTTP 500", err)
	}
	if errors.Is(err, ErrRateLimited) {
		t.Error("500 should not be a rate limit")
	}
}

func TestSemanticScholarMalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))
	defer ts.Close()
	swap(t, &semanticAPIBase, ts.URL)

	_, err := NewSemanticScholar(testOpts(ts)).Search(context.Background(), "x", 1)
	if err == nil || !strings.Contains(err.Error(), "parsing semanticscholar response") {
		t.Errorf("err = %v", err)
	}
}

// --- OpenAlex ---

const sampleOpenAlexWork = `{
  "id": "https://openalex.org/W1",
  "title": "Deep Residual Learning",
  "doi": "https://doi.org/10.1109/CVPR.2016.90",
  "publication_year": 2016,
  "cited_by_count": 150000,
  "authorships": [{"author": {"display_name": "Kaiming He"}}],
  "abstract_inverted_index": {"Deeper": [0], "networks": [1, 4], "are": [2], "hard.": [3]},
  "primary_location": {"landing_page_url": "https://ieeexplore.ieee.org/document/7780459", "source": {"display_name": "CVPR"}},
  "best_oa_location": {"pdf_url": "https://oa.example/resnet.pdf"}
}`

func TestOpenAlexSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search") != "residual" {
			t.Errorf("search = %q", r.URL.Query().Get("search"))
		}
		if r.URL.Query().Get("mailto") != "me@example.org" {
			t.Errorf("mailto = %q", r.URL.Query().Get("mailto"))
		}
		fmt.Fprintf(w, `{"results": [%s, {"title": ""}]}`, sampleOpenAlexWork)
	}))
	defer ts.Close()
	swap(t, &openAlexAPIBase, ts.URL)

	opts := testOpts(ts)
	opts.Email = "me@example.org"
	results, err := NewOpenAlex(opts).Search(context.Background(), "residual", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.DOI != "10.1109/cvpr.2016.90" {
		t.Errorf("DOI = %q", r.DOI)
	}
	if r.Abstract != "Deeper networks are hard. networks" {
		t.Errorf("Abstract = %q", r.Abstract)
	}
	if r.Venue != "CVPR" {
		t.Errorf("Venue = %q", r.Venue)
	}
	if r.URL != "https://ieeexplore.ieee.org/document/7780459" {
		t.Errorf("URL = %q", r.URL)
	}
	if r.PDFURL != "https://oa.example/resnet.pdf" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
}

func TestOpenAlexLookup(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, sampleOpenAlexWork)
	}))
	defer ts.Close()
	swap(t, &openAlexAPIBase, ts.URL)

	r, err := NewOpenAlex(testOpts(ts)).Lookup(context.Background(), "10.1109/CVPR.2016.90")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotPath != "/https://doi.org/10.1109/cvpr.2016.90" {
		t.Errorf("path = %q", gotPath)
	}
	if r == nil || r.PDFURL != "https://oa.example/resnet.pdf" {
		t.Errorf("Lookup = %+v", r)
	}
}

func TestOpenAlexLookupEmptyDOI(t *testing.T) {
	r, err := NewOpenAlex(Options{}).Lookup(context.Background(), "  ")
	if err != nil || r != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", r, err)
	}
}

func TestReconstructAbstract(t *testing.T) {
	tests := []struct {
		name  string
		index map[string][]int
		want  string
	}{
		{"nil", nil, ""},
		{"empty", map[string][]int{}, ""},
		{"ordered", map[string][]int{"world": {1}, "hello": {0}}, "hello world"},
		{"repeated", map[string][]int{"a": {0, 2}, "b": {1}}, "a b a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconstructAbstract(tt.index); got != tt.want {
				t.Errorf("reconstructAbstract() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- CrossRef ---

func TestCrossrefSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("rows") != "3" {
			t.Errorf("rows = %q", r.URL.Query().Get("rows"))
		}
		fmt.Fprint(w, `{"message": {"items": [
		  {
		    "DOI": "10.1038/nature14539",
		    "title": ["Deep  learning"],
		    "container-title": ["Nature"],
		    "abstract": "<jats:p>Deep learning allows <jats:italic>models</jats:italic>.</jats:p>",
		    "is-referenced-by-count": 50000,
		    "author": [{"given": "Yann", "family": "LeCun"}, {"name": "Consortium"}],
		    "issued": {"date-parts": [[2015, 5, 27]]},
		    "link": [{"URL": "https://x.example/a.xml", "content-type": "text/xml"}, {"URL": "https://x.example/a.pdf", "content-type": "application/pdf"}]
		  },
		  {"DOI": "10.1/untitled", "title": []}
		]}}`)
	}))
	defer ts.Close()
	swap(t, &crossrefAPIBase, ts.URL)

	results, err := NewCrossref(testOpts(ts)).Search(context.Background(), "deep learning", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if r.Title != "Deep learning" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Abstract != "Deep learning allows models ." {
		t.Errorf("Abstract = %q", r.Abstract)
	}
	if r.URL != "https://doi.org/10.1038/nature14539" {
		t.Errorf("URL = %q", r.URL)
	}
	if r.PDFURL != "https://x.example/a.pdf" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if len(r.Authors) != 2 || r.Authors[0] != "Yann LeCun" || r.Authors[1] != "Consortium" {
		t.Errorf("Authors = %v", r.Authors)
	}
	if r.Year == nil || *r.Year != 2015 {
		t.Errorf("Year = %v", r.Year)
	}
}

func TestCrossrefLookupNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	swap(t, &crossrefAPIBase, ts.URL)

	r, err := NewCrossref(testOpts(ts)).Lookup(context.Background(), "10.1/none")
	if err != nil || r != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", r, err)
	}
}

// --- Unpaywall ---

func TestUnpaywallLookup(t *testing.T) {
	var gotEmail string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmail = r.URL.Query().Get("email")
		switch r.URL.Path {
		case "/10.1/open":
			fmt.Fprint(w, `{"doi": "10.1/open", "title": "Open", "year": 2021, "is_oa": true,
			  "best_oa_location": {"url": "https://repo.example/open", "url_for_pdf": "https://repo.example/open.pdf"},
			  "z_authors": [{"given": "Ada", "family": "Lovelace"}]}`)
		case "/10.1/closed":
			fmt.Fprint(w, `{"doi": "10.1/closed", "title": "Closed", "is_oa": false, "best_oa_location": null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	swap(t, &unpaywallAPIBase, ts.URL)

	opts := testOpts(ts)
	opts.Email = "me@example.org"
	src := NewUnpaywall(opts)

	r, err := src.Lookup(context.Background(), "10.1/OPEN")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotEmail != "me@example.org" {
		t.Errorf("email = %q", gotEmail)
	}
	if r.PDFURL != "https://repo.example/open.pdf" {
		t.Errorf("PDFURL = %q", r.PDFURL)
	}
	if len(r.Authors) != 1 || r.Authors[0] != "Ada Lovelace" {
		t.Errorf("Authors = %v", r.Authors)
	}

	r, err = src.Lookup(context.Background(), "10.1/closed")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r.PDFURL != "" {
		t.Errorf("closed PDFURL = %q, want empty", r.PDFURL)
	}

	r, err = src.Lookup(context.Background(), "10.1/unknown")
	if err != nil || r != nil {
		t.Errorf("unknown: got (%v, %v), want (nil, nil)", r, err)
	}
}

func TestUnpaywallSearchUnsupported(t *testing.T) {
	src := NewUnpaywall(Options{Email: "x@y"})
	if _, err := src.Search(context.Background(), "x", 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if src.Capabilities().Has(CapSearch) {
		t.Error("Unpaywall should not advertise search")
	}
}

// --- Health ---

func TestHealthThreshold(t *testing.T) {
	h := NewHealth("s", 2)
	if !h.IsHealthy() {
		t.Fatal("new tracker should be healthy")
	}
	h.RecordFailure()
	if !h.IsHealthy() {
		t.Error("one failure should stay healthy")
	}
	h.RecordFailure()
	if h.IsHealthy() {
		t.Error("two failures should be unhealthy")
	}
	st := h.Status()
	if st.Healthy || st.ConsecutiveFailures != 2 || st.SourceName != "s" {
		t.Errorf("Status = %+v", st)
	}
	h.RecordSuccess()
	if !h.IsHealthy() {
		t.Error("success should reset")
	}
}

func TestHealthDefaultThreshold(t *testing.T) {
	h := NewHealth("s", 0)
	for i := 0; i < DefaultFailureThreshold-1; i++ {
		h.RecordFailure()
	}
	if !h.IsHealthy() {
		t.Error("below default threshold should be healthy")
	}
	h.RecordFailure()
	if h.IsHealthy() {
		t.Error("at default threshold should be unhealthy")
	}
}

func TestCapabilityString(t *testing.T) {
	if got := (CapSearch | CapHealth).String(); !strings.Contains(got, "search") || !strings.Contains(got, "health") {
		t.Errorf("String() = %q", got)
	}
}
