// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// Base URLs for candidate reconstruction. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	doiBase      = "https://doi.org/"
)

// arxivDOIPrefix is the DataCite prefix arXiv registers DOIs under.
const arxivDOIPrefix = "10.48550/arxiv."

// arxivIDPattern matches new-style ("2301.07041v2") and old-style
// ("hep-th/9901001") arXiv identifiers.
var arxivIDPattern = regexp.MustCompile(`^(?:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?|[a-z\-]+(?:\.[a-z]{2})?/\d{7}(?:v\d+)?)$`)

// ArxivID normalizes an arXiv identifier, stripping an "arXiv:" prefix.
// It returns "" when s is not an arXiv identifier.
func ArxivID(s string) string {
	m := arxivIDPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return ""
	}
	return m[1]
}

// ArxivIDFromDOI extracts the arXiv ID from an arXiv DataCite DOI
// ("10.48550/arXiv.1706.03762" yields "1706.03762").
func ArxivIDFromDOI(doi string) string {
	d := types.NormalizeDOI(doi)
	if !strings.HasPrefix(d, arxivDOIPrefix) {
		return ""
	}
	return ArxivID(strings.TrimPrefix(d, arxivDOIPrefix))
}

// ArxivIDFromURL extracts the arXiv ID from an arxiv.org abs or pdf URL.
func ArxivIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "arxiv.org") {
		return ""
	}
	for _, prefix := range []string{"/abs/", "/pdf/"} {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			return ArxivID(strings.TrimSuffix(rest, ".pdf"))
		}
	}
	return ""
}

// arxivCandidates returns reconstructed arXiv PDF URLs for a result.
func arxivCandidates(r types.SearchResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range []string{ArxivIDFromDOI(r.DOI), ArxivIDFromURL(r.URL), ArxivIDFromURL(r.PDFURL)} {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, arxivPDFBase+id)
	}
	return out
}

// landingPages returns the pages to parse for PDF links: the result URL
// and the DOI resolver.
func landingPages(r types.SearchResult) []string {
	var out []string
	if r.URL != "" && !looksLikePDF(r.URL) {
		out = append(out, r.URL)
	}
	if doi := types.NormalizeDOI(r.DOI); doi != "" {
		out = append(out, doiBase+doi)
	}
	return out
}

func looksLikePDF(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
