// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxLandingBytes bounds how much of an HTML page is parsed.
const maxLandingBytes = 2 << 20

// LandingPDFLinks extracts candidate PDF links from a landing page:
// citation_pdf_url meta tags first, then anchors whose path ends in .pdf.
// Relative links resolve against base. Duplicates are dropped.
func LandingPDFLinks(base *url.URL, body io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, maxLandingBytes))
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	add := func(href string) {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		abs := u.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}

	doc.Find(`meta[name="citation_pdf_url"], meta[property="citation_pdf_url"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if looksLikePDF(href) {
			add(href)
		}
	})
	return links, nil
}
