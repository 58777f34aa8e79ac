// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/literature-engine/internal/fsutil"
)

// Paper is one catalog row with its authors in order.
type Paper struct {
	CitationKey   string   `json:"citation_key" yaml:"citation_key"`
	Title         string   `json:"title" yaml:"title"`
	Authors       []string `json:"authors" yaml:"authors"`
	Year          *int     `json:"year,omitempty" yaml:"year,omitempty"`
	DOI           string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	Source        string   `json:"source" yaml:"source"`
	Venue         string   `json:"venue,omitempty" yaml:"venue,omitempty"`
	PDFPath       string   `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	CitationCount *int     `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	HasSummary    bool     `json:"has_summary" yaml:"has_summary"`
}

// QueryOptions filters catalog queries. Zero values match everything.
type QueryOptions struct {
	// Title matches a case-insensitive substring of the title.
	Title string

	// Author matches a case-insensitive substring of any author name.
	Author string

	Source   string
	YearFrom int
	YearTo   int

	// MissingPDF selects papers without a recorded PDF.
	MissingPDF bool

	// MissingSummary selects papers without a summary.
	MissingSummary bool

	Limit int
}

// Query returns papers matching opts ordered by year (newest first), then
// citation key.
func (c *Catalog) Query(ctx context.Context, opts QueryOptions) ([]Paper, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT p.citation_key, p.title, p.year, p.doi, p.source, p.venue,
			p.pdf_path, p.citation_count, p.has_summary
		FROM papers p
		WHERE 1=1`)

	if opts.Title != "" {
		qb.WriteString(` AND lower(p.title) LIKE ?`)
		args = append(args, "%"+strings.ToLower(opts.Title)+"%")
	}
	if opts.Author != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM authors a WHERE a.citation_key = p.citation_key AND lower(a.name) LIKE ?)`)
		args = append(args, "%"+strings.ToLower(opts.Author)+"%")
	}
	if opts.Source != "" {
		qb.WriteString(` AND p.source = ?`)
		args = append(args, opts.Source)
	}
	if opts.YearFrom > 0 {
		qb.WriteString(` AND p.year >= ?`)
		args = append(args, opts.YearFrom)
	}
	if opts.YearTo > 0 {
		qb.WriteString(` AND p.year <= ?`)
		args = append(args, opts.YearTo)
	}
	if opts.MissingPDF {
		qb.WriteString(` AND (p.pdf_path IS NULL OR p.pdf_path = '')`)
	}
	if opts.MissingSummary {
		qb.WriteString(` AND p.has_summary = 0`)
	}
	qb.WriteString(` ORDER BY p.year IS NULL, p.year DESC, p.citation_key`)
	if opts.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := c.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		var (
			p               Paper
			year, citations sql.NullInt64
			doi, venue, pdf sql.NullString
		)
		if err := rows.Scan(&p.CitationKey, &p.Title, &year, &doi, &p.Source, &venue,
			&pdf, &citations, &p.HasSummary); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if year.Valid {
			y := int(year.Int64)
			p.Year = &y
		}
		if citations.Valid {
			n := int(citations.Int64)
			p.CitationCount = &n
		}
		p.DOI, p.Venue, p.PDFPath = doi.String, venue.String, pdf.String
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range papers {
		authors, err := c.authors(ctx, papers[i].CitationKey)
		if err != nil {
			return nil, err
		}
		papers[i].Authors = authors
	}
	return papers, nil
}

func (c *Catalog) authors(ctx context.Context, key string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name FROM authors WHERE citation_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()

	authors := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		authors = append(authors, name)
	}
	return authors, rows.Err()
}

// Count is one group of a grouped count.
type Count struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// CountByYear counts papers per publication year. Papers without a year
// are grouped under "unknown". Groups are ordered by year.
func (c *Catalog) CountByYear(ctx context.Context) ([]Count, error) {
	return c.counts(ctx,
		`SELECT COALESCE(CAST(year AS TEXT), 'unknown') AS k, count(*)
		 FROM papers GROUP BY k ORDER BY year IS NULL, year`)
}

// CountBySource counts papers per search source, most frequent first.
func (c *Catalog) CountBySource(ctx context.Context) ([]Count, error) {
	return c.counts(ctx,
		`SELECT source, count(*) AS n FROM papers GROUP BY source ORDER BY n DESC, source`)
}

func (c *Catalog) counts(ctx context.Context, query string) ([]Count, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("counting papers: %w", err)
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var cnt Count
		if err := rows.Scan(&cnt.Key, &cnt.Count); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		out = append(out, cnt)
	}
	return out, rows.Err()
}

// ExportYAML writes every paper matching opts to path.
func (c *Catalog) ExportYAML(ctx context.Context, path string, opts QueryOptions) error {
	papers, err := c.Query(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []Paper{}
	}
	data, err := yaml.Marshal(papers)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data)
}
