// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog mirrors the library index into SQLite for ad-hoc queries.
// library.json stays the source of truth; the catalog is rebuilt by Sync.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/literature-engine/pkg/types"
)

// DefaultFile is the catalog filename inside the data directory.
const DefaultFile = "library.db"

// Catalog is a SQLite snapshot of the library.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog database at path and creates the
// schema if it does not exist.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c := &Catalog{db: db, path: path}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return c, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			citation_key TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			year INTEGER,
			doi TEXT,
			source TEXT,
			venue TEXT,
			url TEXT,
			pdf_path TEXT,
			added_date TEXT,
			citation_count INTEGER,
			has_summary INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			citation_key TEXT NOT NULL REFERENCES papers(citation_key) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (citation_key, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_year ON papers(year)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_source ON papers(source)`,
		`CREATE INDEX IF NOT EXISTS idx_authors_name ON authors(name)`,
	}
	for _, stmt := range statements {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SyncSummary holds counts from one Sync.
type SyncSummary struct {
	Inserted int
	Updated  int
	Removed  int
}

// Total returns the number of papers written.
func (s SyncSummary) Total() int {
	return s.Inserted + s.Updated
}

// Sync replaces the catalog contents with entries in one transaction.
// Papers no longer in the library are removed. summaryExists reports
// whether a summary file exists for a citation key; nil means none do.
func (c *Catalog) Sync(ctx context.Context, entries []types.LibraryEntry, summaryExists func(key string) bool) (SyncSummary, error) {
	var summary SyncSummary

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing := make(map[string]bool)
	rows, err := tx.QueryContext(ctx, `SELECT citation_key FROM papers`)
	if err != nil {
		return summary, fmt.Errorf("listing papers: %w", err)
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return summary, fmt.Errorf("scanning key: %w", err)
		}
		existing[key] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return summary, err
	}

	upsert, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (citation_key, title, year, doi, source, venue, url, pdf_path, added_date, citation_count, has_summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(citation_key) DO UPDATE SET
			title=excluded.title, year=excluded.year, doi=excluded.doi,
			source=excluded.source, venue=excluded.venue, url=excluded.url,
			pdf_path=excluded.pdf_path, added_date=excluded.added_date,
			citation_count=excluded.citation_count, has_summary=excluded.has_summary`)
	if err != nil {
		return summary, fmt.Errorf("preparing upsert: %w", err)
	}
	defer upsert.Close()

	insertAuthor, err := tx.PrepareContext(ctx,
		`INSERT INTO authors (citation_key, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing author insert: %w", err)
	}
	defer insertAuthor.Close()

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		hasSummary := summaryExists != nil && summaryExists(e.CitationKey)
		_, err := upsert.ExecContext(ctx,
			e.CitationKey, e.Title, nullInt(e.Year), nullString(e.DOI), e.Source,
			nullString(e.Venue), e.URL, nullString(e.PDFPath), e.AddedDate,
			nullInt(e.CitationCount), hasSummary,
		)
		if err != nil {
			return summary, fmt.Errorf("upserting %s: %w", e.CitationKey, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM authors WHERE citation_key = ?`, e.CitationKey); err != nil {
			return summary, fmt.Errorf("clearing authors of %s: %w", e.CitationKey, err)
		}
		for i, name := range e.Authors {
			if _, err := insertAuthor.ExecContext(ctx, e.CitationKey, i, name); err != nil {
				return summary, fmt.Errorf("inserting author of %s: %w", e.CitationKey, err)
			}
		}

		seen[e.CitationKey] = true
		if existing[e.CitationKey] {
			summary.Updated++
		} else {
			summary.Inserted++
		}
	}

	for key := range existing {
		if seen[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE citation_key = ?`, key); err != nil {
			return summary, fmt.Errorf("removing %s: %w", key, err)
		}
		summary.Removed++
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing: %w", err)
	}
	return summary, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
