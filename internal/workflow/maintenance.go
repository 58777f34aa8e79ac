// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/pdiddy/literature-engine/internal/catalog"
	"github.com/pdiddy/literature-engine/internal/fsutil"
)

// Cleanup removes library entries whose PDF is missing and returns how
// many were removed.
func (o *Orchestrator) Cleanup() (int, error) {
	n, err := o.opts.Index.RemoveEntriesWithoutPDF()
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(o.out, "Removed %d entries without a PDF (%d remain)\n", n, o.opts.Index.Len())
	return n, nil
}

// ClearPDFs deletes every downloaded PDF and resets the recorded paths.
func (o *Orchestrator) ClearPDFs() (int, error) {
	n, err := removeMatching(o.opts.Config.Paths.DownloadDir, "*.pdf")
	if err != nil {
		return n, err
	}
	if err := o.opts.Index.ClearPDFPaths(); err != nil {
		return n, err
	}
	fmt.Fprintf(o.out, "Deleted %d PDFs\n", n)
	return n, nil
}

// ClearSummaries deletes every generated summary.
func (o *Orchestrator) ClearSummaries() (int, error) {
	n, err := removeMatching(o.opts.Config.Paths.SummariesDir, "*_summary.md")
	if err != nil {
		return n, err
	}
	fmt.Fprintf(o.out, "Deleted %d summaries\n", n)
	return n, nil
}

// ClearLibrary empties the index, the BibTeX file and the failed-download
// ledger, and archives the progress run. PDFs, texts and summaries stay on
// disk.
func (o *Orchestrator) ClearLibrary() error {
	if err := o.opts.Index.Clear(); err != nil {
		return err
	}
	if o.opts.BibTeX != nil {
		if err := o.opts.BibTeX.Remove(); err != nil {
			return fmt.Errorf("removing BibTeX file: %w", err)
		}
	}
	if err := o.opts.Ledger.Clear(); err != nil {
		return err
	}
	if _, err := o.opts.Progress.ArchiveProgress(); err != nil {
		return err
	}
	fmt.Fprintln(o.out, "Library cleared")
	return nil
}

// ExportCatalog mirrors the library and summary status into the SQLite
// catalog at path.
func (o *Orchestrator) ExportCatalog(ctx context.Context, path string) (catalog.SyncSummary, error) {
	c, err := catalog.Open(path)
	if err != nil {
		return catalog.SyncSummary{}, err
	}
	defer c.Close()

	hasSummary := func(key string) bool {
		return fsutil.Exists(o.opts.Config.Paths.SummaryPath(key))
	}
	sum, err := c.Sync(ctx, o.opts.Index.ListEntries(), hasSummary)
	if err != nil {
		return sum, err
	}
	fmt.Fprintf(o.out, "Catalog %s: %d inserted, %d updated, %d removed\n", path, sum.Inserted, sum.Updated, sum.Removed)
	return sum, nil
}

func removeMatching(dir, pattern string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return n, fmt.Errorf("removing %s: %w", m, err)
		}
		n++
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
