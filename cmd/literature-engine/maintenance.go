// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/pdiddy/literature-engine/internal/catalog"
	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/internal/search"
)

// runMaintenance runs one --clear-* or --cleanup operation. Destructive
// operations ask for confirmation unless --yes is set.
func (a *app) runMaintenance(name string, p *prompter) error {
	var err error
	switch name {
	case "clear-library":
		if !p.confirm("Clear the library index, BibTeX file and failed-download ledger?", false) {
			return nil
		}
		err = a.orch.ClearLibrary()
	case "clear-pdfs":
		if !p.confirm(fmt.Sprintf("Delete every PDF in %s?", a.cfg.Paths.DownloadDir), false) {
			return nil
		}
		_, err = a.orch.ClearPDFs()
	case "clear-summaries":
		if !p.confirm(fmt.Sprintf("Delete every summary in %s?", a.cfg.Paths.SummariesDir), false) {
			return nil
		}
		_, err = a.orch.ClearSummaries()
	case "cleanup":
		_, err = a.orch.Cleanup()
	}
	a.logResult(name, err)
	return err
}

// exportCatalog mirrors the library into the SQLite catalog.
func (a *app) exportCatalog(ctx context.Context) error {
	_, err := a.orch.ExportCatalog(ctx, a.cfg.Paths.CatalogFile)
	return err
}

// printStats writes library, ledger, progress and source health
// statistics. When the catalog exists its per-year and per-source
// breakdowns are added.
func (a *app) printStats(ctx context.Context) error {
	a.index.Stats(a.cfg.Paths).Format(a.out)

	if a.ledger.Len() > 0 {
		byReason := a.ledger.CountByReason()
		fmt.Fprintf(a.out, "Failed downloads:    %d\n", a.ledger.Len())
		for _, reason := range slices.Sorted(maps.Keys(byReason)) {
			fmt.Fprintf(a.out, "  %-24s %d\n", reason, byReason[reason])
		}
	}

	run, err := a.tracker.LoadExistingRun()
	if err != nil {
		return err
	}
	if run != nil {
		fmt.Fprintf(a.out, "Summarization run %s: %d papers, %d summarized, %d failed, %d pending (%.1f%% complete)\n",
			run.RunID, len(run.Entries), run.SuccessfulSummaries(), run.FailedSummaries(),
			run.PendingSummaries(), run.CompletionPercentage())
	}

	search.FormatHealth(a.registry.HealthReport(), a.out)

	if !fsutil.Exists(a.cfg.Paths.CatalogFile) {
		return nil
	}
	c, err := catalog.Open(a.cfg.Paths.CatalogFile)
	if err != nil {
		return err
	}
	defer c.Close()
	byYear, err := c.CountByYear(ctx)
	if err != nil {
		return err
	}
	bySource, err := c.CountBySource(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Catalog %s:\n", c.Path())
	printCounts(a, "by year", byYear)
	printCounts(a, "by source", bySource)
	return nil
}

func printCounts(a *app, label string, counts []catalog.Count) {
	fmt.Fprintf(a.out, "  %s:\n", label)
	for _, c := range counts {
		fmt.Fprintf(a.out, "    %-16s %d\n", c.Key, c.Count)
	}
}
