// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/literature-engine/internal/fsutil"
	"github.com/pdiddy/literature-engine/internal/workflow"
)

// pipelineFlags are the mutually exclusive pipeline operations.
var pipelineFlags = []string{"search", "search-only", "download-only", "extract-text", "summarize"}

// maintenanceFlags run before the pipeline operation, in this order.
var maintenanceFlags = []string{"clear-library", "clear-pdfs", "clear-summaries", "cleanup"}

func runRoot(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	var op string
	for _, name := range pipelineFlags {
		if on, _ := f.GetBool(name); on {
			if op != "" {
				return fmt.Errorf("%w: --%s and --%s cannot be combined", workflow.ErrConfiguration, op, name)
			}
			op = name
		}
	}
	var maintenance []string
	for _, name := range maintenanceFlags {
		if on, _ := f.GetBool(name); on {
			maintenance = append(maintenance, name)
		}
	}
	exportCatalog, _ := f.GetBool("export-catalog")
	stats, _ := f.GetBool("stats")
	if op == "" && len(maintenance) == 0 && !exportCatalog && !stats {
		return cmd.Help()
	}

	assumeYes, _ := f.GetBool("yes")
	p := newPrompter(os.Stdin, cmd.OutOrStdout(), assumeYes)
	withLLM := op == "search" || op == "summarize"

	a, err := newApp(cmd.Context(), cmd.OutOrStdout(), withLLM)
	if err != nil {
		return err
	}
	defer a.close()

	for _, name := range maintenance {
		if err := a.runMaintenance(name, p); err != nil {
			return err
		}
	}

	if op != "" {
		req, err := a.buildRequest(cmd, op, p)
		if err != nil {
			return err
		}
		err = a.runPipeline(cmd, op, req)
		a.logResult(op, err)
		if err != nil {
			return err
		}
	}

	if exportCatalog {
		if err := a.exportCatalog(cmd.Context()); err != nil {
			return err
		}
	}
	if stats {
		return a.printStats(cmd.Context())
	}
	return nil
}

// buildRequest assembles the pipeline request from flags. An explicit
// --resume adopts the saved run; otherwise an interactive session is
// offered it and a non-interactive one starts fresh. Keywords are prompted
// for when a search has neither keywords nor a run to resume.
func (a *app) buildRequest(cmd *cobra.Command, op string, p *prompter) (workflow.Request, error) {
	f := cmd.Flags()
	raw, _ := f.GetString("keywords")
	limit, _ := f.GetInt("limit")
	sources, _ := f.GetStringSlice("sources")
	resume, _ := f.GetBool("resume")
	retry, _ := f.GetBool("retry-failed")
	summaries, _ := f.GetInt("max-parallel-summaries")
	downloads, _ := f.GetInt("max-parallel-downloads")
	saveQuery, _ := f.GetString("save-query")
	fromQuery, _ := f.GetString("from-query")

	if limit < 0 {
		return workflow.Request{}, fmt.Errorf("%w: --limit must not be negative", workflow.ErrConfiguration)
	}
	req := workflow.Request{
		Keywords:             parseKeywords(raw),
		Limit:                limit,
		Sources:              sources,
		MaxParallelDownloads: downloads,
		MaxParallelSummaries: summaries,
		RetryFailed:          retry,
		SaveQuery:            saveQuery,
		FromQuery:            fromQuery,
	}

	if op == "search" || op == "summarize" {
		req.ResumeExisting = resume
		if !resume && !p.assumeYes {
			if run, err := a.tracker.LoadExistingRun(); err != nil {
				return req, err
			} else if run != nil {
				q := fmt.Sprintf("Resume run %s (%d papers, %.1f%% complete)?", run.RunID, len(run.Entries), run.CompletionPercentage())
				req.ResumeExisting = p.confirm(q, true)
			}
		}
	}

	if (op == "search" || op == "search-only") && len(req.Keywords) == 0 && req.FromQuery == "" {
		resuming := req.ResumeExisting && fsutil.Exists(a.cfg.Paths.ProgressFile)
		if !resuming {
			req.Keywords = p.keywords()
		}
	}
	return req, nil
}

// runPipeline executes one pipeline operation and prints its report.
func (a *app) runPipeline(cmd *cobra.Command, op string, req workflow.Request) error {
	ctx := cmd.Context()
	var (
		res workflow.WorkflowResult
		err error
	)
	switch op {
	case "search":
		res, err = a.orch.ExecuteSearchAndSummarize(ctx, req)
	case "search-only":
		res, err = a.orch.SearchOnly(ctx, req)
	case "download-only":
		res, err = a.orch.DownloadOnly(ctx, req)
	case "extract-text":
		workers := max(req.MaxParallelDownloads, a.cfg.Download.MaxParallel)
		_, err = a.orch.ExtractText(ctx, workers)
		return err
	case "summarize":
		res, err = a.orch.SummarizeExisting(ctx, req)
	}
	res.Report(a.out)
	return err
}
