// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/literature-engine/internal/catalog"
	"github.com/pdiddy/literature-engine/internal/fsutil"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the SQLite catalog of the library",
	Long: `Catalog works with the SQLite snapshot of the library written by
--export-catalog. Use query to list papers matching filters, or export to
write them as YAML.`,
}

// --- query subcommand ---

var catalogQueryCmd = &cobra.Command{
	Use:   "query [title words]",
	Short: "List catalog papers matching filters",
	RunE:  runCatalogQuery,
}

func runCatalogQuery(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	defer c.Close()

	papers, err := c.Query(cmd.Context(), catalogOptsFromFlags(cmd, args))
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatCatalogOutput(cmd.OutOrStdout(), papers, jsonOutput)
}

func formatCatalogOutput(w io.Writer, papers []catalog.Paper, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	}

	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return nil
	}

	fmt.Fprintf(w, "%-24s  %-4s  %-50s  %-3s  %s\n", "Key", "Year", "Title", "PDF", "Summary")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, p := range papers {
		year := "-"
		if p.Year != nil {
			year = fmt.Sprint(*p.Year)
		}
		title := p.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%-24s  %-4s  %-50s  %-3s  %s\n", p.CitationKey, year, title, yesNo(p.PDFPath != ""), yesNo(p.HasSummary))
	}
	fmt.Fprintf(w, "\n%d papers\n", len(papers))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Export catalog papers matching filters to YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCatalog()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ExportYAML(cmd.Context(), args[0], catalogOptsFromFlags(cmd, nil)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
		return nil
	},
}

// --- shared helpers ---

func openCatalog() (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !fsutil.Exists(cfg.Paths.CatalogFile) {
		return nil, fmt.Errorf("no catalog at %s: run with --export-catalog first", cfg.Paths.CatalogFile)
	}
	return catalog.Open(cfg.Paths.CatalogFile)
}

func catalogOptsFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	f := cmd.Flags()
	title, _ := f.GetString("title")
	if title == "" && len(args) > 0 {
		title = strings.Join(args, " ")
	}
	author, _ := f.GetString("author")
	source, _ := f.GetString("source")
	from, _ := f.GetInt("year-from")
	to, _ := f.GetInt("year-to")
	missingPDF, _ := f.GetBool("missing-pdf")
	missingSummary, _ := f.GetBool("missing-summary")
	limit, _ := f.GetInt("limit")

	return catalog.QueryOptions{
		Title:          title,
		Author:         author,
		Source:         source,
		YearFrom:       from,
		YearTo:         to,
		MissingPDF:     missingPDF,
		MissingSummary: missingSummary,
		Limit:          limit,
	}
}

func init() {
	for _, c := range []*cobra.Command{catalogQueryCmd, catalogExportCmd} {
		c.Flags().String("title", "", "filter by title substring")
		c.Flags().String("author", "", "filter by author substring")
		c.Flags().String("source", "", "filter by search source")
		c.Flags().Int("year-from", 0, "earliest publication year")
		c.Flags().Int("year-to", 0, "latest publication year")
		c.Flags().Bool("missing-pdf", false, "only papers without a PDF")
		c.Flags().Bool("missing-summary", false, "only papers without a summary")
		c.Flags().Int("limit", 0, "maximum papers (0 = all)")
	}
	catalogQueryCmd.Flags().Bool("json", false, "output results as JSON")

	catalogCmd.AddCommand(catalogQueryCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
