// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the literature-engine CLI.
//
// The root command runs one pipeline operation selected by flag (--search,
// --search-only, --download-only, --extract-text, --summarize) after any
// requested maintenance (--clear-*, --cleanup). --export-catalog and --stats
// may be combined with either.
package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/literature-engine/internal/config"
	"github.com/pdiddy/literature-engine/internal/secrets"
	"github.com/pdiddy/literature-engine/internal/workflow"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets secrets.Set

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitSkipped = 2
)

// rootCmd is the base command for the literature-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "literature-engine",
	Short: "Search, download and summarize scientific literature",
	Long: `literature-engine searches bibliographic APIs (arXiv, Semantic Scholar,
Crossref, OpenAlex) for keywords, keeps a deduplicated library with a BibTeX
file, downloads open-access PDFs, and writes LLM summaries of each paper.

State lives under the data directory and every step is resumable: papers
with a PDF are not downloaded again, papers with a summary are not
summarized again, and an interrupted run continues with --resume.`,
	Example: `  literature-engine --search --keywords '"active inference", free energy' --limit 10
  literature-engine --summarize --resume
  literature-engine --stats`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", slices.Sorted(maps.Keys(s)))
		}
		return nil
	},
	RunE: runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./literature-engine.yaml or ~/.config/literature-engine/config.yaml)")
	pf.String("data-dir", "", "data directory (default: data)")
	pf.String("secrets-dir", ".secrets", "directory of secret files")

	f := rootCmd.Flags()
	f.Bool("search", false, "search, download and summarize (the full pipeline)")
	f.Bool("search-only", false, "search and update the library without downloading")
	f.Bool("download-only", false, "download missing PDFs for library entries")
	f.Bool("extract-text", false, "extract text for library entries that have a PDF")
	f.Bool("summarize", false, "summarize library entries that have no summary")
	f.Bool("cleanup", false, "remove library entries without a PDF")
	f.Bool("clear-pdfs", false, "delete all downloaded PDFs")
	f.Bool("clear-summaries", false, "delete all summaries")
	f.Bool("clear-library", false, "empty the library index, BibTeX file and failed-download ledger")
	f.Bool("retry-failed", false, "retry papers whose download or summary failed before")
	f.String("keywords", "", `comma-separated keywords; quote multi-word keywords containing commas ("a, b", c)`)
	f.Int("limit", 0, "results per source per keyword (default from config)")
	f.StringSlice("sources", nil, "sources to search (default from config)")
	f.Bool("resume", false, "resume the saved summarization run without asking")
	f.Int("max-parallel-summaries", 0, "summarization workers (default from config)")
	f.Int("max-parallel-downloads", 0, "download workers (default from config)")
	f.Bool("export-catalog", false, "write the library to the SQLite catalog")
	f.Bool("stats", false, "print library statistics")
	f.String("save-query", "", "write search results to a YAML query file")
	f.String("from-query", "", "load search results from a YAML query file instead of searching")
	f.BoolP("yes", "y", false, "non-interactive: never prompt, assume yes for confirmations")

	_ = viper.BindPFlag(config.KeyDataDir, pf.Lookup("data-dir"))
}

func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load(".env")
	config.SetDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("literature-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "literature-engine"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, workflow.ErrSkipped):
		return exitSkipped
	default:
		return exitFailure
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}
