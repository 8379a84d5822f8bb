package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/ledger"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger statistics",
		Long: `Stats aggregates the ledger: record counts by state, the dedup rate,
permanent failures, and recent pipeline runs.

Examples:
  # Statistics across all sources
  corpusledger stats

  # Statistics for one source
  corpusledger stats --source wikipedia

  # Machine-readable output
  corpusledger stats --json

  # Markdown report written to a file
  corpusledger stats --markdown -o report.md`,
		RunE: runStatsCmd,
	}

	cmd.Flags().StringP("source", "s", "", "Restrict statistics to one source")
	cmd.Flags().IntP("runs", "r", 10, "Number of recent pipeline runs to include")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(getVerboseFlag(cmd))

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	asMarkdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if asJSON && asMarkdown {
		return fmt.Errorf("--json and --markdown are mutually exclusive")
	}

	source, err := cmd.Flags().GetString("source")
	if err != nil {
		return err
	}
	runLimit, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	stats, err := backend.GetStatistics(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to aggregate statistics: %w", err)
	}
	rep := report.NewReport(source, stats)

	if source != "" && runLimit > 0 {
		runs, err := backend.GetPipelineRunsHistory(ctx, source, runLimit)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("failed to load run history: %w", err)
		}
		rep.Runs = runs
	}

	output, closeOutput, err := resolveOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOutput()

	var w report.Writer
	switch {
	case asJSON:
		w = report.NewJSONWriter(output, report.WithPrettyPrint())
	case asMarkdown:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output)
	}

	if _, err := w.Write(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// resolveOutput returns the report destination: a created file when
// --output is set, stdout otherwise.
func resolveOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
