// Package main provides the entry point for the corpusledger CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/config"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/ledger"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/log"
)

// NewRootCmd creates the root command for corpusledger.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpusledger",
		Short: "Crawl ledger and deduplication state for corpus pipelines",
		Long: `corpusledger manages the durable crawl ledger shared by corpus ingestion
pipelines: one record per discovered URL, its lifecycle state, dedup
pointers, daily quotas, and pipeline-run bookkeeping.

The ledger runs in one of two profiles:
- sqlite (default): embedded single-writer store under the XDG data dir
- postgres: networked multi-writer store for concurrent pipeline workers`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .corpusledger in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewCleanupCmd())
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a structured logger with secret masking based on
// the verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// loadConfig resolves the effective configuration: defaults, layered with
// the config file when one is found. An explicitly specified file that
// does not exist is an error; a missing default file is not.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicitPath, err := cmd.Flags().GetString("config")
	if err != nil {
		explicitPath, _ = cmd.Root().PersistentFlags().GetString("config")
	}

	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return config.NewConfig(), nil
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// openBackend opens the ledger profile selected by the configuration.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		opts := ledger.DefaultSQLiteOptions()
		opts.Logger = logger
		return ledger.OpenSQLite(cfg.DataDir, opts)
	case config.BackendPostgres:
		return ledger.OpenPostgres(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown backend profile: %s", cfg.Backend)
	}
}
