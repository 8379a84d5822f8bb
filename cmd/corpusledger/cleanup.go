package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the cleanup command.
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale permanently failed records",
		Long: `Cleanup deletes failed records that have exhausted their retries and
have not been touched for the given retention window.

This is the ledger's only deletion path: processed and duplicate records
are kept indefinitely as audit trail, and transiently failed records are
kept for retry regardless of age.

Examples:
  # Remove permanent failures older than 90 days
  corpusledger cleanup

  # A tighter window
  corpusledger cleanup --days 30`,
		RunE: runCleanupCmd,
	}

	cmd.Flags().IntP("days", "d", 90, "Retention window in days for permanent failures")

	return cmd
}

// runCleanupCmd executes the cleanup command.
func runCleanupCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(getVerboseFlag(cmd))

	days, err := cmd.Flags().GetInt("days")
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

	removed, err := backend.CleanupOldEntries(ctx, days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d permanently failed record(s) older than %d days\n", removed, days)
	return nil
}
