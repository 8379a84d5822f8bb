package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/config"
)

//go:embed templates/corpusledger.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new corpusledger configuration file",
		Long: `Init creates a new .corpusledger configuration file in the current
directory.

The generated file includes:
- The storage profile selection (sqlite or postgres)
- Commented connection-pool settings for the networked profile
- Deduplication engine tuning with documentation

Examples:
  # Create .corpusledger in current directory
  corpusledger init

  # Create config file at a specific path
  corpusledger init -o myconfig.yaml

  # Force overwrite existing file
  corpusledger init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/corpusledger.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nEdit this file to configure:")
	fmt.Fprintln(cmd.OutOrStdout(), "  - The storage profile (sqlite or postgres)")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Connection pool bounds for the networked profile")
	fmt.Fprintln(cmd.OutOrStdout(), "  - Near-duplicate detection tuning")

	return nil
}
