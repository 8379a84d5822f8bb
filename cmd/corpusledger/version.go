package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Release builds inject these via -ldflags. Plain `go install` builds
// leave them empty and the embedded VCS metadata fills the gaps.
var (
	buildVersion = ""
	buildCommit  = ""
	buildDate    = ""
)

// getVersion resolves the version string shown by --version and the
// version subcommand.
func getVersion() string {
	if buildVersion != "" {
		return buildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// buildDetails resolves the commit hash and build date, falling back to
// the vcs.* build settings in one pass. Commit hashes are shortened to
// seven characters.
func buildDetails() (commitHash, builtAt string) {
	commitHash, builtAt = buildCommit, buildDate
	if commitHash == "" || builtAt == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch {
				case s.Key == "vcs.revision" && commitHash == "":
					commitHash = s.Value
				case s.Key == "vcs.time" && builtAt == "":
					builtAt = s.Value
				}
			}
		}
	}
	if len(commitHash) > 7 {
		commitHash = commitHash[:7]
	}
	if commitHash == "" {
		commitHash = "unknown"
	}
	if builtAt == "" {
		builtAt = "unknown"
	}
	return commitHash, builtAt
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of corpusledger.`,
		Run: func(cmd *cobra.Command, _ []string) {
			commitHash, builtAt := buildDetails()
			fmt.Fprintf(cmd.OutOrStdout(), "corpusledger version %s\n", getVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commitHash)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", builtAt)
		},
	}
}
