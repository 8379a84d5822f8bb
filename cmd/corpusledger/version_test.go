package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version string resolution.
func TestGetVersion(t *testing.T) {
	t.Parallel()

	if got := getVersion(); got == "" {
		t.Error("expected non-empty version")
	}
}

// TestBuildDetails tests that both fields resolve to something printable
// and the commit hash is shortened.
func TestBuildDetails(t *testing.T) {
	t.Parallel()

	commitHash, builtAt := buildDetails()
	if commitHash == "" {
		t.Error("expected non-empty commit")
	}
	if len(commitHash) > 7 && commitHash != "unknown" {
		t.Errorf("commit = %q, want at most 7 characters", commitHash)
	}
	if builtAt == "" {
		t.Error("expected non-empty build date")
	}
}

// TestVersionCmd tests the version command output.
func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "corpusledger version") {
		t.Errorf("expected version line, got %q", output)
	}
	if !strings.Contains(output, "commit:") {
		t.Errorf("expected commit line, got %q", output)
	}
	if !strings.Contains(output, "built:") {
		t.Errorf("expected build date line, got %q", output)
	}
}
