package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether zero-count states are shown.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show zero-count states.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	source := report.Source
	if source == "" {
		source = "all sources"
	}

	sb.WriteString("CRAWL LEDGER REPORT\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&sb, "Source:        %s\n", source)
	fmt.Fprintf(&sb, "Generated:     %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Total records: %d\n", report.Stats.TotalRecords)
	fmt.Fprintf(&sb, "Dedup rate:    %.1f%%\n", report.Stats.DedupRate*100)
	fmt.Fprintf(&sb, "Perm failures: %d\n", report.Stats.PermanentFailures)
	sb.WriteString("\n")

	sb.WriteString("Records by state\n")
	sb.WriteString(strings.Repeat("-", 50) + "\n")
	for _, state := range stateOrder {
		count := report.Stats.ByState[state]
		if count == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(&sb, "  %-12s %d\n", state.String(), count)
	}
	sb.WriteString("\n")

	if report.Dedup != nil {
		sb.WriteString("Dedup cascade\n")
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		fmt.Fprintf(&sb, "  %-12s %d\n", "transport", report.Dedup.TransportHits)
		fmt.Fprintf(&sb, "  %-12s %d\n", "file", report.Dedup.FileHits)
		fmt.Fprintf(&sb, "  %-12s %d\n", "exact", report.Dedup.ExactHits)
		fmt.Fprintf(&sb, "  %-12s %d\n", "near", report.Dedup.NearHits)
		fmt.Fprintf(&sb, "  %-12s %d\n", "unique", report.Dedup.Unique)
		sb.WriteString("\n")
	}

	if len(report.Runs) > 0 {
		sb.WriteString("Recent pipeline runs\n")
		sb.WriteString(strings.Repeat("-", 50) + "\n")
		for _, run := range report.Runs {
			end := "-"
			if run.EndTime != nil {
				end = run.EndTime.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&sb, "  %-20s %-10s %s .. %s  processed=%d failed=%d\n",
				run.RunID, run.Status.String(),
				run.StartTime.Format("2006-01-02 15:04"), end,
				run.RecordsProcessed, run.RecordsFailed)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// SummaryLine renders a one-line overview for terse callers.
func SummaryLine(stats *model.Statistics) string {
	return fmt.Sprintf("records=%d processed=%d duplicates=%d failed=%d dedup_rate=%.1f%%",
		stats.TotalRecords,
		stats.ByState[model.StateProcessed],
		stats.ByState[model.StateDuplicate],
		stats.ByState[model.StateFailed],
		stats.DedupRate*100)
}
