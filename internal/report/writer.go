package report

import (
	"io"
	"time"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/dedup"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// Report bundles everything a ledger status report renders: aggregate
// record statistics, the cascade's per-tier counters, and recent pipeline
// runs.
type Report struct {
	// Source is the source filter the report was computed for.
	// Empty means all sources.
	Source string `json:"source,omitempty"`

	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`

	// Stats holds the ledger aggregates.
	Stats *model.Statistics `json:"stats"`

	// Dedup holds the cascade's per-tier counters for the current
	// process, when available.
	Dedup *dedup.MetricsSnapshot `json:"dedup,omitempty"`

	// Runs lists recent pipeline runs, most recent first.
	Runs []model.PipelineRun `json:"runs,omitempty"`
}

// NewReport creates a report snapshot stamped with the current time.
func NewReport(source string, stats *model.Statistics) *Report {
	return &Report{
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
	}
}

// Writer defines the interface for report output.
// Implementations write ledger reports in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *Report) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// stateOrder is the fixed rendering order for per-state counts, matching
// the lifecycle direction.
var stateOrder = []model.CrawlState{
	model.StateDiscovered,
	model.StateFetched,
	model.StateProcessed,
	model.StateDuplicate,
	model.StateFailed,
}
