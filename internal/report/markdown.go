package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStates(md, report)
	w.writeDedup(md, report)
	w.writeRuns(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with snapshot information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	md.H1("Crawl Ledger Report")
	md.PlainText("")

	source := report.Source
	if source == "" {
		source = "all sources"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source", "`" + source + "`"},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Total Records", strconv.FormatInt(report.Stats.TotalRecords, 10)},
			{"Dedup Rate", fmt.Sprintf("%.1f%%", report.Stats.DedupRate*100)},
		},
	})
	md.PlainText("")
}

// writeStates writes the per-state breakdown with a pie chart.
func (w *MarkdownWriter) writeStates(md *markdown.Markdown, report *Report) {
	md.H2("Records by State")
	md.PlainText("")

	rows := make([][]string, 0, len(stateOrder))
	for _, state := range stateOrder {
		rows = append(rows, []string{
			state.String(),
			strconv.FormatInt(report.Stats.ByState[state], 10),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Stats.TotalRecords > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart for the state distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Record State Distribution"),
		piechart.WithShowData(true),
	)

	for _, state := range stateOrder {
		if count := report.Stats.ByState[state]; count > 0 {
			chart.LabelAndIntValue(state.String(), uint64(count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert based on the failure picture.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *Report) {
	failed := report.Stats.ByState[model.StateFailed]
	switch {
	case report.Stats.PermanentFailures > 0:
		md.Warningf(
			"%d record(s) have failed permanently and are eligible for cleanup.",
			report.Stats.PermanentFailures,
		)
	case failed > 0:
		md.Notef("%d record(s) are in a transient failed state and will be retried.", failed)
	default:
		md.Tip("No failed records.")
	}
	md.PlainText("")
}

// writeDedup writes the cascade tier counters when available.
func (w *MarkdownWriter) writeDedup(md *markdown.Markdown, report *Report) {
	if report.Dedup == nil {
		return
	}

	md.H2("Dedup Cascade")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Tier", "Hits"},
		Rows: [][]string{
			{"Transport (not modified)", strconv.FormatInt(report.Dedup.TransportHits, 10)},
			{"File (unchanged checksum)", strconv.FormatInt(report.Dedup.FileHits, 10)},
			{"Document exact", strconv.FormatInt(report.Dedup.ExactHits, 10)},
			{"Document near", strconv.FormatInt(report.Dedup.NearHits, 10)},
			{"Unique", strconv.FormatInt(report.Dedup.Unique, 10)},
		},
	})
	md.PlainText("")
}

// writeRuns writes the recent pipeline runs table.
func (w *MarkdownWriter) writeRuns(md *markdown.Markdown, report *Report) {
	if len(report.Runs) == 0 {
		return
	}

	md.H2("Recent Pipeline Runs")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Runs))
	for _, run := range report.Runs {
		end := "-"
		if run.EndTime != nil {
			end = run.EndTime.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			"`" + run.RunID + "`",
			run.Status.String(),
			run.StartTime.Format("2006-01-02 15:04"),
			end,
			strconv.FormatInt(run.RecordsProcessed, 10),
			strconv.FormatInt(run.RecordsFailed, 10),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Status", "Started", "Ended", "Processed", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}
