package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/dedup"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *Report {
	end := time.Date(2026, 8, 20, 7, 30, 0, 0, time.UTC)
	r := NewReport("wikipedia", &model.Statistics{
		Source:       "wikipedia",
		TotalRecords: 120,
		ByState: map[model.CrawlState]int64{
			model.StateDiscovered: 10,
			model.StateProcessed:  80,
			model.StateDuplicate:  20,
			model.StateFailed:     10,
		},
		DedupRate:         0.2,
		PermanentFailures: 3,
	})
	r.Dedup = &dedup.MetricsSnapshot{
		TransportHits: 5,
		ExactHits:     15,
		NearHits:      5,
		Unique:        80,
	}
	r.Runs = []model.PipelineRun{
		{
			RunID:            "run-042",
			Source:           "wikipedia",
			PipelineType:     "web",
			Status:           model.RunCompleted,
			StartTime:        time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC),
			EndTime:          &end,
			RecordsProcessed: 80,
			RecordsFailed:    2,
		},
	}
	return r
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "CRAWL LEDGER REPORT") {
			t.Error("expected output to contain header")
		}
		if !strings.Contains(output, "wikipedia") {
			t.Error("expected output to contain the source")
		}
		if !strings.Contains(output, "processed") {
			t.Error("expected output to contain state counts")
		}
		if !strings.Contains(output, "run-042") {
			t.Error("expected output to contain the run table")
		}
	})

	t.Run("hides zero states by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "fetched") {
			t.Error("zero-count state should be hidden without WithShowEmpty")
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "fetched") {
			t.Error("WithShowEmpty should include zero-count states")
		}
	})
}

// TestJSONWriter tests the machine-readable writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("produces valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Stats.TotalRecords != 120 {
			t.Errorf("TotalRecords = %d, want 120", decoded.Stats.TotalRecords)
		}
		if decoded.Dedup == nil || decoded.Dedup.ExactHits != 15 {
			t.Errorf("Dedup = %+v, want exact hits preserved", decoded.Dedup)
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output with WithPrettyPrint")
		}
	})
}

// TestMarkdownWriter tests the documentation-grade writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "# Crawl Ledger Report") {
		t.Error("expected H1 header")
	}
	if !strings.Contains(output, "## Records by State") {
		t.Error("expected state section")
	}
	if !strings.Contains(output, "mermaid") {
		t.Error("expected mermaid pie chart for non-empty statistics")
	}
	if !strings.Contains(output, "## Dedup Cascade") {
		t.Error("expected cascade section when metrics are present")
	}
	if !strings.Contains(output, "run-042") {
		t.Error("expected run table")
	}
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
	if _, err := mw.Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("both writers should receive output")
	}
}

// TestSummaryLine tests the one-line overview.
func TestSummaryLine(t *testing.T) {
	t.Parallel()

	line := SummaryLine(createTestReport().Stats)
	for _, want := range []string{"records=120", "processed=80", "duplicates=20", "dedup_rate=20.0%"} {
		if !strings.Contains(line, want) {
			t.Errorf("SummaryLine() = %q, want it to contain %q", line, want)
		}
	}
}
