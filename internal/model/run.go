package model

import (
	"encoding/json"
	"time"
)

// PipelineRun is the bookkeeping row for one pipeline execution. It is
// created once at run start and mutated incrementally while the pipeline
// runs; external schedulers read completed runs to decide cadence
// ("has source X run successfully in the last N days?").
type PipelineRun struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Source is the logical source the run ingests.
	Source string `json:"source"`

	// PipelineType distinguishes ingestion modes (e.g. "web", "dump",
	// "stream"). The ledger stores it verbatim.
	PipelineType string `json:"pipeline_type"`

	// Status tracks the run lifecycle.
	Status RunStatus `json:"status"`

	// StartTime is set at registration; EndTime when the run finishes.
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// RecordsDiscovered, RecordsProcessed, and RecordsFailed are the run's
	// progress counters.
	RecordsDiscovered int64 `json:"records_discovered"`
	RecordsProcessed  int64 `json:"records_processed"`
	RecordsFailed     int64 `json:"records_failed"`

	// ConfigSnapshot is the immutable configuration captured at run start.
	// The ledger treats it as an opaque JSON blob.
	ConfigSnapshot json.RawMessage `json:"config_snapshot,omitempty"`

	// GitCommit records the code version that produced the run.
	GitCommit string `json:"git_commit,omitempty"`

	// Errors carries free-form error detail for failed runs.
	Errors *string `json:"errors,omitempty"`

	// MetricsPath points at the run's exported metrics file, if any.
	MetricsPath *string `json:"metrics_path,omitempty"`
}

// RunUpdate is a partial update for a pipeline run. Only non-nil fields
// are applied; everything else keeps its stored value.
//
// Design decision: We use a pointer-field struct rather than a
// map[string]any so that column names never flow in from callers and the
// compiler checks the field set.
type RunUpdate struct {
	Status            *RunStatus
	EndTime           *time.Time
	RecordsDiscovered *int64
	RecordsProcessed  *int64
	RecordsFailed     *int64
	Errors            *string
	MetricsPath       *string
}

// Empty reports whether the update would change nothing.
func (u RunUpdate) Empty() bool {
	return u.Status == nil && u.EndTime == nil &&
		u.RecordsDiscovered == nil && u.RecordsProcessed == nil &&
		u.RecordsFailed == nil && u.Errors == nil && u.MetricsPath == nil
}
