package model

// CrawlState represents the lifecycle state of a crawl record.
//
// Design decision: We use string-based constants rather than iota integers
// because the state is persisted in both SQLite and PostgreSQL columns.
// Storing the name directly keeps rows readable in ad-hoc queries and
// makes the stored data robust against constant reordering.
type CrawlState string

const (
	// StateDiscovered is the initial state. A record enters it exactly once,
	// when DiscoverURL first sees the URL.
	StateDiscovered CrawlState = "discovered"

	// StateFetched means the resource body has been downloaded. Records
	// re-enter this state when a previously failed URL is retried.
	StateFetched CrawlState = "fetched"

	// StateProcessed is the terminal success state: the document was written
	// downstream and carries a content fingerprint and silver pointer.
	StateProcessed CrawlState = "processed"

	// StateDuplicate is terminal: the content matched an already-processed
	// record. DuplicateOf points at the canonical URL.
	StateDuplicate CrawlState = "duplicate"

	// StateFailed records the last fetch or processing error. It is not
	// terminal; the URL may be retried and re-enter StateFetched.
	StateFailed CrawlState = "failed"
)

// String returns the state name as stored in the database.
func (s CrawlState) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined crawl states.
func (s CrawlState) Valid() bool {
	switch s {
	case StateDiscovered, StateFetched, StateProcessed, StateDuplicate, StateFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is defined out of s.
// Processed and Duplicate rows are retained as audit trail and never
// change state again.
func (s CrawlState) Terminal() bool {
	return s == StateProcessed || s == StateDuplicate
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	// RunStarted is set when the run row is registered.
	RunStarted RunStatus = "started"

	// RunRunning is set by the pipeline once work begins.
	RunRunning RunStatus = "running"

	// RunCompleted marks a successful run. Schedulers use the most recent
	// completed run's end time to decide cadence.
	RunCompleted RunStatus = "completed"

	// RunFailed marks a run that aborted before completion.
	RunFailed RunStatus = "failed"
)

// String returns the status name as stored in the database.
func (s RunStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined run statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStarted, RunRunning, RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}
