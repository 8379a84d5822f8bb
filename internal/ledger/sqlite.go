package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// SQLiteLedger is the embedded single-writer profile of the crawl ledger.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the ledger is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode gives good concurrent read performance under one writer
//
// The connection pool is pinned to a single connection; SQLite supports
// only one writer, and serializing all operations through one connection
// gives the same per-URL ordering guarantees as the networked profile's
// row-level locking, just with coarser granularity.
type SQLiteLedger struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// SQLiteOptions configures SQLiteLedger behavior.
type SQLiteOptions struct {
	// CreateIfNotExists creates the database file and schema if they don't
	// exist. This implicit creation exists purely for zero-configuration
	// local use and is logged when it happens; the networked profile never
	// creates schema.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent read
	// performance. Recommended for most use cases.
	EnableWAL bool

	// Logger receives structured log output. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultSQLiteOptions returns the default embedded-profile options.
func DefaultSQLiteOptions() SQLiteOptions {
	return SQLiteOptions{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ledgerFileName is the database file created inside the data directory.
const ledgerFileName = "ledger.db"

// OpenSQLite opens or creates the embedded ledger in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned instead of creating one.
func OpenSQLite(dbDir string, opts SQLiteOptions) (*SQLiteLedger, error) {
	dbPath := filepath.Join(dbDir, ledgerFileName)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("ledger database not found at %s (use CreateIfNotExists to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check ledger path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// Single writer; see the type comment.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &SQLiteLedger{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if opts.CreateIfNotExists {
		if err := l.createTables(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create ledger schema: %w", err)
		}
		logger.Info("embedded ledger schema ensured (implicit creation is for zero-configuration local use only)",
			"path", dbPath,
		)
	}

	return l, nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *SQLiteLedger) Path() string {
	return l.dbPath
}

// createTables creates the ledger schema if it doesn't exist.
func (l *SQLiteLedger) createTables() error {
	schema := `
	-- One row per discovered URL/resource and its lifecycle state
	CREATE TABLE IF NOT EXISTS crawl_records (
		url TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT 'discovered',
		text_hash TEXT,
		minhash_signature TEXT,
		silver_id TEXT,
		duplicate_of TEXT,
		http_status INTEGER,
		etag TEXT,
		last_modified TEXT,
		content_length INTEGER,
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		discovered_at TEXT NOT NULL,
		last_fetched_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_records_source_state ON crawl_records(source, state);
	CREATE INDEX IF NOT EXISTS idx_crawl_records_text_hash ON crawl_records(text_hash);
	CREATE INDEX IF NOT EXISTS idx_crawl_records_updated_at ON crawl_records(updated_at);

	-- Per-(date, source) ingestion counters
	CREATE TABLE IF NOT EXISTS daily_quotas (
		date TEXT NOT NULL,
		source TEXT NOT NULL,
		records_ingested INTEGER NOT NULL DEFAULT 0,
		quota_limit INTEGER,
		quota_hit INTEGER NOT NULL DEFAULT 0,
		items_remaining INTEGER,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (date, source)
	);

	-- Bookkeeping for pipeline executions
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		pipeline_type TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		records_discovered INTEGER NOT NULL DEFAULT 0,
		records_processed INTEGER NOT NULL DEFAULT 0,
		records_failed INTEGER NOT NULL DEFAULT 0,
		config_snapshot TEXT,
		git_commit TEXT NOT NULL DEFAULT '',
		errors TEXT,
		metrics_path TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_source_status ON pipeline_runs(source, status);

	-- Poll-frequency gate per RSS feed
	CREATE TABLE IF NOT EXISTS rss_feed_state (
		feed_url TEXT PRIMARY KEY,
		last_fetched_at TEXT,
		items_found INTEGER NOT NULL DEFAULT 0,
		fetch_count INTEGER NOT NULL DEFAULT 0
	);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// DiscoverURL implements Backend.
func (l *SQLiteLedger) DiscoverURL(ctx context.Context, url, source string, metadata map[string]string) (bool, error) {
	if err := validateNonEmpty("url", url); err != nil {
		return false, err
	}
	if err := validateNonEmpty("source", source); err != nil {
		return false, err
	}

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return false, err
	}

	now := formatTime(time.Now().UTC())
	result, err := l.db.ExecContext(ctx, `
	INSERT INTO crawl_records (url, source, state, metadata, discovered_at, created_at, updated_at)
	VALUES (?, ?, 'discovered', ?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`, url, source, meta, now, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to discover url: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows == 1, nil
}

// MarkFetched implements Backend. Terminal records are left untouched.
func (l *SQLiteLedger) MarkFetched(ctx context.Context, url string, result FetchResult) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO crawl_records (url, state, http_status, etag, last_modified, content_length, error_message, discovered_at, last_fetched_at, created_at, updated_at)
	VALUES (?, 'fetched', ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		state = 'fetched',
		http_status = excluded.http_status,
		etag = COALESCE(excluded.etag, etag),
		last_modified = COALESCE(excluded.last_modified, last_modified),
		content_length = COALESCE(excluded.content_length, content_length),
		error_message = COALESCE(excluded.error_message, error_message),
		last_fetched_at = excluded.last_fetched_at,
		updated_at = excluded.updated_at
	WHERE state NOT IN ('processed', 'duplicate')
	`, url, result.HTTPStatus, result.ETag, result.LastModified, result.ContentLength, result.ErrorMessage, now, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to mark fetched: %w", err)
	}
	return nil
}

// MarkFailed implements Backend. Every call on a non-terminal record
// increments the retry count.
func (l *SQLiteLedger) MarkFailed(ctx context.Context, url, errorMessage string) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO crawl_records (url, state, error_message, retry_count, discovered_at, created_at, updated_at)
	VALUES (?, 'failed', ?, 1, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		state = 'failed',
		error_message = excluded.error_message,
		retry_count = retry_count + 1,
		updated_at = excluded.updated_at
	WHERE state NOT IN ('processed', 'duplicate')
	`, url, errorMessage, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

// MarkProcessed implements Backend.
func (l *SQLiteLedger) MarkProcessed(ctx context.Context, url, textHash string, signature []uint64, silverID string) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}
	if err := validateNonEmpty("text_hash", textHash); err != nil {
		return err
	}

	sig, err := encodeSignature(signature)
	if err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err = l.db.ExecContext(ctx, `
	INSERT INTO crawl_records (url, state, text_hash, minhash_signature, silver_id, discovered_at, created_at, updated_at)
	VALUES (?, 'processed', ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		state = 'processed',
		text_hash = excluded.text_hash,
		minhash_signature = COALESCE(excluded.minhash_signature, minhash_signature),
		silver_id = excluded.silver_id,
		error_message = NULL,
		updated_at = excluded.updated_at
	WHERE state NOT IN ('processed', 'duplicate')
	`, url, textHash, sig, silverID, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// MarkDuplicate implements Backend.
func (l *SQLiteLedger) MarkDuplicate(ctx context.Context, url, originalURL string) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}
	if err := validateNonEmpty("original_url", originalURL); err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO crawl_records (url, state, duplicate_of, discovered_at, created_at, updated_at)
	VALUES (?, 'duplicate', ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		state = 'duplicate',
		duplicate_of = excluded.duplicate_of,
		updated_at = excluded.updated_at
	WHERE state NOT IN ('processed', 'duplicate')
	`, url, originalURL, now, now, now)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}

// recordColumns is the SELECT list shared by the record queries.
const recordColumns = `url, source, state, text_hash, minhash_signature, silver_id, duplicate_of,
	http_status, etag, last_modified, content_length, error_message, retry_count, metadata,
	discovered_at, last_fetched_at, created_at, updated_at`

// GetURLState implements Backend.
func (l *SQLiteLedger) GetURLState(ctx context.Context, url string) (*model.CrawlRecord, error) {
	if err := validateNonEmpty("url", url); err != nil {
		return nil, err
	}

	row := l.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM crawl_records WHERE url = ?`, url)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get url state: %w", err)
	}
	return record, nil
}

// GetURLsByState implements Backend.
func (l *SQLiteLedger) GetURLsByState(ctx context.Context, source string, state model.CrawlState, limit int) ([]model.CrawlRecord, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", state)}
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
	SELECT `+recordColumns+`
	FROM crawl_records
	WHERE source = ? AND state = ?
	ORDER BY discovered_at, url
	LIMIT ?
	`, source, state.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls by state: %w", err)
	}
	defer rows.Close()

	var records []model.CrawlRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// GetURLsByStateAfter implements Backend. Rows are ordered by URL so the
// last URL of one page is the cursor for the next.
func (l *SQLiteLedger) GetURLsByStateAfter(ctx context.Context, source string, state model.CrawlState, afterURL string, limit int) ([]model.CrawlRecord, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", state)}
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
	SELECT `+recordColumns+`
	FROM crawl_records
	WHERE source = ? AND state = ? AND url > ?
	ORDER BY url
	LIMIT ?
	`, source, state.String(), afterURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls by state: %w", err)
	}
	defer rows.Close()

	var records []model.CrawlRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// CheckDuplicateByHash implements Backend.
func (l *SQLiteLedger) CheckDuplicateByHash(ctx context.Context, textHash string) (string, bool, error) {
	if err := validateNonEmpty("text_hash", textHash); err != nil {
		return "", false, err
	}

	var url string
	err := l.db.QueryRowContext(ctx, `
	SELECT url FROM crawl_records
	WHERE text_hash = ? AND state = 'processed'
	ORDER BY created_at, url
	LIMIT 1
	`, textHash).Scan(&url)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to check duplicate by hash: %w", err)
	}
	return url, true, nil
}

// ShouldFetchRSS implements Backend.
func (l *SQLiteLedger) ShouldFetchRSS(ctx context.Context, feedURL string, minInterval time.Duration) (bool, error) {
	if err := validateNonEmpty("feed_url", feedURL); err != nil {
		return false, err
	}

	var lastFetched sql.NullString
	err := l.db.QueryRowContext(ctx,
		`SELECT last_fetched_at FROM rss_feed_state WHERE feed_url = ?`, feedURL,
	).Scan(&lastFetched)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check rss state: %w", err)
	}
	if !lastFetched.Valid || lastFetched.String == "" {
		return true, nil
	}

	last := parseTimestamp(lastFetched.String)
	if last.IsZero() {
		return true, nil
	}
	return time.Since(last) >= minInterval, nil
}

// RecordRSSFetch implements Backend.
func (l *SQLiteLedger) RecordRSSFetch(ctx context.Context, feedURL string, itemsFound int64) error {
	if err := validateNonEmpty("feed_url", feedURL); err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO rss_feed_state (feed_url, last_fetched_at, items_found, fetch_count)
	VALUES (?, ?, ?, 1)
	ON CONFLICT(feed_url) DO UPDATE SET
		last_fetched_at = excluded.last_fetched_at,
		items_found = excluded.items_found,
		fetch_count = fetch_count + 1
	`, feedURL, now, itemsFound)
	if err != nil {
		return fmt.Errorf("failed to record rss fetch: %w", err)
	}
	return nil
}

// IncrementDailyQuota implements Backend. The increment and the read of
// the updated counter happen in one statement, so concurrent callers
// accumulate correctly.
func (l *SQLiteLedger) IncrementDailyQuota(ctx context.Context, source string, count int64, quotaLimit *int64, date string) (int64, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return 0, err
	}
	if count < 0 {
		return 0, &ValidationError{Field: "count", Reason: fmt.Sprintf("must be non-negative, got %d", count)}
	}
	day, err := quotaDate(date)
	if err != nil {
		return 0, err
	}

	now := formatTime(time.Now().UTC())
	var total int64
	err = l.db.QueryRowContext(ctx, `
	INSERT INTO daily_quotas (date, source, records_ingested, quota_limit, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(date, source) DO UPDATE SET
		records_ingested = records_ingested + excluded.records_ingested,
		quota_limit = COALESCE(excluded.quota_limit, quota_limit),
		updated_at = excluded.updated_at
	RETURNING records_ingested
	`, day, source, count, quotaLimit, now).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily quota: %w", err)
	}
	return total, nil
}

// CheckQuotaAvailable implements Backend.
func (l *SQLiteLedger) CheckQuotaAvailable(ctx context.Context, source string, quotaLimit *int64, date string) (bool, int64, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return false, 0, err
	}
	day, err := quotaDate(date)
	if err != nil {
		return false, 0, err
	}

	var (
		used     int64
		stored   sql.NullInt64
		quotaHit bool
	)
	err = l.db.QueryRowContext(ctx, `
	SELECT records_ingested, quota_limit, quota_hit
	FROM daily_quotas
	WHERE date = ? AND source = ?
	`, day, source).Scan(&used, &stored, &quotaHit)
	if err == sql.ErrNoRows {
		// Nothing ingested today.
		if quotaLimit != nil {
			return *quotaLimit > 0, max(*quotaLimit, 0), nil
		}
		return true, UnlimitedQuota, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to check quota: %w", err)
	}

	if quotaHit {
		return false, 0, nil
	}

	limit := int64(0)
	switch {
	case quotaLimit != nil:
		limit = *quotaLimit
	case stored.Valid:
		limit = stored.Int64
	default:
		return true, UnlimitedQuota, nil
	}

	remaining := limit - used
	if remaining <= 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// MarkQuotaHit implements Backend.
func (l *SQLiteLedger) MarkQuotaHit(ctx context.Context, source string, itemsRemaining *int64, date string) error {
	if err := validateNonEmpty("source", source); err != nil {
		return err
	}
	day, err := quotaDate(date)
	if err != nil {
		return err
	}

	now := formatTime(time.Now().UTC())
	_, err = l.db.ExecContext(ctx, `
	INSERT INTO daily_quotas (date, source, records_ingested, quota_hit, items_remaining, updated_at)
	VALUES (?, ?, 0, 1, ?, ?)
	ON CONFLICT(date, source) DO UPDATE SET
		quota_hit = 1,
		items_remaining = COALESCE(excluded.items_remaining, items_remaining),
		updated_at = excluded.updated_at
	`, day, source, itemsRemaining, now)
	if err != nil {
		return fmt.Errorf("failed to mark quota hit: %w", err)
	}
	return nil
}

// RegisterPipelineRun implements Backend.
func (l *SQLiteLedger) RegisterPipelineRun(ctx context.Context, run *model.PipelineRun) error {
	if run == nil {
		return &ValidationError{Field: "run", Reason: "must not be nil"}
	}
	if err := validateNonEmpty("run_id", run.RunID); err != nil {
		return err
	}
	if err := validateNonEmpty("source", run.Source); err != nil {
		return err
	}

	status := run.Status
	if status == "" {
		status = model.RunStarted
	}
	if !status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	start := run.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}

	var snapshot *string
	if len(run.ConfigSnapshot) > 0 {
		s := string(run.ConfigSnapshot)
		snapshot = &s
	}

	_, err := l.db.ExecContext(ctx, `
	INSERT INTO pipeline_runs (run_id, source, pipeline_type, status, start_time,
		records_discovered, records_processed, records_failed, config_snapshot, git_commit, metrics_path)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Source, run.PipelineType, status.String(), formatTime(start),
		run.RecordsDiscovered, run.RecordsProcessed, run.RecordsFailed, snapshot, run.GitCommit, run.MetricsPath)
	if err != nil {
		return fmt.Errorf("failed to register pipeline run: %w", err)
	}
	return nil
}

// UpdatePipelineRun implements Backend. Only non-nil fields of update are
// applied.
func (l *SQLiteLedger) UpdatePipelineRun(ctx context.Context, runID string, update model.RunUpdate) error {
	if err := validateNonEmpty("run_id", runID); err != nil {
		return err
	}
	if update.Empty() {
		return &ValidationError{Field: "update", Reason: "no fields to update"}
	}
	if update.Status != nil && !update.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *update.Status)}
	}

	var (
		clauses []string
		args    []any
	)
	if update.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, update.Status.String())
	}
	if update.EndTime != nil {
		clauses = append(clauses, "end_time = ?")
		args = append(args, formatTime(*update.EndTime))
	}
	if update.RecordsDiscovered != nil {
		clauses = append(clauses, "records_discovered = ?")
		args = append(args, *update.RecordsDiscovered)
	}
	if update.RecordsProcessed != nil {
		clauses = append(clauses, "records_processed = ?")
		args = append(args, *update.RecordsProcessed)
	}
	if update.RecordsFailed != nil {
		clauses = append(clauses, "records_failed = ?")
		args = append(args, *update.RecordsFailed)
	}
	if update.Errors != nil {
		clauses = append(clauses, "errors = ?")
		args = append(args, *update.Errors)
	}
	if update.MetricsPath != nil {
		clauses = append(clauses, "metrics_path = ?")
		args = append(args, *update.MetricsPath)
	}
	args = append(args, runID)

	result, err := l.db.ExecContext(ctx,
		"UPDATE pipeline_runs SET "+strings.Join(clauses, ", ")+" WHERE run_id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// runColumns is the SELECT list shared by the pipeline-run queries.
const runColumns = `run_id, source, pipeline_type, status, start_time, end_time,
	records_discovered, records_processed, records_failed, config_snapshot, git_commit, errors, metrics_path`

// GetPipelineRun implements Backend.
func (l *SQLiteLedger) GetPipelineRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	if err := validateNonEmpty("run_id", runID); err != nil {
		return nil, err
	}

	row := l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return run, nil
}

// GetPipelineRunsHistory implements Backend.
func (l *SQLiteLedger) GetPipelineRunsHistory(ctx context.Context, source string, limit int) ([]model.PipelineRun, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
	SELECT `+runColumns+`
	FROM pipeline_runs
	WHERE source = ?
	ORDER BY start_time DESC
	LIMIT ?
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetLastSuccessfulRun implements Backend.
func (l *SQLiteLedger) GetLastSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error) {
	return l.successfulRun(ctx, source, "DESC")
}

// GetFirstSuccessfulRun implements Backend.
func (l *SQLiteLedger) GetFirstSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error) {
	return l.successfulRun(ctx, source, "ASC")
}

// successfulRun returns the completed run with the extreme end time.
func (l *SQLiteLedger) successfulRun(ctx context.Context, source, direction string) (*model.PipelineRun, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}

	row := l.db.QueryRowContext(ctx, `
	SELECT `+runColumns+`
	FROM pipeline_runs
	WHERE source = ? AND status = 'completed' AND end_time IS NOT NULL
	ORDER BY end_time `+direction+`
	LIMIT 1
	`, source)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get successful run: %w", err)
	}
	return run, nil
}

// CleanupOldEntries implements Backend.
func (l *SQLiteLedger) CleanupOldEntries(ctx context.Context, days int) (int64, error) {
	if err := validateDays(days); err != nil {
		return 0, err
	}

	cutoff := formatTime(time.Now().UTC().AddDate(0, 0, -days))
	result, err := l.db.ExecContext(ctx, `
	DELETE FROM crawl_records
	WHERE state = 'failed' AND retry_count >= ? AND updated_at < ?
	`, PermanentFailureRetries, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old entries: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read cleanup result: %w", err)
	}
	return removed, nil
}

// GetStatistics implements Backend.
func (l *SQLiteLedger) GetStatistics(ctx context.Context, source string) (*model.Statistics, error) {
	query := `SELECT state, COUNT(*) FROM crawl_records`
	args := make([]any, 0, 1)
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` GROUP BY state`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	stats := &model.Statistics{
		Source:  source,
		ByState: make(map[model.CrawlState]int64),
	}
	for rows.Next() {
		var (
			state string
			count int64
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		stats.ByState[model.CrawlState(state)] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	processed := stats.ByState[model.StateProcessed]
	duplicates := stats.ByState[model.StateDuplicate]
	if processed+duplicates > 0 {
		stats.DedupRate = float64(duplicates) / float64(processed+duplicates)
	}

	permQuery := `SELECT COUNT(*) FROM crawl_records WHERE state = 'failed' AND retry_count >= ?`
	permArgs := []any{PermanentFailureRetries}
	if source != "" {
		permQuery += ` AND source = ?`
		permArgs = append(permArgs, source)
	}
	if err := l.db.QueryRowContext(ctx, permQuery, permArgs...).Scan(&stats.PermanentFailures); err != nil {
		return nil, fmt.Errorf("failed to count permanent failures: %w", err)
	}

	return stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one crawl record from the recordColumns SELECT list.
func scanRecord(s scanner) (*model.CrawlRecord, error) {
	var (
		record        model.CrawlRecord
		state         string
		sig, meta     *string
		discoveredAt  string
		lastFetchedAt sql.NullString
		createdAt     string
		updatedAt     string
	)
	err := s.Scan(
		&record.URL,
		&record.Source,
		&state,
		&record.TextHash,
		&sig,
		&record.SilverID,
		&record.DuplicateOf,
		&record.HTTPStatus,
		&record.ETag,
		&record.LastModified,
		&record.ContentLength,
		&record.ErrorMessage,
		&record.RetryCount,
		&meta,
		&discoveredAt,
		&lastFetchedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.State = model.CrawlState(state)
	if record.MinhashSignature, err = decodeSignature(sig); err != nil {
		return nil, err
	}
	if record.Metadata, err = decodeMetadata(meta); err != nil {
		return nil, err
	}
	record.DiscoveredAt = parseTimestamp(discoveredAt)
	if lastFetchedAt.Valid && lastFetchedAt.String != "" {
		t := parseTimestamp(lastFetchedAt.String)
		record.LastFetchedAt = &t
	}
	record.CreatedAt = parseTimestamp(createdAt)
	record.UpdatedAt = parseTimestamp(updatedAt)
	return &record, nil
}

// scanRun reads one pipeline run from the runColumns SELECT list.
func scanRun(s scanner) (*model.PipelineRun, error) {
	var (
		run       model.PipelineRun
		status    string
		startTime string
		endTime   sql.NullString
		snapshot  *string
	)
	err := s.Scan(
		&run.RunID,
		&run.Source,
		&run.PipelineType,
		&status,
		&startTime,
		&endTime,
		&run.RecordsDiscovered,
		&run.RecordsProcessed,
		&run.RecordsFailed,
		&snapshot,
		&run.GitCommit,
		&run.Errors,
		&run.MetricsPath,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.StartTime = parseTimestamp(startTime)
	if endTime.Valid && endTime.String != "" {
		t := parseTimestamp(endTime.String)
		run.EndTime = &t
	}
	if snapshot != nil {
		run.ConfigSnapshot = []byte(*snapshot)
	}
	return &run, nil
}

// storedTimeLayout is the storage format for all timestamp columns. The
// fractional part is fixed-width so that lexicographic string comparison
// matches chronological order; RFC3339Nano trims trailing zeros and
// breaks that property within a second.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders a timestamp for storage, always in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// timestampFormats contains the timestamp formats that may appear in
// stored columns. The order matters: more specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
