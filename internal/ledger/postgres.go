package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/config"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/log"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// PostgresLedger is the networked multi-writer profile of the crawl
// ledger. Many pipeline workers on different hosts write concurrently;
// every mutation is a single INSERT ... ON CONFLICT upsert, so per-URL
// writes serialize on the row lock and partial updates are never
// observable.
//
// The ledger never creates production schema. Opening verifies that the
// required tables exist and fails with a SchemaError pointing at the
// migration files otherwise.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to PostgreSQL with a bounded pool, verifies
// connectivity with a ping, and runs the schema guard before returning.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*PostgresLedger, error) {
	if cfg.DSN == "" {
		return nil, &ValidationError{Field: "dsn", Reason: "must not be empty"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = config.DefaultAcquireTimeout
	}
	poolCfg.ConnConfig.ConnectTimeout = acquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	l := &PostgresLedger{pool: pool, logger: logger}
	if err := l.VerifySchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("networked ledger connected",
		"dsn", log.MaskDSN(cfg.DSN),
		"min_conns", poolCfg.MinConns,
		"max_conns", poolCfg.MaxConns,
	)
	return l, nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// DiscoverURL implements Backend.
func (l *PostgresLedger) DiscoverURL(ctx context.Context, url, source string, metadata map[string]string) (bool, error) {
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

	now := time.Now().UTC()
	tag, err := l.pool.Exec(ctx, `
	INSERT INTO crawl_records (url, source, state, metadata, discovered_at, created_at, updated_at)
	VALUES ($1, $2, 'discovered', $3, $4, $4, $4)
	ON CONFLICT (url) DO NOTHING
	`, url, source, meta, now)
	if err != nil {
		return false, fmt.Errorf("failed to discover url: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFetched implements Backend.
func (l *PostgresLedger) MarkFetched(ctx context.Context, url string, result FetchResult) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := l.pool.Exec(ctx, `
	INSERT INTO crawl_records (url, state, http_status, etag, last_modified, content_length, error_message, discovered_at, last_fetched_at, created_at, updated_at)
	VALUES ($1, 'fetched', $2, $3, $4, $5, $6, $7, $7, $7, $7)
	ON CONFLICT (url) DO UPDATE SET
		state = 'fetched',
		http_status = EXCLUDED.http_status,
		etag = COALESCE(EXCLUDED.etag, crawl_records.etag),
		last_modified = COALESCE(EXCLUDED.last_modified, crawl_records.last_modified),
		content_length = COALESCE(EXCLUDED.content_length, crawl_records.content_length),
		error_message = COALESCE(EXCLUDED.error_message, crawl_records.error_message),
		last_fetched_at = EXCLUDED.last_fetched_at,
		updated_at = EXCLUDED.updated_at
	WHERE crawl_records.state NOT IN ('processed', 'duplicate')
	`, url, result.HTTPStatus, result.ETag, result.LastModified, result.ContentLength, result.ErrorMessage, now)
	if err != nil {
		return fmt.Errorf("failed to mark fetched: %w", err)
	}
	return nil
}

// MarkFailed implements Backend.
func (l *PostgresLedger) MarkFailed(ctx context.Context, url, errorMessage string) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := l.pool.Exec(ctx, `
	INSERT INTO crawl_records (url, state, error_message, retry_count, discovered_at, created_at, updated_at)
	VALUES ($1, 'failed', $2, 1, $3, $3, $3)
	ON CONFLICT (url) DO UPDATE SET
		state = 'failed',
		error_message = EXCLUDED.error_message,
		retry_count = crawl_records.retry_count + 1,
		updated_at = EXCLUDED.updated_at
	WHERE crawl_records.state NOT IN ('processed', 'duplicate')
	`, url, errorMessage, now)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

// MarkProcessed implements Backend.
func (l *PostgresLedger) MarkProcessed(ctx context.Context, url, textHash string, signature []uint64, silverID string) error {
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

	now := time.Now().UTC()
	_, err = l.pool.Exec(ctx, `
	INSERT INTO crawl_records (url, state, text_hash, minhash_signature, silver_id, discovered_at, created_at, updated_at)
	VALUES ($1, 'processed', $2, $3, $4, $5, $5, $5)
	ON CONFLICT (url) DO UPDATE SET
		state = 'processed',
		text_hash = EXCLUDED.text_hash,
		minhash_signature = COALESCE(EXCLUDED.minhash_signature, crawl_records.minhash_signature),
		silver_id = EXCLUDED.silver_id,
		error_message = NULL,
		updated_at = EXCLUDED.updated_at
	WHERE crawl_records.state NOT IN ('processed', 'duplicate')
	`, url, textHash, sig, silverID, now)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// MarkDuplicate implements Backend.
func (l *PostgresLedger) MarkDuplicate(ctx context.Context, url, originalURL string) error {
	if err := validateNonEmpty("url", url); err != nil {
		return err
	}
	if err := validateNonEmpty("original_url", originalURL); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := l.pool.Exec(ctx, `
	INSERT INTO crawl_records (url, state, duplicate_of, discovered_at, created_at, updated_at)
	VALUES ($1, 'duplicate', $2, $3, $3, $3)
	ON CONFLICT (url) DO UPDATE SET
		state = 'duplicate',
		duplicate_of = EXCLUDED.duplicate_of,
		updated_at = EXCLUDED.updated_at
	WHERE crawl_records.state NOT IN ('processed', 'duplicate')
	`, url, originalURL, now)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}

// GetURLState implements Backend.
func (l *PostgresLedger) GetURLState(ctx context.Context, url string) (*model.CrawlRecord, error) {
	if err := validateNonEmpty("url", url); err != nil {
		return nil, err
	}

	record, err := scanPgRecord(l.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM crawl_records WHERE url = $1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get url state: %w", err)
	}
	return record, nil
}

// GetURLsByState implements Backend.
func (l *PostgresLedger) GetURLsByState(ctx context.Context, source string, state model.CrawlState, limit int) ([]model.CrawlRecord, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", state)}
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, `
	SELECT `+recordColumns+`
	FROM crawl_records
	WHERE source = $1 AND state = $2
	ORDER BY discovered_at, url
	LIMIT $3
	`, source, state.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls by state: %w", err)
	}
	defer rows.Close()

	var records []model.CrawlRecord
	for rows.Next() {
		record, err := scanPgRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// GetURLsByStateAfter implements Backend. Rows are ordered by URL so the
// last URL of one page is the cursor for the next.
func (l *PostgresLedger) GetURLsByStateAfter(ctx context.Context, source string, state model.CrawlState, afterURL string, limit int) ([]model.CrawlRecord, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if !state.Valid() {
		return nil, &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", state)}
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, `
	SELECT `+recordColumns+`
	FROM crawl_records
	WHERE source = $1 AND state = $2 AND url > $3
	ORDER BY url
	LIMIT $4
	`, source, state.String(), afterURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query urls by state: %w", err)
	}
	defer rows.Close()

	var records []model.CrawlRecord
	for rows.Next() {
		record, err := scanPgRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crawl record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// CheckDuplicateByHash implements Backend.
func (l *PostgresLedger) CheckDuplicateByHash(ctx context.Context, textHash string) (string, bool, error) {
	if err := validateNonEmpty("text_hash", textHash); err != nil {
		return "", false, err
	}

	var url string
	err := l.pool.QueryRow(ctx, `
	SELECT url FROM crawl_records
	WHERE text_hash = $1 AND state = 'processed'
	ORDER BY created_at, url
	LIMIT 1
	`, textHash).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to check duplicate by hash: %w", err)
	}
	return url, true, nil
}

// ShouldFetchRSS implements Backend.
func (l *PostgresLedger) ShouldFetchRSS(ctx context.Context, feedURL string, minInterval time.Duration) (bool, error) {
	if err := validateNonEmpty("feed_url", feedURL); err != nil {
		return false, err
	}

	var lastFetched *time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT last_fetched_at FROM rss_feed_state WHERE feed_url = $1`, feedURL,
	).Scan(&lastFetched)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check rss state: %w", err)
	}
	if lastFetched == nil {
		return true, nil
	}
	return time.Since(*lastFetched) >= minInterval, nil
}

// RecordRSSFetch implements Backend.
func (l *PostgresLedger) RecordRSSFetch(ctx context.Context, feedURL string, itemsFound int64) error {
	if err := validateNonEmpty("feed_url", feedURL); err != nil {
		return err
	}

	_, err := l.pool.Exec(ctx, `
	INSERT INTO rss_feed_state (feed_url, last_fetched_at, items_found, fetch_count)
	VALUES ($1, $2, $3, 1)
	ON CONFLICT (feed_url) DO UPDATE SET
		last_fetched_at = EXCLUDED.last_fetched_at,
		items_found = EXCLUDED.items_found,
		fetch_count = rss_feed_state.fetch_count + 1
	`, feedURL, time.Now().UTC(), itemsFound)
	if err != nil {
		return fmt.Errorf("failed to record rss fetch: %w", err)
	}
	return nil
}

// IncrementDailyQuota implements Backend.
func (l *PostgresLedger) IncrementDailyQuota(ctx context.Context, source string, count int64, quotaLimit *int64, date string) (int64, error) {
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

	var total int64
	err = l.pool.QueryRow(ctx, `
	INSERT INTO daily_quotas (date, source, records_ingested, quota_limit, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (date, source) DO UPDATE SET
		records_ingested = daily_quotas.records_ingested + EXCLUDED.records_ingested,
		quota_limit = COALESCE(EXCLUDED.quota_limit, daily_quotas.quota_limit),
		updated_at = EXCLUDED.updated_at
	RETURNING records_ingested
	`, day, source, count, quotaLimit, time.Now().UTC()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily quota: %w", err)
	}
	return total, nil
}

// CheckQuotaAvailable implements Backend.
func (l *PostgresLedger) CheckQuotaAvailable(ctx context.Context, source string, quotaLimit *int64, date string) (bool, int64, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return false, 0, err
	}
	day, err := quotaDate(date)
	if err != nil {
		return false, 0, err
	}

	var (
		used     int64
		stored   *int64
		quotaHit bool
	)
	err = l.pool.QueryRow(ctx, `
	SELECT records_ingested, quota_limit, quota_hit
	FROM daily_quotas
	WHERE date = $1 AND source = $2
	`, day, source).Scan(&used, &stored, &quotaHit)
	if errors.Is(err, pgx.ErrNoRows) {
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

	var limit int64
	switch {
	case quotaLimit != nil:
		limit = *quotaLimit
	case stored != nil:
		limit = *stored
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
func (l *PostgresLedger) MarkQuotaHit(ctx context.Context, source string, itemsRemaining *int64, date string) error {
	if err := validateNonEmpty("source", source); err != nil {
		return err
	}
	day, err := quotaDate(date)
	if err != nil {
		return err
	}

	_, err = l.pool.Exec(ctx, `
	INSERT INTO daily_quotas (date, source, records_ingested, quota_hit, items_remaining, updated_at)
	VALUES ($1, $2, 0, TRUE, $3, $4)
	ON CONFLICT (date, source) DO UPDATE SET
		quota_hit = TRUE,
		items_remaining = COALESCE(EXCLUDED.items_remaining, daily_quotas.items_remaining),
		updated_at = EXCLUDED.updated_at
	`, day, source, itemsRemaining, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark quota hit: %w", err)
	}
	return nil
}

// RegisterPipelineRun implements Backend.
func (l *PostgresLedger) RegisterPipelineRun(ctx context.Context, run *model.PipelineRun) error {
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

	var snapshot []byte
	if len(run.ConfigSnapshot) > 0 {
		snapshot = run.ConfigSnapshot
	}

	_, err := l.pool.Exec(ctx, `
	INSERT INTO pipeline_runs (run_id, source, pipeline_type, status, start_time,
		records_discovered, records_processed, records_failed, config_snapshot, git_commit, metrics_path)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, run.RunID, run.Source, run.PipelineType, status.String(), start,
		run.RecordsDiscovered, run.RecordsProcessed, run.RecordsFailed, snapshot, run.GitCommit, run.MetricsPath)
	if err != nil {
		return fmt.Errorf("failed to register pipeline run: %w", err)
	}
	return nil
}

// UpdatePipelineRun implements Backend.
func (l *PostgresLedger) UpdatePipelineRun(ctx context.Context, runID string, update model.RunUpdate) error {
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
	addClause := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Status != nil {
		addClause("status", update.Status.String())
	}
	if update.EndTime != nil {
		addClause("end_time", update.EndTime.UTC())
	}
	if update.RecordsDiscovered != nil {
		addClause("records_discovered", *update.RecordsDiscovered)
	}
	if update.RecordsProcessed != nil {
		addClause("records_processed", *update.RecordsProcessed)
	}
	if update.RecordsFailed != nil {
		addClause("records_failed", *update.RecordsFailed)
	}
	if update.Errors != nil {
		addClause("errors", *update.Errors)
	}
	if update.MetricsPath != nil {
		addClause("metrics_path", *update.MetricsPath)
	}
	args = append(args, runID)

	tag, err := l.pool.Exec(ctx,
		fmt.Sprintf("UPDATE pipeline_runs SET %s WHERE run_id = $%d", strings.Join(clauses, ", "), len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPipelineRun implements Backend.
func (l *PostgresLedger) GetPipelineRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	if err := validateNonEmpty("run_id", runID); err != nil {
		return nil, err
	}

	run, err := scanPgRun(l.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}
	return run, nil
}

// GetPipelineRunsHistory implements Backend.
func (l *PostgresLedger) GetPipelineRunsHistory(ctx context.Context, source string, limit int) ([]model.PipelineRun, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := l.pool.Query(ctx, `
	SELECT `+runColumns+`
	FROM pipeline_runs
	WHERE source = $1
	ORDER BY start_time DESC
	LIMIT $2
	`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetLastSuccessfulRun implements Backend.
func (l *PostgresLedger) GetLastSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error) {
	return l.successfulRun(ctx, source, "DESC")
}

// GetFirstSuccessfulRun implements Backend.
func (l *PostgresLedger) GetFirstSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error) {
	return l.successfulRun(ctx, source, "ASC")
}

func (l *PostgresLedger) successfulRun(ctx context.Context, source, direction string) (*model.PipelineRun, error) {
	if err := validateNonEmpty("source", source); err != nil {
		return nil, err
	}

	run, err := scanPgRun(l.pool.QueryRow(ctx, `
	SELECT `+runColumns+`
	FROM pipeline_runs
	WHERE source = $1 AND status = 'completed' AND end_time IS NOT NULL
	ORDER BY end_time `+direction+`
	LIMIT 1
	`, source))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get successful run: %w", err)
	}
	return run, nil
}

// CleanupOldEntries implements Backend.
func (l *PostgresLedger) CleanupOldEntries(ctx context.Context, days int) (int64, error) {
	if err := validateDays(days); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	tag, err := l.pool.Exec(ctx, `
	DELETE FROM crawl_records
	WHERE state = 'failed' AND retry_count >= $1 AND updated_at < $2
	`, PermanentFailureRetries, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up old entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetStatistics implements Backend.
func (l *PostgresLedger) GetStatistics(ctx context.Context, source string) (*model.Statistics, error) {
	query := `SELECT state, COUNT(*) FROM crawl_records`
	args := make([]any, 0, 1)
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` GROUP BY state`

	rows, err := l.pool.Query(ctx, query, args...)
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

	permQuery := `SELECT COUNT(*) FROM crawl_records WHERE state = 'failed' AND retry_count >= $1`
	permArgs := []any{PermanentFailureRetries}
	if source != "" {
		permQuery += ` AND source = $2`
		permArgs = append(permArgs, source)
	}
	if err := l.pool.QueryRow(ctx, permQuery, permArgs...).Scan(&stats.PermanentFailures); err != nil {
		return nil, fmt.Errorf("failed to count permanent failures: %w", err)
	}

	return stats, nil
}

// scanPgRecord reads one crawl record from the recordColumns SELECT list.
// pgx scans TIMESTAMPTZ straight into time.Time, so unlike the embedded
// profile no string parsing is involved.
func scanPgRecord(row pgx.Row) (*model.CrawlRecord, error) {
	var (
		record    model.CrawlRecord
		state     string
		sig, meta *string
	)
	err := row.Scan(
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
		&record.DiscoveredAt,
		&record.LastFetchedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
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
	return &record, nil
}

// scanPgRun reads one pipeline run from the runColumns SELECT list.
func scanPgRun(row pgx.Row) (*model.PipelineRun, error) {
	var (
		run      model.PipelineRun
		status   string
		snapshot []byte
	)
	err := row.Scan(
		&run.RunID,
		&run.Source,
		&run.PipelineType,
		&status,
		&run.StartTime,
		&run.EndTime,
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
	run.ConfigSnapshot = snapshot
	return &run, nil
}
