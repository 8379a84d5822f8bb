package ledger

import (
	"context"
	"fmt"
)

// requiredTables are the tables the networked profile expects migrations
// to have created.
var requiredTables = []string{
	"crawl_records",
	"daily_quotas",
	"pipeline_runs",
	"rss_feed_state",
}

// VerifySchema checks that every required table exists in the connected
// database. It returns a SchemaError listing the missing tables, never
// creating any of them: production schema is owned by the migration
// files, and implicit creation from application code would race against
// concurrent deployments.
func (l *PostgresLedger) VerifySchema(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = current_schema() AND table_name = ANY($1)
	`, requiredTables)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(requiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, table := range requiredTables {
		if !found[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
