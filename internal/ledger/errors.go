package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by lookups whose subject does not exist
// (unknown URL, unknown run ID, no successful run yet). Callers test it
// with errors.Is and treat it as an expected outcome, not a storage
// failure.
var ErrNotFound = errors.New("ledger: not found")

// ValidationError reports a malformed argument rejected before any query
// was constructed. No partial mutation occurs when one is returned.
//
// Design decision: A typed error rather than a sentinel, so the message
// can name the offending field and value while callers still match the
// class with errors.As.
type ValidationError struct {
	// Field names the rejected argument.
	Field string

	// Reason describes why it was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Reason)
}

// SchemaError is returned by the schema guard when the networked profile
// is pointed at a database missing required tables. The ledger never
// creates production schema; missing tables mean migrations have not been
// applied.
type SchemaError struct {
	// Missing lists the required tables that were not found.
	Missing []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("ledger: schema not initialized: missing tables [%s]; apply the migration files with your migration tool before starting the ledger",
		strings.Join(e.Missing, ", "))
}

// validateLimit rejects non-positive limits before they can reach query
// construction.
func validateLimit(limit int) error {
	if limit < 1 {
		return &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be a positive integer, got %d", limit)}
	}
	return nil
}

// validateDays rejects non-positive retention windows.
func validateDays(days int) error {
	if days < 1 {
		return &ValidationError{Field: "days", Reason: fmt.Sprintf("must be a positive integer, got %d", days)}
	}
	return nil
}

// validateNonEmpty rejects empty required string arguments.
func validateNonEmpty(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
