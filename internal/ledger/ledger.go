package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// FetchResult carries the transport metadata recorded by MarkFetched.
// Optional fields left nil keep whatever value the record already holds.
type FetchResult struct {
	// HTTPStatus is the response status code of the fetch.
	HTTPStatus int

	// ETag and LastModified are cached for conditional re-fetches.
	ETag         *string
	LastModified *string

	// ContentLength is the response body size, when known.
	ContentLength *int64

	// ErrorMessage carries non-fatal fetch detail (e.g. a warning from a
	// redirect chain). It overwrites the stored message when set.
	ErrorMessage *string
}

// Backend is the crawl ledger contract shared by both storage profiles.
// Any number of workers may call operations concurrently, for the same or
// different URLs; every mutation is a single atomic upsert, so partial
// updates are never observable and per-URL writes serialize at the row.
//
// Optional-field semantics: a call that omits an optional field never
// erases a previously stored value (COALESCE-style merging).
type Backend interface {
	// DiscoverURL records a newly discovered resource. It is idempotent:
	// the first call for a URL creates the record in StateDiscovered and
	// returns true; every later call returns false regardless of state.
	DiscoverURL(ctx context.Context, url, source string, metadata map[string]string) (bool, error)

	// MarkFetched transitions the record to StateFetched and stores
	// transport-cache metadata for future conditional requests.
	MarkFetched(ctx context.Context, url string, result FetchResult) error

	// MarkFailed transitions the record to StateFailed, stores the error
	// message (overwriting, not appending), and increments the retry count.
	MarkFailed(ctx context.Context, url, errorMessage string) error

	// MarkProcessed transitions the record to its terminal success state,
	// storing the content fingerprint, the optional MinHash signature, and
	// the silver artifact pointer.
	MarkProcessed(ctx context.Context, url, textHash string, signature []uint64, silverID string) error

	// MarkDuplicate transitions the record to StateDuplicate,
	// cross-referencing the canonical URL holding the content. The
	// canonical record itself is not touched.
	MarkDuplicate(ctx context.Context, url, originalURL string) error

	// GetURLState returns the full record for url, or ErrNotFound.
	GetURLState(ctx context.Context, url string) (*model.CrawlRecord, error)

	// GetURLsByState lists up to limit records of one source in the given
	// state. The limit must be a positive integer; anything else is a
	// ValidationError rejected before any query is constructed.
	GetURLsByState(ctx context.Context, source string, state model.CrawlState, limit int) ([]model.CrawlRecord, error)

	// GetURLsByStateAfter is the keyset-paginated variant of
	// GetURLsByState: it returns up to limit records with URL strictly
	// greater than afterURL, ordered by URL. Passing the last URL of one
	// page as afterURL of the next walks the full result set without
	// offsets; an empty afterURL starts from the beginning.
	GetURLsByStateAfter(ctx context.Context, source string, state model.CrawlState, afterURL string, limit int) ([]model.CrawlRecord, error)

	// CheckDuplicateByHash performs the O(1) exact-duplicate lookup: it
	// returns the canonical processed URL carrying textHash, or ok=false.
	CheckDuplicateByHash(ctx context.Context, textHash string) (url string, ok bool, err error)

	// ShouldFetchRSS reports whether feedURL may be polled: true when the
	// feed has never been fetched or the elapsed time since the last fetch
	// exceeds minInterval.
	ShouldFetchRSS(ctx context.Context, feedURL string, minInterval time.Duration) (bool, error)

	// RecordRSSFetch records a completed poll, incrementing the fetch
	// counter.
	RecordRSSFetch(ctx context.Context, feedURL string, itemsFound int64) error

	// IncrementDailyQuota atomically adds count to the (date, source)
	// counter and returns the updated usage. Concurrent increments
	// accumulate without lost updates. An empty date means today (UTC).
	IncrementDailyQuota(ctx context.Context, source string, count int64, quotaLimit *int64, date string) (int64, error)

	// CheckQuotaAvailable reports whether the source may ingest more today.
	// The effective limit is quotaLimit when non-nil, else the stored
	// limit; with no limit at all the quota is unlimited and remaining is
	// UnlimitedQuota. Remaining is clamped at zero, never negative.
	CheckQuotaAvailable(ctx context.Context, source string, quotaLimit *int64, date string) (hasQuota bool, remaining int64, err error)

	// MarkQuotaHit records that a limit was reached mid-run so subsequent
	// checks short-circuit without re-deriving it.
	MarkQuotaHit(ctx context.Context, source string, itemsRemaining *int64, date string) error

	// RegisterPipelineRun creates the bookkeeping row for a run. The run
	// ID must be unique; the config snapshot is stored verbatim.
	RegisterPipelineRun(ctx context.Context, run *model.PipelineRun) error

	// UpdatePipelineRun applies a partial update: only non-nil fields of
	// update change. Unknown run IDs return ErrNotFound.
	UpdatePipelineRun(ctx context.Context, runID string, update model.RunUpdate) error

	// GetPipelineRun returns one run, or ErrNotFound.
	GetPipelineRun(ctx context.Context, runID string) (*model.PipelineRun, error)

	// GetPipelineRunsHistory lists a source's runs, most recent first.
	// The limit must be a positive integer.
	GetPipelineRunsHistory(ctx context.Context, source string, limit int) ([]model.PipelineRun, error)

	// GetLastSuccessfulRun and GetFirstSuccessfulRun return the completed
	// run with the max/min end time for a source, or ErrNotFound. External
	// schedulers use them for incremental-processing decisions.
	GetLastSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error)
	GetFirstSuccessfulRun(ctx context.Context, source string) (*model.PipelineRun, error)

	// CleanupOldEntries deletes failed records with retry count >= 3 whose
	// last update is older than days. This is the only deletion path; all
	// terminal records are retained indefinitely as audit trail. Returns
	// the number of removed rows.
	CleanupOldEntries(ctx context.Context, days int) (int64, error)

	// GetStatistics aggregates counts by state, the dedup rate, and the
	// permanent-failure count. An empty source means all sources.
	GetStatistics(ctx context.Context, source string) (*model.Statistics, error)

	// Close releases the underlying store.
	Close() error
}

// Both profiles implement the full contract.
var (
	_ Backend = (*SQLiteLedger)(nil)
	_ Backend = (*PostgresLedger)(nil)
)

// UnlimitedQuota is the remaining value reported when no quota limit is
// configured for a (date, source) pair.
const UnlimitedQuota int64 = -1

// PermanentFailureRetries is the retry count at which a failed record is
// considered permanently failed and becomes eligible for cleanup.
const PermanentFailureRetries = 3

// quotaDate returns the effective quota day: the argument when set,
// otherwise today in UTC. The YYYY-MM-DD form is validated before it can
// reach query construction.
func quotaDate(date string) (string, error) {
	if date == "" {
		return time.Now().UTC().Format(time.DateOnly), nil
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return "", &ValidationError{Field: "date", Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", date)}
	}
	return date, nil
}

// encodeSignature serializes a MinHash signature for storage. A nil or
// empty signature stores NULL so that COALESCE merging keeps an earlier
// value.
func encodeSignature(sig []uint64) (*string, error) {
	if len(sig) == 0 {
		return nil, nil //nolint:nilnil // NULL column is the intended representation
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signature: %w", err)
	}
	s := string(data)
	return &s, nil
}

// decodeSignature parses a stored signature. NULL and empty both decode
// to nil.
func decodeSignature(raw *string) ([]uint64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var sig []uint64
	if err := json.Unmarshal([]byte(*raw), &sig); err != nil {
		return nil, fmt.Errorf("failed to parse signature: %w", err)
	}
	return sig, nil
}

// encodeMetadata serializes the opaque metadata map. Nil and empty maps
// store NULL.
func encodeMetadata(metadata map[string]string) (*string, error) {
	if len(metadata) == 0 {
		return nil, nil //nolint:nilnil // NULL column is the intended representation
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	s := string(data)
	return &s, nil
}

// decodeMetadata parses stored metadata. Unknown keys pass through
// untouched; the ledger never interprets them.
func decodeMetadata(raw *string) (map[string]string, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(*raw), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}
