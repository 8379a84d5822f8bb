package model

import "time"

// CrawlRecord is one row per discovered resource (URL or stable source ID).
// It is the ledger's unit of truth for "has this been seen/processed
// before" and carries the dedup pointers produced by the cascade.
//
// Optional columns are pointers so that an unset field can be
// distinguished from a zero value; upserts merge optional fields
// COALESCE-style and never erase a previously stored value with nil.
type CrawlRecord struct {
	// URL is the unique key of the record.
	URL string `json:"url"`

	// Source is the logical source name (e.g. "wikipedia", "reddit").
	Source string `json:"source"`

	// State is the record's position in the crawl lifecycle.
	State CrawlState `json:"state"`

	// TextHash is the 64-hex-char exact-content fingerprint.
	// Set only when State is processed or duplicate.
	TextHash *string `json:"text_hash,omitempty"`

	// MinhashSignature is the fixed-length near-duplicate signature
	// (default 128 components). Nil when near-dedup is disabled.
	MinhashSignature []uint64 `json:"minhash_signature,omitempty"`

	// SilverID points at the downstream processed artifact.
	// Set only when State is processed.
	SilverID *string `json:"silver_id,omitempty"`

	// DuplicateOf is the canonical URL holding the content.
	// Set only when State is duplicate.
	DuplicateOf *string `json:"duplicate_of,omitempty"`

	// HTTPStatus is the status code of the last fetch.
	HTTPStatus *int `json:"http_status,omitempty"`

	// ETag and LastModified are transport-cache metadata stored for
	// conditional re-fetches. ContentLength completes the trio.
	ETag          *string `json:"etag,omitempty"`
	LastModified  *string `json:"last_modified,omitempty"`
	ContentLength *int64  `json:"content_length,omitempty"`

	// ErrorMessage is the last failure detail. Overwritten, not appended.
	ErrorMessage *string `json:"error_message,omitempty"`

	// RetryCount is incremented on every transition into StateFailed.
	// It never decreases.
	RetryCount int `json:"retry_count"`

	// Metadata is an opaque source-specific extension map. The ledger
	// stores and returns it verbatim and never interprets its keys.
	Metadata map[string]string `json:"metadata,omitempty"`

	// DiscoveredAt is set once, when the record is created.
	DiscoveredAt time.Time `json:"discovered_at"`

	// LastFetchedAt is updated on every MarkFetched.
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the ledger on every write.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyQuota tracks per-(date, source) ingestion volume. The composite key
// is (Date, Source); Date uses the YYYY-MM-DD form.
type DailyQuota struct {
	// Date is the quota day in YYYY-MM-DD form.
	Date string `json:"date"`

	// Source is the logical source name.
	Source string `json:"source"`

	// RecordsIngested only increments within a day. Concurrent increments
	// accumulate via atomic upsert, never read-modify-write.
	RecordsIngested int64 `json:"records_ingested"`

	// QuotaLimit caps the day's ingestion when set.
	QuotaLimit *int64 `json:"quota_limit,omitempty"`

	// QuotaHit records that the limit was reached mid-run so later checks
	// can short-circuit without re-deriving it.
	QuotaHit bool `json:"quota_hit"`

	// ItemsRemaining is an optional snapshot recorded alongside QuotaHit.
	ItemsRemaining *int64 `json:"items_remaining,omitempty"`

	// UpdatedAt is maintained by the ledger on every write.
	UpdatedAt time.Time `json:"updated_at"`
}

// RSSFeedState gates poll frequency per feed URL.
type RSSFeedState struct {
	// FeedURL is the unique key.
	FeedURL string `json:"feed_url"`

	// LastFetchedAt is nil until the feed has been polled once.
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`

	// ItemsFound is the item count of the most recent poll.
	ItemsFound int64 `json:"items_found"`

	// FetchCount only increments.
	FetchCount int64 `json:"fetch_count"`
}

// Statistics aggregates ledger counts, optionally filtered to one source.
type Statistics struct {
	// Source is the filter the statistics were computed for.
	// Empty means all sources.
	Source string `json:"source,omitempty"`

	// TotalRecords is the number of crawl records counted.
	TotalRecords int64 `json:"total_records"`

	// ByState maps each crawl state to its record count.
	ByState map[CrawlState]int64 `json:"by_state"`

	// DedupRate is duplicates / (processed + duplicates), or zero when
	// nothing has been processed yet.
	DedupRate float64 `json:"dedup_rate"`

	// PermanentFailures counts failed records with RetryCount >= 3,
	// i.e. the rows CleanupOldEntries is allowed to remove once stale.
	PermanentFailures int64 `json:"permanent_failures"`
}

// NearDuplicate is one near-duplicate hit returned by the document-near
// dedup tier: a previously indexed URL and its estimated Jaccard
// similarity to the query document.
type NearDuplicate struct {
	// URL is the previously indexed document.
	URL string `json:"url"`

	// Similarity is the estimated Jaccard similarity in [0, 1].
	Similarity float64 `json:"similarity"`
}
