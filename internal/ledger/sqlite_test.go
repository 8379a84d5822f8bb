package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// openTestLedger creates an embedded ledger in a temp directory.
func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()

	l, err := OpenSQLite(t.TempDir(), DefaultSQLiteOptions())
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return l
}

func int64Ptr(v int64) *int64 { return &v }

// TestOpenSQLiteWithoutCreate tests that mode=rw refuses to create a new
// database.
func TestOpenSQLiteWithoutCreate(t *testing.T) {
	t.Parallel()

	opts := DefaultSQLiteOptions()
	opts.CreateIfNotExists = false
	if _, err := OpenSQLite(t.TempDir(), opts); err == nil {
		t.Fatal("OpenSQLite() should fail when the database does not exist")
	}
}

// TestDiscoverURL tests first-seen semantics: the first call creates the
// record and returns true, every later call returns false and leaves the
// record alone.
func TestDiscoverURL(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	created, err := l.DiscoverURL(ctx, "https://example.so/a", "wikipedia", map[string]string{"depth": "0"})
	if err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}
	if !created {
		t.Error("first DiscoverURL() should report creation")
	}

	created, err = l.DiscoverURL(ctx, "https://example.so/a", "wikipedia", nil)
	if err != nil {
		t.Fatalf("second DiscoverURL() error = %v", err)
	}
	if created {
		t.Error("second DiscoverURL() should report the record already exists")
	}

	record, err := l.GetURLState(ctx, "https://example.so/a")
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateDiscovered {
		t.Errorf("State = %q, want %q", record.State, model.StateDiscovered)
	}
	if record.Metadata["depth"] != "0" {
		t.Errorf("Metadata = %v, want original metadata preserved", record.Metadata)
	}
	if record.DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt should be set")
	}
}

// TestDiscoverURLValidation tests that empty required arguments are
// rejected before any query runs.
func TestDiscoverURLValidation(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	var vErr *ValidationError
	if _, err := l.DiscoverURL(ctx, "", "wikipedia", nil); !errors.As(err, &vErr) {
		t.Errorf("DiscoverURL(empty url) error = %v, want ValidationError", err)
	}
	if _, err := l.DiscoverURL(ctx, "https://example.so/a", "", nil); !errors.As(err, &vErr) {
		t.Errorf("DiscoverURL(empty source) error = %v, want ValidationError", err)
	}
}

// TestLifecycleTransitions tests the discovered -> fetched -> processed
// path and that terminal records resist later mutation.
func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	url := "https://example.so/article"

	if _, err := l.DiscoverURL(ctx, url, "wikipedia", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}

	etag := `"abc123"`
	length := int64(2048)
	if err := l.MarkFetched(ctx, url, FetchResult{HTTPStatus: 200, ETag: &etag, ContentLength: &length}); err != nil {
		t.Fatalf("MarkFetched() error = %v", err)
	}

	record, err := l.GetURLState(ctx, url)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateFetched {
		t.Errorf("State = %q, want %q", record.State, model.StateFetched)
	}
	if record.ETag == nil || *record.ETag != etag {
		t.Errorf("ETag = %v, want %q", record.ETag, etag)
	}
	if record.LastFetchedAt == nil {
		t.Error("LastFetchedAt should be set after MarkFetched")
	}

	// A fetch that omits optional fields keeps the stored values.
	if err := l.MarkFetched(ctx, url, FetchResult{HTTPStatus: 304}); err != nil {
		t.Fatalf("second MarkFetched() error = %v", err)
	}
	record, err = l.GetURLState(ctx, url)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.ETag == nil || *record.ETag != etag {
		t.Errorf("ETag = %v, want %q preserved across partial update", record.ETag, etag)
	}
	if record.HTTPStatus == nil || *record.HTTPStatus != 304 {
		t.Errorf("HTTPStatus = %v, want 304", record.HTTPStatus)
	}

	sig := []uint64{1, 2, 3, 4}
	if err := l.MarkProcessed(ctx, url, "aa11", sig, "silver-0001"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	record, err = l.GetURLState(ctx, url)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateProcessed {
		t.Errorf("State = %q, want %q", record.State, model.StateProcessed)
	}
	if record.SilverID == nil || *record.SilverID != "silver-0001" {
		t.Errorf("SilverID = %v, want silver-0001", record.SilverID)
	}
	if len(record.MinhashSignature) != len(sig) {
		t.Errorf("MinhashSignature length = %d, want %d", len(record.MinhashSignature), len(sig))
	}

	// Terminal: a late failure report must not regress the record.
	if err := l.MarkFailed(ctx, url, "late worker error"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	record, err = l.GetURLState(ctx, url)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateProcessed {
		t.Errorf("State = %q after MarkFailed on terminal record, want %q", record.State, model.StateProcessed)
	}
	if record.RetryCount != 0 {
		t.Errorf("RetryCount = %d, terminal record should be untouched", record.RetryCount)
	}
}

// TestMarkFailedRetryCount tests that the retry count increments on every
// failure and never decreases.
func TestMarkFailedRetryCount(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	url := "https://example.so/flaky"

	if _, err := l.DiscoverURL(ctx, url, "rss", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := l.MarkFailed(ctx, url, "connection reset"); err != nil {
			t.Fatalf("MarkFailed() #%d error = %v", i, err)
		}
		record, err := l.GetURLState(ctx, url)
		if err != nil {
			t.Fatalf("GetURLState() error = %v", err)
		}
		if record.RetryCount != i {
			t.Errorf("RetryCount = %d after %d failures, want %d", record.RetryCount, i, i)
		}
	}

	// A retry cycle through fetched keeps the count.
	if err := l.MarkFetched(ctx, url, FetchResult{HTTPStatus: 200}); err != nil {
		t.Fatalf("MarkFetched() error = %v", err)
	}
	record, err := l.GetURLState(ctx, url)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateFetched {
		t.Errorf("State = %q, want %q", record.State, model.StateFetched)
	}
	if record.RetryCount != 3 {
		t.Errorf("RetryCount = %d after retry, want 3 (never decreases)", record.RetryCount)
	}
}

// TestMarkDuplicate tests the cross-reference and that the canonical
// record stays untouched.
func TestMarkDuplicate(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	canonical := "https://example.so/original"
	mirror := "https://mirror.example.so/original"

	if _, err := l.DiscoverURL(ctx, canonical, "wikipedia", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}
	if err := l.MarkProcessed(ctx, canonical, "ff00", nil, "silver-0042"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	if _, err := l.DiscoverURL(ctx, mirror, "wikipedia", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}
	if err := l.MarkDuplicate(ctx, mirror, canonical); err != nil {
		t.Fatalf("MarkDuplicate() error = %v", err)
	}

	record, err := l.GetURLState(ctx, mirror)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if record.State != model.StateDuplicate {
		t.Errorf("State = %q, want %q", record.State, model.StateDuplicate)
	}
	if record.DuplicateOf == nil || *record.DuplicateOf != canonical {
		t.Errorf("DuplicateOf = %v, want %q", record.DuplicateOf, canonical)
	}

	original, err := l.GetURLState(ctx, canonical)
	if err != nil {
		t.Fatalf("GetURLState() error = %v", err)
	}
	if original.State != model.StateProcessed {
		t.Errorf("canonical State = %q, want %q untouched", original.State, model.StateProcessed)
	}
}

// TestGetURLStateNotFound tests the sentinel for unknown URLs.
func TestGetURLStateNotFound(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	if _, err := l.GetURLState(context.Background(), "https://example.so/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetURLState(unknown) error = %v, want ErrNotFound", err)
	}
}

// TestGetURLsByState tests listing and limit validation.
func TestGetURLsByState(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	urls := []string{
		"https://example.so/1",
		"https://example.so/2",
		"https://example.so/3",
	}
	for _, u := range urls {
		if _, err := l.DiscoverURL(ctx, u, "rss", nil); err != nil {
			t.Fatalf("DiscoverURL(%s) error = %v", u, err)
		}
	}
	if _, err := l.DiscoverURL(ctx, "https://other.so/x", "wikipedia", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}

	records, err := l.GetURLsByState(ctx, "rss", model.StateDiscovered, 10)
	if err != nil {
		t.Fatalf("GetURLsByState() error = %v", err)
	}
	if len(records) != len(urls) {
		t.Errorf("got %d records, want %d", len(records), len(urls))
	}

	records, err = l.GetURLsByState(ctx, "rss", model.StateDiscovered, 2)
	if err != nil {
		t.Fatalf("GetURLsByState() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records with limit 2, want 2", len(records))
	}

	var vErr *ValidationError
	for _, limit := range []int{0, -1} {
		if _, err := l.GetURLsByState(ctx, "rss", model.StateDiscovered, limit); !errors.As(err, &vErr) {
			t.Errorf("GetURLsByState(limit=%d) error = %v, want ValidationError", limit, err)
		}
	}
	if _, err := l.GetURLsByState(ctx, "rss", model.CrawlState("bogus"), 5); !errors.As(err, &vErr) {
		t.Errorf("GetURLsByState(bogus state) error = %v, want ValidationError", err)
	}
}

// TestGetURLsByStateAfter tests the keyset cursor: walking pages by the
// last URL of the previous page visits every record exactly once.
func TestGetURLsByStateAfter(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	urls := []string{
		"https://example.so/1",
		"https://example.so/2",
		"https://example.so/3",
		"https://example.so/4",
		"https://example.so/5",
	}
	for _, u := range urls {
		if _, err := l.DiscoverURL(ctx, u, "rss", nil); err != nil {
			t.Fatalf("DiscoverURL(%s) error = %v", u, err)
		}
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		records, err := l.GetURLsByStateAfter(ctx, "rss", model.StateDiscovered, cursor, 2)
		if err != nil {
			t.Fatalf("GetURLsByStateAfter() error = %v", err)
		}
		if len(records) == 0 {
			break
		}
		pages++
		for _, r := range records {
			if seen[r.URL] {
				t.Errorf("record %s returned twice", r.URL)
			}
			seen[r.URL] = true
		}
		cursor = records[len(records)-1].URL
	}

	if len(seen) != len(urls) {
		t.Errorf("visited %d records, want %d", len(seen), len(urls))
	}
	if pages != 3 {
		t.Errorf("walked %d pages with page size 2, want 3", pages)
	}

	var vErr *ValidationError
	if _, err := l.GetURLsByStateAfter(ctx, "rss", model.StateDiscovered, "", 0); !errors.As(err, &vErr) {
		t.Errorf("GetURLsByStateAfter(limit=0) error = %v, want ValidationError", err)
	}
	if _, err := l.GetURLsByStateAfter(ctx, "rss", model.CrawlState("bogus"), "", 5); !errors.As(err, &vErr) {
		t.Errorf("GetURLsByStateAfter(bogus state) error = %v, want ValidationError", err)
	}
}

// TestCheckDuplicateByHash tests the exact-duplicate lookup and that only
// processed records count as canonical.
func TestCheckDuplicateByHash(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	if _, _, err := l.CheckDuplicateByHash(ctx, "dead"); err != nil {
		t.Fatalf("CheckDuplicateByHash() error = %v", err)
	}

	url := "https://example.so/doc"
	if _, err := l.DiscoverURL(ctx, url, "wikipedia", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}

	// Not processed yet: the hash must not match.
	_, ok, err := l.CheckDuplicateByHash(ctx, "dead")
	if err != nil {
		t.Fatalf("CheckDuplicateByHash() error = %v", err)
	}
	if ok {
		t.Error("hash matched before any record was processed")
	}

	if err := l.MarkProcessed(ctx, url, "dead", nil, "silver-1"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	got, ok, err := l.CheckDuplicateByHash(ctx, "dead")
	if err != nil {
		t.Fatalf("CheckDuplicateByHash() error = %v", err)
	}
	if !ok || got != url {
		t.Errorf("CheckDuplicateByHash() = (%q, %v), want (%q, true)", got, ok, url)
	}
}

// TestRSSGating tests the poll-frequency gate.
func TestRSSGating(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	feed := "https://example.so/feed.xml"

	ok, err := l.ShouldFetchRSS(ctx, feed, time.Hour)
	if err != nil {
		t.Fatalf("ShouldFetchRSS() error = %v", err)
	}
	if !ok {
		t.Error("never-fetched feed should be fetchable")
	}

	if err := l.RecordRSSFetch(ctx, feed, 12); err != nil {
		t.Fatalf("RecordRSSFetch() error = %v", err)
	}

	ok, err = l.ShouldFetchRSS(ctx, feed, time.Hour)
	if err != nil {
		t.Fatalf("ShouldFetchRSS() error = %v", err)
	}
	if ok {
		t.Error("freshly fetched feed should be gated for an hour")
	}

	// A zero interval always allows polling.
	ok, err = l.ShouldFetchRSS(ctx, feed, 0)
	if err != nil {
		t.Fatalf("ShouldFetchRSS() error = %v", err)
	}
	if !ok {
		t.Error("zero interval should always allow a poll")
	}

	if err := l.RecordRSSFetch(ctx, feed, 3); err != nil {
		t.Fatalf("second RecordRSSFetch() error = %v", err)
	}

	var fetchCount, itemsFound int64
	if err := l.db.QueryRowContext(ctx,
		`SELECT fetch_count, items_found FROM rss_feed_state WHERE feed_url = ?`, feed,
	).Scan(&fetchCount, &itemsFound); err != nil {
		t.Fatalf("query rss state: %v", err)
	}
	if fetchCount != 2 {
		t.Errorf("fetch_count = %d, want 2", fetchCount)
	}
	if itemsFound != 3 {
		t.Errorf("items_found = %d, want the most recent poll's count 3", itemsFound)
	}
}

// TestIncrementDailyQuota tests atomic accumulation under concurrency:
// two workers adding 200 each against a 350 limit must end at exactly
// 400 ingested, and the follow-up check reports the quota exhausted.
func TestIncrementDailyQuota(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()
	limit := int64Ptr(350)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.IncrementDailyQuota(ctx, "reddit", 200, limit, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementDailyQuota() error = %v", err)
	}

	total, err := l.IncrementDailyQuota(ctx, "reddit", 0, nil, "")
	if err != nil {
		t.Fatalf("IncrementDailyQuota(read) error = %v", err)
	}
	if total != 400 {
		t.Errorf("records_ingested = %d, want 400 (no lost updates)", total)
	}

	hasQuota, remaining, err := l.CheckQuotaAvailable(ctx, "reddit", limit, "")
	if err != nil {
		t.Fatalf("CheckQuotaAvailable() error = %v", err)
	}
	if hasQuota {
		t.Error("quota should be exhausted at 400/350")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0 (clamped, never negative)", remaining)
	}
}

// TestCheckQuotaAvailable tests the limit-resolution order and the
// unlimited sentinel.
func TestCheckQuotaAvailable(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	// No row, no limit: unlimited.
	hasQuota, remaining, err := l.CheckQuotaAvailable(ctx, "bbc", nil, "")
	if err != nil {
		t.Fatalf("CheckQuotaAvailable() error = %v", err)
	}
	if !hasQuota || remaining != UnlimitedQuota {
		t.Errorf("CheckQuotaAvailable() = (%v, %d), want (true, %d)", hasQuota, remaining, UnlimitedQuota)
	}

	if _, err := l.IncrementDailyQuota(ctx, "bbc", 30, int64Ptr(100), ""); err != nil {
		t.Fatalf("IncrementDailyQuota() error = %v", err)
	}

	// Explicit limit wins over the stored one.
	hasQuota, remaining, err = l.CheckQuotaAvailable(ctx, "bbc", int64Ptr(40), "")
	if err != nil {
		t.Fatalf("CheckQuotaAvailable() error = %v", err)
	}
	if !hasQuota || remaining != 10 {
		t.Errorf("CheckQuotaAvailable(limit=40) = (%v, %d), want (true, 10)", hasQuota, remaining)
	}

	// Stored limit applies when none is passed.
	hasQuota, remaining, err = l.CheckQuotaAvailable(ctx, "bbc", nil, "")
	if err != nil {
		t.Fatalf("CheckQuotaAvailable() error = %v", err)
	}
	if !hasQuota || remaining != 70 {
		t.Errorf("CheckQuotaAvailable(stored) = (%v, %d), want (true, 70)", hasQuota, remaining)
	}

	// A marked hit short-circuits regardless of arithmetic.
	if err := l.MarkQuotaHit(ctx, "bbc", int64Ptr(12), ""); err != nil {
		t.Fatalf("MarkQuotaHit() error = %v", err)
	}
	hasQuota, remaining, err = l.CheckQuotaAvailable(ctx, "bbc", nil, "")
	if err != nil {
		t.Fatalf("CheckQuotaAvailable() error = %v", err)
	}
	if hasQuota || remaining != 0 {
		t.Errorf("CheckQuotaAvailable(after hit) = (%v, %d), want (false, 0)", hasQuota, remaining)
	}
}

// TestQuotaDateValidation tests that malformed dates are rejected.
func TestQuotaDateValidation(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	var vErr *ValidationError
	if _, err := l.IncrementDailyQuota(ctx, "bbc", 1, nil, "24-08-2026"); !errors.As(err, &vErr) {
		t.Errorf("IncrementDailyQuota(bad date) error = %v, want ValidationError", err)
	}
	if _, err := l.IncrementDailyQuota(ctx, "bbc", -1, nil, ""); !errors.As(err, &vErr) {
		t.Errorf("IncrementDailyQuota(negative count) error = %v, want ValidationError", err)
	}
}

// TestPipelineRuns tests registration, partial updates, and the
// successful-run queries.
func TestPipelineRuns(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	first := &model.PipelineRun{
		RunID:          "run-001",
		Source:         "wikipedia",
		PipelineType:   "web",
		StartTime:      time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC),
		ConfigSnapshot: []byte(`{"threshold":0.85}`),
		GitCommit:      "1a2b3c4",
	}
	if err := l.RegisterPipelineRun(ctx, first); err != nil {
		t.Fatalf("RegisterPipelineRun() error = %v", err)
	}

	// Duplicate run IDs are rejected by the primary key.
	if err := l.RegisterPipelineRun(ctx, first); err == nil {
		t.Error("RegisterPipelineRun() should reject a duplicate run_id")
	}

	got, err := l.GetPipelineRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetPipelineRun() error = %v", err)
	}
	if got.Status != model.RunStarted {
		t.Errorf("Status = %q, want %q by default", got.Status, model.RunStarted)
	}
	if string(got.ConfigSnapshot) != `{"threshold":0.85}` {
		t.Errorf("ConfigSnapshot = %s, want verbatim blob", got.ConfigSnapshot)
	}

	// Partial update: only the named fields change.
	status := model.RunCompleted
	end := time.Date(2026, 8, 1, 7, 30, 0, 0, time.UTC)
	processed := int64(950)
	if err := l.UpdatePipelineRun(ctx, "run-001", model.RunUpdate{
		Status:           &status,
		EndTime:          &end,
		RecordsProcessed: &processed,
	}); err != nil {
		t.Fatalf("UpdatePipelineRun() error = %v", err)
	}

	got, err = l.GetPipelineRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetPipelineRun() error = %v", err)
	}
	if got.Status != model.RunCompleted {
		t.Errorf("Status = %q, want %q", got.Status, model.RunCompleted)
	}
	if got.RecordsProcessed != 950 {
		t.Errorf("RecordsProcessed = %d, want 950", got.RecordsProcessed)
	}
	if got.GitCommit != "1a2b3c4" {
		t.Errorf("GitCommit = %q, untouched field should keep its value", got.GitCommit)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, end)
	}

	// Second completed run later the same day.
	second := &model.PipelineRun{
		RunID:        "run-002",
		Source:       "wikipedia",
		PipelineType: "web",
		StartTime:    time.Date(2026, 8, 2, 6, 0, 0, 0, time.UTC),
	}
	if err := l.RegisterPipelineRun(ctx, second); err != nil {
		t.Fatalf("RegisterPipelineRun() error = %v", err)
	}
	end2 := time.Date(2026, 8, 2, 7, 0, 0, 0, time.UTC)
	if err := l.UpdatePipelineRun(ctx, "run-002", model.RunUpdate{Status: &status, EndTime: &end2}); err != nil {
		t.Fatalf("UpdatePipelineRun() error = %v", err)
	}

	last, err := l.GetLastSuccessfulRun(ctx, "wikipedia")
	if err != nil {
		t.Fatalf("GetLastSuccessfulRun() error = %v", err)
	}
	if last.RunID != "run-002" {
		t.Errorf("GetLastSuccessfulRun() = %q, want run-002", last.RunID)
	}

	firstRun, err := l.GetFirstSuccessfulRun(ctx, "wikipedia")
	if err != nil {
		t.Fatalf("GetFirstSuccessfulRun() error = %v", err)
	}
	if firstRun.RunID != "run-001" {
		t.Errorf("GetFirstSuccessfulRun() = %q, want run-001", firstRun.RunID)
	}

	history, err := l.GetPipelineRunsHistory(ctx, "wikipedia", 10)
	if err != nil {
		t.Fatalf("GetPipelineRunsHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].RunID != "run-002" {
		t.Errorf("history[0] = %q, want most recent first", history[0].RunID)
	}
}

// TestUpdatePipelineRunErrors tests the not-found and empty-update paths.
func TestUpdatePipelineRunErrors(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	status := model.RunFailed
	if err := l.UpdatePipelineRun(ctx, "run-missing", model.RunUpdate{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePipelineRun(unknown) error = %v, want ErrNotFound", err)
	}

	var vErr *ValidationError
	if err := l.UpdatePipelineRun(ctx, "run-missing", model.RunUpdate{}); !errors.As(err, &vErr) {
		t.Errorf("UpdatePipelineRun(empty) error = %v, want ValidationError", err)
	}

	if _, err := l.GetLastSuccessfulRun(ctx, "never-ran"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLastSuccessfulRun(no runs) error = %v, want ErrNotFound", err)
	}
}

// TestCleanupOldEntries tests that only stale permanent failures are
// removed; terminal records and transient failures are retained
// regardless of age.
func TestCleanupOldEntries(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	seed := func(url string) {
		t.Helper()
		if _, err := l.DiscoverURL(ctx, url, "rss", nil); err != nil {
			t.Fatalf("DiscoverURL(%s) error = %v", url, err)
		}
	}
	backdate := func(url string, days int) {
		t.Helper()
		old := formatTime(time.Now().UTC().AddDate(0, 0, -days))
		if _, err := l.db.ExecContext(ctx,
			`UPDATE crawl_records SET updated_at = ? WHERE url = ?`, old, url); err != nil {
			t.Fatalf("backdate %s: %v", url, err)
		}
	}

	// Permanently failed and stale: eligible.
	seed("https://example.so/perm")
	for range PermanentFailureRetries {
		if err := l.MarkFailed(ctx, "https://example.so/perm", "dns failure"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}
	backdate("https://example.so/perm", 120)

	// Transient failure, equally old: retained.
	seed("https://example.so/transient")
	if err := l.MarkFailed(ctx, "https://example.so/transient", "timeout"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	backdate("https://example.so/transient", 120)

	// Processed and ancient: retained as audit trail.
	seed("https://example.so/done")
	if err := l.MarkProcessed(ctx, "https://example.so/done", "beef", nil, "silver-9"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	backdate("https://example.so/done", 365)

	// Permanently failed but recent: retained.
	seed("https://example.so/recent")
	for range PermanentFailureRetries {
		if err := l.MarkFailed(ctx, "https://example.so/recent", "dns failure"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}

	removed, err := l.CleanupOldEntries(ctx, 90)
	if err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want exactly the stale permanent failure", removed)
	}

	if _, err := l.GetURLState(ctx, "https://example.so/perm"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale permanent failure should be gone, got err = %v", err)
	}
	for _, url := range []string{
		"https://example.so/transient",
		"https://example.so/done",
		"https://example.so/recent",
	} {
		if _, err := l.GetURLState(ctx, url); err != nil {
			t.Errorf("GetURLState(%s) error = %v, record should be retained", url, err)
		}
	}

	var vErr *ValidationError
	if _, err := l.CleanupOldEntries(ctx, 0); !errors.As(err, &vErr) {
		t.Errorf("CleanupOldEntries(0) error = %v, want ValidationError", err)
	}
}

// TestGetStatistics tests the aggregate counters and the dedup rate.
func TestGetStatistics(t *testing.T) {
	t.Parallel()

	l := openTestLedger(t)
	ctx := context.Background()

	for _, u := range []string{"https://a.so/1", "https://a.so/2", "https://a.so/3", "https://a.so/4"} {
		if _, err := l.DiscoverURL(ctx, u, "wikipedia", nil); err != nil {
			t.Fatalf("DiscoverURL(%s) error = %v", u, err)
		}
	}
	if err := l.MarkProcessed(ctx, "https://a.so/1", "01", nil, "s1"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := l.MarkProcessed(ctx, "https://a.so/2", "02", nil, "s2"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := l.MarkDuplicate(ctx, "https://a.so/3", "https://a.so/1"); err != nil {
		t.Fatalf("MarkDuplicate() error = %v", err)
	}
	for range PermanentFailureRetries {
		if err := l.MarkFailed(ctx, "https://a.so/4", "boom"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}
	if _, err := l.DiscoverURL(ctx, "https://b.so/1", "rss", nil); err != nil {
		t.Fatalf("DiscoverURL() error = %v", err)
	}

	stats, err := l.GetStatistics(ctx, "wikipedia")
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if stats.TotalRecords != 4 {
		t.Errorf("TotalRecords = %d, want 4 (source filter applied)", stats.TotalRecords)
	}
	if stats.ByState[model.StateProcessed] != 2 {
		t.Errorf("processed = %d, want 2", stats.ByState[model.StateProcessed])
	}
	if stats.ByState[model.StateDuplicate] != 1 {
		t.Errorf("duplicate = %d, want 1", stats.ByState[model.StateDuplicate])
	}
	wantRate := 1.0 / 3.0
	if diff := stats.DedupRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("DedupRate = %v, want %v", stats.DedupRate, wantRate)
	}
	if stats.PermanentFailures != 1 {
		t.Errorf("PermanentFailures = %d, want 1", stats.PermanentFailures)
	}

	all, err := l.GetStatistics(ctx, "")
	if err != nil {
		t.Fatalf("GetStatistics(all) error = %v", err)
	}
	if all.TotalRecords != 5 {
		t.Errorf("TotalRecords = %d across all sources, want 5", all.TotalRecords)
	}
}

// TestFormatTimeOrdering tests that stored timestamp strings compare
// lexicographically in chronological order even when the fractional part
// ends in zeros, since ORDER BY and cutoff comparisons run on the strings.
func TestFormatTimeOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 14, 9, 26, 5, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(510 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev, next := formatTime(times[i-1]), formatTime(times[i])
		if !(prev < next) {
			t.Errorf("formatTime(%v) = %q does not sort before formatTime(%v) = %q",
				times[i-1], prev, times[i], next)
		}
	}

	for _, tm := range times {
		if got := parseTimestamp(formatTime(tm)); !got.Equal(tm) {
			t.Errorf("parseTimestamp(formatTime(%v)) = %v, want round trip", tm, got)
		}
	}
}
