package lsh

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/minhash"
)

// testGenerator returns a signature generator matching the test index
// parameters.
func testGenerator() *minhash.Generator {
	return minhash.NewGenerator(DefaultPermutations, minhash.DefaultShingleSize, minhash.DefaultSeed)
}

// TestNewValidation tests option validation.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"defaults are valid", Options{}, nil},
		{"negative shards", Options{Shards: -1}, ErrInvalidShards},
		{"bands not dividing permutations", Options{Bands: 7, Permutations: 128}, ErrInvalidBands},
		{"threshold above one", Options{Threshold: 1.5}, ErrInvalidThreshold},
		{"negative threshold", Options{Threshold: -0.2}, ErrInvalidThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.opts)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("New() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestSelfMatch tests that an inserted document is a candidate of its own
// signature.
func TestSelfMatch(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	gen := testGenerator()
	sig := gen.Signature("dhaqanka iyo afka soomaaliga waa hanti qaran")

	if err := idx.Insert("doc-1", sig); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	candidates, err := idx.Query(sig)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if !contains(candidates, "doc-1") {
		t.Errorf("document missing from its own query result: %v", candidates)
	}
}

// TestNearDuplicateScenario tests the candidacy behavior for a one-word
// edit versus unrelated text at threshold 0.7.
func TestNearDuplicateScenario(t *testing.T) {
	t.Parallel()

	// 32 bands of 4 rows push candidacy probability near 1 for documents
	// around similarity 0.7.
	idx, err := New(Options{Bands: 32, Threshold: 0.7})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	gen := testGenerator()
	sigA := gen.Signature("the quick brown fox jumps over the lazy dog")
	sigB := gen.Signature("the quick brown fox leaps over the lazy dog")
	sigC := gen.Signature("a completely different sentence about cats")

	if err := idx.Insert("doc-a", sigA); err != nil {
		t.Fatalf("Insert(doc-a) error: %v", err)
	}
	if err := idx.Insert("doc-c", sigC); err != nil {
		t.Fatalf("Insert(doc-c) error: %v", err)
	}

	candidates, err := idx.Query(sigB)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if !contains(candidates, "doc-a") {
		t.Errorf("near-duplicate doc-a should be a candidate of B, got %v", candidates)
	}
	if contains(candidates, "doc-c") {
		t.Errorf("unrelated doc-c should not be a candidate of B, got %v", candidates)
	}
}

// TestInsertIdempotent tests that re-inserting a document does not
// duplicate it or grow the index.
func TestInsertIdempotent(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	gen := testGenerator()
	sig := gen.Signature("isku mid ah")

	for range 3 {
		if err := idx.Insert("doc-1", sig); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	if got := idx.Size(); got != 1 {
		t.Errorf("Size() = %d after repeated inserts, want 1", got)
	}

	candidates, err := idx.Query(sig)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(candidates) != 1 {
		t.Errorf("Query() returned %v, want exactly one candidate", candidates)
	}
}

// TestInsertValidation tests rejection of malformed inserts.
func TestInsertValidation(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := idx.Insert("", testGenerator().Signature("x")); !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("Insert with empty doc ID: error = %v, want ErrEmptyDocID", err)
	}

	var lenErr *SignatureLengthError
	if err := idx.Insert("doc-1", make([]uint64, 16)); !errors.As(err, &lenErr) {
		t.Errorf("Insert with short signature: error = %v, want SignatureLengthError", err)
	}
}

// TestSaveLoadRoundTrip tests that a reloaded index returns the same
// candidate set as before persistence.
func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	gen := testGenerator()
	docs := map[string]string{
		"doc-1": "wararka maanta ee caalamka iyo gobolka",
		"doc-2": "wararka maanta ee caalamka iyo deegaanka",
		"doc-3": "cunto karinta iyo dhaqanka reer miyiga",
	}
	sigs := make(map[string][]uint64, len(docs))
	for docID, text := range docs {
		sigs[docID] = gen.Signature(text)
		if err := idx.Insert(docID, sigs[docID]); err != nil {
			t.Fatalf("Insert(%s) error: %v", docID, err)
		}
	}

	before, err := idx.Query(sigs["doc-1"])
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	dir := t.TempDir()
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reloaded, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := reloaded.Size(); got != len(docs) {
		t.Errorf("reloaded Size() = %d, want %d", got, len(docs))
	}

	after, err := reloaded.Query(sigs["doc-1"])
	if err != nil {
		t.Fatalf("Query() after reload error: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("candidate set changed across persistence: before %v, after %v", before, after)
	}

	// Stored signatures must survive byte-for-byte.
	for docID, want := range sigs {
		got, ok := reloaded.Signature(docID)
		if !ok {
			t.Fatalf("Signature(%s) missing after reload", docID)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Signature(%s) changed across persistence", docID)
		}
	}
}

// TestLoadParameterMismatch tests that mismatched parameters are rejected
// explicitly.
func TestLoadParameterMismatch(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{Shards: 4})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	dir := t.TempDir()
	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	other, err := New(Options{Shards: 8})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	var mismatch *ManifestMismatchError
	if err := other.Load(dir); !errors.As(err, &mismatch) {
		t.Fatalf("Load() error = %v, want ManifestMismatchError", err)
	}
	if mismatch.Field != "shards" {
		t.Errorf("mismatch field = %q, want %q", mismatch.Field, "shards")
	}
}

// TestConcurrentInserts tests that parallel inserts across shards land
// without losing documents.
func TestConcurrentInserts(t *testing.T) {
	t.Parallel()

	idx, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	gen := testGenerator()
	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				docID := string(rune('a'+w)) + "-" + string(rune('0'+i%10)) + string(rune('0'+i/10))
				if err := idx.Insert(docID, gen.Signature(docID+" unique text body")); err != nil {
					t.Errorf("Insert(%s) error: %v", docID, err)
				}
			}
		}()
	}
	wg.Wait()

	if got := idx.Size(); got != workers*perWorker {
		t.Errorf("Size() = %d after concurrent inserts, want %d", got, workers*perWorker)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
