package lsh

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Default index parameters.
const (
	// DefaultShards balances per-shard bucket size against fan-out cost.
	DefaultShards = 10

	// DefaultBands with DefaultPermutations=128 gives 8 rows per band.
	// The resulting candidacy S-curve crosses 50% near similarity 0.71 and
	// exceeds 99% at the default threshold of 0.85.
	DefaultBands = 16

	// DefaultPermutations must match the signature generator.
	DefaultPermutations = 128

	// DefaultThreshold is the similarity above which candidates are
	// treated as near-duplicates by callers.
	DefaultThreshold = 0.85
)

// manifestFile is the metadata file written next to the shard files.
const manifestFile = "manifest.json"

// Options configures an Index. The zero value of any field falls back to
// the package default.
type Options struct {
	// Shards is the number of independent partitions.
	Shards int

	// Bands is the number of bands the signature is split into.
	// Permutations must be divisible by Bands.
	Bands int

	// Permutations is the signature length the index accepts.
	Permutations int

	// Threshold is the target similarity the banding is tuned for. The
	// index records it in the manifest; acceptance decisions belong to the
	// caller.
	Threshold float64
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Shards == 0 {
		o.Shards = DefaultShards
	}
	if o.Bands == 0 {
		o.Bands = DefaultBands
	}
	if o.Permutations == 0 {
		o.Permutations = DefaultPermutations
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// validate checks option consistency.
func (o Options) validate() error {
	if o.Shards < 1 {
		return ErrInvalidShards
	}
	if o.Bands < 1 || o.Permutations%o.Bands != 0 {
		return ErrInvalidBands
	}
	if o.Threshold <= 0 || o.Threshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// manifest is persisted alongside the shard files so a reload with
// mismatched parameters is rejected instead of silently returning wrong
// candidates.
type manifest struct {
	Shards       int     `json:"shards"`
	Bands        int     `json:"bands"`
	Permutations int     `json:"permutations"`
	Threshold    float64 `json:"threshold"`
}

// Index is a sharded banded LSH index. It is safe for concurrent use;
// synchronization happens per shard, never by callers.
type Index struct {
	opts   Options
	rows   int
	shards []*shard
}

// New creates an Index with the given options.
func New(opts Options) (*Index, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = newShard(opts.Bands)
	}

	return &Index{
		opts:   opts,
		rows:   opts.Permutations / opts.Bands,
		shards: shards,
	}, nil
}

// Options returns the index configuration.
func (idx *Index) Options() Options {
	return idx.opts
}

// Threshold returns the similarity threshold the banding is tuned for.
func (idx *Index) Threshold() float64 {
	return idx.opts.Threshold
}

// shardFor picks the owning shard by hashing the document ID.
func (idx *Index) shardFor(docID string) *shard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(docID))
	return idx.shards[h.Sum64()%uint64(len(idx.shards))]
}

// Insert adds a document's signature to its owning shard. Inserting the
// same document ID with the same signature again is a no-op.
func (idx *Index) Insert(docID string, sig []uint64) error {
	if docID == "" {
		return ErrEmptyDocID
	}
	if len(sig) != idx.opts.Permutations {
		return &SignatureLengthError{Want: idx.opts.Permutations, Got: len(sig)}
	}

	idx.shardFor(docID).insert(docID, sig, idx.rows)
	return nil
}

// Query fans out to every shard and returns the union of candidate
// document IDs, sorted for stable output. Candidates share at least one
// band bucket with the signature; the caller decides acceptance.
//
// A query is not guaranteed to see inserts that commit during the
// fan-out: each shard is read under its own lock, snapshot-at-call, not
// point-in-time-consistent across shards.
func (idx *Index) Query(sig []uint64) ([]string, error) {
	if len(sig) != idx.opts.Permutations {
		return nil, &SignatureLengthError{Want: idx.opts.Permutations, Got: len(sig)}
	}

	results := make([][]string, len(idx.shards))
	var g errgroup.Group
	for i, s := range idx.shards {
		g.Go(func() error {
			results[i] = s.query(sig, idx.rows)
			return nil
		})
	}
	// Shard queries cannot fail; the group only provides the fan-out.
	_ = g.Wait()

	seen := make(map[string]struct{})
	var out []string
	for _, part := range results {
		for _, docID := range part {
			if _, dup := seen[docID]; !dup {
				seen[docID] = struct{}{}
				out = append(out, docID)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Signature returns a copy of the stored signature for docID, if present.
func (idx *Index) Signature(docID string) ([]uint64, bool) {
	if docID == "" {
		return nil, false
	}
	return idx.shardFor(docID).signature(docID)
}

// Size returns the total number of indexed documents.
func (idx *Index) Size() int {
	total := 0
	for _, s := range idx.shards {
		total += s.size()
	}
	return total
}

// Save persists every shard plus the parameter manifest into dir. Shards
// are written in parallel, one JSON file per shard, so a later Load can
// restore them independently.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	m := manifest{
		Shards:       idx.opts.Shards,
		Bands:        idx.opts.Bands,
		Permutations: idx.opts.Permutations,
		Threshold:    idx.opts.Threshold,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	var g errgroup.Group
	for i, s := range idx.shards {
		g.Go(func() error {
			payload, err := json.Marshal(s.snapshot())
			if err != nil {
				return fmt.Errorf("failed to serialize shard %d: %w", i, err)
			}
			path := filepath.Join(dir, shardFileName(i))
			if err := os.WriteFile(path, payload, 0600); err != nil {
				return fmt.Errorf("failed to write shard %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Load restores the index from dir. The persisted manifest must match the
// index's own parameters exactly; any drift returns a
// ManifestMismatchError instead of degraded results. Band buckets are
// rebuilt from the loaded signatures, which is deterministic for fixed
// parameters.
func (idx *Index) Load(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile)) //nolint:gosec // Caller-chosen index directory is intentional
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.Shards != idx.opts.Shards {
		return &ManifestMismatchError{Field: "shards", Want: idx.opts.Shards, Got: m.Shards}
	}
	if m.Bands != idx.opts.Bands {
		return &ManifestMismatchError{Field: "bands", Want: idx.opts.Bands, Got: m.Bands}
	}
	if m.Permutations != idx.opts.Permutations {
		return &ManifestMismatchError{Field: "permutations", Want: idx.opts.Permutations, Got: m.Permutations}
	}
	if m.Threshold != idx.opts.Threshold {
		return &ManifestMismatchError{Field: "threshold", Want: idx.opts.Threshold, Got: m.Threshold}
	}

	var g errgroup.Group
	for i, s := range idx.shards {
		g.Go(func() error {
			payload, err := os.ReadFile(filepath.Join(dir, shardFileName(i))) //nolint:gosec // Shard path is built from the index directory
			if err != nil {
				return fmt.Errorf("failed to read shard %d: %w", i, err)
			}
			var signatures map[string][]uint64
			if err := json.Unmarshal(payload, &signatures); err != nil {
				return fmt.Errorf("failed to parse shard %d: %w", i, err)
			}
			s.replace(signatures, idx.rows)
			return nil
		})
	}
	return g.Wait()
}

// shardFileName returns the persisted file name for shard i.
func shardFileName(i int) string {
	return fmt.Sprintf("shard-%04d.json", i)
}
