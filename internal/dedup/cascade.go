package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/config"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/fingerprint"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/ledger"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/lsh"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/minhash"
	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/model"
)

// Tier identifies which cascade tier terminated processing.
type Tier string

const (
	// TierNone means every tier passed: the document is unique.
	TierNone Tier = "none"

	// TierTransport means a conditional request reported not-modified.
	TierTransport Tier = "transport"

	// TierFile means the whole-file checksum matched the last successful
	// processing of the resource.
	TierFile Tier = "file"

	// TierExact means the content fingerprint matched a processed record.
	TierExact Tier = "exact"

	// TierNear means a MinHash candidate exceeded the similarity threshold.
	TierNear Tier = "near"
)

// Package sentinel errors.
var (
	// ErrNilBackend is returned by New when no ledger backend is supplied.
	ErrNilBackend = errors.New("dedup: ledger backend must not be nil")

	// ErrParameterMismatch is returned by New when the signature generator
	// and the LSH index disagree on signature length. Mixing them would
	// make every insert fail at runtime.
	ErrParameterMismatch = errors.New("dedup: generator and index permutation counts differ")
)

// Decision is the outcome of running the content tiers for one item.
// Nothing has been written yet when a Decision is returned; Commit applies
// it to the ledger and index.
type Decision struct {
	// Duplicate reports whether any tier hit.
	Duplicate bool

	// Tier names the tier that terminated the cascade; TierNone for
	// unique documents.
	Tier Tier

	// DuplicateOf is the canonical URL, set when Duplicate is true.
	DuplicateOf string

	// Similarity is the estimated Jaccard similarity for TierNear hits.
	Similarity float64

	// TextHash is the content fingerprint. Always set by CheckDocument;
	// set by CheckFile to the whole-file checksum.
	TextHash string

	// Signature is the MinHash signature, present for unique documents
	// when the near tier is enabled.
	Signature []uint64
}

// ConditionalHeaders carries the stored transport-cache metadata for a
// conditional request.
type ConditionalHeaders struct {
	// ETag feeds the If-None-Match request header.
	ETag *string

	// LastModified feeds the If-Modified-Since request header.
	LastModified *string
}

// Empty reports whether no cached validator is available.
func (h ConditionalHeaders) Empty() bool {
	return h.ETag == nil && h.LastModified == nil
}

// Options tunes the cascade.
type Options struct {
	// Threshold is the similarity above which a near candidate counts as
	// a duplicate. Zero falls back to the index's tuned threshold.
	Threshold float64

	// EnableNearDuplicates turns the document-near tier on.
	EnableNearDuplicates bool

	// DisableTransport and DisableFile switch off the respective tiers
	// for sources where they do not apply.
	DisableTransport bool
	DisableFile      bool

	// Logger receives structured log output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Deduper ties the cascade together: fingerprinting, MinHash, the LSH
// index, and the ledger. It is safe for concurrent use by any number of
// worker goroutines.
type Deduper struct {
	backend   ledger.Backend
	index     *lsh.Index
	generator *minhash.Generator
	opts      Options
	metrics   Metrics
	logger    *slog.Logger
}

// New creates a Deduper. The index and generator may be nil only when the
// near tier is disabled.
func New(backend ledger.Backend, index *lsh.Index, generator *minhash.Generator, opts Options) (*Deduper, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if opts.EnableNearDuplicates {
		if index == nil || generator == nil {
			return nil, errors.New("dedup: near tier requires an index and a generator")
		}
		if generator.Permutations() != index.Options().Permutations {
			return nil, ErrParameterMismatch
		}
		if opts.Threshold == 0 {
			opts.Threshold = index.Threshold()
		}
		if opts.Threshold <= 0 || opts.Threshold > 1 {
			return nil, fmt.Errorf("dedup: threshold %v out of range (0, 1]", opts.Threshold)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Deduper{
		backend:   backend,
		index:     index,
		generator: generator,
		opts:      opts,
		logger:    opts.Logger,
	}, nil
}

// NewFromConfig builds the generator and index from the configuration and
// wires them into a Deduper.
func NewFromConfig(backend ledger.Backend, cfg config.DedupConfig, logger *slog.Logger) (*Deduper, error) {
	var (
		index     *lsh.Index
		generator *minhash.Generator
	)
	if cfg.EnableNearDuplicates {
		var err error
		index, err = lsh.New(lsh.Options{
			Shards:       cfg.Shards,
			Bands:        cfg.Bands,
			Permutations: cfg.Permutations,
			Threshold:    cfg.Threshold,
		})
		if err != nil {
			return nil, err
		}
		generator = minhash.NewGenerator(cfg.Permutations, cfg.ShingleSize, cfg.Seed)
	}

	return New(backend, index, generator, Options{
		Threshold:            cfg.Threshold,
		EnableNearDuplicates: cfg.EnableNearDuplicates,
		Logger:               logger,
	})
}

// Metrics returns a snapshot of the per-tier counters.
func (d *Deduper) Metrics() MetricsSnapshot {
	return d.metrics.Snapshot()
}

// Conditional returns the stored etag/last-modified validators for url so
// the caller can issue a conditional request. An unknown URL or a
// disabled transport tier returns empty headers; the caller fetches
// unconditionally.
func (d *Deduper) Conditional(ctx context.Context, url string) (ConditionalHeaders, error) {
	if d.opts.DisableTransport {
		return ConditionalHeaders{}, nil
	}

	record, err := d.backend.GetURLState(ctx, url)
	if errors.Is(err, ledger.ErrNotFound) {
		return ConditionalHeaders{}, nil
	}
	if err != nil {
		return ConditionalHeaders{}, err
	}
	return ConditionalHeaders{ETag: record.ETag, LastModified: record.LastModified}, nil
}

// MarkNotModified records a transport-tier hit: the conditional request
// answered not-modified, so download, parse, and all content tiers are
// skipped. The fetch itself is still recorded for cache bookkeeping.
func (d *Deduper) MarkNotModified(ctx context.Context, url string, httpStatus int) error {
	if err := d.backend.MarkFetched(ctx, url, ledger.FetchResult{HTTPStatus: httpStatus}); err != nil {
		return err
	}
	d.metrics.record(TierTransport)
	d.logger.Debug("transport tier hit", "url", url, "status", httpStatus)
	return nil
}

// CheckFile runs the file tier: it streams body into a whole-file
// checksum and compares it with the checksum stored by the last
// successful processing of url. A match means the bulk file is unchanged
// and re-parsing can be skipped.
func (d *Deduper) CheckFile(ctx context.Context, url string, body io.Reader) (Decision, error) {
	checksum, err := fingerprint.File(body)
	if err != nil {
		return Decision{}, fmt.Errorf("dedup: failed to checksum file: %w", err)
	}
	decision := Decision{Tier: TierNone, TextHash: checksum}
	if d.opts.DisableFile {
		return decision, nil
	}

	record, err := d.backend.GetURLState(ctx, url)
	if errors.Is(err, ledger.ErrNotFound) {
		return decision, nil
	}
	if err != nil {
		return Decision{}, err
	}

	if record.State == model.StateProcessed && record.TextHash != nil && *record.TextHash == checksum {
		d.metrics.record(TierFile)
		d.logger.Debug("file tier hit", "url", url)
		return Decision{Duplicate: true, Tier: TierFile, DuplicateOf: url, TextHash: checksum}, nil
	}
	return decision, nil
}

// CheckDocument runs the document tiers for one extracted record: the
// exact fingerprint lookup, then (when enabled) the MinHash/LSH near
// lookup. The returned Decision has not been applied; call Commit.
func (d *Deduper) CheckDocument(ctx context.Context, url, text string) (Decision, error) {
	textHash := fingerprint.Text(text, "")

	canonical, ok, err := d.backend.CheckDuplicateByHash(ctx, textHash)
	if err != nil {
		return Decision{}, err
	}
	if ok && canonical != url {
		d.metrics.record(TierExact)
		d.logger.Debug("exact tier hit", "url", url, "canonical", canonical)
		return Decision{Duplicate: true, Tier: TierExact, DuplicateOf: canonical, TextHash: textHash}, nil
	}

	if !d.opts.EnableNearDuplicates {
		d.metrics.record(TierNone)
		return Decision{Tier: TierNone, TextHash: textHash}, nil
	}

	sig := d.generator.Signature(text)
	hits, err := d.CheckNearDuplicate(sig, d.opts.Threshold)
	if err != nil {
		return Decision{}, err
	}
	for _, hit := range hits {
		if hit.URL == url {
			continue
		}
		d.metrics.record(TierNear)
		d.logger.Debug("near tier hit",
			"url", url,
			"canonical", hit.URL,
			"similarity", hit.Similarity,
		)
		return Decision{
			Duplicate:   true,
			Tier:        TierNear,
			DuplicateOf: hit.URL,
			Similarity:  hit.Similarity,
			TextHash:    textHash,
			Signature:   sig,
		}, nil
	}

	d.metrics.record(TierNone)
	return Decision{Tier: TierNone, TextHash: textHash, Signature: sig}, nil
}

// CheckNearDuplicate queries the LSH index for band-collision candidates
// and keeps those whose estimated similarity reaches threshold, sorted
// best match first. The candidate set may include false positives; the
// similarity filter here is what makes the result authoritative.
func (d *Deduper) CheckNearDuplicate(sig []uint64, threshold float64) ([]model.NearDuplicate, error) {
	if d.index == nil {
		return nil, nil
	}

	candidates, err := d.index.Query(sig)
	if err != nil {
		return nil, err
	}

	var hits []model.NearDuplicate
	for _, docID := range candidates {
		stored, ok := d.index.Signature(docID)
		if !ok {
			continue
		}
		if sim := minhash.Similarity(sig, stored); sim >= threshold {
			hits = append(hits, model.NearDuplicate{URL: docID, Similarity: sim})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].URL < hits[j].URL
	})
	return hits, nil
}

// Commit applies a Decision: duplicates are cross-referenced to their
// canonical record, unique documents are marked processed and their
// signature inserted into the index so later queries can find them.
func (d *Deduper) Commit(ctx context.Context, url string, decision Decision, silverID string) error {
	if decision.Duplicate {
		return d.backend.MarkDuplicate(ctx, url, decision.DuplicateOf)
	}

	if err := d.backend.MarkProcessed(ctx, url, decision.TextHash, decision.Signature, silverID); err != nil {
		return err
	}
	if len(decision.Signature) > 0 && d.index != nil {
		if err := d.index.Insert(url, decision.Signature); err != nil {
			return fmt.Errorf("dedup: failed to index signature: %w", err)
		}
	}
	return nil
}

// SaveIndex persists the LSH index into dir. A no-op when the near tier
// is disabled.
func (d *Deduper) SaveIndex(dir string) error {
	if d.index == nil {
		return nil
	}
	return d.index.Save(dir)
}

// LoadIndex restores the LSH index from dir. A missing directory is not
// an error: the first run starts with an empty index. Parameter drift
// between the persisted manifest and the configuration still fails.
func (d *Deduper) LoadIndex(dir string) error {
	if d.index == nil {
		return nil
	}
	err := d.index.Load(dir)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Debug("no persisted index, starting empty", "dir", dir)
		return nil
	}
	return err
}

// RebuildIndex repopulates the LSH index from the signatures stored on
// processed ledger rows for source. Used when the persisted shards are
// lost or the index parameters changed. The ledger is walked in pages of
// batch records via the keyset cursor, so the rebuild covers the entire
// processed corpus regardless of its size.
func (d *Deduper) RebuildIndex(ctx context.Context, source string, batch int) (int, error) {
	if d.index == nil {
		return 0, nil
	}
	if batch < 1 {
		batch = 1000
	}

	inserted := 0
	cursor := ""
	for {
		records, err := d.backend.GetURLsByStateAfter(ctx, source, model.StateProcessed, cursor, batch)
		if err != nil {
			return inserted, err
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			if len(record.MinhashSignature) == 0 {
				continue
			}
			if err := d.index.Insert(record.URL, record.MinhashSignature); err != nil {
				return inserted, fmt.Errorf("dedup: failed to index %s: %w", record.URL, err)
			}
			inserted++
		}

		cursor = records[len(records)-1].URL
		if len(records) < batch {
			break
		}
	}
	return inserted, nil
}
