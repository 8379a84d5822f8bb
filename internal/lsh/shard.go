package lsh

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
)

// shard owns a disjoint subset of documents. All access goes through mu;
// inserts into different shards never contend.
type shard struct {
	mu sync.RWMutex

	// signatures maps document ID to its full signature. Keeping the
	// signature makes Insert idempotent, lets similarity be computed for
	// candidates without a ledger round-trip, and is the only state that
	// needs to be persisted (buckets are rebuilt from it).
	signatures map[string][]uint64

	// buckets holds one band-hash -> document-ID-set map per band.
	buckets []map[uint64]map[string]struct{}
}

func newShard(numBands int) *shard {
	buckets := make([]map[uint64]map[string]struct{}, numBands)
	for i := range buckets {
		buckets[i] = make(map[uint64]map[string]struct{})
	}
	return &shard{
		signatures: make(map[string][]uint64),
		buckets:    buckets,
	}
}

// insert adds or replaces a document. Re-inserting the same signature is
// a no-op; a changed signature replaces the old bucket entries so stale
// band hashes cannot surface the document.
func (s *shard) insert(docID string, sig []uint64, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.signatures[docID]; ok {
		if equalSignatures(old, sig) {
			return
		}
		s.removeLocked(docID, old, rows)
	}

	stored := make([]uint64, len(sig))
	copy(stored, sig)
	s.signatures[docID] = stored

	for band := range s.buckets {
		h := bandHash(sig, band, rows)
		set, ok := s.buckets[band][h]
		if !ok {
			set = make(map[string]struct{})
			s.buckets[band][h] = set
		}
		set[docID] = struct{}{}
	}
}

// removeLocked drops docID's bucket entries for the given signature.
// Callers must hold mu.
func (s *shard) removeLocked(docID string, sig []uint64, rows int) {
	for band := range s.buckets {
		h := bandHash(sig, band, rows)
		if set, ok := s.buckets[band][h]; ok {
			delete(set, docID)
			if len(set) == 0 {
				delete(s.buckets[band], h)
			}
		}
	}
}

// query returns the document IDs sharing at least one band bucket with
// the signature.
func (s *shard) query(sig []uint64, rows int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for band := range s.buckets {
		h := bandHash(sig, band, rows)
		for docID := range s.buckets[band][h] {
			seen[docID] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for docID := range seen {
		out = append(out, docID)
	}
	return out
}

// signature returns a copy of the stored signature for docID.
func (s *shard) signature(docID string) ([]uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signatures[docID]
	if !ok {
		return nil, false
	}
	out := make([]uint64, len(sig))
	copy(out, sig)
	return out, true
}

// size returns the number of documents in the shard.
func (s *shard) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signatures)
}

// snapshot copies the shard's signature map for persistence.
func (s *shard) snapshot() map[string][]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]uint64, len(s.signatures))
	for docID, sig := range s.signatures {
		c := make([]uint64, len(sig))
		copy(c, sig)
		out[docID] = c
	}
	return out
}

// replace swaps in a loaded signature map and rebuilds band buckets.
func (s *shard) replace(signatures map[string][]uint64, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signatures = make(map[string][]uint64, len(signatures))
	for i := range s.buckets {
		s.buckets[i] = make(map[uint64]map[string]struct{})
	}

	for docID, sig := range signatures {
		s.signatures[docID] = sig
		for band := range s.buckets {
			h := bandHash(sig, band, rows)
			set, ok := s.buckets[band][h]
			if !ok {
				set = make(map[string]struct{})
				s.buckets[band][h] = set
			}
			set[docID] = struct{}{}
		}
	}
}

// bandHash hashes one band's row-slice of the signature. The band index
// participates so the same rows in different bands land in independent
// bucket spaces.
func bandHash(sig []uint64, band, rows int) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(band))
	_, _ = h.Write(buf[:])

	start := band * rows
	for _, v := range sig[start : start+rows] {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func equalSignatures(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
