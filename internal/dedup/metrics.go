package dedup

import "sync/atomic"

// Metrics counts per-tier cascade outcomes. All counters are atomic, so
// any number of worker goroutines may share one Deduper.
//
// Design decision: We use plain atomic counters rather than a metrics
// registry because the cascade is a library embedded in out-of-process
// pipeline runners; the runners own the export format and scrape these
// counters into whatever system they report to.
type Metrics struct {
	transportHits atomic.Int64
	fileHits      atomic.Int64
	exactHits     atomic.Int64
	nearHits      atomic.Int64
	unique        atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	// TransportHits counts items skipped by conditional-request metadata.
	TransportHits int64 `json:"transport_hits"`

	// FileHits counts unchanged bulk files skipped before parsing.
	FileHits int64 `json:"file_hits"`

	// ExactHits counts byte-identical documents caught by fingerprint.
	ExactHits int64 `json:"exact_hits"`

	// NearHits counts near-duplicates caught by the LSH tier.
	NearHits int64 `json:"near_hits"`

	// Unique counts documents that passed every tier.
	Unique int64 `json:"unique"`
}

// Snapshot returns a consistent-enough copy for reporting. Counters are
// read individually; the snapshot is not a single atomic cut.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TransportHits: m.transportHits.Load(),
		FileHits:      m.fileHits.Load(),
		ExactHits:     m.exactHits.Load(),
		NearHits:      m.nearHits.Load(),
		Unique:        m.unique.Load(),
	}
}

// record bumps the counter for the tier that terminated the cascade.
func (m *Metrics) record(tier Tier) {
	switch tier {
	case TierTransport:
		m.transportHits.Add(1)
	case TierFile:
		m.fileHits.Add(1)
	case TierExact:
		m.exactHits.Add(1)
	case TierNear:
		m.nearHits.Add(1)
	case TierNone:
		m.unique.Add(1)
	}
}
