package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "corpusledger"

	// DefaultMinConns and DefaultMaxConns bound the PostgreSQL connection
	// pool. Two warm connections keep the hot path responsive after idle
	// periods; ten caps the load a single ingestion host can put on the
	// database while still letting many pipeline workers write concurrently.
	DefaultMinConns = 2
	DefaultMaxConns = 10

	// DefaultAcquireTimeout bounds how long a caller blocks waiting for a
	// pooled connection. Without a bound, a saturated pool would stall
	// workers indefinitely instead of surfacing a transient error they can
	// retry.
	DefaultAcquireTimeout = 30 * time.Second

	// DefaultNearDuplicateThreshold is the similarity above which a
	// candidate is treated as a near-duplicate. 0.85 keeps boilerplate
	// rewrites together without merging documents that merely share topic
	// vocabulary.
	DefaultNearDuplicateThreshold = 0.85

	// DefaultPermutations is the MinHash signature length.
	DefaultPermutations = 128

	// DefaultShingleSize is the character k-gram width for shingling.
	DefaultShingleSize = 3

	// DefaultSeed feeds the MinHash permutation generator. Changing it
	// invalidates every stored signature and persisted LSH shard.
	DefaultSeed = 1

	// DefaultShards is the LSH index partition count.
	DefaultShards = 10

	// DefaultBands splits the 128-component signature into bands of 8 rows,
	// tuning the candidacy S-curve for the default threshold.
	DefaultBands = 16
)

// BackendProfile selects the ledger storage implementation.
type BackendProfile string

const (
	// BackendSQLite is the embedded single-writer profile: file-backed,
	// zero external dependencies, suitable for low-concurrency and offline
	// use.
	BackendSQLite BackendProfile = "sqlite"

	// BackendPostgres is the networked multi-writer profile: bounded
	// connection pool and row-level upsert locking, suitable for many
	// concurrent pipeline workers.
	BackendPostgres BackendProfile = "postgres"
)

// Valid reports whether p names a known backend profile.
func (p BackendProfile) Valid() bool {
	return p == BackendSQLite || p == BackendPostgres
}

// PostgresConfig holds the networked profile's connection settings.
type PostgresConfig struct {
	// DSN is the PostgreSQL connection string. Required when the postgres
	// backend is selected; the constructor fails fast without it.
	DSN string `yaml:"dsn,omitempty"`

	// MinConns and MaxConns bound the connection pool.
	MinConns int32 `yaml:"minConns,omitempty"`
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// AcquireTimeout bounds how long an operation waits for a pooled
	// connection before returning a transient error.
	AcquireTimeout time.Duration `yaml:"acquireTimeout,omitempty"`
}

// DedupConfig holds the deduplication engine parameters.
type DedupConfig struct {
	// EnableNearDuplicates turns the document-near tier on. Sources where
	// near-duplicate detection is not cost-effective run with it off and
	// still get the exact tiers.
	EnableNearDuplicates bool `yaml:"enableNearDuplicates"`

	// Threshold is the similarity above which a candidate counts as a
	// near-duplicate.
	Threshold float64 `yaml:"threshold,omitempty"`

	// Permutations is the MinHash signature length.
	Permutations int `yaml:"permutations,omitempty"`

	// ShingleSize is the character k-gram width.
	ShingleSize int `yaml:"shingleSize,omitempty"`

	// Seed feeds the MinHash permutation generator.
	Seed int64 `yaml:"seed,omitempty"`

	// Shards is the LSH index partition count.
	Shards int `yaml:"shards,omitempty"`

	// Bands is the LSH band count; Permutations must be divisible by it.
	Bands int `yaml:"bands,omitempty"`
}

// Config is the top-level configuration for the ledger and dedup engine.
type Config struct {
	// Backend selects the storage profile.
	Backend BackendProfile `yaml:"backend"`

	// DataDir is where the embedded profile keeps its database file and
	// where LSH shards persist. Defaults to the XDG data directory.
	DataDir string `yaml:"dataDir,omitempty"`

	// Postgres configures the networked profile.
	Postgres PostgresConfig `yaml:"postgres,omitempty"`

	// Dedup configures the deduplication engine.
	Dedup DedupConfig `yaml:"dedup,omitempty"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose,omitempty"`
}

// NewConfig returns a configuration populated with defaults: the embedded
// SQLite profile under the XDG data directory, near-duplicate detection
// enabled with the default LSH tuning.
func NewConfig() *Config {
	return &Config{
		Backend: BackendSQLite,
		DataDir: filepath.Join(xdg.DataHome, AppName),
		Postgres: PostgresConfig{
			MinConns:       DefaultMinConns,
			MaxConns:       DefaultMaxConns,
			AcquireTimeout: DefaultAcquireTimeout,
		},
		Dedup: DedupConfig{
			EnableNearDuplicates: true,
			Threshold:            DefaultNearDuplicateThreshold,
			Permutations:         DefaultPermutations,
			ShingleSize:          DefaultShingleSize,
			Seed:                 DefaultSeed,
			Shards:               DefaultShards,
			Bands:                DefaultBands,
		},
	}
}

// IndexDir returns the directory where LSH shards persist.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "lsh")
}

// Validate checks the configuration for consistency. It returns one of
// the package sentinel errors, so callers can test with errors.Is.
func (c *Config) Validate() error {
	if !c.Backend.Valid() {
		return ErrUnknownBackend
	}
	if c.Backend == BackendSQLite && c.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.Backend == BackendPostgres {
		if c.Postgres.DSN == "" {
			return ErrMissingDSN
		}
		if c.Postgres.MinConns < 0 || c.Postgres.MaxConns < 1 ||
			c.Postgres.MinConns > c.Postgres.MaxConns {
			return ErrInvalidPoolBounds
		}
		if c.Postgres.AcquireTimeout < 0 {
			return ErrInvalidAcquireTimeout
		}
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return ErrInvalidThreshold
	}
	if c.Dedup.Permutations < 1 {
		return ErrInvalidPermutations
	}
	if c.Dedup.Bands < 1 || c.Dedup.Permutations%c.Dedup.Bands != 0 {
		return ErrInvalidBands
	}
	if c.Dedup.Shards < 1 {
		return ErrInvalidShards
	}
	if c.Dedup.ShingleSize < 1 {
		return ErrInvalidShingleSize
	}
	return nil
}
