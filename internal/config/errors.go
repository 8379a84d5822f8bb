package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrUnknownBackend is returned when the backend profile is neither
	// "sqlite" nor "postgres".
	ErrUnknownBackend = errors.New("unknown backend: must be \"sqlite\" or \"postgres\"")

	// ErrMissingDataDir is returned when the embedded profile has no data
	// directory to place its database file in.
	ErrMissingDataDir = errors.New("missing data directory for the sqlite backend")

	// ErrMissingDSN is returned when the postgres backend is selected
	// without a connection string. The networked profile fails fast at
	// construction rather than degrading silently.
	ErrMissingDSN = errors.New("missing postgres DSN: the networked backend requires credentials")

	// ErrInvalidPoolBounds is returned when the pool sizing is inconsistent
	// (min below zero, max below one, or min above max).
	ErrInvalidPoolBounds = errors.New("invalid pool bounds: require 0 <= minConns <= maxConns and maxConns >= 1")

	// ErrInvalidAcquireTimeout is returned when the acquire timeout is
	// negative. Use 0 for the default.
	ErrInvalidAcquireTimeout = errors.New("invalid acquire timeout: must be non-negative")

	// ErrInvalidThreshold is returned when the near-duplicate threshold is
	// outside (0, 1].
	ErrInvalidThreshold = errors.New("invalid near-duplicate threshold: must be in (0, 1]")

	// ErrInvalidPermutations is returned when the signature length is not
	// positive.
	ErrInvalidPermutations = errors.New("invalid permutation count: must be positive")

	// ErrInvalidBands is returned when the band count is not positive or
	// does not divide the permutation count.
	ErrInvalidBands = errors.New("invalid band count: must be positive and divide the permutation count")

	// ErrInvalidShards is returned when the LSH shard count is not positive.
	ErrInvalidShards = errors.New("invalid shard count: must be positive")

	// ErrInvalidShingleSize is returned when the shingle size is not positive.
	ErrInvalidShingleSize = errors.New("invalid shingle size: must be positive")
)
