package lsh

import (
	"errors"
	"fmt"
)

// Index construction errors.
var (
	// ErrInvalidShards is returned when the shard count is not positive.
	ErrInvalidShards = errors.New("invalid shard count: must be positive")

	// ErrInvalidBands is returned when the band count is not positive or
	// does not divide the signature length evenly. Uneven bands would hash
	// ragged row-slices and skew the candidacy curve.
	ErrInvalidBands = errors.New("invalid band count: must be positive and divide the permutation count")

	// ErrInvalidThreshold is returned when the similarity threshold is
	// outside (0, 1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be in (0, 1]")

	// ErrEmptyDocID is returned when Insert is called without a document ID.
	ErrEmptyDocID = errors.New("document ID must not be empty")
)

// ManifestMismatchError is returned by Load when a persisted index was
// written with different parameters than the index being loaded into.
// Loading such state silently would produce wrong candidate sets, so the
// mismatch is surfaced explicitly and the caller must rebuild or
// reconfigure.
type ManifestMismatchError struct {
	// Field names the mismatched parameter.
	Field string

	// Want is the in-memory value, Got the persisted one.
	Want, Got any
}

// Error implements the error interface.
func (e *ManifestMismatchError) Error() string {
	return fmt.Sprintf("lsh manifest mismatch: %s is %v on disk but %v in configuration; rebuild the index or restore the matching configuration", e.Field, e.Got, e.Want)
}

// SignatureLengthError is returned by Insert when a signature does not
// match the index's permutation count.
type SignatureLengthError struct {
	Want, Got int
}

// Error implements the error interface.
func (e *SignatureLengthError) Error() string {
	return fmt.Sprintf("signature has %d components, index expects %d", e.Got, e.Want)
}
