// Package fingerprint computes exact-match content fingerprints.
//
// A fingerprint is a 256-bit SHA-256 digest of canonicalized input,
// rendered as a 64-character hex string. Two records with the same
// fingerprint are defined as exact duplicates regardless of source.
//
// Canonicalization makes the digest robust against cosmetic differences:
// Unicode NFC normalization, case folding, and whitespace collapsing. The
// same canonicalized input always yields the same fingerprint.
package fingerprint
