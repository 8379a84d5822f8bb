package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize normalizes text for fingerprinting and shingling:
// Unicode NFC normalization, lowercasing, and collapsing runs of
// whitespace into single spaces.
//
// Design decision: NFC rather than NFKC because compatibility folding can
// merge genuinely different characters (e.g. superscripts vs digits) and
// the corpus ingests text from sources with inconsistent Unicode forms;
// composition differences are noise, compatibility differences are not.
func Canonicalize(text string) string {
	normalized := norm.NFC.String(text)
	lowered := strings.ToLower(normalized)
	return strings.Join(strings.Fields(lowered), " ")
}

// Text computes the exact-match fingerprint of a document. The optional
// URL participates in the digest when non-empty, for sources where the
// same boilerplate text appears under distinct stable identities.
//
// Fields are joined with NUL separators before hashing so that
// ("ab", "c") and ("a", "bc") cannot collide.
func Text(text, url string) string {
	hasher := sha256.New()
	hasher.Write([]byte(Canonicalize(text)))
	if url != "" {
		hasher.Write([]byte{0})
		hasher.Write([]byte(url))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// File computes the whole-file checksum used by the file dedup tier.
// It streams the reader through SHA-256 without buffering the full
// content in memory.
func File(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
