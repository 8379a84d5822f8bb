package minhash

import (
	"hash/fnv"
	"math/bits"
	"math/rand"

	"github.com/somali-nlp/somali-dialect-classifier-sub001/internal/fingerprint"
)

// Default generator parameters.
const (
	// DefaultPermutations is the signature length. 128 components keep the
	// standard error of the similarity estimate around 0.04 while staying
	// cheap to store per record.
	DefaultPermutations = 128

	// DefaultShingleSize is the character k-gram width. Character trigrams
	// tolerate single-word edits in short documents far better than word
	// shingles, which matters for social-comment sources.
	DefaultShingleSize = 3

	// DefaultSeed feeds the permutation generator. Changing it invalidates
	// every stored signature and persisted LSH shard.
	DefaultSeed = 1
)

// mersennePrime is 2^61 - 1, the modulus of the universal hash family
// h(x) = (a*x + b) mod p.
const mersennePrime = uint64(1)<<61 - 1

// permutation holds the coefficients of one universal hash function.
type permutation struct {
	A uint64 `json:"a"`
	B uint64 `json:"b"`
}

// Generator converts text into MinHash signatures. It is safe for
// concurrent use; all state is read-only after construction.
type Generator struct {
	perms       []permutation
	shingleSize int
	seed        int64
}

// NewGenerator creates a Generator with numPerms permutation functions and
// the given shingle size. Non-positive arguments fall back to the package
// defaults.
func NewGenerator(numPerms, shingleSize int, seed int64) *Generator {
	if numPerms <= 0 {
		numPerms = DefaultPermutations
	}
	if shingleSize <= 0 {
		shingleSize = DefaultShingleSize
	}

	// Deterministic coefficients: the same seed always yields the same
	// permutation family.
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // Not used for security; determinism is required
	perms := make([]permutation, numPerms)
	for i := range perms {
		perms[i] = permutation{
			A: uint64(rng.Int63n(int64(mersennePrime-1))) + 1, // a in [1, p)
			B: uint64(rng.Int63n(int64(mersennePrime))),       // b in [0, p)
		}
	}

	return &Generator{
		perms:       perms,
		shingleSize: shingleSize,
		seed:        seed,
	}
}

// Permutations returns the signature length produced by this generator.
func (g *Generator) Permutations() int {
	return len(g.perms)
}

// ShingleSize returns the character k-gram width.
func (g *Generator) ShingleSize() int {
	return g.shingleSize
}

// Seed returns the seed the permutation family was derived from.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Signature computes the MinHash signature of text. Identical input always
// yields an identical signature for the same generator parameters.
func (g *Generator) Signature(text string) []uint64 {
	shingles := g.shingles(text)

	sig := make([]uint64, len(g.perms))
	for i, perm := range g.perms {
		minVal := uint64(1<<64 - 1)
		for shingle := range shingles {
			if v := permute(shingle, perm); v < minVal {
				minVal = v
			}
		}
		sig[i] = minVal
	}
	return sig
}

// shingles returns the set of hashed overlapping character k-grams of the
// canonicalized text. Text shorter than the shingle size contributes a
// single shingle so that tiny documents still produce a usable signature.
func (g *Generator) shingles(text string) map[uint64]struct{} {
	canonical := []rune(fingerprint.Canonicalize(text))

	set := make(map[uint64]struct{})
	if len(canonical) == 0 {
		return set
	}

	k := g.shingleSize
	if len(canonical) <= k {
		set[hashShingle(string(canonical))] = struct{}{}
		return set
	}

	for i := 0; i+k <= len(canonical); i++ {
		set[hashShingle(string(canonical[i:i+k]))] = struct{}{}
	}
	return set
}

// hashShingle maps a shingle to a 64-bit value with FNV-1a.
func hashShingle(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// permute applies h(x) = (a*x + b) mod p without overflowing 64 bits.
// The product's high word is below p, so the 128-by-64 division is safe.
func permute(x uint64, p permutation) uint64 {
	hi, lo := bits.Mul64(p.A, x%mersennePrime)
	_, product := bits.Div64(hi, lo, mersennePrime)
	return (product + p.B) % mersennePrime
}

// Similarity estimates the Jaccard similarity of two documents from their
// signatures: the fraction of positions where the signatures agree.
// Signatures of different lengths come from incompatible generators and
// estimate 0.
func Similarity(a, b []uint64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
