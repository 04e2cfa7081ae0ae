// Package digest provides named digest algorithms for content-addressing
// OCFL object content, streaming digesters, and fixity-checked readers and
// writers.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Algorithm is implemented by digest algorithms
type Algorithm interface {
	// ID returns the algorithm name as it appears in an OCFL inventory
	// (e.g., 'sha512')
	ID() string
	// Digester returns a new digester for generating a new digest value
	Digester() Digester
}

// Built-in algorithms. SIZE is a pseudo-algorithm: its "digest" is the
// decimal byte count of the input, and it is only valid as a fixity entry,
// never as an inventory's digestAlgorithm.
var (
	SHA512  Algorithm = &hashAlgorithm{id: "sha512", newHash: sha512.New}
	SHA256  Algorithm = &hashAlgorithm{id: "sha256", newHash: sha256.New}
	SHA1    Algorithm = &hashAlgorithm{id: "sha1", newHash: sha1.New}
	MD5     Algorithm = &hashAlgorithm{id: "md5", newHash: md5.New}
	BLAKE2B Algorithm = &hashAlgorithm{id: "blake2b-512", newHash: blake2bSized(64)}

	BLAKE2B_160 Algorithm = &hashAlgorithm{id: "blake2b-160", newHash: blake2bSized(20)}
	BLAKE2B_256 Algorithm = &hashAlgorithm{id: "blake2b-256", newHash: blake2bSized(32)}
	BLAKE2B_384 Algorithm = &hashAlgorithm{id: "blake2b-384", newHash: blake2bSized(48)}
	SHA512_256  Algorithm = &hashAlgorithm{id: "sha512/256", newHash: sha512.New512_256}

	SIZE Algorithm = sizeAlgorithm{}
)

// hashAlgorithm is an Algorithm backed by a hash.Hash constructor.
type hashAlgorithm struct {
	id      string
	newHash func() hash.Hash
}

func (a *hashAlgorithm) ID() string { return a.id }

func (a *hashAlgorithm) Digester() Digester {
	return hashDigest{Hash: a.newHash()}
}

// blake2bSized adapts the keyed blake2b constructor to the hash.Hash
// constructor shape for a given digest size.
func blake2bSized(size int) func() hash.Hash {
	return func() hash.Hash {
		h, err := blake2b.New(size, nil)
		if err != nil {
			panic("creating new blake2b hash")
		}
		return h
	}
}

// sizeAlgorithm implements the 'size' pseudo-algorithm.
type sizeAlgorithm struct{}

func (sizeAlgorithm) ID() string { return "size" }

func (sizeAlgorithm) Digester() Digester { return &byteCounter{} }

// ValidPrimary returns true if a is an algorithm that may be used as an
// inventory's digestAlgorithm. OCFL allows only sha512 and sha256; all other
// algorithms are restricted to fixity entries.
func ValidPrimary(a Algorithm) bool {
	if a == nil {
		return false
	}
	switch a.ID() {
	case SHA512.ID(), SHA256.ID():
		return true
	}
	return false
}

// hashDigest implements Digester over a hash.Hash, rendering sums as
// lowercase hex.
type hashDigest struct {
	hash.Hash
}

func (h hashDigest) String() string {
	return hex.EncodeToString(h.Sum(nil))
}

// byteCounter implements the Digester for the 'size' pseudo-algorithm.
type byteCounter struct {
	n int64
}

func (c *byteCounter) Write(b []byte) (int, error) {
	c.n += int64(len(b))
	return len(b), nil
}

func (c *byteCounter) String() string {
	return strconv.FormatInt(c.n, 10)
}
