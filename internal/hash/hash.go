package hash

import (
	"golang.org/x/crypto/blake2b"
)

const (
	Size224 = 28
	Size256 = blake2b.Size256
)

// Sum224 returns the blake2b-224 digest of the concatenated parts. Used for
// key hashes and script hashes.
func Sum224(parts ...[]byte) []byte {
	h, err := blake2b.New(Size224, nil)
	if err != nil {
		// only fails for invalid size or key
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Sum256 returns the blake2b-256 digest of the concatenated parts. Used for
// transaction ids, datum hashes and script data hashes.
func Sum256(parts ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
