package project

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest is a fixed 256-bit hash identifying a compilation input.
type Digest [32]byte

// Hex returns the lowercase hex form of the digest.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

// HashBytes digests raw input content.
func HashBytes(content []byte) Digest {
	return sha256.Sum256(content)
}

// Combine builds a unit digest: H( content || dep1 || dep2 ... ).
// The deps order must be deterministic; callers sort before combining.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
