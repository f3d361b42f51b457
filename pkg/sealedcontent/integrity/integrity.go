// Package integrity computes and checks SHA-512 digests of plaintext payloads.
package integrity

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Size is the digest length in bytes.
const Size = sha512.Size

// Digest is a SHA-512 sum.
type Digest [Size]byte

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return Digest(sha512.Sum512(data))
}

// String returns the lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(Size) {
		return d, fmt.Errorf("digest must be %d hex characters, got %d", hex.EncodedLen(Size), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("decode digest: %w", err)
	}
	return d, nil
}

// Verify reports whether data hashes to expected. The comparison runs in
// constant time.
func Verify(data []byte, expected Digest) bool {
	got := Sum(data)
	return subtle.ConstantTimeCompare(got[:], expected[:]) == 1
}
