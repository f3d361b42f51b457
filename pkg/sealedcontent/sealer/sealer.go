// Package sealer implements the per-object authenticated encryption used for
// stored payloads. Every object gets a fresh 256-bit key; the key never
// touches persistent storage and travels only inside the object's URL.
//
// Ciphertext layout: nonce (24 bytes) || XChaCha20-Poly1305 sealed box.
package sealer

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the length of a raw key in bytes.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the length of the random nonce prefixed to every ciphertext.
	NonceSize = chacha20poly1305.NonceSizeX

	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = NonceSize + chacha20poly1305.Overhead

	// EncodedKeyLen is the length of a key in its URL-safe text form.
	EncodedKeyLen = 43
)

// ErrOpen is returned for every decryption failure: malformed key encoding,
// wrong key, truncated input or a modified ciphertext. Callers cannot and
// should not distinguish between these.
var ErrOpen = errors.New("invalid key or tampered ciphertext")

var keyEncoding = base64.RawURLEncoding.Strict()

// Key is a symmetric per-object key.
type Key [KeySize]byte

// GenerateKey returns a fresh key from the system CSPRNG.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("generate key: %w", err)
	}
	return k, nil
}

// String returns the URL-safe, unpadded base64 form of the key.
func (k Key) String() string {
	return keyEncoding.EncodeToString(k[:])
}

// ParseKey decodes the text form produced by Key.String. Any deviation from
// the canonical encoding is reported as ErrOpen.
func ParseKey(s string) (Key, error) {
	if len(s) != EncodedKeyLen {
		return Key{}, ErrOpen
	}
	raw, err := keyEncoding.DecodeString(s)
	if err != nil || len(raw) != KeySize {
		return Key{}, ErrOpen
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// Encrypt seals plaintext under key with a random nonce, so encrypting the
// same plaintext twice yields different ciphertexts.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt authenticates and opens a ciphertext produced by Encrypt.
func Decrypt(ciphertext []byte, key Key) ([]byte, error) {
	if len(ciphertext) < Overhead {
		return nil, ErrOpen
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, ErrOpen
	}
	plaintext, err := aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrOpen
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// DecryptString parses an encoded key and decrypts with it.
func DecryptString(ciphertext []byte, encodedKey string) ([]byte, error) {
	key, err := ParseKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return Decrypt(ciphertext, key)
}
