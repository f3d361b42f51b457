package sealedcontent

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Entropy, in bytes, of generated identifiers.
const (
	ObjectIDBytes         = 32
	DeleteCapabilityBytes = 8
	TokenBytes            = 32
)

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewObjectID returns a random URL-safe object id.
func NewObjectID() (string, error) {
	return randomToken(ObjectIDBytes)
}

func newDeleteCapability() (string, error) {
	return randomToken(DeleteCapabilityBytes)
}

func newBearerToken() (string, error) {
	return randomToken(TokenBytes)
}

func capabilityMatches(supplied, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) == 1
}
