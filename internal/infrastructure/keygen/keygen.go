// Package keygen creates and identifies HMAC signing secrets.
package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// DefaultSecretBytes is the entropy of a generated secret.
const DefaultSecretBytes = 32

// GenerateSecret returns n random bytes encoded as unpadded URL-safe base64.
// 32 bytes encode to 43 characters.
func GenerateSecret(n int) (string, error) {
	if n < DefaultSecretBytes {
		return "", fmt.Errorf("secret needs at least %d random bytes, got %d", DefaultSecretBytes, n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint identifies a secret without revealing it: the first 6 bytes
// of its BLAKE2b-256 hash as 12 hex characters. Safe to log.
func Fingerprint(secret []byte) string {
	hash := blake2b.Sum256(secret)
	return hex.EncodeToString(hash[:6])
}
