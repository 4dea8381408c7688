package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewOpaqueToken returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.  Used for email verification and
// password reset tokens, which are delivered out-of-band and looked up by
// hash.
func NewOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.  Only
// hashes are persisted, so a leaked database copy cannot be replayed against
// the API.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
