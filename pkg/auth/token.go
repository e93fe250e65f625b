package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// SessionTokenBytes is the entropy of a raw session token (256 bits).
	SessionTokenBytes = 32

	// FingerprintLength is how many hex characters of the token digest are
	// safe to place in logs and audit entries.
	FingerprintLength = 8
)

// GenerateSessionToken returns a fresh opaque bearer token. The raw value is
// handed to the client exactly once; storage and lookups use HashToken.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex SHA-256 digest of a raw token. Sessions are
// stored and looked up by digest so a database leak does not leak usable
// bearer credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenFingerprint returns a short stable prefix of the token digest,
// suitable for audit entries. Never log the full token or full digest.
func TokenFingerprint(token string) string {
	h := HashToken(token)
	if len(h) < FingerprintLength {
		return h
	}
	return h[:FingerprintLength]
}
