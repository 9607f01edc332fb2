package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Presented keys are "<keyID>.<secret>" with fixed-length hex segments.
const (
	// HeaderAPIKey carries the presented key.
	HeaderAPIKey = "X-Api-Key"

	keyIDLength  = 8
	secretLength = 32
)

// ErrMalformedKey indicates the presented key does not match the
// keyID.secret format.
var ErrMalformedKey = errors.New("malformed api key")

// ParsePresentedKey splits a presented key into its key id and the SHA-256
// digest of its secret.
func ParsePresentedKey(presented string) (keyID, secretHash string, err error) {
	parts := strings.Split(presented, ".")
	if len(parts) != 2 {
		return "", "", ErrMalformedKey
	}
	keyID, secret := parts[0], parts[1]
	if len(keyID) != keyIDLength || len(secret) != secretLength {
		return "", "", ErrMalformedKey
	}
	if !isHex(keyID) || !isHex(secret) {
		return "", "", ErrMalformedKey
	}
	return keyID, DigestSecret(secret), nil
}

// DigestSecret returns the hex-encoded SHA-256 digest stored alongside the
// key id; the plaintext secret is never persisted.
func DigestSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// GenerateKey mints a fresh key id and secret. The caller shows the
// combined "<keyID>.<secret>" to the user exactly once and persists only
// the digest.
func GenerateKey() (keyID, secret, secretHash string, err error) {
	idBytes := make([]byte, keyIDLength/2)
	if _, err := rand.Read(idBytes); err != nil {
		return "", "", "", fmt.Errorf("generate key id: %w", err)
	}
	secretBytes := make([]byte, secretLength/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", "", fmt.Errorf("generate key secret: %w", err)
	}

	keyID = hex.EncodeToString(idBytes)
	secret = hex.EncodeToString(secretBytes)
	return keyID, secret, DigestSecret(secret), nil
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
