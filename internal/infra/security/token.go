package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateSecureToken returns a base64 URL-safe random string using the
// specified number of random bytes. Used for refresh and reset tokens.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates the SHA-256 hash of an opaque token. Only this hash is
// ever persisted or compared.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// GenerateConfirmationCode returns an enrollment confirmation code of the
// form ENR-XXXXXXXXXX (uppercase hex). Uniqueness is not enforced; collisions
// are an accepted risk at this volume.
func GenerateConfirmationCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	return "ENR-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
