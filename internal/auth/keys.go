// Package auth provides API-key generation, hashing, and verification
// for the control-plane HTTP surface.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the cost factor for bcrypt hashing.
const BCryptCost = 12

// GenerateAPIKey generates a new API key with the given prefix. The
// random part is an unpadded UUIDv4, which carries 122 bits of entropy.
func GenerateAPIKey(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return prefix + strings.ReplaceAll(id.String(), "-", ""), nil
}

// HashAPIKey hashes an API key using bcrypt for storage.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against a bcrypt hash.
func VerifyAPIKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// VerifyAPIKeyConstantTime compares a presented key against a plain
// expected key in constant time. Used for the ADMIN_API_KEY
// environment variable.
func VerifyAPIKeyConstantTime(got, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// ExtractBearerToken extracts the bearer token from an Authorization
// header, case-insensitively.
func ExtractBearerToken(authHeader string) string {
	token := strings.TrimSpace(authHeader)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
