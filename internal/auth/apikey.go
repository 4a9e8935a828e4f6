package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix marks pulse API keys so leaked plaintext is recognizable in
// scanners and logs.
const KeyPrefix = "plk_"

const (
	DefaultBcryptCost = 12

	keyRandomBytes = 24
)

// GenerateKey mints a new plaintext API key. Only the bcrypt hash of the
// returned value is ever stored; the plaintext is shown once at creation.
func GenerateKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key material: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// HashKey derives the stored bcrypt hash for an API key.
func HashKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", fmt.Errorf("api key is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), DefaultBcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyKey reports whether the presented key matches the stored hash.
func VerifyKey(key, hash string) bool {
	trimmedKey := strings.TrimSpace(key)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedKey == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedKey)) == nil
}
