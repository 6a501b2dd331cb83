package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// HashIdentifier returns the hex SHA-256 of a normalized identifier so raw
// contact addresses never appear in counter keys.
func HashIdentifier(v string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(v)))
	return hex.EncodeToString(sum[:])
}
