package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

const tokenPrefixBytes = 6

// HashTokenValue returns the SHA-256 digest of a token's compact serialization.
// Stores index refresh tokens by this digest; the raw value is never persisted.
func HashTokenValue(value string) [32]byte {
	return sha256.Sum256([]byte(value))
}

// TokenPrefix returns a short non-reversible correlation handle for a token,
// safe to place in audit events and logs.
func TokenPrefix(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:tokenPrefixBytes])
}
