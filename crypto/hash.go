package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 digest of data as a lowercase hex string.
func Hash(data []byte) string {
	return hex.EncodeToString(HashBytes(data))
}

// HashBytes returns the raw SHA-256 digest of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
