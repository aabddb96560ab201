// Package checksum fingerprints exported and imported hike text.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a strong HTTP entity tag for body: the first 16 bytes of
// its digest, quoted.
func ETag(body string) string {
	return `"` + Sum([]byte(body))[:32] + `"`
}
