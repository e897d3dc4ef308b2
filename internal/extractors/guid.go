package extractors

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenerateGUIDFromURL creates a deterministic article id from a URL. It
// returns the first 16 bytes of the SHA-256 digest as 32 hex characters.
func GenerateGUIDFromURL(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:16])
}
