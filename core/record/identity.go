package record

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdentityForURI derives the stable entry ID from the normalized raw URI
// text, not from the parsed fields. Two textually distinct URIs never share
// an ID even when they parse to equivalent records, while re-importing the
// same literal URI is idempotent, which lets the storage layer dedup
// re-fetched subscriptions without knowing anything about parsing.
func IdentityForURI(rawURI string) string {
	sum := sha256.Sum256([]byte(NormalizeURI(rawURI)))
	return hex.EncodeToString(sum[:16])
}
