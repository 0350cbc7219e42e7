package domain

import (
	"crypto/sha1"
	"encoding/hex"
)

// DocumentID derives a stable short identifier from a document reference.
// The same reference always maps to the same ID, which makes it usable as a
// cache and index key.
func DocumentID(ref string) string {
	sum := sha1.Sum([]byte(ref))
	return hex.EncodeToString(sum[:8])
}
