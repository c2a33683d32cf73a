package utils

import (
	"crypto/sha256"
)

// urlKeyPrefix namespaces visited-set keys inside the store
const urlKeyPrefix = "visited:"

// URLKey derives a fixed-length store key from a normalized URL.
// Long sitemap URLs with query strings would otherwise bloat the LSM tree keys.
func URLKey(normalizedURL string) []byte {
	sum := sha256.Sum256([]byte(normalizedURL))
	key := make([]byte, 0, len(urlKeyPrefix)+len(sum))
	key = append(key, urlKeyPrefix...)
	return append(key, sum[:]...)
}
