package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"
	"sort"
)

// HashString is used for cache keys and deterministic chunk IDs.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// FingerprintSet hashes an unordered set of strings into a stable corpus
// fingerprint. Order of the input does not affect the result.
func FingerprintSet(items []string) string {
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)

	h := sha256.New()
	for _, item := range sorted {
		h.Write([]byte(item))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
