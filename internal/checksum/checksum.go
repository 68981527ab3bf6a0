// Package checksum fingerprints values whose drift between passes is worth logging.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Set returns a digest of parts that does not depend on their order.
func Set(parts []string) string {
	sorted := append([]string(nil), parts...)
	sort.Strings(sorted)
	return Sum([]byte(strings.Join(sorted, "\x00")))
}
