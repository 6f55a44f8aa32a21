package processor

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashPrefixLen trades collision resistance for shorter URLs. 16 hex chars
// (64 bits) is plenty for this workload but is an identifier, not a
// security boundary.
const hashPrefixLen = 16

// ContentHash digests the raw upload bytes. It depends on the bytes only,
// never on mode, crop or filename, so byte-identical re-uploads are
// detectable across modes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}
