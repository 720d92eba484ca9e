package relay

import (
	"crypto/sha256"
	"encoding/hex"
)

// BroadcastSentinel replaces the destination id when fingerprinting a broadcast.
const BroadcastSentinel = "broadcast"

// Fingerprint returns the hex SHA-256 of "source:destination:content".
// The content must be the plaintext and the timestamp is deliberately
// absent, so the same message sent twice always collides.
func Fingerprint(sourceID, normalizedDestination, plaintext string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{':'})
	h.Write([]byte(normalizedDestination))
	h.Write([]byte{':'})
	h.Write([]byte(plaintext))
	return hex.EncodeToString(h.Sum(nil))
}
