package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns the SHA-256 hex digest of the canonical JSON encoding
// of payload. encoding/json emits struct fields in declaration order and map
// keys sorted, so semantically-equal payloads hash identically.
//
// An error here means the payload type itself is not JSON-encodable, which
// is a programming error rather than a runtime condition.
func Fingerprint(payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
