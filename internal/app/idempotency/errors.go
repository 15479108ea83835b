package idempotency

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictError reports a live idempotency key reused with a different
// request body. It is never retried server-side: the caller must resubmit
// the original body or pick a new key.
type ConflictError struct {
	Key uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency conflict for key %s: request does not match the original", e.Key)
}
