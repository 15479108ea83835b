package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sura-tech/quotes-api/internal/domain"
)

// Record binds a caller-supplied idempotency key to the fingerprint of the
// request that first used it and to the quote that computation produced.
// RequestHash and QuoteID are immutable once written.
type Record struct {
	Key         uuid.UUID
	RequestHash string
	QuoteID     domain.QuoteID
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Live reports whether the record is still binding at the given instant.
// Expired records are indistinguishable from absent ones.
func (r Record) Live(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Store persists idempotency records.
//
// Create is the at-most-one-winner guard for concurrent duplicates: it must
// fail with ErrDuplicateKey when a live record already exists for the key,
// and must replace an expired record as if it were absent. Callers run
// Create inside the same transaction as the computation it records, so a
// duplicate-key failure rolls the computation back.
type Store interface {
	Get(ctx context.Context, key uuid.UUID) (Record, bool, error)
	Create(ctx context.Context, rec Record) error
}
