package outbox

import (
	"context"
	"time"

	"github.com/sura-tech/quotes-api/internal/domain"
)

type Status string

const (
	StatusNew        Status = "NEW"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
)

// Record is one pending (or settled) domain event. Payload is immutable once
// written; only Status, Attempts, NextAttemptAt and LastError change, and
// only through the store's transition methods.
type Record struct {
	EventID       domain.EventID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte

	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	LastError     *string
}

// Store persists outbox records.
//
// Enqueue joins a surrounding transaction when invoked inside
// tx.Runner.InTx, which is what makes the outbox write atomic with the
// domain mutation that caused it.
//
// ClaimDue atomically selects up to limit NEW records with
// NextAttemptAt <= now, oldest first, and marks them PROCESSING before
// returning. Two concurrent claimers must never receive the same record.
type Store interface {
	Enqueue(ctx context.Context, rec Record) error

	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Record, error)

	// MarkSent settles a delivered record and clears its last error.
	MarkSent(ctx context.Context, id domain.EventID) error

	// Reschedule returns a failed record to NEW with updated retry
	// bookkeeping. lastError is stored as given (callers truncate).
	Reschedule(ctx context.Context, id domain.EventID, attempts int, nextAttemptAt time.Time, lastError string) error

	// MarkFailed dead-letters a record whose attempts are exhausted.
	MarkFailed(ctx context.Context, id domain.EventID, attempts int, lastError string) error

	// RequeueStuck returns PROCESSING records whose last transition is older
	// than before back to NEW, recovering rows orphaned by a crash between
	// claim and settlement. It reports how many records were requeued.
	RequeueStuck(ctx context.Context, before time.Time) (int, error)

	GetByEventID(ctx context.Context, id domain.EventID) (Record, bool, error)
}
