package tx

import (
	"context"
	"sync"
)

// Participant is a memory store that can be rolled back. Snapshot returns an
// opaque deep copy of the store's state; Restore reinstates it.
type Participant interface {
	Snapshot() any
	Restore(snapshot any)
}

// Runner is the in-memory tx.Runner: transactions are serialized under one
// mutex, and a failed transaction restores every participant's snapshot.
// This gives the memory backend the same commit/rollback observable
// behavior as the Postgres runner, which is what the atomicity tests rely
// on.
type Runner struct {
	mu           sync.Mutex
	participants []Participant
}

func NewRunner(participants ...Participant) *Runner {
	return &Runner{participants: participants}
}

func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]any, len(r.participants))
	for i, p := range r.participants {
		snapshots[i] = p.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, p := range r.participants {
			p.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
