package idempotency

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use and participates in the memory tx runner
// via Snapshot/Restore.
type Store struct {
	mu sync.RWMutex
	m  map[uuid.UUID]idempotency.Record
}

func NewStore() *Store {
	return &Store{m: make(map[uuid.UUID]idempotency.Record)}
}

func (s *Store) Get(ctx context.Context, key uuid.UUID) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[key]
	return rec, ok, nil
}

// Create inserts rec, replacing an expired record as if it were absent.
// Liveness is judged against the new record's CreatedAt, which the service
// sets to its current clock reading.
func (s *Store) Create(ctx context.Context, rec idempotency.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[rec.Key]; ok && existing.Live(rec.CreatedAt) {
		return idempotency.ErrDuplicateKey
	}
	s.m[rec.Key] = rec
	return nil
}

func (s *Store) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[uuid.UUID]idempotency.Record, len(s.m))
	for k, v := range s.m {
		snap[k] = v
	}
	return snap
}

func (s *Store) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = snapshot.(map[uuid.UUID]idempotency.Record)
}
