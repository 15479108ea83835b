package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sura-tech/quotes-api/internal/domain"
	"github.com/sura-tech/quotes-api/internal/ports/out/outbox"
)

// Store is an in-memory implementation of outbox.Store.
// It is safe for concurrent use and participates in the memory tx runner
// via Snapshot/Restore.
type Store struct {
	mu sync.Mutex
	m  map[domain.EventID]*record
}

// record wraps the port record with the last-transition timestamp used by
// the stuck-row sweep (the updated_at column in the Postgres adapter).
type record struct {
	rec       outbox.Record
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{m: make(map[domain.EventID]*record)}
}

func (s *Store) Enqueue(ctx context.Context, rec outbox.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[rec.EventID]; exists {
		return outbox.ErrAlreadyExists
	}
	s.m[rec.EventID] = &record{rec: cloneRecord(rec), updatedAt: rec.CreatedAt}
	return nil
}

func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]outbox.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*record, 0)
	for _, r := range s.m {
		if r.rec.Status == outbox.StatusNew && !r.rec.NextAttemptAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].rec.CreatedAt.Before(due[j].rec.CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]outbox.Record, 0, len(due))
	for _, r := range due {
		r.rec.Status = outbox.StatusProcessing
		r.updatedAt = now
		out = append(out, cloneRecord(r.rec))
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id domain.EventID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return outbox.ErrNotFound
	}
	r.rec.Status = outbox.StatusSent
	r.rec.LastError = nil
	r.updatedAt = time.Now().UTC()
	return nil
}

func (s *Store) Reschedule(ctx context.Context, id domain.EventID, attempts int, nextAttemptAt time.Time, lastError string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return outbox.ErrNotFound
	}
	r.rec.Status = outbox.StatusNew
	r.rec.Attempts = attempts
	r.rec.NextAttemptAt = nextAttemptAt
	r.rec.LastError = &lastError
	r.updatedAt = time.Now().UTC()
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id domain.EventID, attempts int, lastError string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return outbox.ErrNotFound
	}
	r.rec.Status = outbox.StatusFailed
	r.rec.Attempts = attempts
	r.rec.LastError = &lastError
	r.updatedAt = time.Now().UTC()
	return nil
}

func (s *Store) RequeueStuck(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.m {
		if r.rec.Status == outbox.StatusProcessing && r.updatedAt.Before(before) {
			r.rec.Status = outbox.StatusNew
			r.updatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (s *Store) GetByEventID(ctx context.Context, id domain.EventID) (outbox.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[id]
	if !ok {
		return outbox.Record{}, false, nil
	}
	return cloneRecord(r.rec), true, nil
}

// SetUpdatedAtForTest backdates a record's last transition so staleness
// sweeps can be exercised without waiting.
func (s *Store) SetUpdatedAtForTest(id domain.EventID, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.m[id]; ok {
		r.updatedAt = t
	}
}

func (s *Store) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[domain.EventID]*record, len(s.m))
	for k, v := range s.m {
		cp := record{rec: cloneRecord(v.rec), updatedAt: v.updatedAt}
		snap[k] = &cp
	}
	return snap
}

func (s *Store) Restore(snapshot any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = snapshot.(map[domain.EventID]*record)
}

func cloneRecord(rec outbox.Record) outbox.Record {
	out := rec
	out.Payload = append([]byte(nil), rec.Payload...)
	if rec.LastError != nil {
		v := *rec.LastError
		out.LastError = &v
	}
	return out
}
