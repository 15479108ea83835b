package quoterepo

import (
	"context"
	"sync"

	"github.com/sura-tech/quotes-api/internal/domain"
	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

// Repo is an in-memory implementation of quoterepo.Repository.
// It is safe for concurrent use and participates in the memory tx runner
// via Snapshot/Restore.
type Repo struct {
	mu sync.RWMutex
	m  map[domain.QuoteID]quoterepo.Quote
}

func NewRepo() *Repo {
	return &Repo{m: make(map[domain.QuoteID]quoterepo.Quote)}
}

func (r *Repo) Create(ctx context.Context, q quoterepo.Quote) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[q.ID]; exists {
		return quoterepo.ErrAlreadyExists
	}
	r.m[q.ID] = cloneQuote(q)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.QuoteID) (quoterepo.Quote, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.m[id]
	if !ok {
		return quoterepo.Quote{}, quoterepo.ErrNotFound
	}
	return cloneQuote(q), nil
}

func (r *Repo) Snapshot() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := make(map[domain.QuoteID]quoterepo.Quote, len(r.m))
	for k, v := range r.m {
		snap[k] = cloneQuote(v)
	}
	return snap
}

func (r *Repo) Restore(snapshot any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = snapshot.(map[domain.QuoteID]quoterepo.Quote)
}

func cloneQuote(q quoterepo.Quote) quoterepo.Quote {
	out := q
	out.Items = append([]quoterepo.Item(nil), q.Items...)
	if q.CustomerEmail != nil {
		v := *q.CustomerEmail
		out.CustomerEmail = &v
	}
	if q.ExpiresAt != nil {
		v := *q.ExpiresAt
		out.ExpiresAt = &v
	}
	if q.Metadata != nil {
		out.Metadata = make(map[string]string, len(q.Metadata))
		for k, v := range q.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
