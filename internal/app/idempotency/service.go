package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sura-tech/quotes-api/internal/domain"
	clockport "github.com/sura-tech/quotes-api/internal/ports/out/clock"
	idemport "github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
	txport "github.com/sura-tech/quotes-api/internal/ports/out/tx"
)

// ComputeFunc performs the domain mutation and returns the id of the
// resource it produced. It runs inside the transaction that also records
// the idempotency key, so a failed or losing compute leaves no trace.
type ComputeFunc func(ctx context.Context) (domain.QuoteID, error)

// Result of GetOrCompute. Replayed is true when an earlier computation was
// found for the key; QuoteID then references the original resource so the
// caller re-resolves its current state instead of a cached snapshot.
type Result struct {
	QuoteID  domain.QuoteID
	Replayed bool
}

// Service implements the get-or-compute protocol over the idempotency store.
type Service struct {
	store idemport.Store
	tx    txport.Runner
	clock clockport.Clock
	ttl   time.Duration
}

func NewService(store idemport.Store, tx txport.Runner, clk clockport.Clock, ttl time.Duration) *Service {
	return &Service{store: store, tx: tx, clock: clk, ttl: ttl}
}

// GetOrCompute runs the idempotent command protocol for key:
//
//   - live record with matching fingerprint: replay, compute never runs
//   - live record with different fingerprint: *ConflictError
//   - absent or expired record: compute runs, then the key is bound to its
//     result; both happen in one transaction
//
// Two concurrent calls with the same fresh key are both allowed to start
// computing; the second insert of the key fails the store's uniqueness
// guard, which aborts that transaction (rolling the losing compute back)
// and falls through to the replay/conflict path against the winner's
// record. At most one computation ever survives per live key.
func (s *Service) GetOrCompute(ctx context.Context, key uuid.UUID, payload any, compute ComputeFunc) (Result, error) {
	hash, err := Fingerprint(payload)
	if err != nil {
		return Result{}, err
	}

	res, err := s.tryCompute(ctx, key, hash, compute)
	if errors.Is(err, idemport.ErrDuplicateKey) {
		// Lost the insert race. The winner's record is committed now;
		// resolve against it.
		res, ok, err2 := s.resolveExisting(ctx, key, hash)
		if err2 != nil {
			return Result{}, err2
		}
		if !ok {
			// Record vanished between the failed insert and the re-read.
			// Surfacing the original error lets the client retry cleanly.
			return Result{}, fmt.Errorf("idempotency key %s: %w", key, err)
		}
		return res, nil
	}
	return res, err
}

func (s *Service) tryCompute(ctx context.Context, key uuid.UUID, hash string, compute ComputeFunc) (Result, error) {
	var out Result
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		res, ok, err := s.resolveExisting(ctx, key, hash)
		if err != nil {
			return err
		}
		if ok {
			out = res
			return nil
		}

		quoteID, err := compute(ctx)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		rec := idemport.Record{
			Key:         key,
			RequestHash: hash,
			QuoteID:     quoteID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}
		if err := s.store.Create(ctx, rec); err != nil {
			return err
		}
		out = Result{QuoteID: quoteID, Replayed: false}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return out, nil
}

// resolveExisting checks for a live record under key. It reports ok=false
// when the key is unbound (or expired, which counts as unbound).
func (s *Service) resolveExisting(ctx context.Context, key uuid.UUID, hash string) (Result, bool, error) {
	rec, found, err := s.store.Get(ctx, key)
	if err != nil {
		return Result{}, false, err
	}
	if !found || !rec.Live(s.clock.Now()) {
		return Result{}, false, nil
	}
	if rec.RequestHash != hash {
		return Result{}, false, &ConflictError{Key: key}
	}
	return Result{QuoteID: rec.QuoteID, Replayed: true}, true, nil
}
