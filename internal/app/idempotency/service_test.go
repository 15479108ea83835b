package idempotency_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	memclock "github.com/sura-tech/quotes-api/internal/adapters/memory/clock"
	memidempotency "github.com/sura-tech/quotes-api/internal/adapters/memory/idempotency"
	memtx "github.com/sura-tech/quotes-api/internal/adapters/memory/tx"
	"github.com/sura-tech/quotes-api/internal/app/idempotency"
	"github.com/sura-tech/quotes-api/internal/domain"
	idemport "github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
)

const testTTL = 24 * time.Hour

func newTestService(t *testing.T) (*idempotency.Service, *memidempotency.Store, *memclock.ManualClock) {
	t.Helper()
	store := memidempotency.NewStore()
	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0))
	runner := memtx.NewRunner(store)
	return idempotency.NewService(store, runner, clk, testTTL), store, clk
}

type payload struct {
	Doc string `json:"doc"`
}

func TestGetOrCompute_FreshKeyComputes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, store, clk := newTestService(t)
	key := uuid.New()

	computes := 0
	res, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		computes++
		return "q-1", nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if res.Replayed {
		t.Fatalf("fresh key reported as replayed")
	}
	if res.QuoteID != "q-1" {
		t.Fatalf("unexpected quote id %q", res.QuoteID)
	}
	if computes != 1 {
		t.Fatalf("compute ran %d times", computes)
	}

	rec, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("record not stored: ok=%v err=%v", ok, err)
	}
	if rec.QuoteID != "q-1" {
		t.Fatalf("record references %q", rec.QuoteID)
	}
	if want := clk.Now().Add(testTTL); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", rec.ExpiresAt, want)
	}
}

func TestGetOrCompute_ReplaySameBody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, _ := newTestService(t)
	key := uuid.New()

	computes := 0
	compute := func(ctx context.Context) (domain.QuoteID, error) {
		computes++
		return "q-1", nil
	}

	if _, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, compute); err != nil {
		t.Fatalf("first call: %v", err)
	}
	res, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, compute)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !res.Replayed {
		t.Fatalf("expected replay")
	}
	if res.QuoteID != "q-1" {
		t.Fatalf("replay resolved %q", res.QuoteID)
	}
	if computes != 1 {
		t.Fatalf("compute ran %d times", computes)
	}
}

func TestGetOrCompute_ConflictOnDifferentBody(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, _ := newTestService(t)
	key := uuid.New()

	if _, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "q-1", nil
	}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, err := svc.GetOrCompute(ctx, key, payload{Doc: "d2"}, func(ctx context.Context) (domain.QuoteID, error) {
		t.Fatalf("compute must not run on conflict")
		return "", nil
	})
	var conflict *idempotency.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Key != key {
		t.Fatalf("conflict reports key %s", conflict.Key)
	}
}

func TestGetOrCompute_ExpiredKeyRecomputes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, clk := newTestService(t)
	key := uuid.New()

	if _, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "q-1", nil
	}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	clk.Advance(testTTL + time.Second)

	// Same key, different body: the binding has expired, so this is a fresh
	// command rather than a conflict.
	res, err := svc.GetOrCompute(ctx, key, payload{Doc: "d2"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "q-2", nil
	})
	if err != nil {
		t.Fatalf("post-expiry call: %v", err)
	}
	if res.Replayed || res.QuoteID != "q-2" {
		t.Fatalf("expected fresh computation, got %+v", res)
	}
}

func TestGetOrCompute_ComputeFailureLeavesNoRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, store, _ := newTestService(t)
	key := uuid.New()

	boom := errors.New("pricing exploded")
	_, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}

	if _, ok, _ := store.Get(ctx, key); ok {
		t.Fatalf("failed computation left a record behind")
	}

	// The key is reusable after the failure.
	res, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "q-1", nil
	})
	if err != nil || res.Replayed || res.QuoteID != "q-1" {
		t.Fatalf("retry after failure: res=%+v err=%v", res, err)
	}
}

func TestGetOrCompute_ConcurrentSameKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, _, _ := newTestService(t)
	key := uuid.New()

	var computeMu sync.Mutex
	computes := 0

	const callers = 16
	results := make([]idempotency.Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
				computeMu.Lock()
				computes++
				computeMu.Unlock()
				return "q-1", nil
			})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].QuoteID != "q-1" {
			t.Fatalf("caller %d resolved %q", i, results[i].QuoteID)
		}
		if !results[i].Replayed {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("expected exactly one winner, got %d", fresh)
	}
	if computes != 1 {
		t.Fatalf("compute ran %d times", computes)
	}
}

// racingStore simulates losing the insert race: the first Get sees no record,
// Create fails with the duplicate-key guard, and later Gets see the winner's
// committed record.
type racingStore struct {
	mu      sync.Mutex
	winner  idemport.Record
	settled bool
}

func (s *racingStore) Get(ctx context.Context, key uuid.UUID) (idemport.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settled {
		return idemport.Record{}, false, nil
	}
	return s.winner, true, nil
}

func (s *racingStore) Create(ctx context.Context, rec idemport.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled = true
	return idemport.ErrDuplicateKey
}

func TestGetOrCompute_LosingRacerReplaysWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0))
	key := uuid.New()

	hash, err := idempotency.Fingerprint(payload{Doc: "d1"})
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	store := &racingStore{winner: idemport.Record{
		Key:         key,
		RequestHash: hash,
		QuoteID:     "q-winner",
		CreatedAt:   clk.Now(),
		ExpiresAt:   clk.Now().Add(testTTL),
	}}
	svc := idempotency.NewService(store, memtx.NewRunner(), clk, testTTL)

	res, err := svc.GetOrCompute(ctx, key, payload{Doc: "d1"}, func(ctx context.Context) (domain.QuoteID, error) {
		return "q-loser", nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if !res.Replayed || res.QuoteID != "q-winner" {
		t.Fatalf("expected winner replay, got %+v", res)
	}
}
