package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sura-tech/quotes-api/internal/domain"
	idempotencyport "github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
	outboxport "github.com/sura-tech/quotes-api/internal/ports/out/outbox"
	quoterepoport "github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

type CleanupFunc = func()

type QuoteRepoFactory func(t *testing.T) (quoterepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type OutboxStoreFactory func(t *testing.T) (outboxport.Store, CleanupFunc)

func RunQuoteRepo(t *testing.T, newRepo QuoteRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	email := "buyer@example.com"
	id := domain.QuoteID(uuid.NewString())
	q := quoterepoport.Quote{
		ID:            id,
		DocumentID:    "DOC-001",
		Status:        quoterepoport.StatusIssued,
		Currency:      "THB",
		CustomerID:    "cust-1",
		CustomerEmail: &email,
		Items: []quoterepoport.Item{
			{SKU: "SKU-A", Name: "Widget", Quantity: 2, UnitPrice: 100, TaxRate: 0.07, LineTotal: 200, TaxAmount: 14},
			{SKU: "SKU-B", Name: "Gadget", Quantity: 1, UnitPrice: 50, TaxRate: 0, LineTotal: 50, TaxAmount: 0},
		},
		Subtotal:   250,
		TaxTotal:   14,
		GrandTotal: 264,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]string{"channel": "web"},
	}
	if err := repo.Create(ctx, q); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != id || got.DocumentID != "DOC-001" || got.Status != quoterepoport.StatusIssued {
		t.Fatalf("unexpected quote: %+v", got)
	}
	if len(got.Items) != 2 || got.Items[0].SKU != "SKU-A" || got.Items[1].SKU != "SKU-B" {
		t.Fatalf("unexpected items (order must be preserved): %+v", got.Items)
	}
	if got.CustomerEmail == nil || *got.CustomerEmail != email {
		t.Fatalf("unexpected customer email: %v", got.CustomerEmail)
	}
	if got.GrandTotal != 264 {
		t.Fatalf("unexpected grand total: %v", got.GrandTotal)
	}
	if got.Metadata["channel"] != "web" {
		t.Fatalf("unexpected metadata: %+v", got.Metadata)
	}

	// Duplicate id rejected.
	if err := repo.Create(ctx, q); !errors.Is(err, quoterepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Absent id.
	if _, err := repo.GetByID(ctx, domain.QuoteID(uuid.NewString())); !errors.Is(err, quoterepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(2000, 0).UTC()
	key := uuid.New()
	rec := idempotencyport.Record{
		Key:         key,
		RequestHash: "hash-abc",
		QuoteID:     domain.QuoteID(uuid.NewString()),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if got.Key != key || got.RequestHash != "hash-abc" || got.QuoteID != rec.QuoteID {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A live record blocks a second Create for the same key.
	dup := rec
	dup.RequestHash = "hash-def"
	dup.CreatedAt = now.Add(time.Minute)
	dup.ExpiresAt = now.Add(time.Hour + time.Minute)
	if err := store.Create(ctx, dup); !errors.Is(err, idempotencyport.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// An expired record is replaced as if absent.
	later := rec.ExpiresAt.Add(time.Minute)
	fresh := idempotencyport.Record{
		Key:         key,
		RequestHash: "hash-new",
		QuoteID:     domain.QuoteID(uuid.NewString()),
		CreatedAt:   later,
		ExpiresAt:   later.Add(time.Hour),
	}
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("Create over expired: %v", err)
	}
	got, ok, err = store.Get(ctx, key)
	if err != nil || !ok || got.RequestHash != "hash-new" {
		t.Fatalf("expected replaced record, got ok=%v err=%v rec=%+v", ok, err, got)
	}

	// Unknown key.
	if _, ok, err := store.Get(ctx, uuid.New()); err != nil || ok {
		t.Fatalf("expected absent record, got ok=%v err=%v", ok, err)
	}
}

func RunOutboxStore(t *testing.T, newStore OutboxStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	base := time.Unix(3000, 0).UTC()
	mkRecord := func(createdAt time.Time) outboxport.Record {
		return outboxport.Record{
			EventID:       domain.EventID(uuid.NewString()),
			EventType:     "com.suratech.quote.issued.v1",
			AggregateType: "Quote",
			AggregateID:   uuid.NewString(),
			Payload:       []byte(`{"specversion":"1.0"}`),
			Status:        outboxport.StatusNew,
			Attempts:      0,
			NextAttemptAt: createdAt,
			CreatedAt:     createdAt,
		}
	}

	// Enqueue out of creation order; ClaimDue must return oldest first.
	second := mkRecord(base.Add(time.Second))
	first := mkRecord(base)
	notDue := mkRecord(base.Add(2 * time.Second))
	notDue.NextAttemptAt = base.Add(time.Hour)
	for _, rec := range []outboxport.Record{second, first, notDue} {
		if err := store.Enqueue(ctx, rec); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if err := store.Enqueue(ctx, first); !errors.Is(err, outboxport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	claimNow := base.Add(time.Minute)
	batch, err := store.ClaimDue(ctx, claimNow, 10)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 due records, got %d", len(batch))
	}
	if batch[0].EventID != first.EventID || batch[1].EventID != second.EventID {
		t.Fatalf("expected oldest-first order, got %v then %v", batch[0].EventID, batch[1].EventID)
	}
	for _, rec := range batch {
		if rec.Status != outboxport.StatusProcessing {
			t.Fatalf("claimed record not PROCESSING: %+v", rec)
		}
	}

	// A claimed record is not claimable again.
	again, err := store.ClaimDue(ctx, claimNow, 10)
	if err != nil {
		t.Fatalf("ClaimDue again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no claimable records, got %d", len(again))
	}

	// Settlements.
	if err := store.MarkSent(ctx, first.EventID); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	got, ok, err := store.GetByEventID(ctx, first.EventID)
	if err != nil || !ok {
		t.Fatalf("GetByEventID: ok=%v err=%v", ok, err)
	}
	if got.Status != outboxport.StatusSent || got.LastError != nil {
		t.Fatalf("expected SENT with nil last error, got %+v", got)
	}

	retryAt := claimNow.Add(time.Second)
	if err := store.Reschedule(ctx, second.EventID, 1, retryAt, "broker unavailable"); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	got, _, err = store.GetByEventID(ctx, second.EventID)
	if err != nil {
		t.Fatalf("GetByEventID: %v", err)
	}
	if got.Status != outboxport.StatusNew || got.Attempts != 1 || !got.NextAttemptAt.Equal(retryAt) {
		t.Fatalf("unexpected rescheduled record: %+v", got)
	}
	if got.LastError == nil || *got.LastError != "broker unavailable" {
		t.Fatalf("unexpected last error: %v", got.LastError)
	}

	// A rescheduled record becomes claimable once due.
	batch, err = store.ClaimDue(ctx, retryAt.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("ClaimDue rescheduled: %v", err)
	}
	if len(batch) != 1 || batch[0].EventID != second.EventID {
		t.Fatalf("expected rescheduled record, got %+v", batch)
	}

	if err := store.MarkFailed(ctx, second.EventID, 10, "gave up"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, _, err = store.GetByEventID(ctx, second.EventID)
	if err != nil {
		t.Fatalf("GetByEventID: %v", err)
	}
	if got.Status != outboxport.StatusFailed || got.Attempts != 10 {
		t.Fatalf("unexpected dead-lettered record: %+v", got)
	}

	// FAILED records never come back.
	batch, err = store.ClaimDue(ctx, retryAt.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ClaimDue after fail: %v", err)
	}
	for _, rec := range batch {
		if rec.EventID == second.EventID {
			t.Fatalf("FAILED record was claimed: %+v", rec)
		}
	}

	// Settling an unknown id reports ErrNotFound.
	if err := store.MarkSent(ctx, domain.EventID(uuid.NewString())); !errors.Is(err, outboxport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Limit is honored.
	for i := 0; i < 3; i++ {
		rec := mkRecord(base.Add(time.Duration(10+i) * time.Second))
		if err := store.Enqueue(ctx, rec); err != nil {
			t.Fatalf("Enqueue batch seed: %v", err)
		}
	}
	batch, err = store.ClaimDue(ctx, base.Add(time.Minute), 2)
	if err != nil {
		t.Fatalf("ClaimDue limited: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(batch))
	}
}
