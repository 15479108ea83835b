package quotes

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sura-tech/quotes-api/internal/app/idempotency"
	"github.com/sura-tech/quotes-api/internal/domain"
	clockport "github.com/sura-tech/quotes-api/internal/ports/out/clock"
	outboxport "github.com/sura-tech/quotes-api/internal/ports/out/outbox"
	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

type Service struct {
	quotes quoterepo.Repository
	outbox outboxport.Store
	idem   *idempotency.Service
	clock  clockport.Clock

	newQuoteID func() domain.QuoteID
	newEventID func() domain.EventID
}

func NewService(quotesRepo quoterepo.Repository, outboxStore outboxport.Store, idem *idempotency.Service, clk clockport.Clock) *Service {
	return &Service{
		quotes: quotesRepo,
		outbox: outboxStore,
		idem:   idem,
		clock:  clk,
		newQuoteID: func() domain.QuoteID {
			return domain.QuoteID(uuid.NewString())
		},
		newEventID: func() domain.EventID {
			return domain.EventID(uuid.NewString())
		},
	}
}

// SetIDGeneratorsForTest overrides id generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetIDGeneratorsForTest(newQuoteID func() domain.QuoteID, newEventID func() domain.EventID) {
	if newQuoteID != nil {
		s.newQuoteID = newQuoteID
	}
	if newEventID != nil {
		s.newEventID = newEventID
	}
}

// CreateQuote issues a quote idempotently under key. A fresh computation
// persists the quote and enqueues a quote.issued outbox event in one
// transaction; a replay re-resolves the previously produced quote without
// recomputing or re-enqueueing anything.
func (s *Service) CreateQuote(ctx context.Context, key uuid.UUID, in CreateQuoteInput) (QuoteCreated, error) {
	res, err := s.idem.GetOrCompute(ctx, key, in, func(ctx context.Context) (domain.QuoteID, error) {
		return s.issueQuote(ctx, key, in)
	})
	if err != nil {
		return QuoteCreated{}, err
	}

	q, err := s.quotes.GetByID(ctx, res.QuoteID)
	if err != nil {
		if errors.Is(err, quoterepo.ErrNotFound) {
			// The idempotency record outlived its quote; treat as an
			// internal inconsistency rather than a user error.
			return QuoteCreated{}, &Error{Status: 500, Code: "QUOTE_MISSING", Message: "quote referenced by idempotency record not found"}
		}
		return QuoteCreated{}, err
	}
	return QuoteCreated{Quote: q, Replayed: res.Replayed}, nil
}

// GetQuote returns the current state of a quote.
func (s *Service) GetQuote(ctx context.Context, id domain.QuoteID) (quoterepo.Quote, error) {
	q, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, quoterepo.ErrNotFound) {
			return quoterepo.Quote{}, &Error{Status: 404, Code: "QUOTE_NOT_FOUND", Message: "quote not found"}
		}
		return quoterepo.Quote{}, err
	}
	return q, nil
}

// issueQuote is the compute step: price the items, persist the quote, and
// enqueue the announcing event. Runs inside the idempotency transaction.
func (s *Service) issueQuote(ctx context.Context, key uuid.UUID, in CreateQuoteInput) (domain.QuoteID, error) {
	items, t := priceItems(in.Items)

	now := s.clock.Now()
	q := quoterepo.Quote{
		ID:            s.newQuoteID(),
		DocumentID:    in.DocumentID,
		Status:        quoterepo.StatusIssued,
		Currency:      in.Currency,
		CustomerID:    in.Customer.ID,
		CustomerEmail: in.Customer.Email,
		Items:         items,
		Subtotal:      t.subtotal,
		TaxTotal:      t.taxTotal,
		GrandTotal:    t.grandTotal,
		ExpiresAt:     in.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
		Metadata:      in.Metadata,
	}

	if err := s.quotes.Create(ctx, q); err != nil {
		return "", err
	}
	if err := s.enqueueQuoteIssued(ctx, q, key); err != nil {
		return "", err
	}
	return q.ID, nil
}
