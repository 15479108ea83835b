package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	outboxport "github.com/sura-tech/quotes-api/internal/ports/out/outbox"
	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

const (
	// EventTypeQuoteIssued and EventSource identify quote.issued events on
	// the wire. Both are part of the downstream contract and must not drift.
	EventTypeQuoteIssued = "com.suratech.quote.issued.v1"
	EventSource          = "/suratech/quotes"

	AggregateTypeQuote = "Quote"

	// quoteIssuedSchemaVersion is carried in the event payload and as sink
	// transport metadata for consumer-side schema routing.
	quoteIssuedSchemaVersion = 1
)

// CloudEvent is the versioned envelope written to the outbox and delivered
// to the sink. Field names and the fixed "1.0" specversion are stable for
// downstream compatibility.
type CloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	Subject         string    `json:"subject"`
	DataContentType string    `json:"datacontenttype"`
	TraceParent     string    `json:"traceparent,omitempty"`
	Data            any       `json:"data"`
}

// QuoteIssuedData is the domain payload of a quote.issued event.
type QuoteIssuedData struct {
	QuoteID        string                `json:"quoteId"`
	IssuedAt       time.Time             `json:"issuedAt"`
	Customer       QuoteIssuedCustomer   `json:"customer"`
	Currency       string                `json:"currency"`
	Totals         QuoteIssuedTotals     `json:"totals"`
	Items          []QuoteIssuedItem     `json:"items"`
	IdempotencyKey string                `json:"idempotencyKey"`
	Version        int                   `json:"version"`
}

type QuoteIssuedCustomer struct {
	CustomerID string `json:"customerId"`
}

type QuoteIssuedTotals struct {
	Subtotal   float64 `json:"subtotal"`
	TaxTotal   float64 `json:"taxTotal"`
	GrandTotal float64 `json:"grandTotal"`
}

type QuoteIssuedItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	TaxRate   float64 `json:"taxRate"`
	LineTotal float64 `json:"lineTotal"`
	TaxAmount float64 `json:"taxAmount"`
}

// enqueueQuoteIssued writes the quote.issued outbox record for q. It runs
// inside the quote-creation transaction: if that transaction rolls back, so
// does the outbox row.
func (s *Service) enqueueQuoteIssued(ctx context.Context, q quoterepo.Quote, key uuid.UUID) error {
	eventID := s.newEventID()
	now := s.clock.Now()

	items := make([]QuoteIssuedItem, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, QuoteIssuedItem{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   it.TaxRate,
			LineTotal: it.LineTotal,
			TaxAmount: it.TaxAmount,
		})
	}

	envelope := CloudEvent{
		SpecVersion:     "1.0",
		Type:            EventTypeQuoteIssued,
		Source:          EventSource,
		ID:              string(eventID),
		Time:            now,
		Subject:         "quotes/" + string(q.ID),
		DataContentType: "application/json",
		Data: QuoteIssuedData{
			QuoteID:  string(q.ID),
			IssuedAt: q.CreatedAt,
			Customer: QuoteIssuedCustomer{CustomerID: q.CustomerID},
			Currency: q.Currency,
			Totals: QuoteIssuedTotals{
				Subtotal:   q.Subtotal,
				TaxTotal:   q.TaxTotal,
				GrandTotal: q.GrandTotal,
			},
			Items:          items,
			IdempotencyKey: key.String(),
			Version:        quoteIssuedSchemaVersion,
		},
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal quote.issued envelope: %w", err)
	}

	return s.outbox.Enqueue(ctx, outboxport.Record{
		EventID:       eventID,
		EventType:     EventTypeQuoteIssued,
		AggregateType: AggregateTypeQuote,
		AggregateID:   string(q.ID),
		Payload:       payload,
		Status:        outboxport.StatusNew,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
}
