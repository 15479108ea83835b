package quotes

import (
	"time"

	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

type CustomerInput struct {
	ID    string  `json:"id"`
	Email *string `json:"email,omitempty"`
}

type ItemInput struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	// UnitPrice is the pre-tax price per unit.
	UnitPrice float64 `json:"unitPrice"`
	// TaxRate is a fraction in [0,1]; nil means untaxed.
	TaxRate *float64 `json:"taxRate,omitempty"`
}

// CreateQuoteInput is the command body. Its JSON encoding (field order
// fixed, map keys sorted) is also the idempotency fingerprint input, so
// fields must stay JSON-encodable.
type CreateQuoteInput struct {
	DocumentID string            `json:"documentId"`
	Customer   CustomerInput     `json:"customer"`
	Currency   string            `json:"currency"`
	Items      []ItemInput       `json:"items"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// QuoteCreated is the command result. Replayed distinguishes a fresh
// computation from a replay of an earlier one; Quote is the current
// persisted state either way.
type QuoteCreated struct {
	Quote    quoterepo.Quote
	Replayed bool
}
