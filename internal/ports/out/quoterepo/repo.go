package quoterepo

import (
	"context"
	"time"

	"github.com/sura-tech/quotes-api/internal/domain"
)

// Status of an issued quote. The command path only ever produces ISSUED;
// further lifecycle states belong to later milestones.
const StatusIssued = "ISSUED"

// Item is one priced line of a quote. LineTotal and TaxAmount are computed
// at creation time and stored as written.
type Item struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice float64
	TaxRate   float64
	LineTotal float64
	TaxAmount float64
}

// Quote is the persistence shape used by the quote repository.
// It is not an HTTP DTO.
type Quote struct {
	ID         domain.QuoteID
	DocumentID string
	Status     string
	Currency   string

	CustomerID    string
	CustomerEmail *string

	Items []Item

	Subtotal   float64
	TaxTotal   float64
	GrandTotal float64

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	Metadata map[string]string
}

// Repository provides access to persisted quotes.
//
// Create participates in a surrounding transaction when invoked inside
// tx.Runner.InTx; GetByID is an ordinary read.
type Repository interface {
	Create(ctx context.Context, q Quote) error
	GetByID(ctx context.Context, id domain.QuoteID) (Quote, error)
}
