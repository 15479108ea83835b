package quoterepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sura-tech/quotes-api/internal/adapters/postgres"
	"github.com/sura-tech/quotes-api/internal/domain"
	"github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
)

// Repository is the Postgres quoterepo.Repository. Quotes span two tables:
// the quote header and its line items, keyed by position.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ quoterepo.Repository = (*Repository)(nil)

const insertQuoteSQL = `
INSERT INTO quotes (
    quote_id, document_id, status, currency,
    customer_id, customer_email,
    subtotal, tax_total, grand_total,
    expires_at, created_at, updated_at, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const insertItemSQL = `
INSERT INTO quote_items (
    quote_id, position, sku, name, quantity,
    unit_price, tax_rate, line_total, tax_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *Repository) Create(ctx context.Context, q quoterepo.Quote) error {
	db := postgres.QuerierFrom(ctx, r.pool)

	_, err := db.Exec(ctx, insertQuoteSQL,
		string(q.ID), q.DocumentID, q.Status, q.Currency,
		q.CustomerID, q.CustomerEmail,
		q.Subtotal, q.TaxTotal, q.GrandTotal,
		q.ExpiresAt, q.CreatedAt, q.UpdatedAt, q.Metadata,
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return quoterepo.ErrAlreadyExists
		}
		return fmt.Errorf("insert quote: %w", err)
	}

	for i, it := range q.Items {
		_, err := db.Exec(ctx, insertItemSQL,
			string(q.ID), i, it.SKU, it.Name, it.Quantity,
			it.UnitPrice, it.TaxRate, it.LineTotal, it.TaxAmount,
		)
		if err != nil {
			return fmt.Errorf("insert quote item %d: %w", i, err)
		}
	}
	return nil
}

const selectQuoteSQL = `
SELECT quote_id, document_id, status, currency,
       customer_id, customer_email,
       subtotal, tax_total, grand_total,
       expires_at, created_at, updated_at, metadata
FROM quotes
WHERE quote_id = $1`

const selectItemsSQL = `
SELECT sku, name, quantity, unit_price, tax_rate, line_total, tax_amount
FROM quote_items
WHERE quote_id = $1
ORDER BY position`

func (r *Repository) GetByID(ctx context.Context, id domain.QuoteID) (quoterepo.Quote, error) {
	db := postgres.QuerierFrom(ctx, r.pool)

	var q quoterepo.Quote
	var quoteID string
	err := db.QueryRow(ctx, selectQuoteSQL, string(id)).Scan(
		&quoteID, &q.DocumentID, &q.Status, &q.Currency,
		&q.CustomerID, &q.CustomerEmail,
		&q.Subtotal, &q.TaxTotal, &q.GrandTotal,
		&q.ExpiresAt, &q.CreatedAt, &q.UpdatedAt, &q.Metadata,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quoterepo.Quote{}, quoterepo.ErrNotFound
		}
		return quoterepo.Quote{}, fmt.Errorf("select quote: %w", err)
	}
	q.ID = domain.QuoteID(quoteID)

	rows, err := db.Query(ctx, selectItemsSQL, string(id))
	if err != nil {
		return quoterepo.Quote{}, fmt.Errorf("select quote items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it quoterepo.Item
		if err := rows.Scan(&it.SKU, &it.Name, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.LineTotal, &it.TaxAmount); err != nil {
			return quoterepo.Quote{}, fmt.Errorf("scan quote item: %w", err)
		}
		q.Items = append(q.Items, it)
	}
	if err := rows.Err(); err != nil {
		return quoterepo.Quote{}, fmt.Errorf("iterate quote items: %w", err)
	}
	return q, nil
}
