package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sura-tech/quotes-api/internal/adapters/postgres"
	"github.com/sura-tech/quotes-api/internal/domain"
	"github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
)

// Store is the Postgres idempotency.Store.
//
// Create relies on the primary key for the at-most-one-winner guarantee: the
// insert upserts only over an expired row, so a live row makes it a no-op,
// which surfaces as ErrDuplicateKey.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ idempotency.Store = (*Store)(nil)

const selectRecordSQL = `
SELECT idempotency_key, request_hash, quote_id, created_at, expires_at
FROM idempotency_keys
WHERE idempotency_key = $1`

func (s *Store) Get(ctx context.Context, key uuid.UUID) (idempotency.Record, bool, error) {
	db := postgres.QuerierFrom(ctx, s.pool)

	var rec idempotency.Record
	var quoteID string
	err := db.QueryRow(ctx, selectRecordSQL, key).Scan(
		&rec.Key, &rec.RequestHash, &quoteID, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, fmt.Errorf("select idempotency record: %w", err)
	}
	rec.QuoteID = domain.QuoteID(quoteID)
	return rec, true, nil
}

const insertRecordSQL = `
INSERT INTO idempotency_keys (idempotency_key, request_hash, quote_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (idempotency_key) DO UPDATE SET
    request_hash = EXCLUDED.request_hash,
    quote_id     = EXCLUDED.quote_id,
    created_at   = EXCLUDED.created_at,
    expires_at   = EXCLUDED.expires_at
WHERE idempotency_keys.expires_at <= EXCLUDED.created_at`

func (s *Store) Create(ctx context.Context, rec idempotency.Record) error {
	db := postgres.QuerierFrom(ctx, s.pool)

	tag, err := db.Exec(ctx, insertRecordSQL,
		rec.Key, rec.RequestHash, string(rec.QuoteID), rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		// Two concurrent inserts of the same fresh key race past the upsert
		// arbiter; the loser still reports a unique violation.
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return idempotency.ErrDuplicateKey
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return idempotency.ErrDuplicateKey
	}
	return nil
}
