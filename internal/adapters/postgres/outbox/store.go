package outbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sura-tech/quotes-api/internal/adapters/postgres"
	"github.com/sura-tech/quotes-api/internal/domain"
	"github.com/sura-tech/quotes-api/internal/ports/out/outbox"
)

// Store is the Postgres outbox.Store. ClaimDue uses FOR UPDATE SKIP LOCKED so
// concurrent publisher instances never claim the same record; updated_at
// tracks the last status transition and drives RequeueStuck.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ outbox.Store = (*Store)(nil)

const insertEventSQL = `
INSERT INTO outbox_events (
    event_id, event_type, aggregate_type, aggregate_id, payload,
    status, attempts, next_attempt_at, created_at, updated_at, last_error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10)`

func (s *Store) Enqueue(ctx context.Context, rec outbox.Record) error {
	db := postgres.QuerierFrom(ctx, s.pool)

	_, err := db.Exec(ctx, insertEventSQL,
		string(rec.EventID), rec.EventType, rec.AggregateType, rec.AggregateID, rec.Payload,
		string(rec.Status), rec.Attempts, rec.NextAttemptAt, rec.CreatedAt, rec.LastError,
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return outbox.ErrAlreadyExists
		}
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

const claimDueSQL = `
UPDATE outbox_events
SET status = 'PROCESSING', updated_at = $1
WHERE event_id IN (
    SELECT event_id
    FROM outbox_events
    WHERE status = 'NEW' AND next_attempt_at <= $1
    ORDER BY created_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING event_id, event_type, aggregate_type, aggregate_id, payload,
          status, attempts, next_attempt_at, created_at, last_error`

func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]outbox.Record, error) {
	db := postgres.QuerierFrom(ctx, s.pool)

	rows, err := db.Query(ctx, claimDueSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var recs []outbox.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed events: %w", err)
	}

	// RETURNING does not promise the subquery's order.
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return recs, nil
}

const markSentSQL = `
UPDATE outbox_events
SET status = 'SENT', last_error = NULL, updated_at = now()
WHERE event_id = $1`

func (s *Store) MarkSent(ctx context.Context, id domain.EventID) error {
	db := postgres.QuerierFrom(ctx, s.pool)

	tag, err := db.Exec(ctx, markSentSQL, string(id))
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

const rescheduleSQL = `
UPDATE outbox_events
SET status = 'NEW', attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = now()
WHERE event_id = $1`

func (s *Store) Reschedule(ctx context.Context, id domain.EventID, attempts int, nextAttemptAt time.Time, lastError string) error {
	db := postgres.QuerierFrom(ctx, s.pool)

	tag, err := db.Exec(ctx, rescheduleSQL, string(id), attempts, nextAttemptAt, lastError)
	if err != nil {
		return fmt.Errorf("reschedule outbox event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

const markFailedSQL = `
UPDATE outbox_events
SET status = 'FAILED', attempts = $2, last_error = $3, updated_at = now()
WHERE event_id = $1`

func (s *Store) MarkFailed(ctx context.Context, id domain.EventID, attempts int, lastError string) error {
	db := postgres.QuerierFrom(ctx, s.pool)

	tag, err := db.Exec(ctx, markFailedSQL, string(id), attempts, lastError)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

const requeueStuckSQL = `
UPDATE outbox_events
SET status = 'NEW', updated_at = now()
WHERE status = 'PROCESSING' AND updated_at < $1`

func (s *Store) RequeueStuck(ctx context.Context, before time.Time) (int, error) {
	db := postgres.QuerierFrom(ctx, s.pool)

	tag, err := db.Exec(ctx, requeueStuckSQL, before)
	if err != nil {
		return 0, fmt.Errorf("requeue stuck outbox events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const selectEventSQL = `
SELECT event_id, event_type, aggregate_type, aggregate_id, payload,
       status, attempts, next_attempt_at, created_at, last_error
FROM outbox_events
WHERE event_id = $1`

func (s *Store) GetByEventID(ctx context.Context, id domain.EventID) (outbox.Record, bool, error) {
	db := postgres.QuerierFrom(ctx, s.pool)

	row := db.QueryRow(ctx, selectEventSQL, string(id))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.Record{}, false, nil
		}
		return outbox.Record{}, false, err
	}
	return rec, true, nil
}

func scanRecord(row pgx.Row) (outbox.Record, error) {
	var rec outbox.Record
	var eventID, status string
	err := row.Scan(
		&eventID, &rec.EventType, &rec.AggregateType, &rec.AggregateID, &rec.Payload,
		&status, &rec.Attempts, &rec.NextAttemptAt, &rec.CreatedAt, &rec.LastError,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.Record{}, err
		}
		return outbox.Record{}, fmt.Errorf("scan outbox event: %w", err)
	}
	rec.EventID = domain.EventID(eventID)
	rec.Status = outbox.Status(status)
	return rec, nil
}
