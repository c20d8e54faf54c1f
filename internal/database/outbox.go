package database

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TemirB/coursemarket/internal/domain"
)

// claimLease is how long a claimed entry stays invisible to other relays.
// A relay that dies mid-batch releases its rows when the lease runs out.
const claimLease = 30 * time.Second

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type OutboxStore struct {
	pool  querier
	lease time.Duration
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return newOutboxStore(pool)
}

func newOutboxStore(q querier) *OutboxStore {
	return &OutboxStore{pool: q, lease: claimLease}
}

const claimOutboxSQL = `
	WITH due AS (
		SELECT id FROM order_outbox
		WHERE (status = $1 AND (next_retry_at IS NULL OR next_retry_at <= now()))
		   OR (status = $2 AND next_retry_at <= now())
		ORDER BY id
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	UPDATE order_outbox o
	SET next_retry_at = now() + make_interval(secs => $4)
	FROM due
	WHERE o.id = due.id
	RETURNING o.id, o.aggregate_id, o.event_type, o.payload, o.status, o.retry_count,
	          coalesce(o.last_error, ''), o.created_at, o.next_retry_at`

// Pending claims up to limit entries that are due for delivery, oldest
// first. Rows locked by another relay are skipped, and a claimed row is
// pushed out by the lease so concurrent relays do not publish it twice.
// Failed entries come back once their next retry time has passed.
func (s *OutboxStore) Pending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, claimOutboxSQL,
		domain.OutboxPending, domain.OutboxFailed, limit, s.lease.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}
	defer rows.Close()

	var entries []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.Status,
			&e.RetryCount, &e.LastError, &e.CreatedAt, &e.NextRetryAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING does not keep the CTE order.
	slices.SortFunc(entries, func(a, b domain.OutboxEntry) int { return cmp.Compare(a.ID, b.ID) })
	return entries, nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE order_outbox SET status = $2, published_at = now(), last_error = NULL WHERE id = $1`,
		id, domain.OutboxPublished,
	)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, cause string, next time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE order_outbox
		SET status = $2, retry_count = retry_count + 1, last_error = $3, next_retry_at = $4
		WHERE id = $1`,
		id, domain.OutboxFailed, cause, next,
	)
	return err
}
