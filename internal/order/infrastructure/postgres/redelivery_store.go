package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Exponent1/devops-order-system/internal/order/domain"
	"github.com/Exponent1/devops-order-system/pkg/redelivery"
)

// RedeliveryStore spools events whose direct publish failed. The relay locks
// batches with FOR UPDATE SKIP LOCKED so concurrent relays never pick the
// same rows; rows whose lease expired without a MarkSent/MarkFailed (relay
// died mid-batch) become lockable again.
type RedeliveryStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRedeliveryStore(log *slog.Logger, pool *pgxpool.Pool) *RedeliveryStore {
	return &RedeliveryStore{log: log, pool: pool}
}

func (s *RedeliveryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS event_redelivery (
		id          BIGSERIAL PRIMARY KEY,
		event_id    TEXT NOT NULL,
		type        TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		status      TEXT NOT NULL DEFAULT 'pending',
		relay_id    TEXT,
		lease_until TIMESTAMPTZ,
		retry_count INT NOT NULL DEFAULT 0,
		last_error  TEXT
	)`)
	return err
}

func (s *RedeliveryStore) Enqueue(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO event_redelivery (event_id, type, payload, status)
		VALUES ($1,$2,$3,'pending')`,
		ev.EventID, string(ev.Type), payload)
	return err
}

func (s *RedeliveryStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]redelivery.Pending, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, event_id, type, payload, created_at, retry_count
		FROM event_redelivery
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []redelivery.Pending
	for rows.Next() {
		var p redelivery.Pending
		if err := rows.Scan(&p.ID, &p.EventID, &p.Type, &p.Payload, &p.CreatedAt, &p.RetryCount); err != nil {
			return nil, err
		}
		events = append(events, p)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, p := range events {
		ids = append(ids, p.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE event_redelivery SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`,
		relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *RedeliveryStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE event_redelivery SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

// MarkFailed puts the event back in line; spooled events are retried until
// they go through.
func (s *RedeliveryStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE event_redelivery SET status='pending', last_error=$2, retry_count=retry_count+1 WHERE id=$1`, id, errMsg)
	return err
}
