package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Exponent1/devops-order-system/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS orders (
		id         TEXT PRIMARY KEY,
		item       TEXT NOT NULL,
		quantity   BIGINT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

// Save inserts the order row. Orders are append-only; a duplicate id is an
// error, never an update.
func (r *Repository) Save(ctx context.Context, o domain.Order) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO orders (id, item, quantity, status, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		o.ID, o.Item, o.Quantity, string(o.Status), o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, item, quantity, status, created_at FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.Item, &o.Quantity, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
