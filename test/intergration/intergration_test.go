//go:build integration

package intergration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Exponent1/devops-order-system/internal/ledger"
	"github.com/Exponent1/devops-order-system/internal/order/domain"
	orderpg "github.com/Exponent1/devops-order-system/internal/order/infrastructure/postgres"
	"github.com/Exponent1/devops-order-system/pkg/idempotency"
)

func TestReservationProtocolEndToEnd(t *testing.T) {
	ctx := context.Background()
	env, err := Setup(ctx)
	if err != nil {
		t.Fatalf("container setup failed: %v", err)
	}
	defer env.Teardown(ctx)

	opts, err := goredis.ParseURL(env.RedisAddr)
	if err != nil {
		t.Fatalf("redis url: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	pool, err := pgxpool.New(ctx, env.PGURL)
	if err != nil {
		t.Fatalf("pg connect: %v", err)
	}
	defer pool.Close()

	t.Run("redis ledger no oversell", func(t *testing.T) {
		led := ledger.NewRedisLedger(rdb, 100)

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := led.TryReserve(ctx, "widget", 15)
				if err != nil {
					t.Errorf("reserve: %v", err)
					return
				}
				if res.OK {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if succeeded != 6 {
			t.Errorf("Expected exactly 6 successful reservations, got %d", succeeded)
		}
		stock, err := led.GetStock(ctx, "widget")
		if err != nil {
			t.Fatalf("get stock: %v", err)
		}
		if stock != 10 {
			t.Errorf("Expected final stock 10, got %d", stock)
		}
	})

	t.Run("redis ledger release round trip", func(t *testing.T) {
		led := ledger.NewRedisLedger(rdb, 100)

		res, err := led.TryReserve(ctx, "gadget", 30)
		if err != nil || !res.OK {
			t.Fatalf("reserve: ok=%v err=%v", res.OK, err)
		}
		if err := led.Release(ctx, "gadget", 30); err != nil {
			t.Fatalf("release: %v", err)
		}
		stock, err := led.GetStock(ctx, "gadget")
		if err != nil {
			t.Fatalf("get stock: %v", err)
		}
		if stock != 100 {
			t.Errorf("Expected stock restored to 100, got %d", stock)
		}
	})

	t.Run("redis ledger read does not initialize", func(t *testing.T) {
		led := ledger.NewRedisLedger(rdb, 100)
		if _, err := led.GetStock(ctx, "ghost"); !errors.Is(err, ledger.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("idempotency store caches terminal outcome", func(t *testing.T) {
		store := idempotency.NewStore(rdb, time.Minute)

		cached, acquired, err := store.Acquire(ctx, "key-1")
		if err != nil || !acquired || cached != nil {
			t.Fatalf("Expected fresh claim, got cached=%v acquired=%v err=%v", cached, acquired, err)
		}

		// a second caller sees the claim in flight
		if _, _, err := store.Acquire(ctx, "key-1"); !errors.Is(err, idempotency.ErrInFlight) {
			t.Errorf("Expected ErrInFlight, got: %v", err)
		}

		out := idempotency.Outcome{OK: true, Remaining: 85, ReservationID: "r1"}
		if err := store.Complete(ctx, "key-1", out); err != nil {
			t.Fatalf("complete: %v", err)
		}

		cached, acquired, err = store.Acquire(ctx, "key-1")
		if err != nil || acquired {
			t.Fatalf("Expected replay, got acquired=%v err=%v", acquired, err)
		}
		if cached == nil || *cached != out {
			t.Errorf("Expected cached outcome %+v, got %+v", out, cached)
		}
	})

	t.Run("order repository round trip", func(t *testing.T) {
		log := slog.New(slog.DiscardHandler)
		repo := orderpg.NewRepository(log, pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			t.Fatalf("schema: %v", err)
		}

		o := domain.NewOrder("widget", 15)
		if err := repo.Save(ctx, o); err != nil {
			t.Fatalf("save: %v", err)
		}
		// append-only: same id again must fail
		if err := repo.Save(ctx, o); err == nil {
			t.Error("Expected duplicate insert to fail")
		}

		got, err := repo.Get(ctx, o.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Item != "widget" || got.Quantity != 15 || got.Status != domain.StatusCreated {
			t.Errorf("Expected stored order back, got %+v", got)
		}
		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("redelivery spool round trip", func(t *testing.T) {
		log := slog.New(slog.DiscardHandler)
		spool := orderpg.NewRedeliveryStore(log, pool)
		if err := spool.EnsureSchema(ctx); err != nil {
			t.Fatalf("schema: %v", err)
		}

		ev := domain.NewEvent(domain.EventOrderCreated, domain.NewOrder("widget", 15))
		if err := spool.Enqueue(ctx, ev); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		batch, err := spool.LockBatch(ctx, "test-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(batch) != 1 || batch[0].EventID != ev.EventID {
			t.Fatalf("Expected the spooled event, got %+v", batch)
		}

		// locked rows are invisible to a second relay
		again, err := spool.LockBatch(ctx, "other-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("Expected no rows for a second relay, got %d", len(again))
		}

		if err := spool.MarkFailed(ctx, batch[0].ID, "broker unreachable"); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
		// a failed event is requeued
		batch, err = spool.LockBatch(ctx, "test-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(batch) != 1 || batch[0].RetryCount != 1 {
			t.Fatalf("Expected requeued event with retry_count 1, got %+v", batch)
		}

		if err := spool.MarkSent(ctx, []int64{batch[0].ID}); err != nil {
			t.Fatalf("mark sent: %v", err)
		}
		batch, err = spool.LockBatch(ctx, "test-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(batch) != 0 {
			t.Errorf("Expected empty spool after send, got %d", len(batch))
		}
	})

	t.Run("redelivery spool reclaims expired leases", func(t *testing.T) {
		log := slog.New(slog.DiscardHandler)
		spool := orderpg.NewRedeliveryStore(log, pool)
		if err := spool.EnsureSchema(ctx); err != nil {
			t.Fatalf("schema: %v", err)
		}

		ev := domain.NewEvent(domain.EventOrderCreated, domain.NewOrder("gadget", 5))
		if err := spool.Enqueue(ctx, ev); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		// a relay locks the row and then dies without marking it
		batch, err := spool.LockBatch(ctx, "dead-relay", 10, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(batch) != 1 {
			t.Fatalf("Expected 1 locked event, got %d", len(batch))
		}

		// before the lease expires the row stays invisible
		held, err := spool.LockBatch(ctx, "next-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(held) != 0 {
			t.Errorf("Expected no rows while the lease holds, got %d", len(held))
		}

		time.Sleep(100 * time.Millisecond)

		reclaimed, err := spool.LockBatch(ctx, "next-relay", 10, 5*time.Second)
		if err != nil {
			t.Fatalf("lock batch: %v", err)
		}
		if len(reclaimed) != 1 || reclaimed[0].EventID != ev.EventID {
			t.Fatalf("Expected the abandoned event to be re-locked, got %+v", reclaimed)
		}
		if err := spool.MarkSent(ctx, []int64{reclaimed[0].ID}); err != nil {
			t.Fatalf("mark sent: %v", err)
		}
	})
}
