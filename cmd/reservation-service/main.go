package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Exponent1/devops-order-system/internal/ledger"
	"github.com/Exponent1/devops-order-system/internal/reservation/application"
	reshttp "github.com/Exponent1/devops-order-system/internal/reservation/infrastructure/http"
	"github.com/Exponent1/devops-order-system/pkg/config"
	"github.com/Exponent1/devops-order-system/pkg/idempotency"
	"github.com/Exponent1/devops-order-system/pkg/logging"
	"github.com/Exponent1/devops-order-system/pkg/shutdown"
	"github.com/Exponent1/devops-order-system/pkg/tracing"
)

func main() {
	log := logging.New("reservation-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "reservation-service", cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	led := ledger.NewRedisLedger(rdb, cfg.DefaultStock)
	keys := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	svc := application.NewService(log, led, keys)
	handler := reshttp.NewHandler(log, svc)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.ReservationHTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.ReservationHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("reservation-service shutdown complete")
}
