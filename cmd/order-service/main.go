package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Exponent1/devops-order-system/internal/order/application"
	orderhttp "github.com/Exponent1/devops-order-system/internal/order/infrastructure/http"
	orderkafka "github.com/Exponent1/devops-order-system/internal/order/infrastructure/kafka"
	orderpg "github.com/Exponent1/devops-order-system/internal/order/infrastructure/postgres"
	"github.com/Exponent1/devops-order-system/internal/order/infrastructure/reservation"
	"github.com/Exponent1/devops-order-system/pkg/config"
	"github.com/Exponent1/devops-order-system/pkg/logging"
	"github.com/Exponent1/devops-order-system/pkg/redelivery"
	"github.com/Exponent1/devops-order-system/pkg/shutdown"
	"github.com/Exponent1/devops-order-system/pkg/tracing"
)

func main() {
	log := logging.New("order-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	tp, err := tracing.Init(ctx, "order-service", cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("orders schema failed", "err", err)
		os.Exit(1)
	}
	spool := orderpg.NewRedeliveryStore(log, pool)
	if err := spool.EnsureSchema(ctx); err != nil {
		log.Error("redelivery schema failed", "err", err)
		os.Exit(1)
	}

	writer := orderkafka.NewWriter([]string{cfg.KafkaAddr})
	defer writer.Close()

	publisher := orderkafka.NewPublisher(log, writer, cfg.EventTopic, spool)
	dispatch := redelivery.NewDispatcher(log, writer, cfg.EventTopic)
	relay := redelivery.NewRelay(log, spool, dispatch, "order-service-relay", cfg.RelayBatch, cfg.RelayInterval)

	client := reservation.NewClient(log, cfg.ReservationURL, cfg.CallTimeout)
	coordinator := application.NewCoordinator(log, client, repo, publisher, cfg.ReserveRetries)
	handler := orderhttp.NewHandler(log, coordinator)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.OrderHTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.OrderHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}
