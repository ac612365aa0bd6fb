package main

import (
	"context"
	"net/http"
	"os"
	"time"

	auditpg "github.com/coursaly/payment-reconciler/internal/audit/postgres"
	"github.com/coursaly/payment-reconciler/internal/commission"
	"github.com/coursaly/payment-reconciler/internal/gateway"
	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	txhttp "github.com/coursaly/payment-reconciler/internal/transaction/infrastructure/http"
	txkafka "github.com/coursaly/payment-reconciler/internal/transaction/infrastructure/kafka"
	txpg "github.com/coursaly/payment-reconciler/internal/transaction/infrastructure/postgres"
	"github.com/coursaly/payment-reconciler/pkg/config"
	"github.com/coursaly/payment-reconciler/pkg/idempotency"
	"github.com/coursaly/payment-reconciler/pkg/logging"
	"github.com/coursaly/payment-reconciler/pkg/outbox"
	"github.com/coursaly/payment-reconciler/pkg/shutdown"
	"github.com/coursaly/payment-reconciler/pkg/tracing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		// Logger is not up yet.
		panic(err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "payment-reconciler", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	dedup := idempotency.NewStore(rdb, cfg.DedupTTL)

	repo := txpg.NewRepository(log, pool)
	settings := txpg.NewSettingsRepository(log, pool)
	auditStore := auditpg.NewStore(log, pool)

	commissionClient := commission.NewClient(log, cfg.CommissionURL)
	orch := application.NewOrchestrator(log, repo, settings, commissionClient)

	registry := gateway.DefaultRegistry()
	replayer := application.NewReplayer(log, auditStore, registry, orch)

	// Outbox relay for OrderCompleted fan-out.
	writer := txkafka.NewWriter(cfg.KafkaAddr)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderTopic)
	relay := outbox.NewRelay(log, txpg.NewOutboxStore(log, pool), dispatch, "reconciler-"+uuid.NewString()[:8])
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	webhook := txhttp.NewWebhookHandler(log, registry, settings, auditStore, orch, dedup)
	callback := txhttp.NewCallbackHandler(log, auditStore, orch)
	admin := txhttp.NewAdminHandler(log, orch, replayer)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           txhttp.NewRouter(webhook, callback, admin),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("reconciler listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("reconciler shutdown")
}
