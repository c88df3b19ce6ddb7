package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/inflow-order-sync/internal/config"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/application"
	inflowamqp "github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/amqp"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/credentials"
	inflowkafka "github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/kafka"
	inflowpg "github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/postgres"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/upstream"
	"github.com/dmehra2102/inflow-order-sync/pkg/outbox"
	"github.com/dmehra2102/inflow-order-sync/pkg/runlock"
)

const (
	syncJobID   = "inflow_sync"
	syncJobName = "Sync orders from Inflow"
)

// app holds the wired service and everything that must be closed on exit.
type app struct {
	log     *slog.Logger
	cfg     config.Config
	pool    *pgxpool.Pool
	service *application.Service
	relay   *outbox.Relay
	closers []func()
}

func newApp(ctx context.Context, log *slog.Logger, cfg config.Config) (a *app, err error) {
	a = &app{log: log, cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	if err := inflowpg.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("pg migrate: %w", err)
	}

	// Kafka outbox, only when a broker is configured
	brokers := cfg.KafkaBrokers()
	repo := inflowpg.NewRepository(log, pool, len(brokers) > 0)
	if len(brokers) > 0 {
		writer := inflowkafka.NewWriter(brokers)
		a.closers = append(a.closers, func() { _ = writer.Close() })
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		a.relay = outbox.NewRelay(log, inflowpg.NewOutboxStore(log, pool), dispatch, "inflow-sync-relay")
	}

	tokens, err := tokenProvider(ctx, log, cfg.Inflow)
	if err != nil {
		return nil, err
	}
	client := upstream.NewClient(log, cfg.Inflow.CompanyID, tokens,
		upstream.WithBaseURL(cfg.Inflow.APIURL),
		upstream.WithAPIVersion(cfg.Inflow.APIVersion),
		upstream.WithTimeout(cfg.Inflow.RequestTimeout),
	)

	opts := []application.Option{
		application.WithPolicy(cfg.Policy()),
		application.WithRunTimeout(cfg.Sync.RunTimeout),
		application.WithSyncState(inflowpg.NewSyncStateStore(log, pool)),
		application.WithSyncEnabled(cfg.Sync.Enabled),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, application.WithRunLock(runlock.New(rdb, syncJobID, cfg.Sync.LockTTL)))
	}

	if cfg.AMQPURL != "" {
		notifier, closeFn, err := inflowamqp.Dial(log, cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = closeFn() })
		opts = append(opts, application.WithNotifier(notifier))
	}

	a.service = application.NewService(log, client, repo, opts...)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func tokenProvider(ctx context.Context, log *slog.Logger, cfg config.Inflow) (upstream.TokenProvider, error) {
	switch {
	case cfg.APIKey != "":
		return credentials.Static(cfg.APIKey), nil
	case cfg.APIKeySecret != "":
		sm, err := credentials.NewSecretsManagerFromEnv(ctx, log, cfg.AWSRegion, cfg.APIKeySecret)
		if err != nil {
			return nil, err
		}
		return sm, nil
	default:
		log.Warn("no inFlow credentials configured, every sync will fail until INFLOW_API_KEY or INFLOW_API_KEY_SECRET is set")
		return credentials.Missing{}, nil
	}
}
