package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/application"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
	"github.com/dmehra2102/inflow-order-sync/pkg/tracing"
)

//go:embed schema.sql
var schema string

const upsertOrderSQL = `
	INSERT INTO inflow_orders (inflow_order_id, inventory_status, payload, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (inflow_order_id) DO UPDATE
		SET inventory_status = EXCLUDED.inventory_status,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	RETURNING id, updated_at, (xmax = 0) AS inserted`

const insertOutboxSQL = `
	INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
	VALUES ($1, $2, $3, $4, $5, $6, 'pending')`

// querier is satisfied by *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	outbox bool
}

// NewRepository returns the order store. With outbox enabled every upsert
// also enqueues an OrderSynced event in the same transaction.
func NewRepository(log *slog.Logger, pool *pgxpool.Pool, outbox bool) *Repository {
	return &Repository{log: log, pool: pool, outbox: outbox}
}

func (r *Repository) Open(ctx context.Context) (application.OrderSession, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &session{log: r.log, conn: conn, outbox: r.outbox}, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM inflow_orders`).Scan(&n)
	return n, err
}

type session struct {
	log    *slog.Logger
	conn   *pgxpool.Conn
	outbox bool
}

func (s *session) UpsertFromUpstream(ctx context.Context, rec domain.OrderRecord) (domain.LocalOrderRef, bool, error) {
	if rec.OrderNumber == "" {
		return domain.LocalOrderRef{}, false, domain.ErrEmptyOrderNumber
	}
	payload := rec.Payload
	if len(payload) == 0 {
		var err error
		if payload, err = json.Marshal(rec); err != nil {
			return domain.LocalOrderRef{}, false, err
		}
	}

	if !s.outbox {
		return upsert(ctx, s.conn, rec, payload)
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ref, created, err := upsert(ctx, tx, rec, payload)
	if err != nil {
		return domain.LocalOrderRef{}, false, err
	}

	event, err := json.Marshal(domain.OrderSynced{
		OrderNumber:     rec.OrderNumber,
		InventoryStatus: rec.InventoryStatus,
		Created:         created,
		SyncedAt:        ref.UpdatedAt,
	})
	if err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	headers := map[string]string{"source": "inflow-sync"}
	_, err = tx.Exec(ctx, insertOutboxSQL, "inflow_order", rec.OrderNumber, domain.EventOrderSynced, event, headers, tracing.Traceparent(ctx))
	if err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	return ref, created, nil
}

func (s *session) Close() {
	s.conn.Release()
}

func upsert(ctx context.Context, q querier, rec domain.OrderRecord, payload []byte) (domain.LocalOrderRef, bool, error) {
	ref := domain.LocalOrderRef{InflowOrderID: rec.OrderNumber}
	var inserted bool
	err := q.QueryRow(ctx, upsertOrderSQL, rec.OrderNumber, rec.InventoryStatus, payload, time.Now().UTC()).
		Scan(&ref.ID, &ref.UpdatedAt, &inserted)
	if err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	return ref, inserted, nil
}

type SyncStateStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewSyncStateStore(log *slog.Logger, pool *pgxpool.Pool) *SyncStateStore {
	return &SyncStateStore{log: log, pool: pool}
}

func (s *SyncStateStore) RecordRun(ctx context.Context, res domain.SyncResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inflow_sync_state (id, last_sync_at, last_run_id, orders_synced, orders_created, orders_updated, orders_failed)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			last_sync_at = $1, last_run_id = $2, orders_synced = $3,
			orders_created = $4, orders_updated = $5, orders_failed = $6`,
		res.FinishedAt, res.RunID, res.OrdersSynced, res.OrdersCreated, res.OrdersUpdated, res.OrdersFailed)
	return err
}

func (s *SyncStateStore) LastSyncAt(ctx context.Context) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_sync_at FROM inflow_sync_state WHERE id = 1`).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}
