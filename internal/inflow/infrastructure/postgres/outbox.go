package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/inflow-order-sync/pkg/outbox"
)

// maxOutboxRetries bounds how often a failed event is picked up again.
const maxOutboxRetries = 5

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch claims pending events, failed events under the retry limit, and
// in-progress events whose lease expired.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at, retry_count
		FROM outbox
		WHERE status = 'pending'
			OR (status = 'failed' AND retry_count < $2)
			OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize, maxOutboxRetries)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		var headers map[string]string
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &headers, &ev.Traceparent, &ev.CreatedAt, &ev.RetryCount); err != nil {
			rows.Close()
			return nil, err
		}
		ev.Headers = headers
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + make_interval(secs => $2) WHERE id = ANY($3)`, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent', lease_until=NULL WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("no rows updated")
	}
	return nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1, lease_until=NULL WHERE id=$1`, id, errMsg)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET lease_until=now() + make_interval(secs => $1) WHERE id = ANY($2) AND relay_id=$3`, lease.Seconds(), ids, relayID)
	return err
}
