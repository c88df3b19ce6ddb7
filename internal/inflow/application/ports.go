package application

import (
	"context"
	"time"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

type UpstreamClient interface {
	FetchPage(ctx context.Context, q domain.PageQuery) ([]domain.OrderRecord, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (domain.OrderRecord, error)
}

// OrderStore hands out run-scoped sessions. Every session must be closed.
type OrderStore interface {
	Open(ctx context.Context) (OrderSession, error)
	Count(ctx context.Context) (int64, error)
}

// OrderSession reconciles records against local state. UpsertFromUpstream
// decides create vs update atomically and reports which one happened.
type OrderSession interface {
	UpsertFromUpstream(ctx context.Context, rec domain.OrderRecord) (domain.LocalOrderRef, bool, error)
	Close()
}

type SyncStateStore interface {
	RecordRun(ctx context.Context, result domain.SyncResult) error
	LastSyncAt(ctx context.Context) (*time.Time, error)
}

// RunLock serializes runs across processes. Acquire reports false when another
// holder owns the lock.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

type Notifier interface {
	NotifySyncCompleted(ctx context.Context, event domain.SyncCompleted) error
}
