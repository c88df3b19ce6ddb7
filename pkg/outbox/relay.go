package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
	now       func() time.Time
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

func WithLease(d time.Duration) RelayOption {
	return func(r *Relay) { r.lease = d }
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.log.Error("relay lock batch error", "err", err)
			}
		}
	}
}

// RelayOnce claims one batch and dispatches it. It returns the number of
// events marked sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	claimed := make([]int64, 0, len(events))
	for _, e := range events {
		claimed = append(claimed, e.ID)
	}
	leaseStart := r.now()

	ids := make([]int64, 0, len(events))
	for i, e := range events {
		// keep the remaining claims alive on slow brokers
		if r.now().Sub(leaseStart) > r.lease/2 {
			if err := r.store.ExtendLease(ctx, r.relayID, claimed[i:], r.lease); err != nil {
				r.log.Warn("relay extend lease error", "err", err)
			}
			leaseStart = r.now()
		}
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			r.log.Error("relay mark sent error", "err", err)
			return 0, err
		}
	}
	return len(ids), nil
}
