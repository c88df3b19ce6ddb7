package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

type Service struct {
	log        *slog.Logger
	orch       *Orchestrator
	upstream   UpstreamClient
	store      OrderStore
	state      SyncStateStore
	lock       RunLock
	notifier   Notifier
	policy     domain.SyncPolicy
	runTimeout time.Duration
	enabled    bool
}

type Option func(*Service)

func WithPolicy(p domain.SyncPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) { s.runTimeout = d }
}

func WithSyncState(state SyncStateStore) Option {
	return func(s *Service) { s.state = state }
}

func WithRunLock(lock RunLock) Option {
	return func(s *Service) { s.lock = lock }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithSyncEnabled(enabled bool) Option {
	return func(s *Service) { s.enabled = enabled }
}

func NewService(log *slog.Logger, upstream UpstreamClient, store OrderStore, opts ...Option) *Service {
	s := &Service{
		log:      log,
		orch:     NewOrchestrator(log, upstream, store),
		upstream: upstream,
		store:    store,
		policy:   domain.DefaultPolicy(),
		enabled:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync performs one run with the configured policy. It returns either a full
// result or an error, never both.
func (s *Service) Sync(ctx context.Context) (domain.SyncResult, error) {
	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return domain.SyncResult{}, fmt.Errorf("acquire sync lock: %w", err)
		}
		if !ok {
			return domain.SyncResult{}, domain.ErrSyncInProgress
		}
		defer func() {
			// the run context may already be canceled
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				s.log.Warn("release sync lock failed", "err", err)
			}
		}()
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	result, err := s.orch.Run(ctx, s.policy)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && domain.CodeOf(err) == "" {
			err = &domain.UpstreamError{Op: "sync run", ErrCode: domain.CodeTimeout, Err: err}
		}
		return domain.SyncResult{}, err
	}

	if s.state != nil {
		if err := s.state.RecordRun(context.WithoutCancel(ctx), result); err != nil {
			s.log.Error("record sync run failed", "run_id", result.RunID, "err", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySyncCompleted(context.WithoutCancel(ctx), domain.NewSyncCompleted(result)); err != nil {
			s.log.Warn("sync notification failed", "run_id", result.RunID, "err", err)
		}
	}
	return result, nil
}

// RunScheduled is the periodic entry point. Failures are logged, not returned.
func (s *Service) RunScheduled(ctx context.Context) {
	s.log.Info("Starting Inflow sync...")
	result, err := s.Sync(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		s.log.Info("Inflow sync skipped, another run holds the lock")
		return
	}
	if err != nil {
		s.log.Error("Inflow sync failed", "code", domain.CodeOf(err), "err", err)
		return
	}
	s.log.Info("Inflow sync completed",
		"run_id", result.RunID,
		"synced", result.OrdersSynced,
		"created", result.OrdersCreated,
		"updated", result.OrdersUpdated,
		"failed", result.OrdersFailed,
		"duration", result.Duration(),
	)
}

func (s *Service) Status(ctx context.Context) (domain.SyncStatus, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return domain.SyncStatus{}, fmt.Errorf("count orders: %w", err)
	}
	status := domain.SyncStatus{TotalOrders: total, SyncEnabled: s.enabled}
	if s.state != nil {
		last, err := s.state.LastSyncAt(ctx)
		if err != nil {
			return domain.SyncStatus{}, fmt.Errorf("read last sync: %w", err)
		}
		status.LastSyncAt = last
	}
	return status, nil
}

func (s *Service) LookupOrder(ctx context.Context, orderNumber string) (domain.OrderRecord, error) {
	return s.upstream.GetByOrderNumber(ctx, orderNumber)
}
