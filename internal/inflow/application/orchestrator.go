package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

// Orchestrator runs one sync: a bounded walk over upstream pages followed by
// per-record reconciliation. Run is safe to call concurrently.
type Orchestrator struct {
	log      *slog.Logger
	upstream UpstreamClient
	store    OrderStore
	tracer   trace.Tracer
	now      func() time.Time
}

func NewOrchestrator(log *slog.Logger, upstream UpstreamClient, store OrderStore) *Orchestrator {
	return &Orchestrator{
		log:      log,
		upstream: upstream,
		store:    store,
		tracer:   otel.Tracer("inflow-sync"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type traversal struct {
	matches []domain.OrderRecord
	fetched int
	pages   int
}

func (o *Orchestrator) Run(ctx context.Context, policy domain.SyncPolicy) (domain.SyncResult, error) {
	if err := policy.Validate(); err != nil {
		return domain.SyncResult{}, err
	}

	runID := uuid.NewString()
	startedAt := o.now()
	log := o.log.With("run_id", runID)

	ctx, span := o.tracer.Start(ctx, "InflowSync.Run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("policy.max_pages", policy.MaxPages),
		attribute.Int("policy.page_size", policy.PageSize),
		attribute.Int("policy.target_matches", policy.TargetMatches),
	))
	defer span.End()

	sess, err := o.store.Open(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open store session")
		return domain.SyncResult{}, fmt.Errorf("open order store session: %w", err)
	}
	defer sess.Close()

	tr, err := o.collect(ctx, log, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collect")
		return domain.SyncResult{}, err
	}

	var created, updated, failed int
	for _, rec := range tr.matches {
		wasCreated, err := o.reconcile(ctx, sess, rec)
		if err != nil {
			failed++
			log.Error("error processing order", "order_number", rec.OrderNumber, "code", domain.CodeOf(err), "err", err)
			continue
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}

	result := domain.NewSyncResult(runID, tr.fetched, tr.pages, len(tr.matches), created, updated, failed, startedAt, o.now())
	span.SetAttributes(
		attribute.Int("orders.synced", result.OrdersSynced),
		attribute.Int("orders.created", result.OrdersCreated),
		attribute.Int("orders.updated", result.OrdersUpdated),
		attribute.Int("orders.failed", result.OrdersFailed),
	)
	return result, nil
}

// collect pages through upstream until the target match count is reached, a
// short page signals end of data, or the page budget runs out.
func (o *Orchestrator) collect(ctx context.Context, log *slog.Logger, policy domain.SyncPolicy) (traversal, error) {
	var tr traversal

	for page := 0; page < policy.MaxPages; page++ {
		q := domain.NewPageQuery(policy.PageSize, page*policy.PageSize)
		q.InventoryStatus = policy.StatusFilter

		records, err := o.fetchPage(ctx, page, q)
		if err != nil {
			return traversal{}, err
		}
		tr.pages++
		tr.fetched += len(records)

		for _, rec := range records {
			if !rec.IsStarted() {
				continue
			}
			tr.matches = append(tr.matches, rec)
			if len(tr.matches) >= policy.TargetMatches {
				log.Debug("target matches reached", "page", page, "matches", len(tr.matches))
				return tr, nil
			}
		}

		if len(records) < policy.PageSize {
			log.Debug("short page, end of upstream data", "page", page, "records", len(records))
			break
		}
	}
	return tr, nil
}

func (o *Orchestrator) fetchPage(ctx context.Context, page int, q domain.PageQuery) ([]domain.OrderRecord, error) {
	ctx, span := o.tracer.Start(ctx, "InflowSync.FetchPage", trace.WithAttributes(
		attribute.Int("page", page),
		attribute.Int("skip", q.Skip),
	))
	defer span.End()

	records, err := o.upstream.FetchPage(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch page")
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, sess OrderSession, rec domain.OrderRecord) (bool, error) {
	if rec.OrderNumber == "" {
		return false, &domain.ReconciliationError{Err: domain.ErrEmptyOrderNumber}
	}
	_, created, err := sess.UpsertFromUpstream(ctx, rec)
	if err != nil {
		var recErr *domain.ReconciliationError
		if errors.As(err, &recErr) {
			return false, err
		}
		return false, &domain.ReconciliationError{OrderNumber: rec.OrderNumber, Err: err}
	}
	return created, nil
}
