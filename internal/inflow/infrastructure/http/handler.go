package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

type SyncService interface {
	Sync(ctx context.Context) (domain.SyncResult, error)
	Status(ctx context.Context) (domain.SyncStatus, error)
	LookupOrder(ctx context.Context, orderNumber string) (domain.OrderRecord, error)
}

type Handler struct {
	log     *slog.Logger
	service SyncService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service SyncService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("inflow-http"),
	}
}

type syncResponse struct {
	Success       bool   `json:"success"`
	OrdersSynced  int    `json:"orders_synced"`
	OrdersCreated int    `json:"orders_created"`
	OrdersUpdated int    `json:"orders_updated"`
	Message       string `json:"message"`
}

type syncStatusResponse struct {
	LastSyncAt  *time.Time `json:"last_sync_at"`
	TotalOrders int64      `json:"total_orders"`
	SyncEnabled bool       `json:"sync_enabled"`
}

type errorResponse struct {
	Detail string           `json:"detail"`
	Code   domain.ErrorCode `json:"code,omitempty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Route("/inflow", func(r chi.Router) {
		r.Post("/sync", h.sync)
		r.Get("/sync-status", h.syncStatus)
		r.Get("/orders/{orderNumber}", h.getOrder)
	})
	return r
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TriggerSync")
	defer span.End()

	res, err := h.service.Sync(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		writeJSON(w, http.StatusConflict, errorResponse{Detail: err.Error()})
		return
	}
	if err != nil {
		h.log.Error("manual sync failed", "code", domain.CodeOf(err), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error(), Code: domain.CodeOf(err)})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Success:       true,
		OrdersSynced:  res.OrdersSynced,
		OrdersCreated: res.OrdersCreated,
		OrdersUpdated: res.OrdersUpdated,
		Message:       res.Message,
	})
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context())
	if err != nil {
		h.log.Error("sync status failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{
		LastSyncAt:  st.LastSyncAt,
		TotalOrders: st.TotalOrders,
		SyncEnabled: st.SyncEnabled,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "LookupOrder")
	defer span.End()

	rec, err := h.service.LookupOrder(ctx, chi.URLParam(r, "orderNumber"))
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
		return
	case errors.Is(err, domain.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	case err != nil:
		status := http.StatusBadGateway
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Detail: err.Error(), Code: domain.CodeOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
