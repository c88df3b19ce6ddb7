package domain

import (
	"fmt"
	"time"
)

type SyncResult struct {
	RunID         string `json:"run_id"`
	OrdersFetched int    `json:"orders_fetched"`
	PagesFetched  int    `json:"pages_fetched"`
	// OrdersSynced counts matched records, whether or not they reconciled.
	OrdersSynced  int       `json:"orders_synced"`
	OrdersCreated int       `json:"orders_created"`
	OrdersUpdated int       `json:"orders_updated"`
	OrdersFailed  int       `json:"orders_failed"`
	Message       string    `json:"message"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

func NewSyncResult(runID string, fetched, pages, synced, created, updated, failed int, startedAt, finishedAt time.Time) SyncResult {
	return SyncResult{
		RunID:         runID,
		OrdersFetched: fetched,
		PagesFetched:  pages,
		OrdersSynced:  synced,
		OrdersCreated: created,
		OrdersUpdated: updated,
		OrdersFailed:  failed,
		Message:       fmt.Sprintf("Synced %d orders", synced),
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}
}

func (r SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
