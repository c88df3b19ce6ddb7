package domain

import "time"

const EventOrderSynced = "OrderSynced"

type OrderSynced struct {
	OrderNumber     string    `json:"order_number"`
	InventoryStatus string    `json:"inventory_status"`
	Created         bool      `json:"created"`
	SyncedAt        time.Time `json:"synced_at"`
}

type SyncCompleted struct {
	RunID         string    `json:"run_id"`
	OrdersSynced  int       `json:"orders_synced"`
	OrdersCreated int       `json:"orders_created"`
	OrdersUpdated int       `json:"orders_updated"`
	OrdersFailed  int       `json:"orders_failed"`
	Message       string    `json:"message"`
	FinishedAt    time.Time `json:"finished_at"`
}

func NewSyncCompleted(r SyncResult) SyncCompleted {
	return SyncCompleted{
		RunID:         r.RunID,
		OrdersSynced:  r.OrdersSynced,
		OrdersCreated: r.OrdersCreated,
		OrdersUpdated: r.OrdersUpdated,
		OrdersFailed:  r.OrdersFailed,
		Message:       r.Message,
		FinishedAt:    r.FinishedAt,
	}
}
