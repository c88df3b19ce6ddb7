package domain

import "fmt"

const (
	DefaultMaxPages      = 3
	DefaultPageSize      = 100
	DefaultTargetMatches = 100
	DefaultStatusFilter  = "unfulfilled"
)

// SyncPolicy bounds the upstream traversal of a single run.
type SyncPolicy struct {
	MaxPages      int
	PageSize      int
	TargetMatches int
	// StatusFilter is sent to inFlow as the server-side inventoryStatus
	// filter. It is coarser than MatchStatus, which is checked locally.
	StatusFilter string
}

func DefaultPolicy() SyncPolicy {
	return SyncPolicy{
		MaxPages:      DefaultMaxPages,
		PageSize:      DefaultPageSize,
		TargetMatches: DefaultTargetMatches,
		StatusFilter:  DefaultStatusFilter,
	}
}

func (p SyncPolicy) Validate() error {
	switch {
	case p.PageSize <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("page size must be positive, got %d", p.PageSize)}
	case p.MaxPages < 0:
		return &ConfigurationError{Reason: fmt.Sprintf("max pages must not be negative, got %d", p.MaxPages)}
	case p.TargetMatches <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("target matches must be positive, got %d", p.TargetMatches)}
	}
	return nil
}

// PageQuery is one filtered, sorted page request against the sales-orders list.
type PageQuery struct {
	InventoryStatus string
	IsActive        bool
	OrderNumber     string
	Count           int
	Skip            int
	Sort            string
	SortDesc        bool
}

// NewPageQuery returns a query for active orders, most recent first.
func NewPageQuery(count, skip int) PageQuery {
	return PageQuery{
		IsActive: true,
		Count:    count,
		Skip:     skip,
		Sort:     "orderDate",
		SortDesc: true,
	}
}

func (q PageQuery) Validate() error {
	if q.Count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidQuery, q.Count)
	}
	if q.Skip < 0 {
		return fmt.Errorf("%w: skip must not be negative, got %d", ErrInvalidQuery, q.Skip)
	}
	return nil
}
