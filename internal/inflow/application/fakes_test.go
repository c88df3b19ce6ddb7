package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUpstream serves pages keyed by skip offset and records every query.
type fakeUpstream struct {
	mu      sync.Mutex
	pages   map[int][]domain.OrderRecord
	errAt   map[int]error
	queries []domain.PageQuery
	lookup  func(ctx context.Context, orderNumber string) (domain.OrderRecord, error)
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{pages: map[int][]domain.OrderRecord{}, errAt: map[int]error{}}
}

func (f *fakeUpstream) FetchPage(ctx context.Context, q domain.PageQuery) ([]domain.OrderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.errAt[q.Skip]; err != nil {
		return nil, err
	}
	return f.pages[q.Skip], nil
}

func (f *fakeUpstream) GetByOrderNumber(ctx context.Context, orderNumber string) (domain.OrderRecord, error) {
	if f.lookup != nil {
		return f.lookup(ctx, orderNumber)
	}
	return domain.OrderRecord{}, domain.ErrOrderNotFound
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// memStore is an in-memory OrderStore whose upsert is atomic under its mutex.
type memStore struct {
	mu       sync.Mutex
	orders   map[string]domain.OrderRecord
	failOn   map[string]error
	upserted []string
	opened   int
	closed   int
	openErr  error
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]domain.OrderRecord{}, failOn: map[string]error{}}
}

func (m *memStore) Open(ctx context.Context) (OrderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return &memSession{store: m}, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.orders)), nil
}

type memSession struct {
	store *memStore
}

func (s *memSession) UpsertFromUpstream(ctx context.Context, rec domain.OrderRecord) (domain.LocalOrderRef, bool, error) {
	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, rec.OrderNumber)
	if err := m.failOn[rec.OrderNumber]; err != nil {
		return domain.LocalOrderRef{}, false, err
	}
	_, exists := m.orders[rec.OrderNumber]
	m.orders[rec.OrderNumber] = rec
	m.nextID++
	return domain.LocalOrderRef{ID: m.nextID, InflowOrderID: rec.OrderNumber, UpdatedAt: time.Now()}, !exists, nil
}

func (s *memSession) Close() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.closed++
}

func started(n string) domain.OrderRecord {
	return domain.OrderRecord{OrderNumber: n, InventoryStatus: "started"}
}

func unfulfilled(n string) domain.OrderRecord {
	return domain.OrderRecord{OrderNumber: n, InventoryStatus: "unfulfilled"}
}

// page builds size records; the indexes listed in startedAt carry a started status.
func page(prefix string, size int, startedAt ...int) []domain.OrderRecord {
	match := map[int]bool{}
	for _, i := range startedAt {
		match[i] = true
	}
	out := make([]domain.OrderRecord, 0, size)
	for i := 0; i < size; i++ {
		n := fmt.Sprintf("%s-%03d", prefix, i)
		if match[i] {
			out = append(out, started(n))
		} else {
			out = append(out, unfulfilled(n))
		}
	}
	return out
}
