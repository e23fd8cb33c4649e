package db

import (
	"sort"
	"sync"
)

// MemRepo keeps orders in memory. It is used when no store path is
// configured.
type MemRepo struct {
	mu     sync.Mutex
	orders map[string]map[int64]Order
}

func NewMemRepo() *MemRepo {
	return &MemRepo{orders: make(map[string]map[int64]Order)}
}

func (m *MemRepo) GetAvailableOrders(symbol string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders[symbol]))
	for _, o := range m.orders[symbol] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemRepo) SaveOrder(o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.orders[o.Symbol]
	if !ok {
		book = make(map[int64]Order)
		m.orders[o.Symbol] = book
	}
	book[o.ID] = o
	return nil
}

func (m *MemRepo) DeleteOrder(symbol string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders[symbol], id)
	return nil
}

func (m *MemRepo) Close() error { return nil }

var _ Repo = (*MemRepo)(nil)
