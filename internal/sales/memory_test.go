package sales

import (
	"context"
	"sort"
	"sync"

	"github.com/papeleria/papeleria/internal/inventory/inventorytest"
	"github.com/papeleria/papeleria/internal/shared"
)

type memoryRepo struct {
	*inventorytest.Store
	mu     sync.Mutex
	sales  map[int64]Sale
	keys   map[string]bool
	nextID int64
}

func newMemoryRepo(store *inventorytest.Store) *memoryRepo {
	return &memoryRepo{Store: store, sales: make(map[int64]Sale), keys: make(map[string]bool)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	end := m.Begin()
	m.mu.Lock()
	sales := make(map[int64]Sale, len(m.sales))
	for k, v := range m.sales {
		sales[k] = cloneSale(v)
	}
	keys := make(map[string]bool, len(m.keys))
	for k, v := range m.keys {
		keys[k] = v
	}
	nextID := m.nextID
	m.mu.Unlock()

	err := fn(ctx, m)
	if err != nil {
		m.mu.Lock()
		m.sales, m.keys, m.nextID = sales, keys, nextID
		m.mu.Unlock()
	}
	end(err)
	return err
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return cloneSale(s), nil
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]Sale, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Sale{}
	for _, s := range m.sales {
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		s.Lines = nil
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) ClaimIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryRepo) InsertSale(_ context.Context, s Sale) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.sales[s.ID] = cloneSale(s)
	return s, nil
}

func (m *memoryRepo) InsertLines(_ context.Context, saleID int64, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	s.Lines = append(s.Lines, lines...)
	m.sales[saleID] = s
	return nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) UpdateHeader(_ context.Context, s Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sales[s.ID]
	if !ok {
		return ErrSaleNotFound
	}
	old.CustomerName, old.PaymentMethod, old.Status, old.Total = s.CustomerName, s.PaymentMethod, s.Status, s.Total
	m.sales[s.ID] = old
	return nil
}

func (m *memoryRepo) DeleteSale(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[id]; !ok {
		return ErrSaleNotFound
	}
	delete(m.sales, id)
	return nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func cloneSale(s Sale) Sale {
	if s.Lines != nil {
		s.Lines = append([]Line(nil), s.Lines...)
	}
	return s
}
