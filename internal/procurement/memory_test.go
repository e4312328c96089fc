package procurement

import (
	"context"
	"sort"
	"sync"

	"github.com/papeleria/papeleria/internal/inventory/inventorytest"
)

type memoryRepo struct {
	*inventorytest.Store
	mu        sync.Mutex
	suppliers map[int64]SupplierRef
	purchases map[int64]Purchase
	nextID    int64
}

func newMemoryRepo(store *inventorytest.Store) *memoryRepo {
	return &memoryRepo{Store: store, suppliers: make(map[int64]SupplierRef), purchases: make(map[int64]Purchase)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	end := m.Begin()
	m.mu.Lock()
	saved := make(map[int64]Purchase, len(m.purchases))
	for k, v := range m.purchases {
		saved[k] = clonePurchase(v)
	}
	nextID := m.nextID
	m.mu.Unlock()

	err := fn(ctx, m)
	if err != nil {
		m.mu.Lock()
		m.purchases, m.nextID = saved, nextID
		m.mu.Unlock()
	}
	end(err)
	return err
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return Purchase{}, ErrPurchaseNotFound
	}
	return clonePurchase(p), nil
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]Purchase, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Purchase{}
	for _, p := range m.purchases {
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.SupplierID > 0 && p.SupplierID != filters.SupplierID {
			continue
		}
		p.Lines = nil
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Supplier(_ context.Context, id int64) (SupplierRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return SupplierRef{}, ErrSupplierNotFound
	}
	return s, nil
}

func (m *memoryRepo) InsertPurchase(_ context.Context, p Purchase) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.purchases[p.ID] = clonePurchase(p)
	return p, nil
}

func (m *memoryRepo) ReplaceLines(_ context.Context, purchaseID int64, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[purchaseID]
	if !ok {
		return ErrPurchaseNotFound
	}
	p.Lines = append([]Line(nil), lines...)
	m.purchases[purchaseID] = p
	return nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) UpdateHeader(_ context.Context, p Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.purchases[p.ID]
	if !ok {
		return ErrPurchaseNotFound
	}
	p.Lines = old.Lines
	m.purchases[p.ID] = p
	return nil
}

func (m *memoryRepo) DeletePurchase(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.purchases[id]; !ok {
		return ErrPurchaseNotFound
	}
	delete(m.purchases, id)
	return nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

func clonePurchase(p Purchase) Purchase {
	if p.Lines != nil {
		p.Lines = append([]Line(nil), p.Lines...)
	}
	return p
}
