// Package inventorytest provides an in-memory StockTx for workflow tests.
package inventorytest

import (
	"context"
	"sync"
	"time"

	"github.com/papeleria/papeleria/internal/inventory"
)

// Store keeps products and movements in memory. WithTx restores the state
// captured at its start when the callback fails, mirroring a rollback.
type Store struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	products  map[int64]inventory.StockItem
	movements []inventory.Movement
	nextID    int64
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{products: make(map[int64]inventory.StockItem)}
}

// Put inserts or replaces a product.
func (s *Store) Put(item inventory.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[item.ProductID] = item
}

// Remove deletes a product outright, simulating a row that vanished.
func (s *Store) Remove(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, productID)
}

// StockOf returns the committed stock of a product, or -1 when unknown.
func (s *Store) StockOf(productID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.products[productID]
	if !ok {
		return -1
	}
	return item.Stock
}

// Movements returns a copy of every recorded movement.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Movement, len(s.movements))
	copy(out, s.movements)
	return out
}

// Snapshot captures the current state and returns a restore func.
func (s *Store) Snapshot() func() {
	s.mu.Lock()
	products := make(map[int64]inventory.StockItem, len(s.products))
	for k, v := range s.products {
		products[k] = v
	}
	moves := len(s.movements)
	nextID := s.nextID
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.products = products
		s.movements = s.movements[:moves]
		s.nextID = nextID
	}
}

// Begin serialises transactions the way row locks would and returns a
// function that ends the transaction, rolling back when err is non-nil.
func (s *Store) Begin() func(err error) {
	s.txMu.Lock()
	restore := s.Snapshot()
	return func(err error) {
		if err != nil {
			restore()
		}
		s.txMu.Unlock()
	}
}

// WithTx runs fn with the store as its StockTx.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, inventory.StockTx) error) error {
	end := s.Begin()
	err := fn(ctx, s)
	end(err)
	return err
}

// LockProduct implements inventory.StockTx.
func (s *Store) LockProduct(_ context.Context, productID int64) (inventory.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.products[productID]
	if !ok {
		return inventory.StockItem{}, inventory.ErrProductNotFound
	}
	return item, nil
}

// SetStock implements inventory.StockTx.
func (s *Store) SetStock(_ context.Context, productID, stock int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.products[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	item.Stock = stock
	s.products[productID] = item
	return nil
}

// InsertMovement implements inventory.StockTx.
func (s *Store) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.PostedAt.IsZero() {
		m.PostedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, m)
	return m.ID, nil
}

// ListMovements filters recorded movements by product.
func (s *Store) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.Movement{}
	for _, m := range s.movements {
		if m.ProductID == filter.ProductID {
			out = append(out, m)
		}
	}
	return out, nil
}

// LowStock lists active products at or below their minimum.
func (s *Store) LowStock(_ context.Context) ([]inventory.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []inventory.StockItem{}
	for _, item := range s.products {
		if item.Active && item.Low() {
			out = append(out, item)
		}
	}
	return out, nil
}
