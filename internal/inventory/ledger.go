package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/papeleria/papeleria/internal/shared"
)

// StockTx is the transactional store the ledger mutates. Implementations lock
// the product row on LockProduct until the surrounding transaction ends.
type StockTx interface {
	LockProduct(ctx context.Context, productID int64) (StockItem, error)
	SetStock(ctx context.Context, productID, stock int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// Ledger is the only writer of product stock. Every mutation goes through
// Adjust so that a movement is recorded next to the new balance.
type Ledger struct {
	now func() time.Time
}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// Lookup locks and returns the product's stock view.
func (l *Ledger) Lookup(ctx context.Context, tx StockTx, productID int64) (StockItem, error) {
	if productID <= 0 {
		return StockItem{}, fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	item, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return StockItem{}, fmt.Errorf("product %d: %w", productID, err)
	}
	return item, nil
}

// Adjust applies a signed delta. The resulting stock must stay >= 0.
func (l *Ledger) Adjust(ctx context.Context, tx StockTx, adj Adjustment) (Movement, error) {
	if adj.Delta == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	item, err := l.Lookup(ctx, tx, adj.ProductID)
	if err != nil {
		return Movement{}, err
	}
	next := item.Stock + adj.Delta
	if next < 0 {
		return Movement{}, shortage(item, -adj.Delta)
	}
	if err := tx.SetStock(ctx, adj.ProductID, next); err != nil {
		return Movement{}, fmt.Errorf("inventory: set stock: %w", err)
	}
	mtype := adj.Type
	if mtype == "" {
		mtype = MovementAdjust
	}
	mv := Movement{
		ProductID:    adj.ProductID,
		Type:         mtype,
		Qty:          adj.Delta,
		BalanceAfter: next,
		RefModule:    adj.RefModule,
		RefID:        adj.RefID,
		Note:         adj.Note,
		PostedAt:     l.now(),
	}
	id, err := tx.InsertMovement(ctx, mv)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	mv.ID = id
	return mv, nil
}

// Require verifies that the product can give qty units without touching it.
func (l *Ledger) Require(item StockItem, qty int64) error {
	if item.Stock < qty {
		return shortage(item, qty)
	}
	return nil
}

// Active locks the product and rejects soft-deleted ones.
func (l *Ledger) Active(ctx context.Context, tx StockTx, productID int64) (StockItem, error) {
	item, err := l.Lookup(ctx, tx, productID)
	if err != nil {
		return StockItem{}, err
	}
	if !item.Active {
		return StockItem{}, fmt.Errorf("product %d (%s): %w", productID, item.Name, ErrProductInactive)
	}
	return item, nil
}

func shortage(item StockItem, requested int64) error {
	return &shared.StockError{
		ProductID:   item.ProductID,
		ProductName: item.Name,
		Available:   item.Stock,
		Requested:   requested,
	}
}
