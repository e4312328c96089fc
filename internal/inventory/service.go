package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStock(ctx context.Context) ([]StockItem, error)
}

// Service coordinates manual inventory operations.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	coord  *coordinator.Coordinator
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, coord *coordinator.Coordinator) *Service {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Service{repo: repo, ledger: ledger, coord: coord}
}

// Adjust posts a signed manual adjustment.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (Movement, error) {
	req.Note = shared.CleanString(req.Note)
	if err := shared.ValidateStruct(req); err != nil {
		return Movement{}, err
	}
	var mv Movement
	op := &coordinator.Operation{
		Name:       "inventory.adjust",
		Entity:     "product",
		EntityID:   strconv.FormatInt(req.ProductID, 10),
		ProductIDs: []int64{req.ProductID},
		Meta:       map[string]any{"delta": req.Delta, "note": req.Note},
	}
	err := coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx StockTx) error {
		var err error
		mv, err = s.ledger.Adjust(ctx, tx, Adjustment{
			ProductID: req.ProductID,
			Delta:     req.Delta,
			Type:      MovementAdjust,
			RefModule: "inventory",
			Note:      req.Note,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	return mv, nil
}

// SetStock moves a product to an absolute stock level by posting the
// difference. Setting the current value is a no-op.
func (s *Service) SetStock(ctx context.Context, productID int64, req SetStockRequest) (StockItem, error) {
	req.Note = shared.CleanString(req.Note)
	if err := shared.ValidateStruct(req); err != nil {
		return StockItem{}, err
	}
	target := *req.Stock
	var item StockItem
	op := &coordinator.Operation{
		Name:       "inventory.set_stock",
		Entity:     "product",
		EntityID:   strconv.FormatInt(productID, 10),
		ProductIDs: []int64{productID},
		Meta:       map[string]any{"stock": target},
	}
	err := coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx StockTx) error {
		current, err := s.ledger.Lookup(ctx, tx, productID)
		if err != nil {
			return err
		}
		item = current
		delta := target - current.Stock
		if delta == 0 {
			return nil
		}
		note := req.Note
		if note == "" {
			note = fmt.Sprintf("stock set to %d", target)
		}
		mv, err := s.ledger.Adjust(ctx, tx, Adjustment{
			ProductID: productID,
			Delta:     delta,
			Type:      MovementAdjust,
			RefModule: "inventory",
			Note:      note,
		})
		if err != nil {
			return err
		}
		item.Stock = mv.BalanceAfter
		return nil
	})
	if err != nil {
		return StockItem{}, err
	}
	return item, nil
}

// Movements lists the stock card for a product.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID <= 0 {
		return nil, shared.InvalidField("product_id", "is required")
	}
	return s.repo.ListMovements(ctx, filter)
}

// LowStock lists products at or below their minimum stock.
func (s *Service) LowStock(ctx context.Context) ([]StockItem, error) {
	return s.repo.LowStock(ctx)
}
