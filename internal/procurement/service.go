package procurement

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

// Service orchestrates purchase flows.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	coord  *coordinator.Coordinator
	logger *slog.Logger
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, coord *coordinator.Coordinator, logger *slog.Logger) *Service {
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, coord: coord, logger: logger}
}

// Create records a purchase. Stock is received only when the purchase is
// created as Completed.
func (s *Service) Create(ctx context.Context, req CreatePurchaseRequest) (Purchase, error) {
	d, err := normalizeCreate(req)
	if err != nil {
		return Purchase{}, err
	}
	op := &coordinator.Operation{
		Name:       "purchase.create",
		Entity:     "purchase",
		ProductIDs: inputProductIDs(d.Lines),
		Meta:       map[string]any{"supplier_id": d.SupplierID, "status": string(d.Status), "lines": len(d.Lines)},
	}
	var p Purchase
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		supplier, err := s.supplier(ctx, tx, d.SupplierID)
		if err != nil {
			return err
		}
		lines, total, err := s.price(ctx, tx, d.Lines)
		if err != nil {
			return err
		}
		p, err = tx.InsertPurchase(ctx, Purchase{
			SupplierID:    supplier.ID,
			PaymentMethod: d.PaymentMethod,
			Status:        d.Status,
			Total:         total,
			Observations:  d.Observations,
		})
		if err != nil {
			return err
		}
		p.SupplierName = supplier.Name
		op.EntityID = strconv.FormatInt(p.ID, 10)
		for i := range lines {
			lines[i].PurchaseID = p.ID
		}
		if err := tx.ReplaceLines(ctx, p.ID, lines); err != nil {
			return err
		}
		p.Lines = lines
		if p.Status == shared.StatusCompleted {
			return s.receive(ctx, tx, p)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// UpdateStatus moves a purchase to a new status. Pending to Completed
// receives every stored line exactly once; repeating Completed is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req StatusRequest) (Purchase, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return Purchase{}, err
	}
	status := req.Status
	return s.Update(ctx, id, UpdatePurchaseRequest{Status: &status})
}

// Update edits a purchase. Lines are replaced before a status change in the
// same request is applied, so a purchase completed here receives its new
// lines.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePurchaseRequest) (Purchase, error) {
	req, err := normalizeUpdate(req)
	if err != nil {
		return Purchase{}, err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	name := "purchase.update"
	meta := map[string]any{}
	if req.Status != nil {
		meta["status"] = string(*req.Status)
		if req.Lines == nil && req.SupplierID == nil && req.PaymentMethod == nil && req.Observations == nil {
			name = "purchase.update_status"
		}
	}
	if req.Lines != nil {
		meta["lines"] = len(req.Lines)
	}
	newLines := inputs(req.Lines)
	op := &coordinator.Operation{
		Name:       name,
		Entity:     "purchase",
		EntityID:   strconv.FormatInt(id, 10),
		ProductIDs: append(lineProductIDs(existing.Lines), inputProductIDs(newLines)...),
		Meta:       meta,
	}
	var p Purchase
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		var err error
		p, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := op.Guard(lineProductIDs(p.Lines)); err != nil {
			return err
		}
		if req.SupplierID != nil && *req.SupplierID != p.SupplierID {
			supplier, err := s.supplier(ctx, tx, *req.SupplierID)
			if err != nil {
				return err
			}
			p.SupplierID, p.SupplierName = supplier.ID, supplier.Name
		}
		if req.PaymentMethod != nil {
			p.PaymentMethod = *req.PaymentMethod
		}
		if req.Observations != nil {
			p.Observations = *req.Observations
		}
		if req.Lines != nil {
			if p.Status == shared.StatusCompleted {
				return ErrPurchaseCompleted
			}
			lines, total, err := s.price(ctx, tx, newLines)
			if err != nil {
				return err
			}
			for i := range lines {
				lines[i].PurchaseID = p.ID
			}
			if err := tx.ReplaceLines(ctx, p.ID, lines); err != nil {
				return err
			}
			p.Lines, p.Total = lines, total
		}
		completing := false
		if req.Status != nil {
			changed, err := p.Status.Transition(*req.Status)
			if err != nil {
				return err
			}
			if changed {
				p.Status = *req.Status
				completing = p.Status == shared.StatusCompleted
			}
		}
		if err := tx.UpdateHeader(ctx, p); err != nil {
			return err
		}
		if completing {
			return s.receive(ctx, tx, p)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// Delete removes a purchase. A Completed purchase first gives back the stock
// it received; if any line cannot be reversed nothing is deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	op := &coordinator.Operation{
		Name:       "purchase.delete",
		Entity:     "purchase",
		EntityID:   strconv.FormatInt(id, 10),
		ProductIDs: lineProductIDs(existing.Lines),
	}
	return coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := op.Guard(lineProductIDs(p.Lines)); err != nil {
			return err
		}
		if p.Status == shared.StatusCompleted {
			for _, l := range p.Lines {
				if _, err := s.ledger.Adjust(ctx, tx, inventory.Adjustment{
					ProductID: l.ProductID,
					Delta:     -l.Quantity,
					Type:      inventory.MovementPurchaseReversal,
					RefModule: "purchases",
					RefID:     op.EntityID,
					Note:      "purchase deleted",
				}); err != nil {
					return err
				}
			}
		}
		return tx.DeletePurchase(ctx, id)
	})
}

// Get loads a purchase with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of purchase headers.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, shared.InvalidField("status", "must be one of: Pending Completed")
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) supplier(ctx context.Context, tx TxRepository, id int64) (SupplierRef, error) {
	supplier, err := tx.Supplier(ctx, id)
	if err != nil {
		return SupplierRef{}, err
	}
	if !supplier.Active {
		return SupplierRef{}, ErrSupplierInactive
	}
	return supplier, nil
}

// price checks every product and computes subtotals from the supplier's
// unit prices.
func (s *Service) price(ctx context.Context, tx TxRepository, in []lineitem.Input) ([]Line, decimal.Decimal, error) {
	names := make(map[int64]string, len(in))
	for _, l := range in {
		item, err := s.ledger.Active(ctx, tx, l.ProductID)
		if err != nil {
			return nil, decimal.Decimal{}, err
		}
		names[item.ProductID] = item.Name
	}
	res, err := lineitem.Calculate(in)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	lines := make([]Line, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = Line{LineNo: i + 1, Line: l, ProductName: names[l.ProductID]}
	}
	return lines, res.Total, nil
}

// receive adds every line of p to stock.
func (s *Service) receive(ctx context.Context, tx TxRepository, p Purchase) error {
	ref := strconv.FormatInt(p.ID, 10)
	for _, l := range p.Lines {
		if _, err := s.ledger.Adjust(ctx, tx, inventory.Adjustment{
			ProductID: l.ProductID,
			Delta:     l.Quantity,
			Type:      inventory.MovementPurchase,
			RefModule: "purchases",
			RefID:     ref,
		}); err != nil {
			return err
		}
	}
	return nil
}

func inputProductIDs(in []lineitem.Input) []int64 {
	ids := make([]int64, len(in))
	for i, l := range in {
		ids[i] = l.ProductID
	}
	return ids
}

func lineProductIDs(lines []Line) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}
