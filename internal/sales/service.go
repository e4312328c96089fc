package sales

import (
	"context"
	"log/slog"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

// AlertPublisher queues low-stock notifications once a sale commits.
type AlertPublisher interface {
	EnqueueLowStockAlert(ctx context.Context, productID int64) error
}

// Service provides business logic for sales.
type Service struct {
	repo   RepositoryPort
	ledger *inventory.Ledger
	coord  *coordinator.Coordinator
	alerts AlertPublisher
	logger *slog.Logger
}

// NewService constructs a sales service. alerts may be nil.
func NewService(repo RepositoryPort, ledger *inventory.Ledger, coord *coordinator.Coordinator, alerts AlertPublisher, logger *slog.Logger) *Service {
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, coord: coord, alerts: alerts, logger: logger}
}

// Create records a sale and takes its stock. Every line is checked against
// the locked product row and priced from it; any failure leaves stock and
// sales untouched. A non-empty idempotencyKey is claimed in the same
// transaction.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest, idempotencyKey string) (Sale, error) {
	d, err := normalizeCreate(req)
	if err != nil {
		return Sale{}, err
	}
	op := &coordinator.Operation{
		Name:       "sale.create",
		Entity:     "sale",
		ProductIDs: productIDs(d.Lines),
		Meta:       map[string]any{"lines": len(d.Lines), "status": string(d.Status)},
	}
	var (
		sale Sale
		low  []int64
	)
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		if idempotencyKey != "" {
			if err := tx.ClaimIdempotency(ctx, idempotencyKey); err != nil {
				return err
			}
		}
		lines, total, err := s.price(ctx, tx, d.Lines, 1)
		if err != nil {
			return err
		}
		sale, err = tx.InsertSale(ctx, Sale{
			CustomerName:  d.CustomerName,
			PaymentMethod: d.PaymentMethod,
			Status:        d.Status,
			Total:         total,
		})
		if err != nil {
			return err
		}
		op.EntityID = strconv.FormatInt(sale.ID, 10)
		if low, err = s.take(ctx, tx, sale.ID, lines); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, sale.ID, lines); err != nil {
			return err
		}
		sale.Lines = lines
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.alertLow(ctx, low)
	return sale, nil
}

// AddLine appends a line to a Pending sale, taking its stock and
// recomputing the total from every stored line.
func (s *Service) AddLine(ctx context.Context, saleID int64, req LineRequest) (Sale, error) {
	in, err := normalizeLine(req)
	if err != nil {
		return Sale{}, err
	}
	op := &coordinator.Operation{
		Name:       "sale.add_line",
		Entity:     "sale",
		EntityID:   strconv.FormatInt(saleID, 10),
		ProductIDs: []int64{in.ProductID},
		Meta:       map[string]any{"product_id": in.ProductID, "quantity": in.Quantity},
	}
	var (
		sale Sale
		low  []int64
	)
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status == shared.StatusCompleted {
			return ErrSaleCompleted
		}
		lines, _, err := s.price(ctx, tx, []lineitem.Input{in}, len(sale.Lines)+1)
		if err != nil {
			return err
		}
		if low, err = s.take(ctx, tx, sale.ID, lines); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, sale.ID, lines); err != nil {
			return err
		}
		sale.Lines = append(sale.Lines, lines...)
		sale.Total = lineitem.Total(priced(sale.Lines))
		return tx.UpdateHeader(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	s.alertLow(ctx, low)
	return sale, nil
}

// UpdateStatus moves a sale to a new status. Stock was taken at creation so
// the transition itself has no stock effect.
func (s *Service) UpdateStatus(ctx context.Context, id int64, req StatusRequest) (Sale, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return Sale{}, err
	}
	status := req.Status
	return s.Update(ctx, id, UpdateSaleRequest{Status: &status})
}

// Update edits the header of a sale. A status change follows the same
// rules as UpdateStatus.
func (s *Service) Update(ctx context.Context, id int64, req UpdateSaleRequest) (Sale, error) {
	req, err := normalizeUpdate(req)
	if err != nil {
		return Sale{}, err
	}
	name := "sale.update"
	meta := map[string]any{}
	if req.Status != nil {
		meta["status"] = string(*req.Status)
		if req.CustomerName == nil && req.PaymentMethod == nil {
			name = "sale.update_status"
		}
	}
	op := &coordinator.Operation{Name: name, Entity: "sale", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	var sale Sale
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		dirty := false
		if req.Status != nil {
			changed, err := sale.Status.Transition(*req.Status)
			if err != nil {
				return err
			}
			if changed {
				sale.Status = *req.Status
				dirty = true
			}
		}
		if req.CustomerName != nil && *req.CustomerName != sale.CustomerName {
			sale.CustomerName = *req.CustomerName
			dirty = true
		}
		if req.PaymentMethod != nil && *req.PaymentMethod != sale.PaymentMethod {
			sale.PaymentMethod = *req.PaymentMethod
			dirty = true
		}
		if !dirty {
			return nil
		}
		return tx.UpdateHeader(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// Delete returns every sold unit to stock and removes the sale. A line
// whose product is gone aborts the deletion.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	op := &coordinator.Operation{
		Name:       "sale.delete",
		Entity:     "sale",
		EntityID:   strconv.FormatInt(id, 10),
		ProductIDs: lineProductIDs(existing.Lines),
	}
	return coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := op.Guard(lineProductIDs(sale.Lines)); err != nil {
			return err
		}
		for _, l := range sale.Lines {
			if _, err := s.ledger.Adjust(ctx, tx, inventory.Adjustment{
				ProductID: l.ProductID,
				Delta:     l.Quantity,
				Type:      inventory.MovementSaleReversal,
				RefModule: "sales",
				RefID:     op.EntityID,
				Note:      "sale deleted",
			}); err != nil {
				return err
			}
		}
		return tx.DeleteSale(ctx, id)
	})
}

// Get returns a sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of sale headers.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, shared.InvalidField("status", "must be one of: Pending Completed")
	}
	return s.repo.List(ctx, filters)
}

// price locks each product, rejects inactive ones, checks that the
// cumulative quantity per product is available, and prices the lines at the
// current product price. Line numbers start at firstLineNo.
func (s *Service) price(ctx context.Context, tx TxRepository, inputs []lineitem.Input, firstLineNo int) ([]Line, decimal.Decimal, error) {
	wanted := make(map[int64]int64, len(inputs))
	names := make(map[int64]string, len(inputs))
	for i := range inputs {
		item, err := s.ledger.Active(ctx, tx, inputs[i].ProductID)
		if err != nil {
			return nil, decimal.Decimal{}, err
		}
		wanted[item.ProductID] += inputs[i].Quantity
		if err := s.ledger.Require(item, wanted[item.ProductID]); err != nil {
			return nil, decimal.Decimal{}, err
		}
		inputs[i].UnitPrice = item.Price
		names[item.ProductID] = item.Name
	}
	res, err := lineitem.Calculate(inputs)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	lines := make([]Line, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = Line{LineNo: firstLineNo + i, Line: l, ProductName: names[l.ProductID]}
	}
	return lines, res.Total, nil
}

// take decrements stock for each line and reports products that ended at or
// below their minimum.
func (s *Service) take(ctx context.Context, tx TxRepository, saleID int64, lines []Line) ([]int64, error) {
	ref := strconv.FormatInt(saleID, 10)
	var low []int64
	for i := range lines {
		lines[i].SaleID = saleID
		mv, err := s.ledger.Adjust(ctx, tx, inventory.Adjustment{
			ProductID: lines[i].ProductID,
			Delta:     -lines[i].Quantity,
			Type:      inventory.MovementSale,
			RefModule: "sales",
			RefID:     ref,
		})
		if err != nil {
			return nil, err
		}
		item, err := s.ledger.Lookup(ctx, tx, lines[i].ProductID)
		if err != nil {
			return nil, err
		}
		if mv.BalanceAfter <= item.MinStock && !slices.Contains(low, item.ProductID) {
			low = append(low, item.ProductID)
		}
	}
	return low, nil
}

func (s *Service) alertLow(ctx context.Context, productIDs []int64) {
	if s.alerts == nil {
		return
	}
	for _, id := range productIDs {
		if err := s.alerts.EnqueueLowStockAlert(ctx, id); err != nil {
			s.logger.Warn("enqueue low stock alert", slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
}

func productIDs(inputs []lineitem.Input) []int64 {
	ids := make([]int64, len(inputs))
	for i, in := range inputs {
		ids[i] = in.ProductID
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
