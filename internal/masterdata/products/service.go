package products

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/masterdata/shared"
	"github.com/papeleria/papeleria/internal/platform/cache"
)

type Service struct {
	repo   Repository
	ledger *inventory.Ledger
	coord  *coordinator.Coordinator
	cache  *cache.Catalog
	logger *slog.Logger
}

func NewService(repo Repository, ledger *inventory.Ledger, coord *coordinator.Coordinator, catalog *cache.Catalog, logger *slog.Logger) *Service {
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, coord: coord, cache: catalog, logger: logger}
}

type listResult struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

// List returns one page of products. Results are served from the catalog
// cache when one is configured.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	key, err := s.cache.BuildKey(ctx, "products", "list", listKey(filters))
	if err != nil {
		s.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return s.repo.List(ctx, filters)
	}
	var res listResult
	err = s.cache.FetchJSON(ctx, key, &res, func(ctx context.Context) (any, error) {
		items, total, err := s.repo.List(ctx, filters)
		if err != nil {
			return nil, err
		}
		return listResult{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create inserts the product with zero stock and posts any initial stock as
// an opening movement in the same transaction.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	product, opening, err := normalizeCreate(req)
	if err != nil {
		return Product{}, err
	}
	var created Product
	op := &coordinator.Operation{Name: "product.create", Entity: "product", Meta: map[string]any{"opening_stock": opening}}
	err = coordinator.Run(ctx, s.coord, s.repo, op, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertProduct(ctx, product)
		if err != nil {
			return err
		}
		op.EntityID = strconv.FormatInt(created.ID, 10)
		op.ProductIDs = []int64{created.ID}
		if opening == 0 {
			return nil
		}
		mv, err := s.ledger.Adjust(ctx, tx, inventory.Adjustment{
			ProductID: created.ID,
			Delta:     opening,
			Type:      inventory.MovementOpening,
			RefModule: "products",
			RefID:     op.EntityID,
			Note:      "opening stock",
		})
		if err != nil {
			return err
		}
		created.Stock = mv.BalanceAfter
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// Update edits catalog fields. Stock is left untouched.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	product, err := normalizeUpdate(req)
	if err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, id, product)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete deactivates the product; sales and purchases keep referencing it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	key, err := s.cache.BuildKey(ctx, "products", "categories")
	if err != nil {
		return s.repo.Categories(ctx)
	}
	var cats []string
	err = s.cache.FetchJSON(ctx, key, &cats, func(ctx context.Context) (any, error) {
		return s.repo.Categories(ctx)
	})
	return cats, err
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("catalog cache bump failed", slog.Any("error", err))
	}
}

func listKey(f shared.ListFilters) string {
	active := "all"
	if f.IsActive != nil {
		active = strconv.FormatBool(*f.IsActive)
	}
	supplier := ""
	if f.SupplierID != nil {
		supplier = strconv.FormatInt(*f.SupplierID, 10)
	}
	return fmt.Sprintf("p%d|l%d|s%q|c%q|a%s|sup%s|o%s.%s", f.Page, f.Limit, f.Search, f.Category, active, supplier, f.SortBy, f.SortDir)
}
