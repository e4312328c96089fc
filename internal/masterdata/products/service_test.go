package products

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/inventory/inventorytest"
	"github.com/papeleria/papeleria/internal/masterdata/shared"
	"github.com/papeleria/papeleria/internal/platform/cache"
	internalshared "github.com/papeleria/papeleria/internal/shared"
)

type memoryRepo struct {
	*inventorytest.Store
	products  map[int64]Product
	nextID    int64
	listCalls int
	failNext  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{Store: inventorytest.NewStore(), products: make(map[int64]Product)}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	end := m.Begin()
	snapshot := make(map[int64]Product, len(m.products))
	for k, v := range m.products {
		snapshot[k] = v
	}
	err := fn(ctx, m)
	if err != nil {
		m.products = snapshot
	}
	end(err)
	return err
}

func (m *memoryRepo) InsertProduct(_ context.Context, p Product) (Product, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return Product{}, err
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.products[p.ID] = p
	m.Put(inventory.StockItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Stock: 0, MinStock: p.MinStock, Active: p.Active})
	return p, nil
}

func (m *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Product, int, error) {
	m.listCalls++
	out := []Product{}
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.products[id]; ok {
			p.Stock = m.StockOf(id)
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	p.Stock = m.StockOf(id)
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, p Product) (Product, error) {
	old, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	p.ID = id
	p.CreatedAt = old.CreatedAt
	m.products[id] = p
	p.Stock = m.StockOf(id)
	return p, nil
}

func (m *memoryRepo) Deactivate(_ context.Context, id int64) error {
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Active = false
	m.products[id] = p
	return nil
}

func (m *memoryRepo) LowStock(_ context.Context) ([]Product, error) {
	out := []Product{}
	for _, p := range m.products {
		p.Stock = m.StockOf(p.ID)
		if p.Active && p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Categories(_ context.Context) ([]string, error) {
	cats := []string{}
	for _, p := range m.products {
		if p.Category != "" && !slices.Contains(cats, p.Category) {
			cats = append(cats, p.Category)
		}
	}
	slices.Sort(cats)
	return cats, nil
}

func int64p(v int64) *int64 { return &v }

func TestCreateProductPostsOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, inventory.NewLedger(), coordinator.New(coordinator.Config{}), nil, nil)

	created, err := svc.Create(context.Background(), CreateProductRequest{
		Name:     "  Lapiz HB ",
		Price:    decimal.RequireFromString("0.50"),
		Stock:    int64p(12),
		Category: "Escritura",
	})
	require.NoError(t, err)
	require.Equal(t, "Lapiz HB", created.Name)
	require.Equal(t, int64(12), created.Stock)
	require.Equal(t, int64(DefaultMinStock), created.MinStock)
	require.True(t, created.Active)

	moves := repo.Movements()
	require.Len(t, moves, 1)
	require.Equal(t, inventory.MovementOpening, moves[0].Type)
	require.Equal(t, int64(12), moves[0].Qty)
}

func TestCreateProductWithoutStockRecordsNoMovement(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), nil, nil)

	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Goma", Price: decimal.RequireFromString("0.30")})
	require.NoError(t, err)
	require.Zero(t, created.Stock)
	require.Empty(t, repo.Movements())
}

func TestCreateProductValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), nil, nil)

	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "", Price: decimal.Zero, Stock: int64p(-2)})
	require.ErrorIs(t, err, internalshared.ErrInvalidInput)
	fields := internalshared.FieldErrors(err)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	require.ElementsMatch(t, []string{"name", "stock", "price"}, names)
	require.Empty(t, repo.products)
}

func TestCreateProductDuplicateBarcodeAborts(t *testing.T) {
	repo := newMemoryRepo()
	repo.failNext = fmt.Errorf("barcode already registered: %w", shared.ErrDuplicate)
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), nil, nil)

	_, err := svc.Create(context.Background(), CreateProductRequest{Name: "Regla", Price: decimal.RequireFromString("1.20"), Barcode: ptr("750100")})
	require.ErrorIs(t, err, internalshared.ErrDuplicate)
	require.ErrorIs(t, err, internalshared.ErrTransactionAborted)
}

func TestUpdateRejectsStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), nil, nil)
	created, err := svc.Create(context.Background(), CreateProductRequest{Name: "Cuaderno", Price: decimal.RequireFromString("2.00"), Stock: int64p(3)})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), created.ID, UpdateProductRequest{Name: "Cuaderno", Price: decimal.RequireFromString("2.50"), Stock: int64p(99)})
	require.ErrorIs(t, err, internalshared.ErrInvalidInput)

	updated, err := svc.Update(context.Background(), created.ID, UpdateProductRequest{Name: "Cuaderno rayado", Price: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	require.Equal(t, int64(3), updated.Stock)
	require.True(t, decimal.RequireFromString("2.50").Equal(updated.Price))
}

func TestListIsCachedUntilCatalogChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	catalog := cache.NewCatalog(client, "catalog", time.Minute)

	coord := coordinator.New(coordinator.Config{})
	coord.OnCommit(coordinator.InvalidateOnStockChange(catalog, nil))

	repo := newMemoryRepo()
	svc := NewService(repo, nil, coord, catalog, nil)
	ctx := context.Background()
	filters := shared.ListFilters{Page: 1, Limit: 10}

	_, total, err := svc.List(ctx, filters)
	require.NoError(t, err)
	require.Zero(t, total)

	_, err = svc.Create(ctx, CreateProductRequest{Name: "Tijeras", Price: decimal.RequireFromString("3.75")})
	require.NoError(t, err)

	items, total, err := svc.List(ctx, filters)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Tijeras", items[0].Name)
	require.Equal(t, 2, repo.listCalls)
	_, _, err = svc.List(ctx, filters)
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls)

	require.NoError(t, svc.Delete(ctx, items[0].ID))
	_, _, err = svc.List(ctx, filters)
	require.NoError(t, err)
	require.Equal(t, 3, repo.listCalls)
}

func TestCreateInvalidatesCatalogWithoutCommitHook(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	catalog := cache.NewCatalog(client, "catalog", time.Minute)

	repo := newMemoryRepo()
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), catalog, nil)
	ctx := context.Background()

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)

	_, err = svc.Create(ctx, CreateProductRequest{Name: "Compas", Category: "Geometria", Price: decimal.RequireFromString("4")})
	require.NoError(t, err)

	cats, err = svc.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Geometria"}, cats)
}

func TestLowStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, coordinator.New(coordinator.Config{}), nil, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateProductRequest{Name: "Marcador", Price: decimal.RequireFromString("1"), Stock: int64p(2)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateProductRequest{Name: "Folder", Price: decimal.RequireFromString("1"), Stock: int64p(50)})
	require.NoError(t, err)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "Marcador", low[0].Name)
}

func ptr(s string) *string { return &s }
