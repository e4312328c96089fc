package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/masterdata/shared"
	"github.com/papeleria/papeleria/internal/platform/db"
	internalshared "github.com/papeleria/papeleria/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Update(ctx context.Context, id int64, product Product) (Product, error)
	Deactivate(ctx context.Context, id int64) error
	LowStock(ctx context.Context) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
}

// TxRepository creates products inside the transaction that posts their
// opening stock.
type TxRepository interface {
	inventory.StockTx
	InsertProduct(ctx context.Context, product Product) (Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

type txRepository struct {
	inventory.TxStore
}

const productColumns = `id, name, COALESCE(description, ''), price, stock, min_stock, category, barcode, supplier_id, active, created_at, updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxStore: inventory.NewTxStore(tx)})
	})
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Category != "" {
		args = append(args, filters.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	if filters.SupplierID != nil {
		args = append(args, *filters.SupplierID)
		where += ` AND supplier_id = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR barcode ILIKE $` + n + ` OR category ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, internalshared.Offset(filters.Page, filters.Limit))
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products, err := collect(rows)
	return products, total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

func (tx *txRepository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	row := tx.Tx.QueryRow(ctx, `INSERT INTO products (name, description, price, stock, min_stock, category, barcode, supplier_id, active, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, 0, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING `+productColumns, p.Name, p.Description, p.Price, p.MinStock, p.Category, p.Barcode, p.SupplierID, p.Active)
	created, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteError(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, p Product) (Product, error) {
	row := r.db.QueryRow(ctx, `UPDATE products SET name = $1, description = NULLIF($2, ''), price = $3, min_stock = $4, category = $5, barcode = $6, supplier_id = $7, active = $8, updated_at = NOW()
WHERE id = $9
RETURNING `+productColumns, p.Name, p.Description, p.Price, p.MinStock, p.Category, p.Barcode, p.SupplierID, p.Active, id)
	updated, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Product{}, mapWriteError(err)
	}
	return updated, nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE active AND stock <= min_stock ORDER BY stock ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT category FROM products WHERE active AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cats := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func collect(rows pgx.Rows) ([]Product, error) {
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.MinStock, &p.Category, &p.Barcode, &p.SupplierID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("barcode already registered: %w", shared.ErrDuplicate)
	case "23503":
		return internalshared.InvalidField("supplier_id", "does not exist")
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := shared.SortDirection(sortDir)
	switch sortBy {
	case "price":
		return "price " + dir
	case "stock":
		return "stock " + dir
	case "category":
		return "category " + dir + ", name ASC"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
