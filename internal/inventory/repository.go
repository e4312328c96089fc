package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papeleria/papeleria/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore implements StockTx on a pgx transaction. Other modules embed it in
// their own transactional repositories so sales and purchases share the
// same transaction as the stock they move.
type TxStore struct {
	Tx pgx.Tx
}

// NewTxStore wraps tx.
func NewTxStore(tx pgx.Tx) TxStore {
	return TxStore{Tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// ListMovements returns the stock card of a product, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, movement_type, qty, balance_after, COALESCE(ref_module, ''), COALESCE(ref_id, ''), COALESCE(note, ''), posted_at
FROM stock_movements
WHERE product_id=$1 AND posted_at BETWEEN COALESCE($2, '-infinity'::timestamptz) AND COALESCE($3, 'infinity'::timestamptz)
ORDER BY posted_at ASC, id ASC
LIMIT $4`, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	moves := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Qty, &m.BalanceAfter, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// LowStock lists active products whose stock is at or below their minimum.
func (r *Repository) LowStock(ctx context.Context) ([]StockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price, stock, min_stock, category, active
FROM products
WHERE active AND stock <= min_stock
ORDER BY stock ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockItem{}
	for rows.Next() {
		var it StockItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Price, &it.Stock, &it.MinStock, &it.Category, &it.Active); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// LockProduct reads the product row FOR UPDATE.
func (s TxStore) LockProduct(ctx context.Context, productID int64) (StockItem, error) {
	var it StockItem
	err := s.Tx.QueryRow(ctx, `SELECT id, name, price, stock, min_stock, category, active FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&it.ProductID, &it.Name, &it.Price, &it.Stock, &it.MinStock, &it.Category, &it.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{}, ErrProductNotFound
		}
		return StockItem{}, err
	}
	return it, nil
}

// SetStock writes the new stock value.
func (s TxStore) SetStock(ctx context.Context, productID, stock int64) error {
	tag, err := s.Tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// InsertMovement appends a stock card entry.
func (s TxStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.Tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, movement_type, qty, balance_after, ref_module, ref_id, note, posted_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),$8) RETURNING id`,
		m.ProductID, string(m.Type), m.Qty, m.BalanceAfter, m.RefModule, m.RefID, m.Note, m.PostedAt).Scan(&id)
	return id, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
