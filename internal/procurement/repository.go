package procurement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/platform/db"
	"github.com/papeleria/papeleria/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filters ListFilters) ([]Purchase, int, error)
}

// TxRepository exposes transactional operations. Stock goes through the
// embedded inventory.StockTx so receipts share the purchase's transaction.
type TxRepository interface {
	inventory.StockTx
	Supplier(ctx context.Context, id int64) (SupplierRef, error)
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	ReplaceLines(ctx context.Context, purchaseID int64, lines []Line) error
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	UpdateHeader(ctx context.Context, p Purchase) error
	DeletePurchase(ctx context.Context, id int64) error
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.TxStore
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: inventory.NewTxStore(tx)})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const purchaseSelect = `SELECT p.id, p.supplier_id, COALESCE(s.name, ''), p.payment_method, p.status, p.total, COALESCE(p.observations, ''), p.created_at, p.updated_at
FROM purchases p
LEFT JOIN suppliers s ON s.id = p.supplier_id`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var status string
	err := row.Scan(&p.ID, &p.SupplierID, &p.SupplierName, &p.PaymentMethod, &status, &p.Total, &p.Observations, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrPurchaseNotFound
		}
		return Purchase{}, err
	}
	p.Status = shared.Status(status)
	return p, nil
}

func loadLines(ctx context.Context, q querier, purchaseID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.purchase_id, l.line_no, l.product_id, COALESCE(pr.name, ''), l.quantity, l.unit_price, l.subtotal
FROM purchase_lines l
LEFT JOIN products pr ON pr.id = l.product_id
WHERE l.purchase_id = $1
ORDER BY l.line_no`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.LineNo, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get loads a purchase with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, purchaseSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return Purchase{}, err
	}
	if p.Lines, err = loadLines(ctx, r.pool, id); err != nil {
		return Purchase{}, fmt.Errorf("load purchase lines: %w", err)
	}
	return p, nil
}

// List returns purchase headers, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += ` AND p.status = $` + strconv.Itoa(len(args))
	}
	if filters.SupplierID > 0 {
		args = append(args, filters.SupplierID)
		where += ` AND p.supplier_id = $` + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		where += ` AND p.created_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		where += ` AND p.created_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, shared.Offset(filters.Page, filters.Limit))
	rows, err := r.pool.Query(ctx, purchaseSelect+where+
		` ORDER BY p.created_at DESC, p.id DESC LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) Supplier(ctx context.Context, id int64) (SupplierRef, error) {
	var s SupplierRef
	err := t.Tx.QueryRow(ctx, `SELECT id, name, active FROM suppliers WHERE id = $1 FOR SHARE`, id).Scan(&s.ID, &s.Name, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierRef{}, ErrSupplierNotFound
		}
		return SupplierRef{}, err
	}
	return s, nil
}

func (t *txRepo) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	err := t.Tx.QueryRow(ctx, `INSERT INTO purchases (supplier_id, payment_method, status, total, observations, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6) RETURNING id, created_at, updated_at`,
		p.SupplierID, p.PaymentMethod, string(p.Status), p.Total, p.Observations, time.Now().UTC()).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *txRepo) ReplaceLines(ctx context.Context, purchaseID int64, lines []Line) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM purchase_lines WHERE purchase_id = $1`, purchaseID)
	for _, l := range lines {
		batch.Queue(`INSERT INTO purchase_lines (purchase_id, line_no, product_id, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5, $6)`,
			purchaseID, l.LineNo, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal)
	}
	return t.Tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(t.Tx.QueryRow(ctx, purchaseSelect+` WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err != nil {
		return Purchase{}, err
	}
	if p.Lines, err = loadLines(ctx, t.Tx, id); err != nil {
		return Purchase{}, fmt.Errorf("load purchase lines: %w", err)
	}
	return p, nil
}

func (t *txRepo) UpdateHeader(ctx context.Context, p Purchase) error {
	tag, err := t.Tx.Exec(ctx, `UPDATE purchases SET supplier_id=$2, payment_method=$3, status=$4, total=$5, observations=NULLIF($6, ''), updated_at=NOW() WHERE id=$1`,
		p.ID, p.SupplierID, p.PaymentMethod, string(p.Status), p.Total, p.Observations)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

func (t *txRepo) DeletePurchase(ctx context.Context, id int64) error {
	tag, err := t.Tx.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}
