package sales

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

// RepositoryPort is the read side plus the transaction entry point.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filters ListFilters) ([]Sale, int, error)
}

// TxRepository exposes transactional operations. Stock goes through the
// embedded inventory.StockTx so it shares the sale's transaction.
type TxRepository interface {
	inventory.StockTx
	ClaimIdempotency(ctx context.Context, key string) error
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	InsertLines(ctx context.Context, saleID int64, lines []Line) error
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateHeader(ctx context.Context, sale Sale) error
	DeleteSale(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	inventory.TxStore
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: inventory.NewTxStore(tx)})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const saleColumns = `id, customer_name, payment_method, status, total, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var status string
	if err := row.Scan(&s.ID, &s.CustomerName, &s.PaymentMethod, &status, &s.Total, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	s.Status = shared.Status(status)
	return s, nil
}

func loadLines(ctx context.Context, q querier, saleID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.sale_id, l.line_no, l.product_id, COALESCE(p.name, ''), l.quantity, l.unit_price, l.subtotal
FROM sale_lines l
LEFT JOIN products p ON p.id = l.product_id
WHERE l.sale_id = $1
ORDER BY l.line_no`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LineNo, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get returns a sale with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return Sale{}, err
	}
	s.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return Sale{}, fmt.Errorf("load sale lines: %w", err)
	}
	return s, nil
}

// List returns sale headers, newest first.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filters.Customer != "" {
		args = append(args, "%"+filters.Customer+"%")
		where += ` AND customer_name ILIKE $` + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		where += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		where += ` AND created_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, shared.Offset(filters.Page, filters.Limit))
	query := `SELECT ` + saleColumns + ` FROM sales` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (t *txRepo) ClaimIdempotency(ctx context.Context, key string) error {
	return shared.ClaimIdempotencyKey(ctx, t.Tx, key, "sales")
}

func (t *txRepo) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	err := t.Tx.QueryRow(ctx, `INSERT INTO sales (customer_name, payment_method, status, total, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, created_at, updated_at`,
		s.CustomerName, s.PaymentMethod, string(s.Status), s.Total, time.Now().UTC()).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (t *txRepo) InsertLines(ctx context.Context, saleID int64, lines []Line) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO sale_lines (sale_id, line_no, product_id, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5, $6)`,
			saleID, l.LineNo, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal)
	}
	return t.Tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(t.Tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Sale{}, err
	}
	s.Lines, err = loadLines(ctx, t.Tx, id)
	if err != nil {
		return Sale{}, fmt.Errorf("load sale lines: %w", err)
	}
	return s, nil
}

func (t *txRepo) UpdateHeader(ctx context.Context, s Sale) error {
	tag, err := t.Tx.Exec(ctx, `UPDATE sales SET customer_name=$2, payment_method=$3, status=$4, total=$5, updated_at=NOW() WHERE id=$1`,
		s.ID, s.CustomerName, s.PaymentMethod, string(s.Status), s.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

func (t *txRepo) DeleteSale(ctx context.Context, id int64) error {
	tag, err := t.Tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}
