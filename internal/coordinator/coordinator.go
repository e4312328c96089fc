// Package coordinator runs multi-step stock operations as a single unit:
// lock the products involved, run the steps in one database transaction, and
// either commit everything or abort everything.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/papeleria/papeleria/internal/shared"
)

// Runner opens a transaction and hands the transactional repository to fn.
type Runner[T any] interface {
	WithTx(ctx context.Context, fn func(context.Context, T) error) error
}

// Locker serialises work on the given keys across processes.
type Locker interface {
	Lock(ctx context.Context, keys []string) (release func(context.Context), err error)
}

// Observer receives the outcome of every coordinated operation.
type Observer interface {
	ObserveTransaction(op, outcome string, elapsed time.Duration)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CommitHook runs after a successful commit.
type CommitHook func(ctx context.Context, op *Operation)

// Operation describes one coordinated unit of work.
type Operation struct {
	Name       string
	Entity     string
	EntityID   string
	ProductIDs []int64
	Meta       map[string]any
}

// ErrStaleLocks means rows read inside the transaction reference products
// that were not part of the operation's lock set.
var ErrStaleLocks = fmt.Errorf("%w: records changed before they were locked, retry", shared.ErrBusy)

// Guard returns ErrStaleLocks unless every id is in op.ProductIDs. Callers
// that derive the lock set from a read taken before the transaction check the
// locked rows with it.
func (op *Operation) Guard(ids []int64) error {
	for _, id := range ids {
		if !slices.Contains(op.ProductIDs, id) {
			return fmt.Errorf("product %d: %w", id, ErrStaleLocks)
		}
	}
	return nil
}

// Invalidator is a cache that can be dropped wholesale.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// InvalidateOnStockChange returns a hook that bumps inv after every committed
// operation touching at least one product.
func InvalidateOnStockChange(inv Invalidator, logger *slog.Logger) CommitHook {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, op *Operation) {
		if inv == nil || len(op.ProductIDs) == 0 {
			return
		}
		if err := inv.Bump(ctx); err != nil {
			logger.Warn("catalog cache bump failed", slog.String("op", op.Name), slog.Any("error", err))
		}
	}
}

// Config groups optional collaborators.
type Config struct {
	Locker   Locker
	Observer Observer
	Audit    AuditPort
	Logger   *slog.Logger
}

// Coordinator executes operations under locks and a transaction.
type Coordinator struct {
	locker   Locker
	observer Observer
	audit    AuditPort
	logger   *slog.Logger
	hooks    []CommitHook
}

// New builds a Coordinator. A nil Locker relies on row locks alone.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{locker: cfg.Locker, observer: cfg.Observer, audit: cfg.Audit, logger: logger}
}

// OnCommit registers a hook executed after every committed operation.
func (c *Coordinator) OnCommit(hook CommitHook) {
	if hook != nil {
		c.hooks = append(c.hooks, hook)
	}
}

// Run executes fn inside runner's transaction. Any error from fn rolls the
// transaction back and is returned as *shared.AbortedError. fn may set
// op.EntityID once the record exists.
func Run[T any](ctx context.Context, c *Coordinator, runner Runner[T], op *Operation, fn func(context.Context, T) error) error {
	if c == nil {
		c = New(Config{})
	}
	if op == nil {
		op = &Operation{}
	}
	start := time.Now()

	if c.locker != nil && len(op.ProductIDs) > 0 {
		release, err := c.locker.Lock(ctx, lockKeys(op.ProductIDs))
		if err != nil {
			c.observe(op.Name, "busy", start)
			c.logger.Warn("stock lock unavailable", slog.String("op", op.Name), slog.Any("error", err))
			return err
		}
		defer release(context.WithoutCancel(ctx))
	}

	if err := runner.WithTx(ctx, fn); err != nil {
		c.observe(op.Name, "aborted", start)
		level := slog.LevelInfo
		if shared.KindOf(err) == shared.KindInternal {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "transaction aborted",
			slog.String("op", op.Name),
			slog.String("entity_id", op.EntityID),
			slog.String("kind", string(shared.KindOf(err))),
			slog.Any("error", err))
		var aborted *shared.AbortedError
		if errors.As(err, &aborted) {
			return err
		}
		return &shared.AbortedError{Op: op.Name, Err: err}
	}

	c.observe(op.Name, "committed", start)
	for _, hook := range c.hooks {
		hook(ctx, op)
	}
	if c.audit != nil && op.Entity != "" && op.EntityID != "" {
		entry := shared.AuditLog{
			RequestID: middleware.GetReqID(ctx),
			Action:    op.Name,
			Entity:    op.Entity,
			EntityID:  op.EntityID,
			Meta:      op.Meta,
		}
		if err := c.audit.Record(ctx, entry); err != nil {
			c.logger.Warn("audit record failed", slog.String("op", op.Name), slog.Any("error", err))
		}
	}
	return nil
}

func (c *Coordinator) observe(op, outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveTransaction(op, outcome, time.Since(start))
	}
}

// lockKeys returns sorted, de-duplicated keys so concurrent operations
// acquire overlapping locks in the same order.
func lockKeys(ids []int64) []string {
	uniq := make(map[int64]struct{}, len(ids))
	sorted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := uniq[id]; ok {
			continue
		}
		uniq[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	keys := make([]string, len(sorted))
	for i, id := range sorted {
		keys[i] = shared.StockLockKey(id)
	}
	return keys
}
