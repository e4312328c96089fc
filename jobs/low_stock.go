package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/papeleria/papeleria/internal/inventory"
	jobmetrics "github.com/papeleria/papeleria/internal/jobs"
)

// LowStockSource lists products at or below their minimum stock.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.StockItem, error)
}

// Notifier delivers a low-stock notice for one product.
type Notifier interface {
	NotifyLowStock(ctx context.Context, item inventory.StockItem) error
}

// LogNotifier writes low-stock notices to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyLowStock implements Notifier.
func (n LogNotifier) NotifyLowStock(_ context.Context, item inventory.StockItem) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("low stock",
		slog.Int64("product_id", item.ProductID),
		slog.String("product", item.Name),
		slog.Int64("stock", item.Stock),
		slog.Int64("min_stock", item.MinStock),
	)
	return nil
}

// LowStockJob handles the scan and alert tasks.
type LowStockJob struct {
	source   LowStockSource
	notifier Notifier
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewLowStockJob constructs the job handler.
func NewLowStockJob(source LowStockSource, notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockJob {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if metrics == nil {
		metrics = jobmetrics.NewMetrics(nil)
	}
	return &LowStockJob{source: source, notifier: notifier, logger: logger, metrics: metrics}
}

// HandleScan recomputes the low-stock gauge.
func (j *LowStockJob) HandleScan(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskLowStockScan)
	defer func() {
		err = tracker.End(err)
	}()
	items, err := j.source.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock scan: %w", err)
	}
	j.metrics.SetLowStock(len(items))
	j.logger.Info("low stock scan completed", slog.Int("products", len(items)))
	return nil
}

// HandleAlert notifies about a single product, unless it was restocked
// between the sale and the task running.
func (j *LowStockJob) HandleAlert(ctx context.Context, task *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskLowStockAlert)
	defer func() {
		err = tracker.End(err)
	}()
	var payload LowStockAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.ProductID <= 0 {
		return fmt.Errorf("product id required: %w", asynq.SkipRetry)
	}
	items, err := j.source.LowStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock alert: %w", err)
	}
	for _, item := range items {
		if item.ProductID != payload.ProductID {
			continue
		}
		if err := j.notifier.NotifyLowStock(ctx, item); err != nil {
			return err
		}
		j.metrics.AlertSent()
		return nil
	}
	j.logger.Debug("low stock alert skipped", slog.Int64("product_id", payload.ProductID))
	return nil
}
