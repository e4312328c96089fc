package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert notifies that a product fell to or below its minimum.
	TaskLowStockAlert = "inventory:low_stock_alert"
	// TaskLowStockScan recomputes the list of products needing restock.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskIdempotencyCleanup purges expired Idempotency-Key claims.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockAlertPayload identifies the product to check.
type LowStockAlertPayload struct {
	ProductID int64     `json:"product_id"`
	RaisedAt  time.Time `json:"raised_at"`
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// IdempotencyCleanupPayload configures how old a claim must be to go.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewLowStockAlertTask constructs an alert task. The task ID is derived from
// the product and the UTC day so a product alerts at most once per day.
func NewLowStockAlertTask(productID int64, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockAlertPayload{ProductID: productID, RaisedAt: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(lowStockAlertID(productID, at)),
		asynq.MaxRetry(5),
		asynq.Retention(24*time.Hour),
	), nil
}

// NewLowStockScanTask constructs the periodic scan task.
func NewLowStockScanTask() (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		hours = 72
	}
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

func lowStockAlertID(productID int64, at time.Time) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("LOWSTOCK:%d:%s", productID, at.UTC().Format("2006-01-02")))).String()
}
