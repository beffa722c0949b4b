package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gasdist/stockledger/internal/stock"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockAlert delivers one low-stock alert.
	TaskLowStockAlert = "stock:low_stock_alert"
	// TaskLowStockScan re-derives stock and raises alerts for every low product.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "stock:idempotency_cleanup"
)

// LowStockAlertPayload is the queued form of a stock.LowStockAlert.
type LowStockAlertPayload struct {
	AlertID string              `json:"alert_id"`
	Source  string              `json:"source"`
	Alert   stock.LowStockAlert `json:"alert"`
}

// NewLowStockAlertTask constructs an Asynq task carrying a fresh alert id.
func NewLowStockAlertTask(alert stock.LowStockAlert, source string) (*asynq.Task, error) {
	payload := LowStockAlertPayload{AlertID: uuid.NewString(), Source: source, Alert: alert}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockAlert, body, asynq.Queue(QueueAlerts), asynq.TaskID(payload.AlertID), asynq.MaxRetry(5)), nil
}

// ScanTriggerCron marks scans queued by the scheduler.
const ScanTriggerCron = "cron"

// LowStockScanPayload names what queued the scan. Alert times come from the
// worker clock when the scan runs, so the payload stays identical across runs.
type LowStockScanPayload struct {
	Trigger string `json:"trigger"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask(trigger string) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
