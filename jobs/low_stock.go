package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gasdist/stockledger/internal/jobs"
	"github.com/gasdist/stockledger/internal/stock"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockAlertJob delivers low-stock alerts. Delivery is a structured warning log line.
type LowStockAlertJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockAlertJob initialises the alert handler.
func NewLowStockAlertJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockAlertJob {
	return &LowStockAlertJob{Logger: logger, Metrics: metrics}
}

// Handle processes TaskLowStockAlert tasks.
func (j *LowStockAlertJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock alert: handler not configured")
	}
	var payload LowStockAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Alert.ProductID <= 0 {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskLowStockAlert)
	loggerOrDefault(j.Logger, TaskLowStockAlert).Warn("low stock",
		slog.String("alert_id", payload.AlertID),
		slog.String("source", payload.Source),
		slog.Int64("product_id", payload.Alert.ProductID),
		slog.String("product", payload.Alert.Name),
		slog.Int64("quantity", payload.Alert.Quantity),
		slog.Int64("threshold", payload.Alert.Threshold),
		slog.Time("at", payload.Alert.At),
	)
	metricsOrDefault(j.Metrics).AddLowStockAlerts(1)
	return tracker.End(nil)
}

// LowStockReader is the read side the scan depends on.
type LowStockReader interface {
	LowStock(ctx context.Context) (stock.StockView, error)
}

// AlertEnqueuer queues alert tasks.
type AlertEnqueuer interface {
	EnqueueAlert(ctx context.Context, alert stock.LowStockAlert, source string) error
}

// LowStockScanJob re-derives the ledger and queues an alert per low product.
type LowStockScanJob struct {
	Reader  LowStockReader
	Alerts  AlertEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(reader LowStockReader, alerts AlertEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Reader:  reader,
		Alerts:  alerts,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reader == nil || j.Alerts == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskLowStockScan)
	logger := loggerOrDefault(j.Logger, TaskLowStockScan)
	start := j.now()

	view, err := j.Reader.LowStock(ctx)
	if err != nil {
		logger.Error("derive stock", slog.Any("error", err))
		return tracker.End(err)
	}
	var errs []error
	for _, item := range view.Items {
		alert := stock.LowStockAlert{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Threshold: item.Threshold,
			At:        start,
		}
		if err := j.Alerts.EnqueueAlert(ctx, alert, TaskLowStockScan); err != nil {
			errs = append(errs, err)
		}
	}
	err = errors.Join(errs...)
	logger.Info("completed low stock scan",
		slog.String("trigger", payload.Trigger),
		slog.Int("low_items", len(view.Items)),
		slog.Int64("version", view.Version),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(err)
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func loggerOrDefault(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
