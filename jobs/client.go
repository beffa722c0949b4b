package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/gasdist/stockledger/internal/stock"
)

// SourceLedgerWrite marks alerts raised by a ledger mutation.
const SourceLedgerWrite = "ledger_write"

// Enqueuer is the subset of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits stock tasks to the queue. It satisfies stock.AlertPort.
type Client struct {
	client Enqueuer
}

// NewClient constructs an Asynq-backed client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueAlert queues a low-stock alert raised by source.
func (c *Client) EnqueueAlert(ctx context.Context, alert stock.LowStockAlert, source string) error {
	if c == nil || c.client == nil {
		return errors.New("jobs: client not configured")
	}
	task, err := NewLowStockAlertTask(alert, source)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueLowStockAlert queues an alert raised by a ledger write.
func (c *Client) EnqueueLowStockAlert(ctx context.Context, alert stock.LowStockAlert) error {
	return c.EnqueueAlert(ctx, alert, SourceLedgerWrite)
}

// Close releases client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
