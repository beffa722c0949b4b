package stock

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	ledgerVersionKey = "stock:ledger:version"
	// ChangeChannel carries the new ledger version after each write.
	ChangeChannel = "stock.changed"
)

// RedisNotifier keeps a monotonic ledger version in Redis and publishes bumps.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier instantiates the notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Version returns the current ledger version, zero when nothing was written yet.
func (n *RedisNotifier) Version(ctx context.Context) (int64, error) {
	if n == nil || n.client == nil {
		return 0, nil
	}
	ver, err := n.client.Get(ctx, ledgerVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump increments the version and publishes it on ChangeChannel.
func (n *RedisNotifier) Bump(ctx context.Context) (int64, error) {
	if n == nil || n.client == nil {
		return 0, nil
	}
	ver, err := n.client.Incr(ctx, ledgerVersionKey).Result()
	if err != nil {
		return 0, err
	}
	if err := n.client.Publish(ctx, ChangeChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, err
	}
	return ver, nil
}

// Subscribe streams published versions until ctx is cancelled. The channel is closed on exit.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan int64, error) {
	out := make(chan int64, 8)
	if n == nil || n.client == nil {
		close(out)
		return out, nil
	}
	pubsub := n.client.Subscribe(ctx, ChangeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ver, err := strconv.ParseInt(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				select {
				case out <- ver:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
