package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier wakes blocked Dequeue calls when new work is committed. A missed
// notification only costs one poll interval; the jobs table is authoritative.
type Notifier interface {
	Notify(ctx context.Context) error
	// Wait blocks until a notification arrives, timeout elapses or ctx ends.
	Wait(ctx context.Context, timeout time.Duration) error
}

// LocalNotifier signals goroutines in the same process.
type LocalNotifier struct {
	ch chan struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{ch: make(chan struct{}, 1)}
}

func (n *LocalNotifier) Notify(ctx context.Context) error {
	select {
	case n.ch <- struct{}{}:
	default:
	}
	return nil
}

func (n *LocalNotifier) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-n.ch:
		return nil
	case <-timer.C:
		return nil
	}
}

// RedisNotifier signals across processes through a Redis list.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

// wakeBacklog bounds the list so idle periods don't accumulate tokens.
const wakeBacklog = 64

func NewRedisNotifier(client *redis.Client, key string) *RedisNotifier {
	return &RedisNotifier{client: client, key: key}
}

func (n *RedisNotifier) Notify(ctx context.Context) error {
	pipe := n.client.TxPipeline()
	pipe.LPush(ctx, n.key, time.Now().UnixMilli())
	pipe.LTrim(ctx, n.key, 0, wakeBacklog-1)
	_, err := pipe.Exec(ctx)
	return err
}

func (n *RedisNotifier) Wait(ctx context.Context, timeout time.Duration) error {
	if timeout < time.Second {
		timeout = time.Second
	}
	err := n.client.BLPop(ctx, timeout, n.key).Err()
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// Redis unavailable: fall back to sleeping out the interval.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
