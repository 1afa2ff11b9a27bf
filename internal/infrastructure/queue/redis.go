package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lrx-radar/pkg/logger"
)

// RedisQueue is the durable raw-event queue shared by all feed workers and
// the processor: producers LPUSH JSON envelopes and consumers BRPOP them,
// so events survive process restarts and fan in from any number of
// producers.
type RedisQueue struct {
	client     *redis.Client
	name       string
	popTimeout time.Duration
	logger     *logger.Logger
}

// NewRedisQueue creates a queue over an existing Redis client
func NewRedisQueue(client *redis.Client, name string, popTimeout time.Duration, log *logger.Logger) *RedisQueue {
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &RedisQueue{
		client:     client,
		name:       name,
		popTimeout: popTimeout,
		logger:     log.WithComponent("queue"),
	}
}

// Name returns the queue's Redis key
func (q *RedisQueue) Name() string {
	return q.name
}

// Push marshals a payload and enqueues it
func (q *RedisQueue) Push(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.name, err)
	}
	return nil
}

// PushRaw enqueues an already-encoded payload
func (q *RedisQueue) PushRaw(ctx context.Context, data []byte) error {
	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.name, err)
	}
	return nil
}

// Pop blocks for up to the configured timeout and returns the next message.
// A nil slice with nil error means the timeout elapsed with an empty queue.
func (q *RedisQueue) Pop(ctx context.Context) ([]byte, error) {
	result, err := q.client.BRPop(ctx, q.popTimeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", q.name, err)
	}
	// BRPop returns [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Len returns the number of pending messages
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
