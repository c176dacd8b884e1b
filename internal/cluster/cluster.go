// Package cluster shares the submission counter and lifecycle events
// between server processes through Redis.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewClient connects to the Redis server at url (redis://host:port/db)
// and checks it responds.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Counter is a submission counter shared by every process using the same key.
type Counter struct {
	client *redis.Client
	key    string
}

// NewCounter returns a counter stored at key.
func NewCounter(client *redis.Client, key string) *Counter {
	return &Counter{client: client, key: key}
}

// Next increments and returns the shared count.
func (c *Counter) Next(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", c.key, err)
	}
	return n, nil
}

// Value returns the shared count without incrementing.
func (c *Counter) Value(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", c.key, err)
	}
	return n, nil
}
