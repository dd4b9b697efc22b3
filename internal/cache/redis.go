// Package cache wraps the Redis client used for per-IP rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool defaults.
const (
	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
)

// Options tunes the Redis connection pool. Zero values keep the defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int
}

// Cache provides Redis access methods.
type Cache struct {
	client *redis.Client
}

// New parses redisURL, opens a client and verifies connectivity.
func New(ctx context.Context, redisURL string, opts ...Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.PoolSize = DefaultPoolSize
	opt.MinIdleConns = DefaultMinIdleConns
	if len(opts) > 0 {
		if opts[0].PoolSize > 0 {
			opt.PoolSize = opts[0].PoolSize
		}
		if opts[0].MinIdleConns > 0 {
			opt.MinIdleConns = opts[0].MinIdleConns
		}
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client. Tests use it to flush state.
func (c *Cache) Client() *redis.Client {
	return c.client
}
