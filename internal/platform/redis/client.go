// Package redis connects the idempotency cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kycbuster/internal/platform/config"
)

// Client is a connected go-redis client. A nil *Client means Redis is not
// configured.
type Client struct {
	*redis.Client
}

// New dials cfg.URL and pings it once. It returns a nil client and no error
// when no URL is set.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// applyPool overrides the URL's settings with any positive configured value.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setDur := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	setInt(&opts.PoolSize, cfg.PoolSize)
	setInt(&opts.MinIdleConns, cfg.MinIdleConns)
	setDur(&opts.DialTimeout, cfg.DialTimeout)
	setDur(&opts.ReadTimeout, cfg.ReadTimeout)
	setDur(&opts.WriteTimeout, cfg.WriteTimeout)
}

// Health is a router health check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
