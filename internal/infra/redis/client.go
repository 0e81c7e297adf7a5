// Package redis caches resolved historical prices so repeated runs over the
// same wallet do not repeat external price queries. The cache is optional: a
// nil *Client is a no-op.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	logger "log/slog"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for the price cache.
type Client struct {
	rdb *redis.Client
}

// Historical prices never change once the calendar day is over; the TTL only
// bounds cache growth.
const priceTTL = 90 * 24 * time.Hour

// NewClient creates a new Redis client and verifies the connection.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func priceKey(asset, date string) string {
	return fmt.Sprintf("price:%s:%s", asset, date)
}

// GetPrice returns the cached price for (asset, date), if any.
func (c *Client) GetPrice(ctx context.Context, asset, date string) (float64, bool) {
	if c == nil {
		return 0, false
	}

	val, err := c.rdb.Get(ctx, priceKey(asset, date)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("price cache read failed", "asset", asset, "date", date, "error", err)
		}
		return 0, false
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// SetPrice stores a resolved price. Failures are logged and ignored; the
// cache is best-effort.
func (c *Client) SetPrice(ctx context.Context, asset, date string, price float64) {
	if c == nil {
		return
	}

	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := c.rdb.Set(ctx, priceKey(asset, date), val, priceTTL).Err(); err != nil {
		logger.Warn("price cache write failed", "asset", asset, "date", date, "error", err)
	}
}
