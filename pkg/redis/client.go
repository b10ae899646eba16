// Package redis wraps go-redis/v9 with the commands this service issues:
// the RedisBloom BF.* family for the membership store and plain string keys
// for the result cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/config"
	"github.com/redis/go-redis/v9"
)

const (
	dialTimeout = 2 * time.Second
	pingTimeout = 5 * time.Second
	scanBatch   = 100
)

type Client struct {
	rdb *redis.Client
}

// NewClient connects and checks the server answers PING within pingTimeout.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	c := Dial(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", cfg.Addr, err)
	}
	return c, nil
}

// Dial returns a client without contacting the server. Commands are not
// retried by go-redis; callers own retry policy.
func Dial(cfg config.RedisConfig) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
		MaxRetries:  -1,
	})}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// IsNilError reports whether err means the key does not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern unlinks every key matching the glob pattern, one SCAN page
// at a time, and returns how many were removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			removed += n
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// BFReserve creates an empty Bloom filter for capacity items at errorRate.
// It fails if key already exists.
func (c *Client) BFReserve(ctx context.Context, key string, errorRate float64, capacity int64) error {
	return c.rdb.BFReserve(ctx, key, errorRate, capacity).Err()
}

func (c *Client) BFMAdd(ctx context.Context, key string, items ...string) error {
	return c.rdb.BFMAdd(ctx, key, anySlice(items)...).Err()
}

// BFMExists answers one membership test per item, in item order.
func (c *Client) BFMExists(ctx context.Context, key string, items ...string) ([]bool, error) {
	return c.rdb.BFMExists(ctx, key, anySlice(items)...).Result()
}

func anySlice(items []string) []interface{} {
	out := make([]interface{}, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
