// Package cache keeps assembled filter results in Redis so repeated queries
// skip rule evaluation. Concurrent misses for the same query share one
// evaluation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/assembler"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/filter/rules"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "filter:"

// Backend is the key-value store results are kept in. *pkgredis.Client
// satisfies it; a missing key must yield an error for which
// pkgredis.IsNilError reports true.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultAssembler computes a Result on a cache miss.
type ResultAssembler interface {
	Assemble(ctx context.Context, q rules.Query) (*assembler.Result, error)
}

type QueryCache struct {
	backend Backend
	next    ResultAssembler
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithMetrics records hits and misses to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithClock replaces time.Now for the "today" label of cached results.
func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) { c.now = now }
}

// New wraps next with a cache whose entries live for ttl.
func New(backend Backend, next ResultAssembler, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		backend: backend,
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.WithComponent("result-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Assemble answers q from the cache, or from the wrapped assembler on a
// miss. Errors and results with failed evaluations are never stored.
func (c *QueryCache) Assemble(ctx context.Context, q rules.Query) (*assembler.Result, error) {
	key, err := Key(q)
	if err != nil {
		logger.FromContext(ctx).Warn("cache key failed", "error", err)
		return c.next.Assemble(ctx, q)
	}
	if res, ok := c.get(ctx, key); ok {
		c.count(&c.hits, "hit")
		return res, nil
	}
	c.count(&c.misses, "miss")

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if res, ok := c.get(ctx, key); ok {
			return res, nil
		}
		res, err := c.next.Assemble(ctx, q)
		if err != nil {
			return nil, err
		}
		if res.FailedCount == 0 {
			c.set(ctx, key, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*assembler.Result), nil
}

// Invalidate drops every cached result. It is called after the indexes are
// provisioned so results from an earlier catalog are not served.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counts since creation.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) (*assembler.Result, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var res assembler.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	res.TodayHumanDate = assembler.HumanDate(c.now())
	return &res, true
}

func (c *QueryCache) set(ctx context.Context, key string, res *assembler.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) count(n *atomic.Int64, result string) {
	n.Add(1)
	if c.metrics != nil {
		c.metrics.FilterCacheTotal.WithLabelValues(result).Inc()
	}
}

// Key derives the cache key for q. Queries that parse to the same date
// bound and the same rule slots share a key.
func Key(q rules.Query) (string, error) {
	canonical := struct {
		After *time.Time   `json:"after"`
		Rules []rules.Rule `json:"rules"`
	}{Rules: q.Rules}
	if q.After != nil {
		after := q.After.UTC()
		canonical.After = &after
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16]), nil
}
