package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/internal/jobs"
	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/resilience"
)

// Options bounds how long and how often the oracle will wait on a failing
// store.
type Options struct {
	Timeout             time.Duration
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// Oracle answers membership queries against a Store with a per-call timeout
// and a circuit breaker, so an unreachable store fails fast.
type Oracle struct {
	store   Store
	timeout time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New wraps store. m may be nil.
func New(store Store, opts Options, m *metrics.Metrics) *Oracle {
	o := &Oracle{
		store:   store,
		timeout: opts.Timeout,
		metrics: m,
		logger:  slog.Default().With("component", "membership-oracle"),
	}
	o.breaker = resilience.NewBreaker("membership-oracle", resilience.BreakerConfig{
		Threshold: opts.BreakerThreshold,
		Cooldown:  opts.BreakerResetTimeout,
		IsFailure: func(err error) bool {
			// caller cancellation is not a store failure
			return !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return o
}

// TestAll reports, for each word in order, whether it is possibly present in
// the job's field. An empty word list returns an empty result without
// touching the store. Any failure wraps ErrOracleUnavailable.
func (o *Oracle) TestAll(ctx context.Context, id jobs.ID, field jobs.Field, words []string) ([]bool, error) {
	if len(words) == 0 {
		return []bool{}, nil
	}
	key := Key(id, field)
	start := time.Now()
	var res []bool
	err := o.breaker.Do(func() error {
		r, err := resilience.Call(ctx, o.timeout, "membership test "+key, func(ctx context.Context) ([]bool, error) {
			return o.store.TestAll(ctx, key, words...)
		})
		if err != nil {
			return err
		}
		if len(r) != len(words) {
			return fmt.Errorf("store answered %d of %d words", len(r), len(words))
		}
		res = r
		return nil
	})
	o.observe(start, err)
	if err != nil {
		o.logger.Debug("membership test failed", "key", key, "words", len(words), "error", err)
		return nil, fmt.Errorf("testing %s: %w: %w", key, apperrors.ErrOracleUnavailable, err)
	}
	return res, nil
}

// BreakerState reports the circuit breaker state for health checks.
func (o *Oracle) BreakerState() resilience.State {
	return o.breaker.State()
}

func (o *Oracle) observe(start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.OracleLatency.Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.OracleCallsTotal.WithLabelValues(status).Inc()
}
