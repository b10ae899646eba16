package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff is a capped exponential retry schedule. Zero values take the
// defaults noted.
type Backoff struct {
	// Attempts is the total number of calls, the first included. Default 3.
	Attempts int
	// Base is the delay after the first failure. Default 100ms.
	Base time.Duration
	// Max caps every delay. Default 5s.
	Max time.Duration
	// Jitter spreads each delay by up to this fraction either way. Default 0.1.
	Jitter float64
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Base <= 0 {
		b.Base = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Jitter <= 0 {
		b.Jitter = 0.1
	}
	return b
}

// Delay returns the wait after the given failed attempt, counting from 1.
// It doubles per attempt and never exceeds Max.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.withDefaults()
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if spread := float64(d) * b.Jitter; spread > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return min(max(d, 0), b.Max)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or the
// schedule runs out. The last error is wrapped with the attempt count.
func Retry(ctx context.Context, name string, b Backoff, fn func() error) error {
	b = b.withDefaults()
	log := slog.Default().With("component", "retry", "operation", name)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: giving up after %d attempts: %w", name, attempt, err)
		}
		delay := b.Delay(attempt)
		log.Warn("attempt failed", "attempt", attempt, "of", b.Attempts, "next_delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w (last error: %v)", name, ctx.Err(), err)
		}
	}
}
