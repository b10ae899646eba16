package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/errors"
)

// Call runs fn with a context that expires after timeout and returns its
// result. If the deadline passes first, Call returns at once with an error
// wrapping both ErrTimeout and context.DeadlineExceeded; fn's late result is
// discarded. A non-positive timeout calls fn directly.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, timedOut(name, timeout)
		}
		return r.v, r.err
	case <-ctx.Done():
		if err := ctx.Err(); !errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		return zero, timedOut(name, timeout)
	}
}

func timedOut(name string, limit time.Duration) error {
	return fmt.Errorf("%s: %w: %w (limit %v)", name, apperrors.ErrTimeout, context.DeadlineExceeded, limit)
}
