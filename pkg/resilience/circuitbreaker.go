// Package resilience holds the fault-tolerance wrappers put around calls to
// backing stores: a consecutive-failure circuit breaker, capped exponential
// backoff, and a deadline wrapper that reports overruns as ErrTimeout.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling through while a Breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a Breaker. The numeric values are exported as a
// gauge, so they must not be reordered.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero values take the defaults noted.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// circuit. Default 5.
	Threshold int
	// Cooldown is how long the circuit stays open before probing. Default 30s.
	Cooldown time.Duration
	// Probes is the number of calls let through while half-open. Default 1.
	Probes int
	// IsFailure decides whether an error counts against the circuit. Nil
	// means every non-nil error does.
	IsFailure func(err error) bool
	// OnStateChange is called with the breaker locked after each transition.
	OnStateChange func(name string, from, to State)
	// Now replaces time.Now.
	Now func() time.Time
}

// Breaker stops calling a failing dependency after Threshold consecutive
// failures, then lets Probes calls through once Cooldown has passed. A
// successful probe closes the circuit; a failed one reopens it.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
}

// NewBreaker returns a closed Breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Do calls fn unless the circuit is open and returns fn's error unchanged.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// State returns the current state. An open circuit whose cooldown has
// passed still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		wait := b.cfg.Cooldown - b.cfg.Now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, b.name, wait.Round(time.Millisecond))
		}
		b.setState(StateHalfOpen)
		b.inFlight = 0
		b.logger.Info("circuit half-open, probing")
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.Probes {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, b.name)
		}
		b.inFlight++
	}
	return nil
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	failed := err != nil && (b.cfg.IsFailure == nil || b.cfg.IsFailure(err))
	if !failed {
		if b.state == StateHalfOpen {
			b.logger.Info("circuit closed")
		}
		b.failures = 0
		b.setState(StateClosed)
		return
	}
	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.open()
		b.logger.Warn("probe failed, circuit reopened", "error", err)
	case b.state == StateClosed && b.failures >= b.cfg.Threshold:
		b.open()
		b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "error", err)
	}
}

func (b *Breaker) open() {
	b.openedAt = b.cfg.Now()
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
