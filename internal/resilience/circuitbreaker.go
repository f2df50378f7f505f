// Package resilience guards the model-call path. A [CircuitBreaker] stops
// hammering a backend that keeps failing, and a [FallbackGroup] tries
// alternative providers, each behind its own breaker, in registration order.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen admits a bounded number of probe calls. Enough successes
	// close the breaker; a single failure re-opens it.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero fields take defaults.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// MaxFailures is how many consecutive failures trip the breaker.
	// Default: 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before it
	// starts probing. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is how many probe calls the half-open state admits.
	// Default: 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker around an unreliable call.
type CircuitBreaker struct {
	name     string
	trip     int
	cooldown time.Duration
	probeMax int
	now      func() time.Time

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probes     int
	probeFails int
}

// NewCircuitBreaker creates a closed breaker from cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:     cfg.Name,
		trip:     cfg.MaxFailures,
		cooldown: cfg.ResetTimeout,
		probeMax: cfg.HalfOpenMax,
		now:      time.Now,
	}
}

// Execute runs fn unless the breaker refuses the call, in which case it
// returns [ErrCircuitOpen] without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probing, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.observe(err, probing)
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (cb *CircuitBreaker) admit() (probing, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit half-open, probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeMax {
			return false, false
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, true
	}
	return false, true
}

// observe folds one call result into the breaker state.
func (cb *CircuitBreaker) observe(err error, probing bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil && probing:
		if cb.probes-cb.probeFails >= cb.probeMax {
			cb.state = StateClosed
			cb.failures = 0
			slog.Info("circuit closed after successful probes", "name", cb.name)
		}

	case err == nil:
		cb.failures = 0

	case probing:
		// One bad probe is enough to re-open.
		cb.probeFails++
		cb.state = StateOpen
		cb.openedAt = cb.now()
		slog.Warn("circuit re-opened by failed probe", "name", cb.name)

	default:
		cb.failures++
		if cb.failures >= cb.trip {
			cb.state = StateOpen
			cb.openedAt = cb.now()
			slog.Warn("circuit opened", "name", cb.name, "failures", cb.failures)
		}
	}
}

// State reports the breaker's mode. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit manually reset", "name", cb.name)
}
