// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks requests until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is short-circuited.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker tuning.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a half-open probe.
	ResetTimeout time.Duration

	// OnStateChange, if set, is invoked on every transition.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker stops calling a repeatedly failing dependency for a cooldown
// period. Closed passes calls through and counts consecutive failures; at the
// threshold it opens and short-circuits; after the reset timeout one probe is
// allowed (half-open); success closes the circuit, failure re-opens it.
// Safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig

	mu              sync.Mutex
	state           CircuitState
	failures        int
	lastFailureTime time.Time
	probing         bool
}

// NewCircuitBreaker creates a circuit breaker with the given name.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  CircuitClosed,
	}
}

// Do executes fn if the circuit allows it. While open, it returns
// ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// allow checks whether a request may proceed, moving open to half-open when
// the reset timeout has elapsed. Half-open admits exactly one in-flight
// probe; concurrent callers are short-circuited until the probe settles.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.ResetTimeout {
			cb.transition(CircuitHalfOpen)
			cb.probing = true
			return true
		}
		return false
	}
	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.probing = false
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Probe failed, back to open for another cooldown window
		cb.transition(CircuitOpen)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current consecutive-failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to closed with zeroed counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}
