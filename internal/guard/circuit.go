// Package guard implements the two gates the executor consults before
// spawning each task: a consecutive-failure circuit breaker (spec 4.1.8) and
// a cumulative-cost budget guard (spec 4.1.9). Structured the way the
// teacher's executor package holds small, independently testable state
// machines, enriched with the closed/open shape from the circuit breaker
// in the example corpus's cklxx-elephant.ai service stack (there is no
// half-open state: an open breaker closes again once its reset elapses).
package guard

import (
	"sync"
	"time"
)

// CircuitState is the lifecycle state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
)

func (s CircuitState) String() string {
	if s == CircuitOpen {
		return "open"
	}
	return "closed"
}

// CircuitBreaker tracks consecutive task failures and opens after a
// threshold is reached, self-closing once reset_timeout has elapsed (spec
// 4.1.8). There is one breaker per plan execution, not per task.
type CircuitBreaker struct {
	Threshold    int
	ResetTimeout time.Duration

	mu                sync.Mutex
	consecutiveFails  int
	openedAt          time.Time
	state             CircuitState
}

// NewCircuitBreaker builds a breaker with the spec's defaults
// (threshold=3, reset_timeout=300s).
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		Threshold:    3,
		ResetTimeout: 300 * time.Second,
		state:        CircuitClosed,
	}
}

// CanProceed reports whether another task may be attempted. While open, it
// self-closes once ResetTimeout has elapsed since it opened.
func (cb *CircuitBreaker) CanProceed(now time.Time) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitClosed {
		return true
	}
	if now.Sub(cb.openedAt) >= cb.ResetTimeout {
		cb.state = CircuitClosed
		cb.consecutiveFails = 0
		return true
	}
	return false
}

// RecordFailure increments the consecutive-failure counter and opens the
// circuit once it reaches Threshold.
func (cb *CircuitBreaker) RecordFailure(now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	if cb.consecutiveFails >= cb.Threshold {
		cb.state = CircuitOpen
		cb.openedAt = now
	}
}

// RecordSuccess resets the consecutive-failure counter and closes the
// circuit (spec 4.1.7: "Success: reset the circuit counter").
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// State returns the breaker's current state, for display/logging.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current streak length, for display.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}
