// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storm

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
//
// # State Diagram
//
//	   ┌─────────────────────────────────────┐
//	   │                                     │
//	   ▼                                     │
//	CLOSED ──[failure threshold]──► OPEN ───┘
//	   ▲                              │
//	   │                              │
//	   └───[success]◄── HALF_OPEN ◄──┘
//	                    [timeout]
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota

	// CircuitOpen means the circuit has tripped and requests are rejected.
	CircuitOpen

	// CircuitHalfOpen means one probe is allowed to test recovery.
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// CircuitBreaker prevents cascading failures by rejecting work while the
// generation oracle is known to be failing.
//
// # Description
//
// Closed: requests flow, consecutive failures are counted. Reaching the
// failure threshold opens the circuit and stamps the open time. Open:
// requests are rejected until the reset timeout elapses, then the breaker
// goes half-open and admits exactly one probe. A probe success closes the
// circuit; a probe failure (or any failure in half-open) reopens it
// immediately.
//
// # Thread Safety
//
// Safe for concurrent use.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	clock            Clock

	mu            sync.Mutex
	state         CircuitState
	failures      int
	openSince     time.Time
	probeInFlight bool
}

// NewCircuitBreaker creates a closed breaker. Zero or negative inputs
// fall back to a threshold of 5 and a 30-second reset timeout; a nil
// clock defaults to SystemClock.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, clock Clock) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		clock:            clock,
		state:            CircuitClosed,
	}
}

// Check reports whether a request may proceed.
//
// In Open state, once the reset timeout has elapsed the breaker
// transitions to HalfOpen and admits exactly one probe; further Check
// calls reject until that probe's outcome is recorded.
//
// # Outputs
//
//   - error: nil if allowed, ErrCircuitOpen otherwise.
func (cb *CircuitBreaker) Check() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if cb.clock.Now().Sub(cb.openSince) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.probeInFlight = true
			return nil
		}
		return fmt.Errorf("%w: retry after %s", ErrCircuitOpen, cb.resetTimeout)

	case CircuitHalfOpen:
		if cb.probeInFlight {
			return fmt.Errorf("%w: probe in flight", ErrCircuitOpen)
		}
		cb.probeInFlight = true
		return nil

	default:
		return fmt.Errorf("%w: invalid state %d", ErrCircuitOpen, cb.state)
	}
}

// RecordSuccess resets the consecutive failure count and, if half-open,
// closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
		cb.probeInFlight = false
	}
}

// RecordFailure increments the consecutive failure count. Reaching the
// threshold opens the circuit; a single failure in half-open reopens it
// immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.failureThreshold {
			cb.open()
		}
	case CircuitHalfOpen:
		cb.open()
	}
}

// open transitions to Open and stamps the open time. Caller holds the lock.
func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.openSince = cb.clock.Now()
	cb.probeInFlight = false
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
