// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storm protects a reasoning session from overload and cascading
// failure. It composes three primitives:
//
//   - RateLimiter: a token bucket gating chunk submissions by cost.
//   - CircuitBreaker: a three-state breaker isolating a failing oracle.
//   - Fusion: a ring-buffer deduplicator that merges near-duplicate
//     reasoning triggers before they can consume rate tokens.
//
// The combined Mitigator checks RateLimiter then CircuitBreaker; either
// rejection short-circuits with a typed error so callers can implement
// their own backoff. Rejections are transient: the breaker self-heals
// after its reset timeout and the bucket refills with time.
package storm

import (
	"errors"
	"time"
)

// Typed rejections surfaced by Check. Both are transient; callers should
// back off and retry rather than abort the session.
var (
	// ErrRateLimited is returned when the token bucket cannot cover the
	// requested cost. No state mutates on rejection.
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen is returned while the circuit breaker is open and
	// the reset timeout has not yet elapsed.
	ErrCircuitOpen = errors.New("circuit open")
)

// Clock abstracts time for deterministic tests. Production code uses
// SystemClock; tests inject a manual clock and advance it explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
