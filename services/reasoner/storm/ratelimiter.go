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

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket over golang.org/x/time/rate with an
// injectable clock.
//
// # Description
//
// The bucket holds up to capacity tokens and refills at refillRate
// tokens per second, saturating at capacity no matter how long the
// limiter sits idle. TryAcquire is pure on rejection: a request the
// bucket cannot cover mutates nothing beyond the refill bookkeeping
// the underlying limiter performs.
//
// # Thread Safety
//
// Safe for concurrent use; rate.Limiter locks internally.
type RateLimiter struct {
	limiter  *rate.Limiter
	capacity int
	clock    Clock
}

// NewRateLimiter creates a bucket with the given capacity (tokens) and
// refill rate (tokens per second). The bucket starts full. A nil clock
// defaults to SystemClock.
func NewRateLimiter(capacity int, refillRate float64, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(refillRate), capacity),
		capacity: capacity,
		clock:    clock,
	}
}

// TryAcquire deducts cost tokens if available.
//
// # Outputs
//
//   - error: nil if the tokens were deducted, ErrRateLimited otherwise.
func (r *RateLimiter) TryAcquire(cost int) error {
	if cost <= 0 {
		return nil
	}
	if !r.limiter.AllowN(r.clock.Now(), cost) {
		return fmt.Errorf("%w: cost=%d capacity=%d", ErrRateLimited, cost, r.capacity)
	}
	return nil
}

// Available reports the tokens currently in the bucket, after refill.
// Observability only; the value is stale the moment it returns.
func (r *RateLimiter) Available() float64 {
	return r.limiter.TokensAt(r.clock.Now())
}

// Capacity returns the bucket's maximum token count.
func (r *RateLimiter) Capacity() int { return r.capacity }
