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
	"sync/atomic"
)

// Mitigator is one session's combined storm protection: fusion, then
// rate limiting, then circuit breaking.
type Mitigator struct {
	config  Config
	limiter *RateLimiter
	breaker *CircuitBreaker
	fusion  *Fusion

	checks            atomic.Uint64
	rateRejections    atomic.Uint64
	circuitRejections atomic.Uint64
	successes         atomic.Uint64
	failures          atomic.Uint64
}

// Metrics is a point-in-time storm snapshot for one session.
type Metrics struct {
	CircuitState        string  `json:"circuit_state"`
	SuccessRate         float64 `json:"success_rate"`
	RejectionRate       float64 `json:"rejection_rate"`
	FusionEffectiveness float64 `json:"fusion_effectiveness"`
}

// NewMitigator builds the three primitives for a preset level. A nil
// clock defaults to SystemClock (tests inject a manual clock).
func NewMitigator(level Level, clock Clock) *Mitigator {
	cfg := PresetConfig(level)
	m := &Mitigator{config: cfg}
	if cfg.Disabled {
		return m
	}
	m.limiter = NewRateLimiter(cfg.RateCapacity, cfg.RefillRate, clock)
	m.breaker = NewCircuitBreaker(cfg.FailureThreshold, cfg.ResetTimeout, clock)
	m.fusion = NewFusion(cfg.FusionCapacity, cfg.FusionThreshold, cfg.FusionWindow, clock)
	return m
}

// Check gates one chunk submission.
//
// # Description
//
// The trigger's tokens are first pushed through fusion; a fused
// (near-duplicate) trigger does not charge the rate limiter, which keeps
// duplicate storms from causing false-positive throttling. The limiter
// is then checked before the breaker, and either rejection
// short-circuits. Nothing besides the limiter's own refill bookkeeping
// mutates on rejection.
//
// After the gated work completes, the caller must report the outcome via
// RecordSuccess or RecordFailure so the breaker stays accurate.
//
// # Inputs
//
//   - tokens: normalized trigger tokens for fusion (may be empty).
//   - cost: rate-limiter cost of the submission.
//
// # Outputs
//
//   - error: nil, ErrRateLimited, or ErrCircuitOpen.
func (m *Mitigator) Check(tokens []string, cost int) error {
	if m.config.Disabled {
		return nil
	}
	m.checks.Add(1)

	if m.fusion.Push(tokens) {
		cost = 0
	}
	if err := m.limiter.TryAcquire(cost); err != nil {
		m.rateRejections.Add(1)
		return err
	}
	if err := m.breaker.Check(); err != nil {
		m.circuitRejections.Add(1)
		return err
	}
	return nil
}

// RecordSuccess reports a successfully processed chunk.
func (m *Mitigator) RecordSuccess() {
	m.successes.Add(1)
	if !m.config.Disabled {
		m.breaker.RecordSuccess()
	}
}

// RecordFailure reports a failed chunk (including a timed-out or failed
// oracle call, which the caller maps to a failure).
func (m *Mitigator) RecordFailure() {
	m.failures.Add(1)
	if !m.config.Disabled {
		m.breaker.RecordFailure()
	}
}

// CircuitState exposes the breaker state; disabled mitigators report
// CLOSED.
func (m *Mitigator) CircuitState() CircuitState {
	if m.config.Disabled {
		return CircuitClosed
	}
	return m.breaker.State()
}

// Snapshot computes the session metrics surface.
func (m *Mitigator) Snapshot() Metrics {
	out := Metrics{CircuitState: m.CircuitState().String()}

	succ := m.successes.Load()
	fail := m.failures.Load()
	if total := succ + fail; total > 0 {
		out.SuccessRate = float64(succ) / float64(total)
	}
	checks := m.checks.Load()
	rejections := m.rateRejections.Load() + m.circuitRejections.Load()
	if checks > 0 {
		out.RejectionRate = float64(rejections) / float64(checks)
	}
	if !m.config.Disabled {
		out.FusionEffectiveness = m.fusion.Effectiveness()
	}
	return out
}
