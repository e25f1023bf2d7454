// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reason implements the per-session reasoning state machine: the
// generate → evaluate → decide-termination loop over fixed-size chunks,
// carrying forward only a bounded, relevance-scored carryover between
// chunks so cost grows linearly with solution length.
//
// The external text generator is never called from here. The caller asks
// for the next prompt, runs its oracle, and submits the generated chunk;
// this package owns the bookkeeping and the termination decision.
package reason

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for session state transitions.
var (
	// ErrInvalidConfig is returned at creation when the chunk/carryover
	// budget or iteration cap is malformed. Non-retryable; the caller
	// must fix the parameters.
	ErrInvalidConfig = errors.New("invalid reasoning config")

	// ErrSessionTerminated is returned when an operation reaches a
	// session that already hit a terminal state.
	ErrSessionTerminated = errors.New("session terminated")
)

// TerminationReason is the closed set of ways a session ends.
type TerminationReason string

const (
	// TerminationGoalReached means the generated text matched the
	// caller-supplied completion signal.
	TerminationGoalReached TerminationReason = "goal-reached"

	// TerminationMaxIterations means the hard iteration cap was hit.
	TerminationMaxIterations TerminationReason = "max-iterations-reached"

	// TerminationCancelled means the caller cancelled the session.
	TerminationCancelled TerminationReason = "caller-cancelled"

	// TerminationFatalError means the external oracle failed
	// unrecoverably.
	TerminationFatalError TerminationReason = "fatal-error"
)

// Config fixes a session's reasoning budget for its whole lifetime.
type Config struct {
	// Problem is the opening problem statement, prepended to every prompt.
	Problem string

	// ChunkSize is the token budget of one generated chunk.
	ChunkSize int

	// CarryoverSize is the token budget retained between chunks. Must be
	// strictly less than ChunkSize; at most ChunkSize/2 is recommended.
	CarryoverSize int

	// MaxIterations is the hard cap on chunks. Must be at least 1.
	MaxIterations int

	// GoalSignal terminates the session with goal-reached when it appears
	// in a generated chunk. Empty disables goal detection.
	GoalSignal string

	// SemanticWeight is w in the hybrid relevance score
	// w*semantic + (1-w)*recency. Zero defaults to 0.6.
	SemanticWeight float64

	// RecentWindow is how many recent chunks feed the semantic term.
	// Zero defaults to 3.
	RecentWindow int

	// SinkSize is the count of leading and trailing tokens retained
	// unconditionally during carryover compression. Zero defaults to 8.
	SinkSize int
}

// withDefaults fills the optional tuning fields.
func (c Config) withDefaults() Config {
	if c.SemanticWeight <= 0 || c.SemanticWeight > 1 {
		c.SemanticWeight = 0.6
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = 3
	}
	if c.SinkSize <= 0 {
		c.SinkSize = 8
	}
	return c
}

// Validate enforces the creation invariants.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.CarryoverSize < 0 || c.CarryoverSize >= c.ChunkSize {
		return fmt.Errorf("%w: carryover_size %d must be in [0, chunk_size=%d)",
			ErrInvalidConfig, c.CarryoverSize, c.ChunkSize)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be at least 1, got %d",
			ErrInvalidConfig, c.MaxIterations)
	}
	return nil
}

// Entry is one chunk of the reasoning trace: the prompt issued, the text
// generated against it, and when it was accepted.
type Entry struct {
	Prompt    string    `json:"prompt"`
	Generated string    `json:"generated"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
}

// Trace is the ordered, append-only record of a session's chunks plus how
// the session ended. Termination is empty while the session is live; the
// value is a snapshot and immutable once the session finalizes.
type Trace struct {
	Entries     []Entry           `json:"entries"`
	Termination TerminationReason `json:"termination_reason,omitempty"`
}

// Decision is the synchronous result of a chunk submission.
type Decision struct {
	Terminated bool              `json:"terminated"`
	Reason     TerminationReason `json:"reason,omitempty"`
}
