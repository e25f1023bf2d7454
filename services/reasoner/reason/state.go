// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reason

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// State is the live reasoning state of one session.
//
// # Invariants
//
//   - carryover_size < chunk_size (enforced at creation)
//   - current iteration never exceeds the configured cap
//   - once terminal, no further chunks are accepted
//
// # Thread Safety
//
// Safe for concurrent use. Sessions are normally driven by one caller at
// a time, but cancellation and expiry checks may arrive concurrently and
// must observe the terminal state.
type State struct {
	cfg   Config
	clock func() time.Time

	mu             sync.Mutex
	iteration      int
	tokensConsumed int
	carryover      string
	recentChunks   []string
	lastPrompt     string
	entries        []Entry
	termination    TerminationReason
	lastUsed       time.Time
}

// NewState validates the config and creates a fresh session state.
//
// # Outputs
//
//   - *State: iteration 0, empty carryover, live.
//   - error: ErrInvalidConfig; no state is created on failure.
func NewState(cfg Config) (*State, error) {
	return newStateWithClock(cfg, time.Now)
}

// newStateWithClock is the test seam for deterministic timestamps.
func newStateWithClock(cfg Config, clock func() time.Time) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &State{
		cfg:      cfg.withDefaults(),
		clock:    clock,
		lastUsed: clock(),
	}, nil
}

// NextPrompt builds the generation prompt for the upcoming chunk: the
// fixed problem statement plus the bounded carryover of the previous
// chunk (nothing extra on iteration 1).
//
// # Outputs
//
//   - string: the prompt to hand to the sampling oracle.
//   - error: ErrSessionTerminated if the session already ended.
func (s *State) NextPrompt() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.termination != "" {
		return "", fmt.Errorf("%w: %s", ErrSessionTerminated, s.termination)
	}
	s.lastUsed = s.clock()
	s.lastPrompt = s.buildPrompt()
	return s.lastPrompt, nil
}

// buildPrompt assembles problem + carryover. Caller holds the lock.
func (s *State) buildPrompt() string {
	var b strings.Builder
	b.WriteString(s.cfg.Problem)
	if s.carryover != "" {
		b.WriteString("\n\nContext carried over from your previous reasoning:\n")
		b.WriteString(s.carryover)
		b.WriteString("\n\nContinue reasoning from here.")
	}
	return b.String()
}

// SubmitChunk accepts a newly generated chunk.
//
// # Description
//
// Appends a trace entry, charges the token counter, derives the next
// carryover from the chunk (relevance-scored, sink-compressed), advances
// the iteration, and evaluates the termination policy. Goal detection
// takes precedence over the iteration cap when both fire on the same
// chunk.
//
// # Outputs
//
//   - Decision: continue, or terminate with a reason.
//   - error: ErrSessionTerminated if the session already ended.
func (s *State) SubmitChunk(generated string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.termination != "" {
		return Decision{}, fmt.Errorf("%w: %s", ErrSessionTerminated, s.termination)
	}
	s.lastUsed = s.clock()

	prompt := s.lastPrompt
	if prompt == "" {
		prompt = s.buildPrompt()
	}
	s.iteration++
	s.tokensConsumed += len(strings.Fields(generated))
	s.entries = append(s.entries, Entry{
		Prompt:    prompt,
		Generated: generated,
		Iteration: s.iteration,
		Timestamp: s.clock(),
	})
	s.lastPrompt = ""

	s.carryover = deriveCarryover(generated, s.recentChunks, s.cfg)
	s.recentChunks = append(s.recentChunks, generated)
	if len(s.recentChunks) > s.cfg.RecentWindow {
		s.recentChunks = s.recentChunks[len(s.recentChunks)-s.cfg.RecentWindow:]
	}

	switch {
	case s.cfg.GoalSignal != "" && strings.Contains(generated, s.cfg.GoalSignal):
		s.termination = TerminationGoalReached
	case s.iteration >= s.cfg.MaxIterations:
		s.termination = TerminationMaxIterations
	}

	if s.termination != "" {
		return Decision{Terminated: true, Reason: s.termination}, nil
	}
	return Decision{}, nil
}

// Cancel performs the terminal caller-cancelled transition. Returns true
// if this call terminated the session, false if it was already terminal.
// The transition is observable by any holder of this state.
func (s *State) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.termination != "" {
		return false
	}
	s.termination = TerminationCancelled
	s.lastUsed = s.clock()
	return true
}

// FailFatal records an unrecoverable oracle failure as the terminal
// state. Returns true if this call terminated the session.
func (s *State) FailFatal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.termination != "" {
		return false
	}
	s.termination = TerminationFatalError
	s.lastUsed = s.clock()
	return true
}

// Snapshot returns the trace so far (a copy). After termination the
// snapshot is the final, immutable reasoning trace.
func (s *State) Snapshot() Trace {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	return Trace{Entries: entries, Termination: s.termination}
}

// Terminated reports whether the session reached a terminal state.
func (s *State) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termination != ""
}

// Iteration returns the number of accepted chunks.
func (s *State) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// TokensConsumed returns the running token total across all chunks.
func (s *State) TokensConsumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokensConsumed
}

// Carryover returns the current bounded carryover text.
func (s *State) Carryover() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carryover
}

// LastUsed returns when the session last serviced an operation. The
// expiry scheduler uses it to find provably idle sessions.
func (s *State) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// ChunkSize returns the configured per-chunk token budget.
func (s *State) ChunkSize() int { return s.cfg.ChunkSize }
