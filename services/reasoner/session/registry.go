// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the registry mapping session ids to per-session
// engine state, plus the background scheduler that expires idle sessions.
//
// The registry is an explicit object handed to every operation, never a
// process-wide singleton, so tests instantiate independent registries.
// It is the only structure shared across sessions and therefore the only
// one needing cross-session synchronization.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/causal"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/concept"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/reason"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/storm"
)

// ErrSessionNotFound is returned for lookups of absent or already-removed
// session ids. Non-retryable; the reference is stale.
var ErrSessionNotFound = errors.New("session not found")

// Session bundles the four per-session engine objects. All four are
// created together at session start and destroyed together at teardown;
// partial teardown is never observable.
type Session struct {
	ID        string
	State     *reason.State
	Storm     *storm.Mitigator
	Causal    *causal.Trace // nil unless causal tracing was requested
	Concepts  *concept.Space
	CreatedAt time.Time
}

// Registry is the concurrent session table.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	clock    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		clock:    time.Now,
	}
}

// Put inserts a fully constructed session. Insertion of a duplicate id is
// a programming error and returns false without replacing the original.
func (r *Registry) Put(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return false
	}
	r.sessions[s.ID] = s
	return true
}

// Get looks up a session by id.
//
// # Outputs
//
//   - *Session: the live session.
//   - error: ErrSessionNotFound if absent.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove tears the session down and returns it. The removal is atomic
// with respect to concurrent lookups: after Remove returns, Get fails.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return s, nil
}

// ExpireStale removes every session whose last operation finished more
// than maxAge ago.
//
// # Description
//
// The idle check and the removal happen under one write lock, so a
// session cannot be picked up by a concurrent lookup between the check
// and the delete. Expired sessions are cancelled so any operation still
// holding a reference observes the terminal state.
//
// # Outputs
//
//   - []*Session: the removed sessions, for post-teardown hooks.
func (r *Registry) ExpireStale(maxAge time.Duration) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock().Add(-maxAge)
	var expired []*Session
	for id, s := range r.sessions {
		if s.State.LastUsed().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		s.State.Cancel()
	}
	return expired
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns a snapshot of live session ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}
