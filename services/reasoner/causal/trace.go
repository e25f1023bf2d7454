// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package causal records the causal structure of a reasoning session as a
// directed acyclic graph of events with explicit predecessor links.
//
// The trace is append-only: an event may only reference predecessors that
// are already present, and every predecessor must carry a strictly earlier
// timestamp. Those two rules make cycles unrepresentable, so traversal
// never needs cycle detection.
//
// # Thread Safety
//
// Trace is safe for concurrent use. Recording takes a write lock; queries
// and iteration work on snapshots taken under a read lock.
package causal

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors for trace operations. Both indicate a bug in the
// calling sequence, not a recoverable condition.
var (
	// ErrUnknownPredecessor is returned when a recorded event references
	// a predecessor id that is not yet in the trace.
	ErrUnknownPredecessor = errors.New("predecessor not present in trace")

	// ErrTimeOrderViolation is returned when a predecessor's timestamp is
	// not strictly earlier than the event being recorded.
	ErrTimeOrderViolation = errors.New("predecessor timestamp not earlier than event")

	// ErrDuplicateEvent is returned when an event id is recorded twice.
	ErrDuplicateEvent = errors.New("duplicate event id")

	// ErrEventNotFound is returned by neighborhood queries for an id that
	// was never recorded.
	ErrEventNotFound = errors.New("event not found in trace")
)

// Event is one recorded causal event.
type Event struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Predecessors []string  `json:"predecessors,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Trace is the DAG formed by all causal events of one session.
type Trace struct {
	mu         sync.RWMutex
	events     map[string]Event
	order      []string            // insertion order of event ids
	successors map[string][]string // forward edges, insertion-ordered
}

// NewTrace creates an empty causal trace.
func NewTrace() *Trace {
	return &Trace{
		events:     make(map[string]Event),
		successors: make(map[string][]string),
	}
}

// Record appends an event and its predecessor edges.
//
// # Description
//
// Validation happens before any mutation, so a failed Record leaves the
// trace untouched. Predecessors must already exist (append-only, no
// forward references) and must be strictly earlier in time.
//
// # Inputs
//
//   - ev: the event to append. Predecessors may be empty for roots.
//
// # Outputs
//
//   - error: ErrDuplicateEvent, ErrUnknownPredecessor, or
//     ErrTimeOrderViolation. Nil on success.
func (t *Trace) Record(ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.events[ev.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}
	for _, pid := range ev.Predecessors {
		pred, ok := t.events[pid]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPredecessor, pid)
		}
		if !pred.Timestamp.Before(ev.Timestamp) {
			return fmt.Errorf("%w: %s at %s vs event at %s",
				ErrTimeOrderViolation, pid, pred.Timestamp.Format(time.RFC3339Nano),
				ev.Timestamp.Format(time.RFC3339Nano))
		}
	}

	t.events[ev.ID] = ev
	t.order = append(t.order, ev.ID)
	for _, pid := range ev.Predecessors {
		t.successors[pid] = append(t.successors[pid], ev.ID)
	}
	return nil
}

// Predecessors returns the direct causal predecessors of an event.
func (t *Trace) Predecessors(id string) ([]Event, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ev, ok := t.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	out := make([]Event, 0, len(ev.Predecessors))
	for _, pid := range ev.Predecessors {
		out = append(out, t.events[pid])
	}
	return out, nil
}

// Successors returns the direct causal successors of an event.
func (t *Trace) Successors(id string) ([]Event, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.events[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	ids := t.successors[id]
	out := make([]Event, 0, len(ids))
	for _, sid := range ids {
		out = append(out, t.events[sid])
	}
	return out, nil
}

// Event returns a recorded event by id.
func (t *Trace) Event(id string) (Event, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ev, ok := t.events[id]
	return ev, ok
}

// Len returns the number of recorded events.
func (t *Trace) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Events returns all events in insertion order. The slice is a snapshot;
// mutating it does not affect the trace.
func (t *Trace) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Event, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.events[id])
	}
	return out
}
