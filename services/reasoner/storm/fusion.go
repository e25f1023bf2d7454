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
	"sync"
	"time"
)

// PendingEvent is one reasoning trigger awaiting fusion: a normalized
// token signature plus its arrival time. Merged events keep the earlier
// arrival time and the union of signatures.
type PendingEvent struct {
	Signature  map[string]struct{}
	Arrival    time.Time
	MergedFrom int // how many raw events this entry absorbed (1 = none)
}

// Fusion deduplicates near-identical reasoning triggers before they reach
// the rate limiter.
//
// # Description
//
// Recent pending events live in a fixed-capacity ring buffer. Each pushed
// event is compared against the window: two events fuse iff the Jaccard
// similarity of their token signatures meets the threshold AND their
// arrival times fall within the fusion window. Fusion is idempotent:
// merging the same pair again produces the same merged event, because the
// merge is a set union keeping the earlier timestamp.
//
// The window is an arena of fixed capacity, so steady-state fusion is
// O(window) per push with no allocation beyond the event itself.
//
// # Thread Safety
//
// Safe for concurrent use.
type Fusion struct {
	capacity   int
	threshold  float64
	timeWindow time.Duration
	clock      Clock

	mu      sync.Mutex
	window  []PendingEvent // most recent events, oldest first
	pushed  uint64
	fused   uint64
}

// NewFusion creates a deduplicator holding up to capacity pending events.
// threshold is the minimum Jaccard similarity for fusing; timeWindow is
// the maximum arrival-time gap between fusable events.
func NewFusion(capacity int, threshold float64, timeWindow time.Duration, clock Clock) *Fusion {
	if capacity <= 0 {
		capacity = 32
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Fusion{
		capacity:   capacity,
		threshold:  threshold,
		timeWindow: timeWindow,
		clock:      clock,
		window:     make([]PendingEvent, 0, capacity),
	}
}

// Push inserts an event built from the given normalized tokens and fuses
// it against the window.
//
// # Outputs
//
//   - bool: true if the event fused into an existing pending event (a
//     near-duplicate trigger), false if it entered the window as new.
func (f *Fusion) Push(tokens []string) bool {
	sig := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		sig[tok] = struct{}{}
	}
	ev := PendingEvent{Signature: sig, Arrival: f.clock.Now(), MergedFrom: 1}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed++

	for i := range f.window {
		other := &f.window[i]
		gap := ev.Arrival.Sub(other.Arrival)
		if gap < 0 {
			gap = -gap
		}
		if gap > f.timeWindow {
			continue
		}
		if jaccard(ev.Signature, other.Signature) < f.threshold {
			continue
		}
		// Merge in place: union signature, earlier timestamp kept.
		for tok := range ev.Signature {
			other.Signature[tok] = struct{}{}
		}
		if ev.Arrival.Before(other.Arrival) {
			other.Arrival = ev.Arrival
		}
		other.MergedFrom++
		f.fused++
		return true
	}

	if len(f.window) == f.capacity {
		copy(f.window, f.window[1:])
		f.window = f.window[:f.capacity-1]
	}
	f.window = append(f.window, ev)
	return false
}

// Pending returns the number of distinct events currently in the window.
func (f *Fusion) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.window)
}

// Stats returns the raw event count pushed and how many of those fused
// into an existing event.
func (f *Fusion) Stats() (pushed, fused uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushed, f.fused
}

// Effectiveness is the fraction of pushed events absorbed by fusion.
// Zero pushes report zero.
func (f *Fusion) Effectiveness() float64 {
	pushed, fused := f.Stats()
	if pushed == 0 {
		return 0
	}
	return float64(fused) / float64(pushed)
}

// jaccard computes |a ∩ b| / |a ∪ b|. Two empty signatures count as
// identical (similarity 1).
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}
