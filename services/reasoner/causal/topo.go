// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package causal

import "container/heap"

// TopoIterator yields event ids in an order consistent with the causal
// partial order: every predecessor appears before its successors, with
// ties broken by insertion order.
//
// The iterator is lazy (one event per Next call), finite, and restartable
// via Reset. It operates on a snapshot taken when the iterator was
// created; events recorded afterwards are not visited.
type TopoIterator struct {
	order      []string
	index      map[string]int // id -> insertion index
	successors map[string][]string
	indegree   map[string]int

	remaining map[string]int
	ready     *indexHeap
}

// TopologicalOrder creates a new iterator over the trace's current
// contents.
func (t *Trace) TopologicalOrder() *TopoIterator {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it := &TopoIterator{
		order:      append([]string(nil), t.order...),
		index:      make(map[string]int, len(t.order)),
		successors: make(map[string][]string, len(t.successors)),
		indegree:   make(map[string]int, len(t.order)),
	}
	for i, id := range it.order {
		it.index[id] = i
		it.indegree[id] = len(t.events[id].Predecessors)
	}
	for id, succs := range t.successors {
		it.successors[id] = append([]string(nil), succs...)
	}
	it.Reset()
	return it
}

// Reset rewinds the iterator to the beginning of the snapshot.
func (it *TopoIterator) Reset() {
	it.remaining = make(map[string]int, len(it.order))
	it.ready = &indexHeap{}
	for _, id := range it.order {
		it.remaining[id] = it.indegree[id]
		if it.indegree[id] == 0 {
			heap.Push(it.ready, readyEvent{id: id, index: it.index[id]})
		}
	}
}

// Next returns the next event id in topological order. The second return
// is false once the snapshot is exhausted.
func (it *TopoIterator) Next() (string, bool) {
	if it.ready.Len() == 0 {
		return "", false
	}
	next := heap.Pop(it.ready).(readyEvent)
	for _, sid := range it.successors[next.id] {
		// Successors recorded after the snapshot are absent from
		// remaining; skip them.
		if _, ok := it.remaining[sid]; !ok {
			continue
		}
		it.remaining[sid]--
		if it.remaining[sid] == 0 {
			heap.Push(it.ready, readyEvent{id: sid, index: it.index[sid]})
		}
	}
	return next.id, true
}

// readyEvent is a heap entry: an event whose predecessors have all been
// yielded, keyed by insertion index for deterministic tie-breaking.
type readyEvent struct {
	id    string
	index int
}

type indexHeap []readyEvent

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(readyEvent)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
