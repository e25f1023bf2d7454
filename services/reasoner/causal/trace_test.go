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

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time { return base.Add(offset) }

func record(t *testing.T, tr *Trace, id string, ts time.Time, preds ...string) {
	t.Helper()
	if err := tr.Record(Event{ID: id, Summary: "event " + id, Predecessors: preds, Timestamp: ts}); err != nil {
		t.Fatalf("record %s: %v", id, err)
	}
}

func TestRecord(t *testing.T) {
	t.Run("root and chained events", func(t *testing.T) {
		tr := NewTrace()
		record(t, tr, "a", at(0))
		record(t, tr, "b", at(time.Second), "a")
		record(t, tr, "c", at(2*time.Second), "a", "b")

		if tr.Len() != 3 {
			t.Errorf("len: got %d want 3", tr.Len())
		}
		preds, err := tr.Predecessors("c")
		if err != nil {
			t.Fatal(err)
		}
		if len(preds) != 2 {
			t.Errorf("predecessors of c: got %d want 2", len(preds))
		}
		succs, err := tr.Successors("a")
		if err != nil {
			t.Fatal(err)
		}
		if len(succs) != 2 {
			t.Errorf("successors of a: got %d want 2", len(succs))
		}
	})

	t.Run("unknown predecessor rejected", func(t *testing.T) {
		tr := NewTrace()
		err := tr.Record(Event{ID: "x", Timestamp: at(0), Predecessors: []string{"ghost"}})
		if !errors.Is(err, ErrUnknownPredecessor) {
			t.Errorf("expected ErrUnknownPredecessor, got %v", err)
		}
		if tr.Len() != 0 {
			t.Error("failed record must not mutate the trace")
		}
	})

	t.Run("equal timestamp rejected", func(t *testing.T) {
		tr := NewTrace()
		record(t, tr, "a", at(0))
		err := tr.Record(Event{ID: "b", Timestamp: at(0), Predecessors: []string{"a"}})
		if !errors.Is(err, ErrTimeOrderViolation) {
			t.Errorf("expected ErrTimeOrderViolation, got %v", err)
		}
	})

	t.Run("later predecessor rejected", func(t *testing.T) {
		tr := NewTrace()
		record(t, tr, "a", at(time.Minute))
		err := tr.Record(Event{ID: "b", Timestamp: at(0), Predecessors: []string{"a"}})
		if !errors.Is(err, ErrTimeOrderViolation) {
			t.Errorf("expected ErrTimeOrderViolation, got %v", err)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		tr := NewTrace()
		record(t, tr, "a", at(0))
		err := tr.Record(Event{ID: "a", Timestamp: at(time.Second)})
		if !errors.Is(err, ErrDuplicateEvent) {
			t.Errorf("expected ErrDuplicateEvent, got %v", err)
		}
	})

	t.Run("partial validation failure leaves no edges", func(t *testing.T) {
		tr := NewTrace()
		record(t, tr, "a", at(0))
		err := tr.Record(Event{ID: "b", Timestamp: at(time.Second), Predecessors: []string{"a", "ghost"}})
		if !errors.Is(err, ErrUnknownPredecessor) {
			t.Fatalf("expected ErrUnknownPredecessor, got %v", err)
		}
		succs, err := tr.Successors("a")
		if err != nil {
			t.Fatal(err)
		}
		if len(succs) != 0 {
			t.Errorf("edges leaked from failed record: %v", succs)
		}
	})
}

func TestNeighborhoodQueries_UnknownEvent(t *testing.T) {
	tr := NewTrace()
	if _, err := tr.Predecessors("nope"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Predecessors: expected ErrEventNotFound, got %v", err)
	}
	if _, err := tr.Successors("nope"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Successors: expected ErrEventNotFound, got %v", err)
	}
}

func TestTopologicalOrder(t *testing.T) {
	buildDiamond := func(t *testing.T) *Trace {
		//     a
		//    / \
		//   b   c
		//    \ /
		//     d
		tr := NewTrace()
		record(t, tr, "a", at(0))
		record(t, tr, "b", at(time.Second), "a")
		record(t, tr, "c", at(2*time.Second), "a")
		record(t, tr, "d", at(3*time.Second), "b", "c")
		return tr
	}

	t.Run("predecessors before successors", func(t *testing.T) {
		tr := buildDiamond(t)
		it := tr.TopologicalOrder()

		position := map[string]int{}
		i := 0
		for id, ok := it.Next(); ok; id, ok = it.Next() {
			position[id] = i
			i++
		}
		if i != 4 {
			t.Fatalf("yielded %d events, want 4", i)
		}
		for _, ev := range tr.Events() {
			for _, pid := range ev.Predecessors {
				if position[pid] >= position[ev.ID] {
					t.Errorf("%s yielded at %d, after successor %s at %d",
						pid, position[pid], ev.ID, position[ev.ID])
				}
			}
		}
	})

	t.Run("ties break by insertion order", func(t *testing.T) {
		tr := buildDiamond(t)
		it := tr.TopologicalOrder()

		var got []string
		for id, ok := it.Next(); ok; id, ok = it.Next() {
			got = append(got, id)
		}
		want := []string{"a", "b", "c", "d"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order: got %v want %v", got, want)
			}
		}
	})

	t.Run("restartable", func(t *testing.T) {
		tr := buildDiamond(t)
		it := tr.TopologicalOrder()

		first, _ := it.Next()
		it.Reset()
		again, ok := it.Next()
		if !ok || again != first {
			t.Errorf("after reset: got (%q, %v) want (%q, true)", again, ok, first)
		}
	})

	t.Run("snapshot ignores later records", func(t *testing.T) {
		tr := buildDiamond(t)
		it := tr.TopologicalOrder()
		record(t, tr, "e", at(4*time.Second), "d")

		count := 0
		for _, ok := it.Next(); ok; _, ok = it.Next() {
			count++
		}
		if count != 4 {
			t.Errorf("snapshot yielded %d events, want 4", count)
		}
	})

	t.Run("empty trace", func(t *testing.T) {
		it := NewTrace().TopologicalOrder()
		if _, ok := it.Next(); ok {
			t.Error("empty trace yielded an event")
		}
	})
}
