// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package concept

import (
	"errors"
	"testing"
	"time"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/lattice"
)

func testLattice(t *testing.T, dim int) lattice.Lattice {
	t.Helper()
	l, err := lattice.NewHypercubic(dim)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestCrystallize(t *testing.T) {
	t.Run("stores quantized point", func(t *testing.T) {
		space := NewSpace(testLattice(t, 3))

		p, err := space.Crystallize("gradient descent", []float64{0.9, -1.2, 2.1})
		if err != nil {
			t.Fatal(err)
		}
		want := []int{1, -1, 2}
		for i := range want {
			if p.Coordinates[i] != want[i] {
				t.Errorf("coord %d: got %d want %d", i, p.Coordinates[i], want[i])
			}
		}
		if p.SourceText != "gradient descent" {
			t.Errorf("source text: got %q", p.SourceText)
		}
		if space.Statistics().PointCount != 1 {
			t.Errorf("point count: got %d want 1", space.Statistics().PointCount)
		}
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		space := NewSpace(testLattice(t, 3))

		_, err := space.Crystallize("x", []float64{1, 2})
		if !errors.Is(err, lattice.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
		if space.Statistics().PointCount != 0 {
			t.Error("failed crystallize must not store a point")
		}
	})
}

func TestQuerySimilar(t *testing.T) {
	t.Run("orders by lattice distance", func(t *testing.T) {
		space := NewSpace(testLattice(t, 2))
		mustCrystallize(t, space, "far", []float64{10, 10})
		mustCrystallize(t, space, "near", []float64{1, 0})
		mustCrystallize(t, space, "mid", []float64{3, 3})

		matches, err := space.QuerySimilar([]float64{0, 0}, 3)
		if err != nil {
			t.Fatal(err)
		}
		gotOrder := []string{matches[0].Point.SourceText, matches[1].Point.SourceText, matches[2].Point.SourceText}
		wantOrder := []string{"near", "mid", "far"}
		for i := range wantOrder {
			if gotOrder[i] != wantOrder[i] {
				t.Errorf("position %d: got %q want %q", i, gotOrder[i], wantOrder[i])
			}
		}
	})

	t.Run("ties break toward earlier crystallization", func(t *testing.T) {
		now := time.Unix(1000, 0)
		clock := func() time.Time {
			now = now.Add(time.Second)
			return now
		}
		space := newSpaceWithClock(testLattice(t, 2), clock)
		mustCrystallize(t, space, "first", []float64{2, 0})
		mustCrystallize(t, space, "second", []float64{0, 2})

		matches, err := space.QuerySimilar([]float64{0, 0}, 2)
		if err != nil {
			t.Fatal(err)
		}
		if matches[0].Point.SourceText != "first" {
			t.Errorf("tie-break: got %q want %q", matches[0].Point.SourceText, "first")
		}
	})

	t.Run("k larger than stored count returns all", func(t *testing.T) {
		space := NewSpace(testLattice(t, 2))
		mustCrystallize(t, space, "a", []float64{1, 1})
		mustCrystallize(t, space, "b", []float64{2, 2})

		matches, err := space.QuerySimilar([]float64{0, 0}, 50)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 2 {
			t.Errorf("got %d matches, want 2", len(matches))
		}
	})

	t.Run("empty space returns no matches", func(t *testing.T) {
		space := NewSpace(testLattice(t, 2))
		matches, err := space.QuerySimilar([]float64{0, 0}, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(matches) != 0 {
			t.Errorf("got %d matches, want 0", len(matches))
		}
	})
}

func TestStatistics(t *testing.T) {
	space := NewSpace(lattice.NewE8())
	stats := space.Statistics()
	if stats.LatticeType != "e8" {
		t.Errorf("lattice type: got %q", stats.LatticeType)
	}
	if stats.Dimension != 8 {
		t.Errorf("dimension: got %d", stats.Dimension)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(16)

	t.Run("deterministic", func(t *testing.T) {
		a := e.Embed("the same carryover text")
		b := e.Embed("the same carryover text")
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("coord %d differs: %v vs %v", i, a[i], b[i])
			}
		}
	})

	t.Run("empty text embeds to origin", func(t *testing.T) {
		v := e.Embed("")
		for i, x := range v {
			if x != 0 {
				t.Errorf("coord %d: got %v want 0", i, x)
			}
		}
	})

	t.Run("different texts usually differ", func(t *testing.T) {
		a := e.Embed("lattice quantization of concepts")
		b := e.Embed("token bucket rate limiting")
		same := true
		for i := range a {
			if a[i] != b[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("distinct texts produced identical embeddings")
		}
	})
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Hello, World! x2\n(done)")
	want := []string{"hello", "world", "x2", "done"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func mustCrystallize(t *testing.T, s *Space, text string, v []float64) {
	t.Helper()
	if _, err := s.Crystallize(text, v); err != nil {
		t.Fatal(err)
	}
}
