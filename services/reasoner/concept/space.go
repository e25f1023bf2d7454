// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package concept maintains a session's similarity-searchable space of
// crystallized concepts.
//
// A concept is a piece of text plus the lattice point its embedding
// quantizes to. Similarity queries quantize the query embedding the same
// way and rank stored concepts by lattice distance, which makes lookup a
// cheap integer computation instead of a full vector scan.
//
// # Lifecycle
//
// A Space is created once per session with a fixed lattice and destroyed
// with the session. Its dimensionality never changes.
//
// # Thread Safety
//
// Space is safe for concurrent use; all state is guarded by a mutex.
// Sessions are normally driven by a single caller, but expiry and metrics
// can read concurrently.
package concept

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/lattice"
)

// Point is one crystallized concept: the lattice coordinates of its
// embedding, the source text it came from, and when it crystallized.
type Point struct {
	Coordinates  []int     `json:"coordinates"`
	SourceText   string    `json:"source_text"`
	Crystallized time.Time `json:"crystallized"`
}

// Match is a query result: a stored point and its squared lattice
// distance from the query.
type Match struct {
	Point    Point `json:"point"`
	Distance int64 `json:"distance"`
}

// Statistics reports observability counters for a Space.
type Statistics struct {
	PointCount  int    `json:"point_count"`
	LatticeType string `json:"lattice_type"`
	Dimension   int    `json:"dimension"`
}

// Space owns the growing concept collection for one session.
type Space struct {
	lat lattice.Lattice

	mu     sync.RWMutex
	points []Point
	clock  func() time.Time
}

// NewSpace creates an empty concept space over the given lattice.
func NewSpace(lat lattice.Lattice) *Space {
	return &Space{lat: lat, clock: time.Now}
}

// newSpaceWithClock is used by tests to control crystallization timestamps.
func newSpaceWithClock(lat lattice.Lattice, clock func() time.Time) *Space {
	return &Space{lat: lat, clock: clock}
}

// Lattice returns the space's fixed lattice descriptor.
func (s *Space) Lattice() lattice.Lattice { return s.lat }

// Crystallize quantizes the embedding onto the lattice and stores the
// resulting concept point.
//
// # Inputs
//
//   - text: the source text the embedding came from.
//   - embedding: vector of the lattice's dimensionality.
//
// # Outputs
//
//   - Point: the stored point (coordinates are a private copy).
//   - error: lattice.ErrDimensionMismatch on a wrong-sized embedding.
func (s *Space) Crystallize(text string, embedding []float64) (Point, error) {
	coords, err := s.lat.Quantize(embedding)
	if err != nil {
		return Point{}, fmt.Errorf("crystallize: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := Point{
		Coordinates:  coords,
		SourceText:   text,
		Crystallized: s.clock(),
	}
	s.points = append(s.points, p)
	return p, nil
}

// QuerySimilar returns the k stored points nearest to the query
// embedding in lattice distance.
//
// # Description
//
// The query embedding is quantized with the same decoder as stored
// points, then ranked by squared distance between lattice coordinates.
// Ties break toward the earlier crystallization timestamp. A k larger
// than the stored count returns all points; k <= 0 returns none.
//
// # Outputs
//
//   - []Match: up to k matches, nearest first.
//   - error: lattice.ErrDimensionMismatch on a wrong-sized embedding.
func (s *Space) QuerySimilar(embedding []float64, k int) ([]Match, error) {
	queryCoords, err := s.lat.Quantize(embedding)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	if k <= 0 {
		return []Match{}, nil
	}

	s.mu.RLock()
	matches := make([]Match, len(s.points))
	for i, p := range s.points {
		matches[i] = Match{
			Point:    p,
			Distance: lattice.SquaredDistance(queryCoords, p.Coordinates),
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Point.Crystallized.Before(matches[j].Point.Crystallized)
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Statistics reports the point count, lattice type, and dimensionality.
// Used for observability, not correctness.
func (s *Space) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Statistics{
		PointCount:  len(s.points),
		LatticeType: s.lat.Kind().String(),
		Dimension:   s.lat.Dimension(),
	}
}
