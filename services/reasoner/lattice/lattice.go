// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lattice implements nearest-point quantization onto geometric
// lattices. It is the foundation of concept similarity: a continuous
// embedding vector is snapped to the nearest point of a discrete lattice,
// and similarity queries compare lattice points instead of raw vectors.
//
// # Supported Lattices
//
//   - Hypercubic(n): the integer lattice Z^n. Round each coordinate.
//   - ClosePacking(n): the checkerboard lattice D_n (integer points with
//     even coordinate sum). Closed-form decode: round everything, then fix
//     the worst-rounded coordinate if the sum came out odd.
//   - E8: the union of D8 and the shifted coset D8 + (1/2, ..., 1/2).
//     Decoded by comparing the two candidates, not by search.
//   - Leech: 24-dimensional; decoded through its defining code (the
//     extended binary Golay code) by nearest-codeword search over the
//     4096 codewords. Bounded by the code structure, not a point scan.
//
// # Coordinate Representation
//
// Quantized points are integer vectors. Lattices with half-integer points
// (E8) store doubled coordinates; Scale() reports the denominator so
// distances stay comparable within one lattice.
//
// # Thread Safety
//
// Lattice values are immutable after construction and safe for concurrent
// use. The Golay codeword table is built once, lazily.
package lattice

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for lattice operations.
var (
	// ErrDimensionMismatch is returned when an input vector's length does
	// not match the lattice dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension does not match lattice")

	// ErrInvalidDimension is returned when constructing a parameterized
	// lattice with a non-positive dimension.
	ErrInvalidDimension = errors.New("lattice dimension must be positive")

	// ErrUnknownType is returned when parsing an unrecognized lattice
	// type name.
	ErrUnknownType = errors.New("unknown lattice type")
)

// Kind identifies the lattice family.
//
// The set is closed: each kind has exactly one decoder, selected once at
// session creation so the hot path pays no dispatch cost beyond a switch.
type Kind int

const (
	// Hypercubic is the integer lattice Z^n.
	Hypercubic Kind = iota

	// ClosePacking is the checkerboard lattice D_n.
	ClosePacking

	// E8 is the eight-dimensional even unimodular lattice.
	E8

	// Leech is the 24-dimensional Leech-family lattice built from the
	// extended binary Golay code (Construction A).
	Leech
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Hypercubic:
		return "hypercubic"
	case ClosePacking:
		return "close_packing"
	case E8:
		return "e8"
	case Leech:
		return "leech"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Lattice is an immutable lattice descriptor: a kind plus its fixed
// dimensionality. Construct via the New* helpers or Parse.
type Lattice struct {
	kind Kind
	dim  int
}

// NewHypercubic returns the integer lattice Z^n.
func NewHypercubic(n int) (Lattice, error) {
	if n <= 0 {
		return Lattice{}, fmt.Errorf("%w: got %d", ErrInvalidDimension, n)
	}
	return Lattice{kind: Hypercubic, dim: n}, nil
}

// NewClosePacking returns the checkerboard lattice D_n.
func NewClosePacking(n int) (Lattice, error) {
	if n <= 0 {
		return Lattice{}, fmt.Errorf("%w: got %d", ErrInvalidDimension, n)
	}
	return Lattice{kind: ClosePacking, dim: n}, nil
}

// NewE8 returns the E8 lattice. Dimensionality is fixed at 8.
func NewE8() Lattice {
	return Lattice{kind: E8, dim: 8}
}

// NewLeech returns the Golay-code lattice. Dimensionality is fixed at 24.
func NewLeech() Lattice {
	return Lattice{kind: Leech, dim: 24}
}

// Parse builds a Lattice from a configuration name.
//
// # Inputs
//
//   - name: one of "hypercubic", "close_packing", "e8", "leech".
//   - dim: dimensionality for the parameterized kinds; ignored for e8
//     and leech.
//
// # Outputs
//
//   - Lattice: the parsed descriptor.
//   - error: ErrUnknownType or ErrInvalidDimension.
func Parse(name string, dim int) (Lattice, error) {
	switch name {
	case "hypercubic":
		return NewHypercubic(dim)
	case "close_packing":
		return NewClosePacking(dim)
	case "e8":
		return NewE8(), nil
	case "leech":
		return NewLeech(), nil
	default:
		return Lattice{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

// Kind returns the lattice family.
func (l Lattice) Kind() Kind { return l.kind }

// Dimension returns the fixed coordinate dimensionality.
func (l Lattice) Dimension() int { return l.dim }

// Scale returns the denominator applied to stored integer coordinates.
// A stored coordinate c represents the real value c/Scale(). E8 stores
// doubled coordinates so its half-integer coset stays integral.
func (l Lattice) Scale() int {
	if l.kind == E8 {
		return 2
	}
	return 1
}

// Quantize snaps v to the nearest lattice point.
//
// # Description
//
// Dispatches to the kind's closed-form decoder. The returned coordinates
// are integers at the lattice's Scale(). A vector already on the lattice
// is returned unchanged.
//
// # Inputs
//
//   - v: embedding vector of length Dimension().
//
// # Outputs
//
//   - []int: lattice coordinates (len == Dimension()).
//   - error: ErrDimensionMismatch if len(v) != Dimension().
func (l Lattice) Quantize(v []float64) ([]int, error) {
	if len(v) != l.dim {
		return nil, fmt.Errorf("%w: lattice=%s dim=%d got=%d",
			ErrDimensionMismatch, l.kind, l.dim, len(v))
	}
	switch l.kind {
	case Hypercubic:
		return quantizeHypercubic(v), nil
	case ClosePacking:
		return quantizeD(v), nil
	case E8:
		return quantizeE8(v), nil
	case Leech:
		return quantizeGolay(v), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(l.kind))
	}
}

// SquaredDistance returns the squared Euclidean distance between two
// stored coordinate vectors. Both must come from the same lattice so the
// scale cancels; the caller guarantees equal lengths.
func SquaredDistance(a, b []int) int64 {
	var sum int64
	for i := range a {
		d := int64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

// =============================================================================
// Decoders
// =============================================================================

// quantizeHypercubic rounds each coordinate to the nearest integer. O(n).
func quantizeHypercubic(v []float64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(math.Round(x))
	}
	return out
}

// quantizeD decodes the checkerboard lattice D_n: integer points whose
// coordinate sum is even.
//
// Round every coordinate. If the sum is odd, one coordinate must move to
// its second-nearest integer; picking the coordinate with the largest
// rounding error minimizes the added distance (the standard D_n decoder).
func quantizeD(v []float64) []int {
	out := make([]int, len(v))
	sum := 0
	worst := 0
	worstErr := -1.0
	for i, x := range v {
		r := int(math.Round(x))
		out[i] = r
		sum += r
		if e := math.Abs(x - float64(r)); e > worstErr {
			worstErr = e
			worst = i
		}
	}
	if sum%2 != 0 {
		x := v[worst]
		r := out[worst]
		if x >= float64(r) {
			out[worst] = r + 1
		} else {
			out[worst] = r - 1
		}
	}
	return out
}

// quantizeE8 decodes E8 = D8 union (D8 + 1/2).
//
// Two candidates are produced in closed form: the D8 round of v, and the
// D8 round of the half-shifted vector shifted back. Whichever is closer
// in Euclidean distance wins. Coordinates are returned doubled (Scale 2).
func quantizeE8(v []float64) []int {
	intCand := quantizeD(v)

	shifted := make([]float64, len(v))
	for i, x := range v {
		shifted[i] = x - 0.5
	}
	halfCand := quantizeD(shifted)

	var intDist, halfDist float64
	for i, x := range v {
		di := x - float64(intCand[i])
		dh := x - (float64(halfCand[i]) + 0.5)
		intDist += di * di
		halfDist += dh * dh
	}

	out := make([]int, len(v))
	if halfDist < intDist {
		for i, c := range halfCand {
			out[i] = 2*c + 1
		}
	} else {
		for i, c := range intCand {
			out[i] = 2 * c
		}
	}
	return out
}

// quantizeGolay decodes the Construction-A lattice of the extended binary
// Golay code: points x in Z^24 with x congruent (mod 2) to a codeword.
//
// For each of the 4096 codewords c, the nearest point in c + 2*Z^24 has
// the closed form c_i + 2*round((v_i - c_i)/2); the candidate with the
// smallest distance to v wins. Cost is fixed at 4096 * 24 operations.
func quantizeGolay(v []float64) []int {
	words := golayCodewords()

	best := make([]int, len(v))
	cand := make([]int, len(v))
	bestDist := math.Inf(1)

	for _, w := range words {
		var dist float64
		for i := range v {
			c := float64((w >> uint(i)) & 1)
			p := c + 2*math.Round((v[i]-c)/2)
			d := v[i] - p
			dist += d * d
			cand[i] = int(p)
		}
		if dist < bestDist {
			bestDist = dist
			copy(best, cand)
		}
	}
	return best
}
