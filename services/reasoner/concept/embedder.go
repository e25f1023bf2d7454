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
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder projects text into a fixed-dimension vector by hashing
// word features (the classic hashing trick). It exists so the reasoning
// loop can crystallize carryover concepts without an external embedding
// backend; callers with a real embedding model supply their own vectors.
//
// The projection is deterministic: the same text always yields the same
// vector, so repeated carryover crystallizes onto the same lattice point.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates an embedder producing vectors of length dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// Dimension returns the output vector length.
func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed maps text to a unit-scaled vector of the embedder's dimension.
//
// Each normalized word hashes to a bucket; a second hash bit picks the
// sign so unrelated words cancel rather than accumulate. The result is
// L2-normalized and scaled so quantization lands off the origin for
// non-empty text.
func (e *HashEmbedder) Embed(text string) []float64 {
	v := make([]float64, e.dim)
	for _, word := range Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(word))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dim))
		if (sum>>63)&1 == 1 {
			v[bucket]--
		} else {
			v[bucket]++
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	// Scale to radius ~2 so nearby texts quantize to distinct lattice
	// points instead of collapsing into the origin's Voronoi cell.
	scale := 2 / math.Sqrt(norm)
	for i := range v {
		v[i] *= scale
	}
	return v
}

// Tokenize splits text into lowercase word tokens, stripping punctuation
// and control characters. Shared by the embedder, carryover scoring, and
// event-fusion signatures so all three agree on what a "word" is.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToLower(f))
	}
	return out
}
