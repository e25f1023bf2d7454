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
	"sort"
	"strings"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/concept"
)

// Carryover derivation replaces naive tail-truncation with a hybrid
// relevance score per word:
//
//	relevance = w * semantic(word, recent chunks) + (1-w) * recency(position)
//
// The semantic term is the fraction of the recent chunks that mention the
// word (stopwords damped), the recency term favors later positions in the
// chunk. The highest-scoring words are kept, in original order, up to the
// carryover budget.
//
// When the chunk overflows the budget, attention-style compression
// applies: the first and last sink_size words are retained
// unconditionally (the attention sink), and the remaining budget is
// filled with the best-scoring words in between.

// stopwords are common English words whose semantic score is damped so
// recurring glue words don't crowd real content out of the carryover.
var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	words := strings.Fields(`
		a an and are as at be but by for from has have i if in into is it
		its of on or so than that the their then there these this to was
		we were which will with you your not can could would should may
	`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// scoredWord is one candidate carryover word with its chunk position.
type scoredWord struct {
	word     string
	position int
	score    float64
}

// deriveCarryover selects the bounded carryover for the next prompt from
// the newly accepted chunk.
func deriveCarryover(chunk string, recentChunks []string, cfg Config) string {
	words := strings.Fields(chunk)
	if len(words) == 0 || cfg.CarryoverSize == 0 {
		return ""
	}
	if len(words) <= cfg.CarryoverSize {
		return strings.Join(words, " ")
	}

	recentSets := make([]map[string]struct{}, len(recentChunks))
	for i, rc := range recentChunks {
		set := make(map[string]struct{})
		for _, tok := range concept.Tokenize(rc) {
			set[tok] = struct{}{}
		}
		recentSets[i] = set
	}

	scored := make([]scoredWord, len(words))
	for i, w := range words {
		scored[i] = scoredWord{
			word:     w,
			position: i,
			score:    relevance(w, i, len(words), recentSets, cfg.SemanticWeight),
		}
	}

	keep := selectWithSink(scored, cfg.CarryoverSize, cfg.SinkSize)

	out := make([]string, len(keep))
	for i, sw := range keep {
		out[i] = sw.word
	}
	return strings.Join(out, " ")
}

// relevance computes the hybrid score for one word occurrence.
func relevance(word string, position, total int, recentSets []map[string]struct{}, semanticWeight float64) float64 {
	norm := strings.ToLower(strings.Trim(word, ".,;:!?()[]{}\"'"))

	semantic := 0.0
	if len(recentSets) > 0 {
		hits := 0
		for _, set := range recentSets {
			if _, ok := set[norm]; ok {
				hits++
			}
		}
		semantic = float64(hits) / float64(len(recentSets))
	}
	if _, stop := stopwords[norm]; stop {
		semantic *= 0.25
	}

	recency := 0.0
	if total > 1 {
		recency = float64(position) / float64(total-1)
	}

	return semanticWeight*semantic + (1-semanticWeight)*recency
}

// selectWithSink keeps the first and last sinkSize words unconditionally
// and fills the rest of the budget with the highest-scoring middle words,
// returning the kept words in original chunk order.
func selectWithSink(scored []scoredWord, budget, sinkSize int) []scoredWord {
	n := len(scored)
	if budget >= n {
		return scored
	}
	if 2*sinkSize >= budget {
		// Budget too small for a sink on both ends: plain top-k.
		return topByScore(scored, budget)
	}

	keep := make([]scoredWord, 0, budget)
	keep = append(keep, scored[:sinkSize]...)
	keep = append(keep, scored[n-sinkSize:]...)

	middle := scored[sinkSize : n-sinkSize]
	keep = append(keep, topByScore(middle, budget-2*sinkSize)...)

	sort.Slice(keep, func(i, j int) bool { return keep[i].position < keep[j].position })
	return keep
}

// topByScore returns the k highest-scoring words in original order. Ties
// break toward the later (more recent) position.
func topByScore(scored []scoredWord, k int) []scoredWord {
	if k >= len(scored) {
		return scored
	}
	byScore := make([]scoredWord, len(scored))
	copy(byScore, scored)
	sort.Slice(byScore, func(i, j int) bool {
		if byScore[i].score != byScore[j].score {
			return byScore[i].score > byScore[j].score
		}
		return byScore[i].position > byScore[j].position
	})
	keep := byScore[:k]
	sort.Slice(keep, func(i, j int) bool { return keep[i].position < keep[j].position })
	return keep
}
