// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exposes the engine's Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts session starts by storm mitigation level.
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strand",
		Name:      "sessions_created_total",
		Help:      "Reasoning sessions created, by storm mitigation level",
	}, []string{"storm_level"})

	// SessionsEnded counts session teardowns by termination reason.
	// Labels: "goal-reached", "max-iterations-reached", "caller-cancelled",
	// "fatal-error", "expired", "removed".
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strand",
		Name:      "sessions_ended_total",
		Help:      "Reasoning sessions ended, by reason",
	}, []string{"reason"})

	// ChunksAccepted counts chunk submissions that passed mitigation and
	// updated session state.
	ChunksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strand",
		Name:      "chunks_accepted_total",
		Help:      "Generated chunks accepted into session traces",
	})

	// ChunksRejected counts submissions refused before state change.
	// Labels: "rate_limited", "circuit_open", "terminated".
	ChunksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strand",
		Name:      "chunks_rejected_total",
		Help:      "Chunk submissions rejected before reaching session state",
	}, []string{"cause"})

	// ChunkTokens observes the token count of accepted chunks.
	ChunkTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strand",
		Name:      "chunk_tokens",
		Help:      "Token count per accepted chunk",
		Buckets:   []float64{16, 32, 64, 128, 256, 512, 1024, 2048},
	})

	// ConceptsCrystallized counts lattice points created in concept spaces.
	ConceptsCrystallized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "strand",
		Name:      "concepts_crystallized_total",
		Help:      "Concepts quantized into lattice points",
	})

	// LiveSessions tracks the current registry size.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "strand",
		Name:      "live_sessions",
		Help:      "Sessions currently held in the registry",
	})
)
