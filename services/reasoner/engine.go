// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reasoner is the engine facade over the session registry and the
// per-session machinery: reasoning state, storm mitigation, the causal
// trace, and the concept space. Callers (HTTP handlers, the CLI loop)
// talk only to this package.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/archive"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/causal"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/concept"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/lattice"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/observability"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/reason"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/session"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/storm"
)

// ErrSessionNotFound aliases the registry sentinel so callers can match
// it without importing the session package.
var ErrSessionNotFound = session.ErrSessionNotFound

// Default concept space geometry when the caller does not choose one.
const (
	defaultLatticeType = "close_packing"
	defaultLatticeDim  = 16
)

// Options configures an Engine.
type Options struct {
	// Archive receives finalized traces at teardown. Nil disables
	// archiving.
	Archive *archive.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// SweepInterval and MaxIdle tune the expiry scheduler. Zero values
	// take the scheduler defaults.
	SweepInterval time.Duration
	MaxIdle       time.Duration

	// Clock is the storm mitigation time source. Nil uses the system
	// clock; tests inject a manual one.
	Clock storm.Clock
}

// Engine owns every live session and is the single entry point for all
// session operations.
//
// # Thread Safety
//
// Safe for concurrent use. Cross-session state lives in the registry;
// per-session state carries its own locks.
type Engine struct {
	registry  *session.Registry
	scheduler *session.ExpiryScheduler
	store     *archive.Store
	log       *slog.Logger
	clock     storm.Clock
}

// New creates an engine with an empty registry.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	registry := session.NewRegistry()
	e := &Engine{
		registry: registry,
		store:    opts.Archive,
		log:      log,
		clock:    opts.Clock,
	}
	e.scheduler = session.NewExpiryScheduler(registry, session.SchedulerConfig{
		Interval: opts.SweepInterval,
		MaxIdle:  opts.MaxIdle,
	})
	e.scheduler.OnExpire = func(sess *session.Session) {
		e.finalize(sess, "expired")
	}
	return e
}

// Start launches the background expiry scheduler.
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.Start(ctx)
}

// Stop halts the expiry scheduler. Live sessions are left in place.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// CreateParams are the caller-supplied knobs for a new session.
type CreateParams struct {
	Problem       string
	ChunkSize     int
	CarryoverSize int
	MaxIterations int
	GoalSignal    string

	// StormLevel selects a mitigation preset: "aggressive", "default",
	// "lenient", or "disabled". Empty means "default".
	StormLevel string

	// EnableCausalTrace attaches a causal event DAG to the session.
	EnableCausalTrace bool

	// LatticeType and LatticeDimension fix the concept space geometry
	// for the session's lifetime. Empty type means close-packing in 16
	// dimensions.
	LatticeType      string
	LatticeDimension int
}

// CreateSession builds the full per-session bundle and registers it.
//
// # Outputs
//
//   - string: the new session id.
//   - error: reason.ErrInvalidConfig for any invalid parameter,
//     including unknown storm levels and lattice types. No session is
//     registered on failure.
func (e *Engine) CreateSession(p CreateParams) (string, error) {
	state, err := reason.NewState(reason.Config{
		Problem:       p.Problem,
		ChunkSize:     p.ChunkSize,
		CarryoverSize: p.CarryoverSize,
		MaxIterations: p.MaxIterations,
		GoalSignal:    p.GoalSignal,
	})
	if err != nil {
		return "", err
	}

	level, err := storm.ParseLevel(p.StormLevel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", reason.ErrInvalidConfig, err)
	}

	latticeType := p.LatticeType
	if latticeType == "" {
		latticeType = defaultLatticeType
	}
	latticeDim := p.LatticeDimension
	if latticeDim == 0 {
		latticeDim = defaultLatticeDim
	}
	lat, err := lattice.Parse(latticeType, latticeDim)
	if err != nil {
		return "", fmt.Errorf("%w: %v", reason.ErrInvalidConfig, err)
	}

	sess := &session.Session{
		ID:        uuid.NewString(),
		State:     state,
		Storm:     storm.NewMitigator(level, e.clock),
		Concepts:  concept.NewSpace(lat),
		CreatedAt: time.Now(),
	}
	if p.EnableCausalTrace {
		sess.Causal = causal.NewTrace()
	}

	e.registry.Put(sess)
	observability.SessionsCreated.WithLabelValues(string(level)).Inc()
	observability.LiveSessions.Set(float64(e.registry.Len()))
	e.log.Info("session created",
		"session_id", sess.ID,
		"chunk_size", p.ChunkSize,
		"carryover_size", p.CarryoverSize,
		"max_iterations", p.MaxIterations,
		"storm_level", string(level),
		"lattice", latticeType,
		"causal_trace", p.EnableCausalTrace,
	)
	return sess.ID, nil
}

// NextPrompt returns the prompt for the session's upcoming chunk.
func (e *Engine) NextPrompt(id string) (string, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return "", err
	}
	return sess.State.NextPrompt()
}

// SubmitChunk runs a generated chunk through storm mitigation, updates
// the session state, records the causal event, and crystallizes the
// chunk's carryover into the concept space.
//
// # Outputs
//
//   - reason.Decision: continue or terminate, with the reason.
//   - error: storm.ErrRateLimited or storm.ErrCircuitOpen when
//     mitigation refuses the chunk (session state untouched);
//     reason.ErrSessionTerminated; ErrSessionNotFound.
func (e *Engine) SubmitChunk(id, chunk string) (reason.Decision, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return reason.Decision{}, err
	}

	tokens := concept.Tokenize(chunk)
	if err := sess.Storm.Check(tokens, 1); err != nil {
		cause := "rate_limited"
		if errors.Is(err, storm.ErrCircuitOpen) {
			cause = "circuit_open"
		}
		observability.ChunksRejected.WithLabelValues(cause).Inc()
		e.log.Warn("chunk rejected by storm mitigation",
			"session_id", id, "cause", cause)
		return reason.Decision{}, err
	}

	decision, err := sess.State.SubmitChunk(chunk)
	if err != nil {
		observability.ChunksRejected.WithLabelValues("terminated").Inc()
		return reason.Decision{}, err
	}
	sess.Storm.RecordSuccess()
	observability.ChunksAccepted.Inc()
	observability.ChunkTokens.Observe(float64(len(tokens)))

	iteration := sess.State.Iteration()
	if sess.Causal != nil {
		e.recordCausalEvent(sess, iteration, chunk)
	}
	e.crystallize(sess, iteration)

	if decision.Terminated {
		e.log.Info("session terminated",
			"session_id", id,
			"reason", string(decision.Reason),
			"iterations", iteration,
			"tokens_consumed", sess.State.TokensConsumed(),
		)
	}
	return decision, nil
}

// recordCausalEvent appends this chunk to the session's causal DAG,
// chained to the previous chunk's event.
func (e *Engine) recordCausalEvent(sess *session.Session, iteration int, chunk string) {
	ev := causal.Event{
		ID:        fmt.Sprintf("chunk-%d", iteration),
		Summary:   summarize(chunk),
		Timestamp: time.Now(),
	}
	if iteration > 1 {
		ev.Predecessors = []string{fmt.Sprintf("chunk-%d", iteration-1)}
	}
	if err := sess.Causal.Record(ev); err != nil {
		// Recording is best-effort bookkeeping; the chunk is already
		// accepted and must not be rolled back.
		e.log.Warn("causal event dropped", "session_id", sess.ID, "error", err)
	}
}

// crystallize quantizes the session's current carryover into its
// concept space. The carryover is the distilled content of the chunk.
func (e *Engine) crystallize(sess *session.Session, iteration int) {
	carryover := sess.State.Carryover()
	if carryover == "" {
		return
	}
	embedder := concept.NewHashEmbedder(sess.Concepts.Lattice().Dimension())
	if _, err := sess.Concepts.Crystallize(summarize(carryover), embedder.Embed(carryover)); err != nil {
		e.log.Warn("concept crystallization failed",
			"session_id", sess.ID, "iteration", iteration, "error", err)
		return
	}
	observability.ConceptsCrystallized.Inc()
}

// ReportFailure tells the session's circuit breaker that a generation
// attempt failed. A fatal failure also terminates the session.
func (e *Engine) ReportFailure(id string, fatal bool) error {
	sess, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	sess.Storm.RecordFailure()
	if fatal {
		if sess.State.FailFatal() {
			e.log.Error("session failed fatally", "session_id", id)
		}
	}
	return nil
}

// GetTrace returns the session's reasoning trace so far.
func (e *Engine) GetTrace(id string) (reason.Trace, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return reason.Trace{}, err
	}
	return sess.State.Snapshot(), nil
}

// CausalEvents returns the session's causal DAG in topological order,
// or an empty slice when tracing was not enabled.
func (e *Engine) CausalEvents(id string) ([]causal.Event, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.Causal == nil {
		return []causal.Event{}, nil
	}
	it := sess.Causal.TopologicalOrder()
	out := make([]causal.Event, 0, sess.Causal.Len())
	for {
		evID, ok := it.Next()
		if !ok {
			break
		}
		if ev, found := sess.Causal.Event(evID); found {
			out = append(out, ev)
		}
	}
	return out, nil
}

// SessionMetrics is the per-session observability snapshot.
type SessionMetrics struct {
	SessionID      string             `json:"session_id"`
	Iteration      int                `json:"iteration"`
	TokensConsumed int                `json:"tokens_consumed"`
	Terminated     bool               `json:"terminated"`
	Storm          storm.Metrics      `json:"storm"`
	Concepts       concept.Statistics `json:"concepts"`
	CausalEvents   int                `json:"causal_events"`
}

// GetMetrics returns the live metrics snapshot for one session.
func (e *Engine) GetMetrics(id string) (SessionMetrics, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return SessionMetrics{}, err
	}
	m := SessionMetrics{
		SessionID:      sess.ID,
		Iteration:      sess.State.Iteration(),
		TokensConsumed: sess.State.TokensConsumed(),
		Terminated:     sess.State.Terminated(),
		Storm:          sess.Storm.Snapshot(),
		Concepts:       sess.Concepts.Statistics(),
	}
	if sess.Causal != nil {
		m.CausalEvents = sess.Causal.Len()
	}
	return m, nil
}

// QueryConcepts finds the k stored concepts nearest to the query text in
// the session's lattice.
func (e *Engine) QueryConcepts(id, text string, k int) ([]concept.Match, error) {
	sess, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	embedder := concept.NewHashEmbedder(sess.Concepts.Lattice().Dimension())
	return sess.Concepts.QuerySimilar(embedder.Embed(text), k)
}

// Cancel terminates a live session without removing it; its trace stays
// readable until removal or expiry.
func (e *Engine) Cancel(id string) error {
	sess, err := e.registry.Get(id)
	if err != nil {
		return err
	}
	if sess.State.Cancel() {
		e.log.Info("session cancelled", "session_id", id)
	}
	return nil
}

// RemoveSession tears a session down, archiving its final trace.
func (e *Engine) RemoveSession(id string) error {
	sess, err := e.registry.Remove(id)
	if err != nil {
		return err
	}
	sess.State.Cancel() // no-op when already terminal
	e.finalize(sess, "removed")
	return nil
}

// SessionIDs lists the live sessions.
func (e *Engine) SessionIDs() []string {
	return e.registry.IDs()
}

// finalize archives a torn-down session and updates counters. The cause
// distinguishes explicit removal from idle expiry in the metrics; the
// archived record carries the session's own termination reason.
func (e *Engine) finalize(sess *session.Session, cause string) {
	trace := sess.State.Snapshot()
	label := cause
	if trace.Termination != "" && cause == "removed" {
		label = string(trace.Termination)
	}
	observability.SessionsEnded.WithLabelValues(label).Inc()
	observability.LiveSessions.Set(float64(e.registry.Len()))

	if e.store == nil {
		return
	}
	rec := archive.Record{
		SessionID: sess.ID,
		Problem:   firstPrompt(trace),
		Trace:     trace,
	}
	if sess.Causal != nil {
		rec.CausalEvents = sess.Causal.Events()
	}
	if err := e.store.Put(rec); err != nil {
		e.log.Error("trace archive failed", "session_id", sess.ID, "error", err)
	}
}

// firstPrompt recovers the problem statement from the trace. The first
// entry's prompt is the bare problem; later prompts append carryover.
func firstPrompt(trace reason.Trace) string {
	if len(trace.Entries) == 0 {
		return ""
	}
	return trace.Entries[0].Prompt
}

// summarize truncates text to a short causal event summary.
func summarize(text string) string {
	const max = 120
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
