// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Session Expiry Scheduler
// =============================================================================

// SchedulerConfig holds configuration for the session expiry scheduler.
//
// # Fields
//
//   - Interval: How often to run expiry sweeps. Default: 1 minute.
//   - MaxIdle: How long a session may sit idle before it is expired.
//     Default: 30 minutes.
type SchedulerConfig struct {
	Interval time.Duration
	MaxIdle  time.Duration
}

// DefaultSchedulerConfig returns production defaults: sweep every minute,
// expire sessions idle for 30 minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 1 * time.Minute,
		MaxIdle:  30 * time.Minute,
	}
}

// ExpiryScheduler periodically removes idle sessions from a registry.
//
// # Description
//
// Runs a background goroutine on the ticker + done channel pattern. Each
// sweep calls Registry.ExpireStale and hands the removed sessions to the
// optional OnExpire hook, which the engine uses to archive final traces.
//
// # Thread Safety
//
// All public methods are thread-safe. Start/Stop guard the running state
// with a mutex.
type ExpiryScheduler struct {
	registry *Registry
	config   SchedulerConfig

	// OnExpire, if set, receives every expired session after removal.
	// Called from the scheduler goroutine; must not block long.
	OnExpire func(*Session)

	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewExpiryScheduler creates a scheduler bound to a registry. Ready to
// Start().
func NewExpiryScheduler(registry *Registry, config SchedulerConfig) *ExpiryScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = DefaultSchedulerConfig().MaxIdle
	}
	return &ExpiryScheduler{
		registry: registry,
		config:   config,
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *ExpiryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("expiry scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{}) // reset for restart
	s.mu.Unlock()

	slog.Info("session expiry scheduler starting",
		"interval", s.config.Interval.String(),
		"max_idle", s.config.MaxIdle.String(),
	)

	go s.runLoop(ctx)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	slog.Info("session expiry scheduler stopping")
	close(s.done)
	s.running = false
}

// RunNow performs one sweep immediately, outside the schedule. Returns
// the number of sessions expired. Useful for tests and manual invocation.
func (s *ExpiryScheduler) RunNow() int {
	return s.sweep()
}

func (s *ExpiryScheduler) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session expiry scheduler stopped (context cancelled)")
			return
		case <-s.done:
			slog.Info("session expiry scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one expiry pass and dispatches the OnExpire hook.
func (s *ExpiryScheduler) sweep() int {
	expired := s.registry.ExpireStale(s.config.MaxIdle)
	if len(expired) == 0 {
		slog.Debug("session expiry sweep completed (no idle sessions)")
		return 0
	}

	for _, sess := range expired {
		slog.Info("session expired",
			"session_id", sess.ID,
			"iterations", sess.State.Iteration(),
			"idle_since", sess.State.LastUsed().Format(time.RFC3339),
		)
		if s.OnExpire != nil {
			s.OnExpire(sess)
		}
	}
	return len(expired)
}
