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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/reason"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	st, err := reason.NewState(reason.Config{
		Problem:       "test problem",
		ChunkSize:     64,
		CarryoverSize: 16,
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Session{
		ID:        uuid.NewString(),
		State:     st,
		CreatedAt: time.Now(),
	}
}

func TestRegistry_PutGetRemove(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(t)

	if !r.Put(s) {
		t.Fatal("initial put failed")
	}
	if r.Put(s) {
		t.Error("duplicate put accepted")
	}

	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Error("lookup returned a different session")
	}

	if _, err := r.Remove(s.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after remove, got %v", err)
	}
	if _, err := r.Remove(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double remove, got %v", err)
	}
}

func TestRegistry_UnknownID(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegistry_ExpireStale(t *testing.T) {
	r := NewRegistry()
	a := newTestSession(t)
	b := newTestSession(t)
	r.Put(a)
	r.Put(b)

	// Shift the registry clock an hour forward so both sessions, last
	// used at creation, fall behind the 30 minute idle window.
	base := time.Now()
	r.clock = func() time.Time { return base.Add(time.Hour) }
	expired := r.ExpireStale(30 * time.Minute)

	if len(expired) != 2 {
		t.Fatalf("expired %d sessions, want 2", len(expired))
	}
	for _, s := range expired {
		if !s.State.Terminated() {
			t.Errorf("expired session %s not cancelled", s.ID)
		}
	}
	if r.Len() != 0 {
		t.Errorf("registry still holds %d sessions", r.Len())
	}
}

func TestRegistry_ExpireStaleKeepsActive(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(t)
	r.Put(s)

	if expired := r.ExpireStale(time.Hour); len(expired) != 0 {
		t.Fatalf("active session expired: %d", len(expired))
	}
	if _, err := r.Get(s.ID); err != nil {
		t.Errorf("active session lost: %v", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newTestSession(t)
			s.ID = fmt.Sprintf("sess-%03d", i)
			r.Put(s)
			if _, err := r.Get(s.ID); err != nil {
				t.Errorf("get after put: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if r.Len() != 16 {
		t.Errorf("registry has %d sessions, want 16", r.Len())
	}
	if got := len(r.IDs()); got != 16 {
		t.Errorf("IDs returned %d entries, want 16", got)
	}
}

func TestExpiryScheduler_RunNow(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(t)
	r.Put(s)

	base := time.Now()
	r.clock = func() time.Time { return base.Add(2 * time.Hour) }

	var expiredIDs []string
	sched := NewExpiryScheduler(r, SchedulerConfig{
		Interval: time.Hour, // never fires during the test
		MaxIdle:  time.Hour,
	})
	sched.OnExpire = func(sess *Session) {
		expiredIDs = append(expiredIDs, sess.ID)
	}

	if n := sched.RunNow(); n != 1 {
		t.Fatalf("sweep expired %d sessions, want 1", n)
	}
	if len(expiredIDs) != 1 || expiredIDs[0] != s.ID {
		t.Errorf("OnExpire hook saw %v", expiredIDs)
	}
	if r.Len() != 0 {
		t.Errorf("registry still holds %d sessions", r.Len())
	}
}

func TestExpiryScheduler_StartStop(t *testing.T) {
	r := NewRegistry()
	sched := NewExpiryScheduler(r, SchedulerConfig{Interval: time.Hour, MaxIdle: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sched.Start(ctx); err == nil {
		t.Error("second start accepted while running")
	}
	sched.Stop()
	sched.Stop() // idempotent

	// Restart after stop must work.
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	sched.Stop()
}
