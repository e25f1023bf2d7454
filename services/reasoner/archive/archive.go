// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive persists finalized reasoning traces to embedded local
// storage (BadgerDB) so they survive session teardown and process
// restarts. Live session state never touches disk; only the final,
// immutable trace of a terminated or expired session is written here.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jinterlante1206/AleutianStrand/services/reasoner/causal"
	"github.com/jinterlante1206/AleutianStrand/services/reasoner/reason"
)

// ErrTraceNotFound is returned when no archived trace exists for an id.
var ErrTraceNotFound = errors.New("archived trace not found")

var keyPrefix = []byte("trace/")

// Record is the archived form of one finished session.
type Record struct {
	SessionID    string         `json:"session_id"`
	Problem      string         `json:"problem"`
	Trace        reason.Trace   `json:"trace"`
	CausalEvents []causal.Event `json:"causal_events,omitempty"`
	ArchivedAt   time.Time      `json:"archived_at"`
}

// Config holds storage configuration for the trace archive.
type Config struct {
	// Path is the BadgerDB directory. Required unless InMemory is true.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Store is a BadgerDB-backed archive of finalized traces.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates or opens the archive.
//
// # Outputs
//
//   - *Store: ready for Put/Get/List. Caller must Close().
//   - error: Non-nil if the path is missing or BadgerDB fails to open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("archive path is required for persistent storage")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create archive directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open trace archive: %w", err)
	}
	return &Store{db: db}, nil
}

// Put writes the final record for a session. Re-archiving the same
// session id overwrites the previous record; the last write wins.
func (s *Store) Put(rec Record) error {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trace record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(traceKey(rec.SessionID), data)
	})
	if err != nil {
		return fmt.Errorf("archive trace %s: %w", rec.SessionID, err)
	}
	return nil
}

// Get retrieves an archived trace by session id.
//
// # Outputs
//
//   - Record: the archived trace.
//   - error: ErrTraceNotFound if the session was never archived.
func (s *Store) Get(sessionID string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(traceKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrTraceNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read archived trace %s: %w", sessionID, err)
	}
	return rec, nil
}

// List returns the session ids of every archived trace.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archived traces: %w", err)
	}
	return ids, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func traceKey(sessionID string) []byte {
	return append(append([]byte{}, keyPrefix...), sessionID...)
}
