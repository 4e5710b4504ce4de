/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// session is the shared implicit/explicit transaction lifecycle every
// engine-specific adapter embeds. It owns at most one active *sql.Tx.
// There is no "nested transaction" flag — per REDESIGN FLAG #2
// (spec.md §9, SPEC_FULL.md §13), nesting was never meaningfully used
// by the source this gateway is modeled on, so it is not represented
// here at all: begin/commit/rollback operate on one optional *sql.Tx,
// full stop.
type session struct {
	mu sync.Mutex

	db       *sql.DB
	readonly bool
	log      *zap.Logger

	tx *sql.Tx // nil when idle (no explicit transaction in progress)
}

func newSession(db *sql.DB, readonly bool, log *zap.Logger) *session {
	return &session{db: db, readonly: readonly, log: log}
}

// inExplicitTx reports whether an explicit transaction is currently
// open. Callers must hold s.mu.
func (s *session) inExplicitTx() bool { return s.tx != nil }

// begin opens a new explicit transaction, first releasing (rollback-or-
// commit, per Readonly) any pending implicit session — there is none to
// release in this design since implicit sessions never outlive a
// single ExecuteQuery call, so "releases any pending implicit session"
// collapses to "releases any pending explicit transaction" here
// (spec.md §4.1: "begin releases any pending implicit session, opens a
// new one... Transactions are not nestable across explicit begins; a
// second begin first releases the first").
func (s *session) begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		if err := s.disposeLocked(ctx); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.readonly})
	if err != nil {
		return &DatabaseError{Reason: err.Error()}
	}
	s.tx = tx
	s.log.Info("explicit transaction begun", zap.Bool("readonly", s.readonly))
	return nil
}

// commit commits the active explicit transaction. Fails with
// TransactionError if none is active (spec.md §4.1, "commit and
// rollback fail with TransactionError when no active transaction
// exists").
func (s *session) commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return &TransactionError{Reason: "No active transaction to commit."}
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return &DatabaseError{Reason: err.Error()}
	}
	s.log.Info("explicit transaction committed")
	return nil
}

// rollback rolls back the active explicit transaction. Fails with
// TransactionError if none is active.
func (s *session) rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return &TransactionError{Reason: "No active transaction to rollback."}
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return &DatabaseError{Reason: err.Error()}
	}
	s.log.Info("explicit transaction rolled back")
	return nil
}

// disposeLocked releases the current explicit transaction per Readonly
// (rollback if readonly, commit otherwise). Caller must hold s.mu.
func (s *session) disposeLocked(ctx context.Context) error {
	tx := s.tx
	s.tx = nil
	var err error
	if s.readonly {
		err = tx.Rollback()
	} else {
		err = tx.Commit()
	}
	if err != nil {
		return &DatabaseError{Reason: fmt.Sprintf("disposing prior transaction: %v", err)}
	}
	return nil
}

// close releases any pending explicit transaction then disposes the
// pool (spec.md §4.1 close()).
func (s *session) close(ctx context.Context) error {
	s.mu.Lock()
	if s.tx != nil {
		if err := s.disposeLocked(ctx); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return &DatabaseError{Reason: err.Error()}
	}
	return nil
}

// execute runs sql either inside the active explicit transaction, or —
// if none is active — inside a transient implicit session that is
// rolled back (Readonly) or committed (!Readonly) before returning.
// This is the hard guarantee behind spec.md §8 invariant #1: when
// Readonly is true, no statement run outside an explicit transaction
// can ever leave a change on disk.
func (s *session) execute(ctx context.Context, query func(ctx context.Context, q queryer) (*QueryResult, int64, bool, error)) (*QueryResult, int64, bool, error) {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()

	if tx != nil {
		return query(ctx, tx)
	}

	implicit, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.readonly})
	if err != nil {
		return nil, 0, false, &DatabaseError{Reason: err.Error()}
	}

	result, affected, isQuery, err := query(ctx, implicit)
	if err != nil {
		_ = implicit.Rollback()
		return nil, 0, false, err
	}

	if s.readonly {
		if rbErr := implicit.Rollback(); rbErr != nil {
			return nil, 0, false, &DatabaseError{Reason: rbErr.Error()}
		}
	} else {
		if cErr := implicit.Commit(); cErr != nil {
			return nil, 0, false, &DatabaseError{Reason: cErr.Error()}
		}
	}
	return result, affected, isQuery, nil
}

// queryer is satisfied by both *sql.Tx and *sql.DB so query helpers can
// run against either an implicit or explicit transaction uniformly.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
