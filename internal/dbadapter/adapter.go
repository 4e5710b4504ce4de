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
	"fmt"
	"sync"

	"github.com/marcus-qen/dbgateway/internal/acl"
)

// QueryResult is what ExecuteQuery returns for a row-producing
// statement: ordered column names plus ordered row tuples, each cell
// already rendered to a display string (the gateway hands formatted
// text back to an LLM caller, not typed driver values).
type QueryResult struct {
	Columns []string
	Rows    [][]string
}

// Adapter is the capability set every database engine backend
// implements (spec.md §9 "duck-typed adapter hierarchy", rendered as a
// Go interface). A language-neutral reading of the original's
// BaseAdapter ABC.
type Adapter interface {
	// Connect establishes the pool. Fails with *ConnectionError if a
	// trivial round-trip fails.
	Connect(ctx context.Context) error
	// Close releases the pending implicit/explicit session (per
	// Readonly) then disposes the pool.
	Close(ctx context.Context) error

	// ExecuteQuery runs exactly one statement. Row-producing statements
	// return a QueryResult with isQuery true; anything else returns a
	// nil QueryResult, the affected-row count, and isQuery false.
	ExecuteQuery(ctx context.Context, sql string) (rows *QueryResult, affected int64, isQuery bool, err error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	GetUserPrivileges(ctx context.Context) (*acl.UserPrivilege, error)
	GetTopLevelObjects(ctx context.Context) (*TopLevelObjects, error)
	GetTableDetails(ctx context.Context, name string) (*TableSchema, error)
	GetDatabaseSchema(ctx context.Context) (DatabaseSchema, error)
}

// Factory builds an Adapter for the given config. Registered per
// DBType by an engine package's init().
type Factory func(cfg *DBConfig) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[DBType]Factory)
)

// Register adds a Factory for typ. Called from each engine package's
// init(), mirroring internal/tools/sql.go's driver-registration style
// and original_source's db_adapters/registry.py decorator.
func Register(typ DBType, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typ] = factory
}

// New selects the registered Factory for cfg.Type and builds an
// Adapter. Selection happens once at startup; there is no dynamic swap.
func New(cfg *DBConfig) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("no adapter registered for type %q", cfg.Type)}
	}
	return factory(cfg), nil
}

// ListRegistered returns the set of registered DBTypes, for --help text
// and diagnostics.
func ListRegistered() []DBType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]DBType, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}
