/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dbadapter

// Column describes one table/view column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey describes one foreign-key reference. Only the first
// local/remote column pair of a (possibly composite) constraint is
// captured, matching original_source's sqlalchemy_adapter.get_table_info
// (SPEC_FULL.md §12.6) — composite foreign keys are not a case this
// gateway was ever asked to represent fully.
type ForeignKey struct {
	LocalColumn  string
	RemoteTable  string
	RemoteColumn string
}

// Index describes one index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableSchema is one table or view's full structural description
// (spec.md §3).
type TableSchema struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// TotalColumns returns len(Columns), the unit CountColumns in
// internal/schemaproj sums across a database schema.
func (t TableSchema) TotalColumns() int { return len(t.Columns) }

// DatabaseSchema is the full schema snapshot: name -> TableSchema,
// views already unified into the TABLE bucket (spec.md §4.1).
type DatabaseSchema map[string]TableSchema

// TopLevelObjects is the {TABLE: [...], VIEW: [...]} shape returned by
// GetTopLevelObjects.
type TopLevelObjects struct {
	Tables []string
	Views  []string
}
