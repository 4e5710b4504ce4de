/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package sqlclass is the SQL Classifier (C3): it parses one SQL
// statement and derives the operation, the tables and columns it
// touches, the alias map used to resolve qualified references, and the
// privileges required to run it. It never rewrites the statement —
// Gate (C4) and the adapter (C1) decide what happens with the text,
// the classifier only describes it.
package sqlclass

import "github.com/marcus-qen/dbgateway/internal/acl"

// Classification is the result of classifying one statement, per
// spec.md §3's StatementClassification.
type Classification struct {
	// Op is the top-level statement kind.
	Op acl.Privilege

	// Tables is every table referenced anywhere in the statement,
	// schema-unqualified (the adapter resolves the current search path;
	// the classifier works purely on lexical names).
	Tables map[string]bool

	// Columns is every qualified "table.column" reference the
	// classifier could resolve via the alias map. Columns it could not
	// attribute to a specific table (because more than one table is in
	// scope and the reference was unqualified) are NOT placed here —
	// Gate's privilege check handles that ambiguity explicitly per
	// spec.md §4.4 point 2 ("fails closed").
	Columns map[string]bool

	// UnqualifiedColumns holds bare column names that appeared without
	// a table qualifier, in statements where more than one table is in
	// scope (so they could not be resolved). Gate attributes these to
	// the sole referenced table when there is exactly one; otherwise
	// the privilege check fails closed.
	UnqualifiedColumns map[string]bool

	// AliasMap maps an alias introduced by AS (or a bare alias) to the
	// table name it stands for.
	AliasMap map[string]string

	// Required is required[Privilege][ObjectType] -> set of qualified
	// names (table name, or "table.column" for COLUMN) that must be
	// covered by UserPrivilege and by the ACL for the statement to be
	// admitted.
	Required map[acl.Privilege]map[acl.ObjectType]map[string]bool
}

func newClassification(op acl.Privilege) *Classification {
	return &Classification{
		Op:                 op,
		Tables:             make(map[string]bool),
		Columns:            make(map[string]bool),
		UnqualifiedColumns: make(map[string]bool),
		AliasMap:           make(map[string]string),
		Required:           make(map[acl.Privilege]map[acl.ObjectType]map[string]bool),
	}
}

func (c *Classification) require(priv acl.Privilege, objType acl.ObjectType, name string) {
	if c.Required[priv] == nil {
		c.Required[priv] = make(map[acl.ObjectType]map[string]bool)
	}
	if c.Required[priv][objType] == nil {
		c.Required[priv][objType] = make(map[string]bool)
	}
	c.Required[priv][objType][name] = true
}

// RequireTable records that priv is required table-wide on table.
func (c *Classification) RequireTable(priv acl.Privilege, table string) {
	c.Tables[table] = true
	c.require(priv, acl.ObjectTable, table)
}

// RequireColumn records that priv is required on table.column.
func (c *Classification) RequireColumn(priv acl.Privilege, table, column string) {
	c.Tables[table] = true
	qname := table + "." + column
	c.Columns[qname] = true
	c.require(priv, acl.ObjectColumn, qname)
}

// RequireUnqualifiedColumn records a bare column reference whose table
// could not be determined lexically (more than one table in scope).
func (c *Classification) RequireUnqualifiedColumn(priv acl.Privilege, column string) {
	c.UnqualifiedColumns[column] = true
	// Recorded under a synthetic marker so Gate can see which privilege
	// an unqualified reference needs once it resolves the table.
	c.require(priv, acl.ObjectColumn, "?."+column)
}

// ParseError reports that a statement did not parse, or parsed into an
// unsupported statement kind. It corresponds to spec.md §7's ParseError.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "ParseError: " + e.Reason }
