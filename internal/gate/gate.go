/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gate implements the gateway's pre-execution checker (C4):
// three ordered checks — operation match, privilege sufficiency, ACL
// compliance — that a classified statement must pass before it ever
// reaches the database adapter. No statement bypasses the Gate; there
// is no direct path from a tool handler to the adapter's ExecuteQuery.
package gate

import (
	"fmt"

	"github.com/marcus-qen/dbgateway/internal/acl"
	"github.com/marcus-qen/dbgateway/internal/sqlclass"
)

// Reason names which of the three checks rejected a statement, or that
// none did.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonToolOperationMismatch Reason = "tool/operation mismatch"
	ReasonPrivilege             Reason = "privilege"
	ReasonACL                   Reason = "ACL"
)

// Denial is returned when a statement fails one of the three checks.
// It is never wrapped further up the call stack — C6 formats it
// directly into the tool's text response (spec.md §4.6).
type Denial struct {
	Reason Reason
	Detail string
}

func (d *Denial) Error() string { return fmt.Sprintf("%s: %s", d.Reason, d.Detail) }

func deny(reason Reason, format string, args ...any) *Denial {
	return &Denial{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Gate is constructed once at startup with the discovered UserPrivilege
// and the caller-supplied ACLs, then consulted on every tool
// invocation. It is safe for concurrent use (all three fields are
// read-only after construction), though the gateway's own session
// serialization means concurrent calls never actually happen.
type Gate struct {
	privileges *acl.UserPrivilege
	objectACL  *acl.ObjectACL
	toolACL    *acl.ToolACL
}

// New builds a Gate from the discovered privileges and the parsed
// ACLs. Either ACL may be a freshly-constructed empty one (no
// filtering) when the caller supplied none.
func New(privileges *acl.UserPrivilege, objectACL *acl.ObjectACL, toolACL *acl.ToolACL) *Gate {
	return &Gate{privileges: privileges, objectACL: objectACL, toolACL: toolACL}
}

// Check runs the three ordered checks against c. advertisedOp is the
// operation the invoking tool advertises — e.g. the "select" tool
// passes acl.Select. In single-tool mode the caller passes nil,
// skipping check #1 entirely (spec.md §4.6, "the single-tool variant
// passes null and skips only check #1").
func (g *Gate) Check(c *sqlclass.Classification, advertisedOp *acl.Privilege) *Denial {
	if advertisedOp != nil && c.Op != *advertisedOp {
		return deny(ReasonToolOperationMismatch, "tool advertises %s, statement is %s", *advertisedOp, c.Op)
	}

	if d := g.checkPrivilege(c); d != nil {
		return d
	}

	if d := g.checkACL(c); d != nil {
		return d
	}

	return nil
}

// checkPrivilege implements spec.md §4.4 check #2: for every
// (object, required-permission) pair in the classification, the
// UserPrivilege map must cover it — table-wide, or column-by-column.
// Unqualified columns are attributed to the sole referenced table when
// there is exactly one; otherwise the check fails closed, since
// classification alone cannot confirm coverage.
func (g *Gate) checkPrivilege(c *sqlclass.Classification) *Denial {
	for priv, byType := range c.Required {
		for objType, names := range byType {
			for name := range names {
				if d := g.checkOnePrivilege(priv, objType, name, c); d != nil {
					return d
				}
			}
		}
	}
	return nil
}

func (g *Gate) checkOnePrivilege(priv acl.Privilege, objType acl.ObjectType, name string, c *sqlclass.Classification) *Denial {
	switch objType {
	case acl.ObjectTable:
		if !g.privileges.HasTable(priv, name) {
			return deny(ReasonPrivilege, "no %s privilege on table %q", priv, name)
		}
	case acl.ObjectColumn:
		table, column, err := resolveColumn(name, c)
		if err != nil {
			return deny(ReasonPrivilege, "%s", err)
		}
		if !g.privileges.HasColumn(priv, table, column) {
			return deny(ReasonPrivilege, "no %s privilege on column %q", priv, table+"."+column)
		}
	}
	return nil
}

// resolveColumn turns a classification's qualified ("table.column") or
// synthetic unqualified ("?.column") object name into a concrete
// table/column pair, attributing an unqualified reference to the sole
// referenced table when there is exactly one. Otherwise it fails
// closed (spec.md §4.4 check #2).
func resolveColumn(name string, c *sqlclass.Classification) (table, column string, err error) {
	table, column, ok := splitQualifiedColumn(name)
	if !ok {
		return "", "", fmt.Errorf("malformed column reference %q", name)
	}
	if table != "?" {
		return table, column, nil
	}
	if len(c.Tables) != 1 {
		return "", "", fmt.Errorf("cannot attribute unqualified column %q to a single table", column)
	}
	for t := range c.Tables {
		table = t
	}
	return table, column, nil
}

// checkACL implements spec.md §4.4 check #3: apply ObjectACL policy
// semantics to every referenced table and column in the classification.
func (g *Gate) checkACL(c *sqlclass.Classification) *Denial {
	if !g.toolACL.Permits(c.Op) {
		return deny(ReasonACL, "operation %s is not permitted by the tool ACL", c.Op)
	}
	for table := range c.Tables {
		if d := g.objectACL.AllowsObject(acl.ObjectTable, table); !d.Allowed {
			return deny(ReasonACL, "table %q is not reachable under the object ACL", table)
		}
	}
	for qualified := range c.Columns {
		table, column, ok := splitQualifiedColumn(qualified)
		if !ok {
			continue
		}
		if !g.objectACL.AllowsColumn(acl.ObjectTable, table, column) {
			return deny(ReasonACL, "column %q is not reachable under the object ACL", qualified)
		}
	}
	// Unqualified columns were already resolved to a concrete table by
	// checkPrivilege (which runs first); re-resolve here so the ACL sees
	// the same attribution rather than skipping these references.
	for column := range c.UnqualifiedColumns {
		table, col, err := resolveColumn("?."+column, c)
		if err != nil {
			continue // checkPrivilege already rejected this case
		}
		if !g.objectACL.AllowsColumn(acl.ObjectTable, table, col) {
			return deny(ReasonACL, "column %q is not reachable under the object ACL", table+"."+col)
		}
	}
	return nil
}

func splitQualifiedColumn(name string) (table, column string, ok bool) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}
