/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package acl implements the gateway's two-target authorization model:
// the database user's native privileges (UserPrivilege, discovered by
// the adapter) and the caller-supplied Access Control List (ToolACL,
// ObjectACL, parsed from a literal policy string or a file). Both are
// immutable once loaded at startup.
package acl

import "fmt"

// Privilege is one of the four DML privileges the gateway understands.
// Any other database-native privilege (GRANT, TRIGGER, ...) is never
// surfaced or checked.
type Privilege string

const (
	Select Privilege = "SELECT"
	Insert Privilege = "INSERT"
	Update Privilege = "UPDATE"
	Delete Privilege = "DELETE"
)

// Privileges lists every privilege the gateway recognizes, in a stable
// order used for deterministic tool registration.
var Privileges = []Privilege{Select, Insert, Update, Delete}

// ValidPrivilege reports whether s names a recognized privilege.
func ValidPrivilege(s string) bool {
	switch Privilege(s) {
	case Select, Insert, Update, Delete:
		return true
	default:
		return false
	}
}

// ObjectType is one of the object kinds the gateway tracks.
type ObjectType string

const (
	ObjectTable      ObjectType = "TABLE"
	ObjectView       ObjectType = "VIEW"
	ObjectColumn     ObjectType = "COLUMN"
	ObjectPrimaryKey ObjectType = "PRIMARY_KEY"
	ObjectForeignKey ObjectType = "FOREIGN_KEY"
	ObjectIndex      ObjectType = "INDEX"
)

// topLevelObjectTypes are the object types an ACL or UserPrivilege
// document may key its entries on directly.
var topLevelObjectTypes = map[ObjectType]bool{
	ObjectTable: true,
	ObjectView:  true,
}

// canonicalObjectType maps an equivalent object type onto the bucket it
// is merged into. VIEW and TABLE share one ACL/privilege namespace.
func canonicalObjectType(t ObjectType) ObjectType {
	if t == ObjectView {
		return ObjectTable
	}
	return t
}

// UserPrivilege is a mapping Privilege -> ObjectType -> set of bare
// (schema-unqualified) names ("foo" for tables, "foo.bar" for
// columns), as discovered by the database adapter for the connected
// identity. Names are bare to match the classifier (C3) and the schema
// introspection the adapter also exposes (GetTopLevelObjects,
// GetDatabaseSchema), neither of which is schema-aware; the adapter is
// responsible for stripping any schema/database qualifier before
// calling GrantTable/GrantColumn.
type UserPrivilege struct {
	// tables[priv] is the set of bare table names the user holds priv
	// on, table-wide.
	tables map[Privilege]map[string]bool
	// columns[priv] is the set of bare "table.column" names the user
	// holds priv on, independent of any table-wide grant.
	columns map[Privilege]map[string]bool
}

// NewUserPrivilege builds an empty UserPrivilege ready for ingestion.
func NewUserPrivilege() *UserPrivilege {
	return &UserPrivilege{
		tables:  make(map[Privilege]map[string]bool),
		columns: make(map[Privilege]map[string]bool),
	}
}

// GrantTable records a table-wide grant of priv on table.
func (p *UserPrivilege) GrantTable(priv Privilege, table string) {
	if p.tables[priv] == nil {
		p.tables[priv] = make(map[string]bool)
	}
	p.tables[priv][table] = true
}

// GrantColumn records a column-level grant of priv on "table.column".
// Per the shadowing invariant (spec.md §3, invariant #5), a column
// grant is dropped on ingestion if a table-wide grant of the same
// privilege already covers it — callers should discover table grants
// before column grants, but GrantColumn also re-checks at read time via
// HasColumn, so ingestion order does not matter for correctness.
func (p *UserPrivilege) GrantColumn(priv Privilege, table, column string) {
	if p.tables[priv] != nil && p.tables[priv][table] {
		return // shadowed by table-wide grant
	}
	if p.columns[priv] == nil {
		p.columns[priv] = make(map[string]bool)
	}
	p.columns[priv][table+"."+column] = true
}

// Finalize drops any column grant shadowed by a table grant added after
// the column grant was ingested. Call once after all Grant* calls.
func (p *UserPrivilege) Finalize() {
	for priv, cols := range p.columns {
		tabled := p.tables[priv]
		if len(tabled) == 0 {
			continue
		}
		for qname := range cols {
			table := qname[:lastDot(qname)]
			if tabled[table] {
				delete(cols, qname)
			}
		}
	}
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// HasTable reports whether the user holds priv table-wide on table.
func (p *UserPrivilege) HasTable(priv Privilege, table string) bool {
	return p.tables[priv] != nil && p.tables[priv][table]
}

// HasColumn reports whether the user holds priv on "table.column",
// either via a table-wide grant or a column-level grant.
func (p *UserPrivilege) HasColumn(priv Privilege, table, column string) bool {
	if p.HasTable(priv, table) {
		return true
	}
	return p.columns[priv] != nil && p.columns[priv][table+"."+column]
}

// HasAnyColumnPrivilege reports whether the user holds any privilege on
// any column of table, independent of whether they hold the table
// whole (used by C5 to render "-- Access: Partial columns").
func (p *UserPrivilege) HasAnyColumnPrivilege(table string) bool {
	prefix := table + "."
	for _, cols := range p.columns {
		for qname := range cols {
			if len(qname) > len(prefix) && qname[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}

// TablePrivileges returns, in the stable Privileges order, every
// privilege the user holds table-wide on table.
func (p *UserPrivilege) TablePrivileges(table string) []Privilege {
	var held []Privilege
	for _, priv := range Privileges {
		if p.HasTable(priv, table) {
			held = append(held, priv)
		}
	}
	return held
}

// ColumnPrivileges returns, in the stable Privileges order, every
// privilege the user holds specifically on "table.column" (column-level
// grants only — a table-wide grant already makes the whole table
// visible and is reported via TablePrivileges instead).
func (p *UserPrivilege) ColumnPrivileges(table, column string) []Privilege {
	qname := table + "." + column
	var held []Privilege
	for _, priv := range Privileges {
		if p.columns[priv] != nil && p.columns[priv][qname] {
			held = append(held, priv)
		}
	}
	return held
}

// HeldPrivileges returns the sorted list of privileges the user holds
// anywhere (table-wide or column-level), used by C6 to decide which
// per-operation execution tools to register.
func (p *UserPrivilege) HeldPrivileges() []Privilege {
	held := make(map[Privilege]bool)
	for priv, set := range p.tables {
		if len(set) > 0 {
			held[priv] = true
		}
	}
	for priv, set := range p.columns {
		if len(set) > 0 {
			held[priv] = true
		}
	}
	var out []Privilege
	for _, priv := range Privileges {
		if held[priv] {
			out = append(out, priv)
		}
	}
	return out
}

// objectEntry is one ObjectACL bucket's value: either a flat list of
// whole-object names, or a per-object map of column names (the "dict
// form" in spec.md §4.2).
type objectEntry struct {
	// wholeObjects is populated for the "list form": whole names denied
	// or permitted regardless of column.
	wholeObjects map[string]bool
	// columnsByObject is populated for the "dict form": per-object
	// column-granular control. A nil value (as opposed to an absent
	// key) is never produced; an object present here with an empty set
	// denies/permits no columns at all.
	columnsByObject map[string]map[string]bool
}

func newObjectEntry() *objectEntry {
	return &objectEntry{
		wholeObjects:    make(map[string]bool),
		columnsByObject: make(map[string]map[string]bool),
	}
}

func (e *objectEntry) empty() bool {
	return len(e.wholeObjects) == 0 && len(e.columnsByObject) == 0
}

func (e *objectEntry) mergeList(names []string) {
	for _, n := range names {
		e.wholeObjects[n] = true
	}
}

func (e *objectEntry) mergeDict(object string, columns []string) {
	if e.columnsByObject[object] == nil {
		e.columnsByObject[object] = make(map[string]bool)
	}
	for _, c := range columns {
		e.columnsByObject[object][c] = true
	}
}

// ObjectACL is the TABLE/VIEW-keyed allowlist and denylist of objects
// and columns. A whitelist and blacklist may both be populated; the
// whitelist wins for any object type where it is non-empty (spec.md
// §4.2, invariant #4).
type ObjectACL struct {
	whitelist map[ObjectType]*objectEntry
	blacklist map[ObjectType]*objectEntry
}

// NewObjectACL builds an empty ObjectACL.
func NewObjectACL() *ObjectACL {
	return &ObjectACL{
		whitelist: make(map[ObjectType]*objectEntry),
		blacklist: make(map[ObjectType]*objectEntry),
	}
}

func (a *ObjectACL) entry(list map[ObjectType]*objectEntry, t ObjectType) *objectEntry {
	t = canonicalObjectType(t)
	e := list[t]
	if e == nil {
		e = newObjectEntry()
		list[t] = e
	}
	return e
}

// AllowList merges a whole-object list into the whitelist for t.
func (a *ObjectACL) AllowList(t ObjectType, names []string) { a.entry(a.whitelist, t).mergeList(names) }

// AllowColumns merges a per-object column list into the whitelist for t.
func (a *ObjectACL) AllowColumns(t ObjectType, object string, columns []string) {
	a.entry(a.whitelist, t).mergeDict(object, columns)
}

// DenyList merges a whole-object list into the blacklist for t.
func (a *ObjectACL) DenyList(t ObjectType, names []string) { a.entry(a.blacklist, t).mergeList(names) }

// DenyColumns merges a per-object column list into the blacklist for t.
func (a *ObjectACL) DenyColumns(t ObjectType, object string, columns []string) {
	a.entry(a.blacklist, t).mergeDict(object, columns)
}

// Decision is the outcome of evaluating a table or column against the
// policy: whether access is permitted, and (for partial grants) which
// columns are specifically visible.
type Decision struct {
	Allowed bool
	// Partial is true when only specific columns of the object are
	// reachable (dict-form whitelist or blacklist), as opposed to the
	// whole object being allowed or denied.
	Partial bool
}

// AllowsObject reports whether the whole object (with no column
// qualification) is reachable under the policy for type t.
func (a *ObjectACL) AllowsObject(t ObjectType, object string) Decision {
	t = canonicalObjectType(t)
	if wl := a.whitelist[t]; wl != nil && !wl.empty() {
		if wl.wholeObjects[object] {
			return Decision{Allowed: true}
		}
		if _, ok := wl.columnsByObject[object]; ok {
			return Decision{Allowed: true, Partial: true}
		}
		return Decision{Allowed: false}
	}
	if bl := a.blacklist[t]; bl != nil && !bl.empty() {
		if bl.wholeObjects[object] {
			return Decision{Allowed: false}
		}
		if _, ok := bl.columnsByObject[object]; ok {
			return Decision{Allowed: true, Partial: true}
		}
		return Decision{Allowed: true}
	}
	return Decision{Allowed: true}
}

// AllowsColumn reports whether a specific column of object is reachable
// under the policy for type t.
func (a *ObjectACL) AllowsColumn(t ObjectType, object, column string) bool {
	t = canonicalObjectType(t)
	if wl := a.whitelist[t]; wl != nil && !wl.empty() {
		if wl.wholeObjects[object] {
			return true
		}
		cols, ok := wl.columnsByObject[object]
		if !ok {
			return false
		}
		return cols[column]
	}
	if bl := a.blacklist[t]; bl != nil && !bl.empty() {
		if bl.wholeObjects[object] {
			return false
		}
		cols, ok := bl.columnsByObject[object]
		if !ok {
			return true
		}
		return !cols[column]
	}
	return true
}

// VisibleColumns filters the supplied column list down to those
// permitted for object under type t, preserving input order.
func (a *ObjectACL) VisibleColumns(t ObjectType, object string, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if a.AllowsColumn(t, object, c) {
			out = append(out, c)
		}
	}
	return out
}

// ToolACL is the whitelist/blacklist of operation names permitted
// against the execution-tool surface. Unlike ObjectACL it has no
// column dimension.
type ToolACL struct {
	whitelist map[Privilege]bool
	blacklist map[Privilege]bool
}

// NewToolACL builds an empty ToolACL (no filtering).
func NewToolACL() *ToolACL {
	return &ToolACL{whitelist: make(map[Privilege]bool), blacklist: make(map[Privilege]bool)}
}

// Allow adds ops to the whitelist.
func (t *ToolACL) Allow(ops []Privilege) {
	for _, op := range ops {
		t.whitelist[op] = true
	}
}

// Deny adds ops to the blacklist.
func (t *ToolACL) Deny(ops []Privilege) {
	for _, op := range ops {
		t.blacklist[op] = true
	}
}

// Permits reports whether op is reachable as a tool, applying
// whitelist-over-blacklist precedence.
func (t *ToolACL) Permits(op Privilege) bool {
	if len(t.whitelist) > 0 {
		return t.whitelist[op]
	}
	if len(t.blacklist) > 0 {
		return !t.blacklist[op]
	}
	return true
}

// Error types for the ACL package. ParseError carries a category tag
// matching spec.md §7's ACLParseError.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return fmt.Sprintf("ACLParseError: %s", e.Reason) }

func newParseError(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}
