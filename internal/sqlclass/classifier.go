/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package sqlclass

import (
	"fmt"
	"strings"

	"github.com/marcus-qen/dbgateway/internal/acl"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Classify parses sql and derives its Classification per spec.md §4.3.
// It supports exactly one top-level statement of kind SELECT, INSERT,
// UPDATE or DELETE; anything else is a ParseError, matching "Other
// statement kinds are not supported at execution time."
func Classify(sql string) (*Classification, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}
	if len(tree.Stmts) != 1 {
		return nil, &ParseError{Reason: fmt.Sprintf("expected exactly one statement, got %d", len(tree.Stmts))}
	}
	raw := tree.Stmts[0].Stmt
	if raw == nil {
		return nil, &ParseError{Reason: "empty statement"}
	}

	switch node := raw.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return classifySelect(node.SelectStmt)
	case *pg_query.Node_InsertStmt:
		return classifyInsert(node.InsertStmt)
	case *pg_query.Node_UpdateStmt:
		return classifyUpdate(node.UpdateStmt)
	case *pg_query.Node_DeleteStmt:
		return classifyDelete(node.DeleteStmt)
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported statement kind %T", raw.Node)}
	}
}

// rangeScope is the set of tables and aliases visible while resolving
// unqualified column references within one FROM/USING clause.
type rangeScope struct {
	// tables is the set of bare table names introduced directly (no
	// alias) or whose alias also resolves back to them.
	tables []string
	// aliasMap maps alias -> table name.
	aliasMap map[string]string
}

func newRangeScope() *rangeScope {
	return &rangeScope{aliasMap: make(map[string]string)}
}

// resolve returns the table name a qualifier (could be an alias or a
// bare table name) stands for.
func (r *rangeScope) resolve(qualifier string) string {
	if t, ok := r.aliasMap[qualifier]; ok {
		return t
	}
	return qualifier
}

// soleTable returns the only table in scope, or "" if there is not
// exactly one.
func (r *rangeScope) soleTable() string {
	if len(r.tables) == 1 {
		return r.tables[0]
	}
	return ""
}

func (r *rangeScope) addRangeVar(rv *pg_query.RangeVar) {
	if rv == nil || rv.Relname == "" {
		return
	}
	r.tables = append(r.tables, rv.Relname)
	r.aliasMap[rv.Relname] = rv.Relname
	if rv.Alias != nil && rv.Alias.Aliasname != "" {
		r.aliasMap[rv.Alias.Aliasname] = rv.Relname
	}
}

// collectFromClause walks a FROM/USING clause list (RangeVar and
// JoinExpr nodes, recursively) into scope, and returns every expression
// node that needs walking for column references (JOIN ON quals). A
// subselect in FROM is classified on its own and contributes its tables
// to scope; it is not returned.
func collectFromClause(items []*pg_query.Node, scope *rangeScope) []*pg_query.Node {
	var exprs []*pg_query.Node
	var walk func(n *pg_query.Node)
	walk = func(n *pg_query.Node) {
		if n == nil {
			return
		}
		switch node := n.Node.(type) {
		case *pg_query.Node_RangeVar:
			scope.addRangeVar(node.RangeVar)
		case *pg_query.Node_JoinExpr:
			walk(node.JoinExpr.Larg)
			walk(node.JoinExpr.Rarg)
			if node.JoinExpr.Quals != nil {
				exprs = append(exprs, node.JoinExpr.Quals)
			}
		case *pg_query.Node_RangeSubselect:
			if node.RangeSubselect.Subquery != nil {
				if sel, ok := node.RangeSubselect.Subquery.Node.(*pg_query.Node_SelectStmt); ok {
					sub, err := classifySelect(sel.SelectStmt)
					if err == nil {
						for t := range sub.Tables {
							scope.tables = append(scope.tables, t)
							scope.aliasMap[t] = t
						}
					}
				}
			}
		}
	}
	for _, item := range items {
		walk(item)
	}
	return exprs
}

// collectColumnRefs recursively walks an expression tree, invoking
// visit for every ColumnRef it finds. It covers the expression node
// kinds that appear in ordinary WHERE/SET/target-list SQL: boolean and
// arithmetic operators, function calls, casts, CASE, NULL tests,
// COALESCE, and scalar subqueries. Node kinds outside this list (window
// functions, array constructors nested arbitrarily deep, etc.) are
// left unvisited — the classifier is a privilege-derivation tool, not a
// general SQL evaluator, and an unresolvable reference inside one of
// those constructs simply is not included in the required-permission
// set (Gate's privilege check, which fails closed on ambiguity, is the
// backstop for anything this walk misses).
func collectColumnRefs(n *pg_query.Node, visit func(*pg_query.ColumnRef)) {
	if n == nil {
		return
	}
	switch node := n.Node.(type) {
	case *pg_query.Node_ColumnRef:
		visit(node.ColumnRef)
	case *pg_query.Node_AExpr:
		collectColumnRefs(node.AExpr.Lexpr, visit)
		collectColumnRefs(node.AExpr.Rexpr, visit)
	case *pg_query.Node_BoolExpr:
		for _, a := range node.BoolExpr.Args {
			collectColumnRefs(a, visit)
		}
	case *pg_query.Node_FuncCall:
		for _, a := range node.FuncCall.Args {
			collectColumnRefs(a, visit)
		}
	case *pg_query.Node_TypeCast:
		collectColumnRefs(node.TypeCast.Arg, visit)
	case *pg_query.Node_CaseExpr:
		for _, w := range node.CaseExpr.Args {
			if when, ok := w.Node.(*pg_query.Node_CaseWhen); ok {
				collectColumnRefs(when.CaseWhen.Expr, visit)
				collectColumnRefs(when.CaseWhen.Result, visit)
			}
		}
		collectColumnRefs(node.CaseExpr.Defresult, visit)
	case *pg_query.Node_NullTest:
		collectColumnRefs(node.NullTest.Arg, visit)
	case *pg_query.Node_BooleanTest:
		collectColumnRefs(node.BooleanTest.Arg, visit)
	case *pg_query.Node_CoalesceExpr:
		for _, a := range node.CoalesceExpr.Args {
			collectColumnRefs(a, visit)
		}
	case *pg_query.Node_MinMaxExpr:
		for _, a := range node.MinMaxExpr.Args {
			collectColumnRefs(a, visit)
		}
	case *pg_query.Node_AIndirection:
		collectColumnRefs(node.AIndirection.Arg, visit)
	case *pg_query.Node_AArrayExpr:
		for _, a := range node.AArrayExpr.Elements {
			collectColumnRefs(a, visit)
		}
	case *pg_query.Node_SubLink:
		collectColumnRefs(node.SubLink.Testexpr, visit)
		// The subquery's own column references are resolved against
		// its own scope, not the outer one; classifySelect handles
		// that recursively when the subquery appears in FROM. A
		// sub-SELECT in an expression position contributes nothing
		// further to the outer scope's column set here.
	case *pg_query.Node_ResTarget:
		collectColumnRefs(node.ResTarget.Val, visit)
	}
}

// columnRefParts extracts "qualifier.column" (qualifier may be empty)
// from a ColumnRef's Fields list. A trailing A_Star (SELECT *) yields
// column name "*".
func columnRefParts(ref *pg_query.ColumnRef) (qualifier, column string) {
	var parts []string
	for _, f := range ref.Fields {
		if f == nil {
			continue
		}
		switch field := f.Node.(type) {
		case *pg_query.Node_String_:
			parts = append(parts, field.String_.Sval)
		case *pg_query.Node_AStar:
			parts = append(parts, "*")
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

// requireTableUnlessColumned records a table-wide priv requirement on
// table, unless priv was already required on one of its columns — in
// which case the finer-grained column requirement stands in for it.
// This closes Gate-completeness (spec.md §8 invariant #2) for
// statements that reference a table without resolving any of its
// columns, without forcing a table-wide grant on statements a
// column-level grant already covers.
func requireTableUnlessColumned(c *Classification, priv acl.Privilege, table string) {
	byType := c.Required[priv]
	if byType != nil {
		prefix := table + "."
		for qname := range byType[acl.ObjectColumn] {
			if strings.HasPrefix(qname, prefix) {
				c.Tables[table] = true
				return
			}
		}
	}
	c.RequireTable(priv, table)
}

// resolveAndRequire attributes a ColumnRef to a table (via scope) and
// records the requirement, or — if unqualified and scope has more than
// one table — records it as unqualified for Gate to resolve or fail
// closed on (spec.md §4.4 point 2).
func resolveAndRequire(c *Classification, scope *rangeScope, priv acl.Privilege, ref *pg_query.ColumnRef) {
	qualifier, column := columnRefParts(ref)
	if column == "" || column == "*" {
		if column == "*" && qualifier == "" {
			for _, t := range scope.tables {
				c.RequireTable(priv, t)
			}
		} else if column == "*" {
			c.RequireTable(priv, scope.resolve(qualifier))
		}
		return
	}
	if qualifier != "" {
		c.RequireColumn(priv, scope.resolve(qualifier), column)
		return
	}
	if sole := scope.soleTable(); sole != "" {
		c.RequireColumn(priv, sole, column)
		return
	}
	c.RequireUnqualifiedColumn(priv, column)
}

func classifySelect(stmt *pg_query.SelectStmt) (*Classification, error) {
	c := newClassification(acl.Select)
	scope := newRangeScope()
	extra := collectFromClause(stmt.FromClause, scope)
	for alias, table := range scope.aliasMap {
		c.AliasMap[alias] = table
	}

	visit := func(ref *pg_query.ColumnRef) { resolveAndRequire(c, scope, acl.Select, ref) }

	for _, t := range stmt.TargetList {
		collectColumnRefs(t, visit)
	}
	for _, e := range extra {
		collectColumnRefs(e, visit)
	}
	collectColumnRefs(stmt.WhereClause, visit)
	collectColumnRefs(stmt.HavingClause, visit)
	for _, g := range stmt.GroupClause {
		collectColumnRefs(g, visit)
	}
	for _, s := range stmt.SortClause {
		collectColumnRefs(s, visit)
	}

	// A table reached without resolving any of its columns (SELECT 1
	// FROM t, SELECT count(*) FROM t) still needs a recorded
	// requirement — otherwise it passes the gate with an empty
	// Required set, violating Gate-completeness (spec.md §8 invariant
	// #2). Tables whose columns did resolve keep the finer-grained
	// column-level requirement instead of also demanding a table-wide
	// grant, preserving column-level privilege grants (spec.md §4.4).
	for _, t := range scope.tables {
		requireTableUnlessColumned(c, acl.Select, t)
	}
	return c, nil
}

func classifyInsert(stmt *pg_query.InsertStmt) (*Classification, error) {
	if stmt.Relation == nil {
		return nil, &ParseError{Reason: "INSERT missing target relation"}
	}
	c := newClassification(acl.Insert)
	target := stmt.Relation.Relname
	c.Tables[target] = true

	for _, col := range stmt.Cols {
		rt, ok := col.Node.(*pg_query.Node_ResTarget)
		if !ok || rt.ResTarget.Name == "" {
			continue
		}
		c.RequireColumn(acl.Insert, target, rt.ResTarget.Name)
	}
	if len(stmt.Cols) == 0 {
		c.RequireTable(acl.Insert, target)
	}

	if stmt.SelectStmt != nil {
		if sel, ok := stmt.SelectStmt.Node.(*pg_query.Node_SelectStmt); ok {
			sub, err := classifySelect(sel.SelectStmt)
			if err != nil {
				return nil, err
			}
			mergeSelectRequirements(c, sub)
		}
	}
	return c, nil
}

func classifyUpdate(stmt *pg_query.UpdateStmt) (*Classification, error) {
	if stmt.Relation == nil {
		return nil, &ParseError{Reason: "UPDATE missing target relation"}
	}
	c := newClassification(acl.Update)
	scope := newRangeScope()
	scope.addRangeVar(stmt.Relation)
	extra := collectFromClause(stmt.FromClause, scope)
	target := stmt.Relation.Relname

	for _, t := range stmt.TargetList {
		rt, ok := t.Node.(*pg_query.Node_ResTarget)
		if !ok {
			continue
		}
		if rt.ResTarget.Name != "" {
			c.RequireColumn(acl.Update, target, rt.ResTarget.Name)
		}
		collectColumnRefs(rt.ResTarget.Val, func(ref *pg_query.ColumnRef) {
			resolveAndRequire(c, scope, acl.Select, ref)
		})
	}

	selectVisit := func(ref *pg_query.ColumnRef) { resolveAndRequire(c, scope, acl.Select, ref) }
	collectColumnRefs(stmt.WhereClause, selectVisit)
	for _, e := range extra {
		collectColumnRefs(e, selectVisit)
	}
	// Other tables reached via FROM/joins need SELECT, same as a
	// referenced table in a SELECT (original_source: "Other tables
	// accessed need SELECT permission").
	for _, t := range scope.tables {
		if t != target {
			requireTableUnlessColumned(c, acl.Select, t)
		}
	}
	return c, nil
}

func classifyDelete(stmt *pg_query.DeleteStmt) (*Classification, error) {
	if stmt.Relation == nil {
		return nil, &ParseError{Reason: "DELETE missing target relation"}
	}
	c := newClassification(acl.Delete)
	scope := newRangeScope()
	scope.addRangeVar(stmt.Relation)
	extra := collectFromClause(stmt.UsingClause, scope)
	target := stmt.Relation.Relname
	c.RequireTable(acl.Delete, target)

	selectVisit := func(ref *pg_query.ColumnRef) { resolveAndRequire(c, scope, acl.Select, ref) }
	collectColumnRefs(stmt.WhereClause, selectVisit)
	for _, e := range extra {
		collectColumnRefs(e, selectVisit)
	}
	// Other tables reached via USING/joins need SELECT, same as a
	// referenced table in a SELECT (original_source: "Other tables
	// accessed need SELECT permission").
	for _, t := range scope.tables {
		if t != target {
			requireTableUnlessColumned(c, acl.Select, t)
		}
	}
	return c, nil
}

// mergeSelectRequirements folds a sub-SELECT's SELECT-only requirements
// (e.g. INSERT ... SELECT ... FROM other_table) into the parent
// classification without touching the parent's own operation.
func mergeSelectRequirements(dst, src *Classification) {
	for t := range src.Tables {
		dst.Tables[t] = true
	}
	for col := range src.Columns {
		dst.Columns[col] = true
	}
	for col := range src.UnqualifiedColumns {
		dst.UnqualifiedColumns[col] = true
	}
	for alias, table := range src.AliasMap {
		dst.AliasMap[alias] = table
	}
	for priv, byType := range src.Required {
		for objType, names := range byType {
			for name := range names {
				if dst.Required[priv] == nil {
					dst.Required[priv] = make(map[acl.ObjectType]map[string]bool)
				}
				if dst.Required[priv][objType] == nil {
					dst.Required[priv][objType] = make(map[string]bool)
				}
				dst.Required[priv][objType][name] = true
			}
		}
	}
}
