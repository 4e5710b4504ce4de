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
	"strings"
)

// selectPrefixes are the statement keywords database/sql can run through
// QueryContext and get a column set back. Anything else goes through
// ExecContext for an affected-row count, mirroring original_source's
// result.returns_rows branch in sqlalchemy_adapter.execute_query.
var selectPrefixes = []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "VALUES", "TABLE"}

func looksLikeQuery(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	trimmed = strings.TrimLeft(trimmed, "(")
	upper := strings.ToUpper(trimmed)
	for _, p := range selectPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// runStatement executes sqlText against q, the way session.execute's
// callback does for both implicit and explicit sessions. Row-producing
// statements return a populated QueryResult; everything else returns
// the affected-row count.
func runStatement(ctx context.Context, q queryer, sqlText string) (*QueryResult, int64, bool, error) {
	if looksLikeQuery(sqlText) {
		result, err := queryRows(ctx, q, sqlText)
		if err != nil {
			return nil, 0, false, &DatabaseError{Reason: err.Error()}
		}
		return result, 0, true, nil
	}

	res, err := q.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, 0, false, &DatabaseError{Reason: err.Error()}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return nil, affected, false, nil
}

// queryRows runs sqlText and renders every cell to its display string —
// the gateway hands an LLM caller formatted text, never typed driver
// values (spec.md §4.1 execute_query).
func queryRows(ctx context.Context, q queryer, sqlText string) (*QueryResult, error) {
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols, Rows: make([][]string, 0)}

	values := make([]any, len(cols))
	scanTargets := make([]any, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatCell(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ping runs *sql.DB's liveness probe, wrapping a failure in a
// ConnectionError; isolated so it is a one-line call in each engine
// adapter's Connect.
func ping(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return NewConnectionError(err)
	}
	return nil
}
