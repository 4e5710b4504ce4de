/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dbadapter

import "strings"

// indexColumnsFromDef extracts the parenthesized column list out of a
// pg_indexes.indexdef string, e.g.
// "CREATE UNIQUE INDEX foo_pkey ON public.foo USING btree (id)" -> ["id"].
// Expression indexes (no bare column list) yield the raw expression as
// a single entry; this gateway never needs to resolve them further.
func indexColumnsFromDef(def string) []string {
	open := strings.IndexByte(def, '(')
	close := strings.LastIndexByte(def, ')')
	if open < 0 || close < 0 || close <= open {
		return nil
	}
	inner := def[open+1 : close]
	parts := strings.Split(inner, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.TrimSpace(p))
	}
	return cols
}

func containsUnique(def string) bool {
	return strings.Contains(strings.ToUpper(def), "UNIQUE")
}
