/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dbadapter

import "testing"

func TestRegistryHasBuiltinEngines(t *testing.T) {
	registered := make(map[DBType]bool)
	for _, t := range ListRegistered() {
		registered[t] = true
	}
	if !registered[Postgres] {
		t.Error("expected postgresql adapter registered via init()")
	}
	if !registered[MySQL] {
		t.Error("expected mysql adapter registered via init()")
	}
}

func TestNewUnregisteredType(t *testing.T) {
	cfg := &DBConfig{Type: DBType("oracle"), Host: "h", Port: 1, User: "u", Password: "p", Database: "db"}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError for unregistered type")
	}
}

func TestLooksLikeQuery(t *testing.T) {
	cases := map[string]bool{
		"SELECT 1":                  true,
		"  select * from t":         true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"INSERT INTO t VALUES (1)":  false,
		"UPDATE t SET a = 1":        false,
		"DELETE FROM t":             false,
	}
	for sql, want := range cases {
		if got := looksLikeQuery(sql); got != want {
			t.Errorf("looksLikeQuery(%q) = %v, want %v", sql, got, want)
		}
	}
}
