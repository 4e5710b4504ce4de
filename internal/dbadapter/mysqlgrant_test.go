/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dbadapter

import "testing"

func TestGrantLineTableWide(t *testing.T) {
	m := grantLine.FindStringSubmatch("GRANT SELECT, INSERT ON `billing`.`invoices` TO `svc`@`%`")
	if m == nil {
		t.Fatal("expected match")
	}
	if privList, schema, table := m[1], m[2], m[3]; privList != "SELECT, INSERT" || schema != "billing" || table != "invoices" {
		t.Fatalf("got %q %q %q", privList, schema, table)
	}
}

func TestGrantLineSchemaWide(t *testing.T) {
	m := grantLine.FindStringSubmatch("GRANT ALL PRIVILEGES ON `billing`.* TO `svc`@`%`")
	if m == nil {
		t.Fatal("expected match")
	}
	if table := m[3]; table != "*" {
		t.Fatalf("got %q", table)
	}
}

func TestColumnGrantExtraction(t *testing.T) {
	matches := columnGrant.FindAllStringSubmatch("SELECT (col1, col2), UPDATE (col3)", -1)
	if len(matches) != 2 {
		t.Fatalf("got %d matches", len(matches))
	}
	if normalizeMySQLPrivilege(matches[0][1]) != "SELECT" {
		t.Fatalf("got %q", matches[0][1])
	}
	if normalizeMySQLPrivilege(matches[1][1]) != "UPDATE" {
		t.Fatalf("got %q", matches[1][1])
	}
}

func TestNormalizeMySQLPrivilege(t *testing.T) {
	if normalizeMySQLPrivilege("select") != "SELECT" {
		t.Fatal("expected normalization to SELECT")
	}
	if normalizeMySQLPrivilege("TRIGGER") != "" {
		t.Fatal("expected unrecognized privilege to be dropped")
	}
}
