/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package mcpgateway

import (
	"context"
	"strings"

	"github.com/marcus-qen/dbgateway/internal/acl"
	"github.com/marcus-qen/dbgateway/internal/dbadapter"
)

// fakeAdapter is an in-memory dbadapter.Adapter stand-in: one table
// ("users") with a fixed set of rows, enough to exercise the tool
// surface without a real database connection.
type fakeAdapter struct {
	rows [][]string
	err  error
}

func (f *fakeAdapter) Connect(ctx context.Context) error { return nil }
func (f *fakeAdapter) Close(ctx context.Context) error    { return nil }

func (f *fakeAdapter) ExecuteQuery(ctx context.Context, sql string) (*dbadapter.QueryResult, int64, bool, error) {
	if f.err != nil {
		return nil, 0, false, f.err
	}
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(upper, "SELECT") {
		return &dbadapter.QueryResult{Columns: []string{"id", "name"}, Rows: f.rows}, 0, true, nil
	}
	return nil, int64(len(f.rows)), false, nil
}

func (f *fakeAdapter) Begin(ctx context.Context) error    { return f.err }
func (f *fakeAdapter) Commit(ctx context.Context) error   { return f.err }
func (f *fakeAdapter) Rollback(ctx context.Context) error { return f.err }

func (f *fakeAdapter) GetUserPrivileges(ctx context.Context) (*acl.UserPrivilege, error) {
	p := acl.NewUserPrivilege()
	p.GrantTable(acl.Select, "users")
	p.GrantTable(acl.Insert, "users")
	return p, nil
}

func (f *fakeAdapter) GetTopLevelObjects(ctx context.Context) (*dbadapter.TopLevelObjects, error) {
	return &dbadapter.TopLevelObjects{Tables: []string{"users"}}, nil
}

func (f *fakeAdapter) GetTableDetails(ctx context.Context, name string) (*dbadapter.TableSchema, error) {
	return &dbadapter.TableSchema{
		Name:    name,
		Columns: []dbadapter.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "text"}},
	}, nil
}

func (f *fakeAdapter) GetDatabaseSchema(ctx context.Context) (dbadapter.DatabaseSchema, error) {
	return dbadapter.DatabaseSchema{
		"users": {
			Name:    "users",
			Columns: []dbadapter.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "text"}},
		},
	}, nil
}
