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
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/marcus-qen/dbgateway/internal/acl"
)

func init() {
	Register(MySQL, func(cfg *DBConfig) Adapter {
		return &mysqlAdapter{cfg: cfg, log: zap.L().Named("dbadapter.mysql")}
	})
}

// mysqlAdapter is new relative to original_source (SPEC_FULL.md §12.5):
// the Python reference only ever shipped a Postgres adapter, but C1's
// registry is engine-agnostic by design, so MySQL gets the second
// concrete implementation, introspecting privileges via SHOW GRANTS
// rather than information_schema.role_table_grants (MySQL's
// information_schema exposes no such view for the current session).
type mysqlAdapter struct {
	cfg *DBConfig
	log *zap.Logger

	db *sql.DB
	*session
}

func (a *mysqlAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("mysql", a.cfg.DSN())
	if err != nil {
		return NewConnectionError(err)
	}
	if err := ping(ctx, db); err != nil {
		db.Close()
		return err
	}
	a.db = db
	a.session = newSession(db, a.cfg.Readonly, a.log)
	return nil
}

func (a *mysqlAdapter) Close(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	return a.session.close(ctx)
}

func (a *mysqlAdapter) ExecuteQuery(ctx context.Context, sqlText string) (*QueryResult, int64, bool, error) {
	if a.session == nil {
		return nil, 0, false, NewConnectionError(nil)
	}
	return a.session.execute(ctx, func(ctx context.Context, q queryer) (*QueryResult, int64, bool, error) {
		return runStatement(ctx, q, sqlText)
	})
}

func (a *mysqlAdapter) Begin(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.begin(ctx)
}

func (a *mysqlAdapter) Commit(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.commit(ctx)
}

func (a *mysqlAdapter) Rollback(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.rollback(ctx)
}

// grantLine matches one row of SHOW GRANTS FOR CURRENT_USER(), e.g.
//
//	GRANT SELECT, INSERT ON `mydb`.`mytable` TO `user`@`%`
//	GRANT SELECT (col1, col2) ON `mydb`.`mytable` TO `user`@`%`
//	GRANT ALL PRIVILEGES ON `mydb`.* TO `user`@`%`
var grantLine = regexp.MustCompile(
	`(?i)^GRANT\s+(.+?)\s+ON\s+` + "`?([^`.\\s]+)`?" + `\.` + "`?([^`\\s]+)`?" + `\s+TO\s`,
)

// columnGrant matches one "PRIVNAME (col1, col2)" clause inside a
// grant's privilege list.
var columnGrant = regexp.MustCompile(`(?i)([A-Z ]+?)\s*\(([^)]+)\)`)

// GetUserPrivileges parses SHOW GRANTS FOR CURRENT_USER() into the same
// acl.UserPrivilege shape pgAdapter builds from information_schema,
// grounded on SPEC_FULL.md §12.5's MySQL introspection plan.
func (a *mysqlAdapter) GetUserPrivileges(ctx context.Context) (*acl.UserPrivilege, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}

	rows, err := a.db.QueryContext(ctx, "SHOW GRANTS FOR CURRENT_USER()")
	if err != nil {
		return nil, &DatabaseError{Reason: fmt.Sprintf("failed to fetch user privileges: %v", err)}
	}
	defer rows.Close()

	priv := acl.NewUserPrivilege()
	type pendingCol struct {
		table, column string
		op            acl.Privilege
	}
	var pending []pendingCol

	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, &DatabaseError{Reason: err.Error()}
		}

		m := grantLine.FindStringSubmatch(line)
		if m == nil {
			continue // role grants and other lines without an ON clause: nothing this gateway models
		}
		privList, schema, tableOrStar := m[1], m[2], m[3]
		if tableOrStar == "*" {
			continue // global (*.*) or database-wide grant; no specific table to attribute it to
		}
		if schema != a.cfg.Database {
			continue // grant on a different database than the one this session is connected to
		}
		// Table names are ingested bare, matching GetTopLevelObjects/
		// GetDatabaseSchema (both scoped to DATABASE()) and the
		// classifier, which is schema-agnostic.
		table := tableOrStar

		remaining := privList
		for _, colm := range columnGrant.FindAllStringSubmatch(privList, -1) {
			op := normalizeMySQLPrivilege(colm[1])
			if op == "" {
				continue
			}
			for _, col := range strings.Split(colm[2], ",") {
				pending = append(pending, pendingCol{table: table, column: strings.TrimSpace(strings.Trim(col, "` ")), op: op})
			}
			remaining = strings.Replace(remaining, colm[0], "", 1)
		}

		for _, name := range strings.Split(remaining, ",") {
			op := normalizeMySQLPrivilege(name)
			if op == "" {
				continue
			}
			priv.GrantTable(op, table)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}

	for _, p := range pending {
		priv.GrantColumn(p.op, p.table, p.column)
	}
	priv.Finalize()
	return priv, nil
}

func normalizeMySQLPrivilege(raw string) acl.Privilege {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if acl.ValidPrivilege(name) {
		return acl.Privilege(name)
	}
	return ""
}

func (a *mysqlAdapter) GetTopLevelObjects(ctx context.Context) (*TopLevelObjects, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}
	tables, err := a.queryNames(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	views, err := a.queryNames(ctx, `
		SELECT table_name FROM information_schema.views
		WHERE table_schema = DATABASE()
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return &TopLevelObjects{Tables: tables, Views: views}, nil
}

func (a *mysqlAdapter) queryNames(ctx context.Context, query string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, &DatabaseError{Reason: err.Error()}
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (a *mysqlAdapter) GetTableDetails(ctx context.Context, name string) (*TableSchema, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}
	return a.tableInfo(ctx, name)
}

func (a *mysqlAdapter) GetDatabaseSchema(ctx context.Context) (DatabaseSchema, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}
	objs, err := a.GetTopLevelObjects(ctx)
	if err != nil {
		return nil, err
	}
	schema := make(DatabaseSchema)
	for _, name := range append(append([]string{}, objs.Tables...), objs.Views...) {
		info, err := a.tableInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		schema[name] = *info
	}
	return schema, nil
}

func (a *mysqlAdapter) tableInfo(ctx context.Context, table string) (*TableSchema, error) {
	info := &TableSchema{Name: table}

	colRows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	for colRows.Next() {
		var c Column
		if err := colRows.Scan(&c.Name, &c.Type, &c.Nullable); err != nil {
			colRows.Close()
			return nil, &DatabaseError{Reason: err.Error()}
		}
		info.Columns = append(info.Columns, c)
	}
	colRows.Close()
	if err := colRows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	if len(info.Columns) == 0 {
		return nil, &NotFoundError{ObjectType: string(ObjectTable), Name: table}
	}

	pkRows, err := a.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			pkRows.Close()
			return nil, &DatabaseError{Reason: err.Error()}
		}
		info.PrimaryKey = append(info.PrimaryKey, col)
	}
	pkRows.Close()

	fkRows, err := a.db.QueryContext(ctx, `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	seen := make(map[string]bool)
	for fkRows.Next() {
		var fk ForeignKey
		if err := fkRows.Scan(&fk.LocalColumn, &fk.RemoteTable, &fk.RemoteColumn); err != nil {
			fkRows.Close()
			return nil, &DatabaseError{Reason: err.Error()}
		}
		if seen[fk.LocalColumn] {
			continue
		}
		seen[fk.LocalColumn] = true
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	fkRows.Close()
	if err := fkRows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}

	idxRows, err := a.db.QueryContext(ctx, `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index`, table)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	byName := make(map[string]*Index)
	var order []string
	for idxRows.Next() {
		var name, col string
		var nonUnique bool
		if err := idxRows.Scan(&name, &col, &nonUnique); err != nil {
			idxRows.Close()
			return nil, &DatabaseError{Reason: err.Error()}
		}
		idx, ok := byName[name]
		if !ok {
			idx = &Index{Name: name, Unique: !nonUnique}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, col)
	}
	idxRows.Close()
	if err := idxRows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	for _, name := range order {
		info.Indexes = append(info.Indexes, *byName[name])
	}

	return info, nil
}
