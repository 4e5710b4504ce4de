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

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/marcus-qen/dbgateway/internal/acl"
)

func init() {
	Register(Postgres, func(cfg *DBConfig) Adapter {
		return &pgAdapter{cfg: cfg, log: zap.L().Named("dbadapter.postgres")}
	})
}

// pgAdapter is the Postgres Adapter, grounded on original_source's
// PostgresAdapter/SqlAlchemyAdapter pair but rebuilt directly on
// database/sql + pgx's stdlib driver instead of an ORM-level inspector.
type pgAdapter struct {
	cfg *DBConfig
	log *zap.Logger

	db *sql.DB
	*session
}

func (a *pgAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("pgx", a.cfg.DSN())
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

func (a *pgAdapter) Close(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	return a.session.close(ctx)
}

func (a *pgAdapter) ExecuteQuery(ctx context.Context, sqlText string) (*QueryResult, int64, bool, error) {
	if a.session == nil {
		return nil, 0, false, NewConnectionError(nil)
	}
	return a.session.execute(ctx, func(ctx context.Context, q queryer) (*QueryResult, int64, bool, error) {
		return runStatement(ctx, q, sqlText)
	})
}

func (a *pgAdapter) Begin(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.begin(ctx)
}

func (a *pgAdapter) Commit(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.commit(ctx)
}

func (a *pgAdapter) Rollback(ctx context.Context) error {
	if a.session == nil {
		return NewConnectionError(nil)
	}
	return a.session.rollback(ctx)
}

// GetUserPrivileges queries information_schema.role_table_grants and
// column_privileges in one UNION, directly mirroring
// original_source/db_adapters/pg_adapter.py's privilege_query — table
// grants shadow column grants of the same privilege at ingestion time
// via acl.UserPrivilege.GrantColumn, then Finalize re-checks after all
// rows are in. Table names are ingested bare (schema unqualified),
// matching GetTopLevelObjects/GetDatabaseSchema and the classifier,
// which are themselves schema-agnostic; original_source bridges the
// same gap the other way, by prefixing "public." onto the object name
// at check time (sql_checker.py's check_privilege).
func (a *pgAdapter) GetUserPrivileges(ctx context.Context) (*acl.UserPrivilege, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}

	var currentUser string
	if err := a.db.QueryRowContext(ctx, "SELECT current_user").Scan(&currentUser); err != nil {
		return nil, &DatabaseError{Reason: fmt.Sprintf("failed to retrieve current user: %v", err)}
	}

	const privilegeQuery = `
		SELECT object_type, privilege_type, table_name, column_name
		FROM (
			SELECT 'TABLE'::text AS object_type, privilege_type, table_schema, table_name, NULL::text AS column_name
			FROM information_schema.role_table_grants
			WHERE grantee = $1

			UNION ALL

			SELECT 'COLUMN'::text AS object_type, privilege_type, table_schema, table_name, column_name
			FROM information_schema.column_privileges
			WHERE grantee = $1
		) AS all_perms`

	rows, err := a.db.QueryContext(ctx, privilegeQuery, currentUser)
	if err != nil {
		return nil, &DatabaseError{Reason: fmt.Sprintf("failed to fetch user privileges: %v", err)}
	}
	defer rows.Close()

	priv := acl.NewUserPrivilege()
	type pending struct {
		table, column string
		op            acl.Privilege
	}
	var pendingCols []pending

	for rows.Next() {
		var objectType, privilegeType, tableName string
		var columnName sql.NullString
		if err := rows.Scan(&objectType, &privilegeType, &tableName, &columnName); err != nil {
			return nil, &DatabaseError{Reason: err.Error()}
		}
		if !acl.ValidPrivilege(privilegeType) {
			continue
		}
		op := acl.Privilege(privilegeType)
		switch objectType {
		case "TABLE":
			priv.GrantTable(op, tableName)
		case "COLUMN":
			if columnName.Valid {
				pendingCols = append(pendingCols, pending{table: tableName, column: columnName.String, op: op})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}

	for _, p := range pendingCols {
		priv.GrantColumn(p.op, p.table, p.column)
	}
	priv.Finalize()
	return priv, nil
}

func (a *pgAdapter) GetTopLevelObjects(ctx context.Context) (*TopLevelObjects, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}
	tables, err := a.queryNames(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema') AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	views, err := a.queryNames(ctx, `
		SELECT table_name FROM information_schema.views
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return &TopLevelObjects{Tables: tables, Views: views}, nil
}

func (a *pgAdapter) queryNames(ctx context.Context, query string) ([]string, error) {
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

func (a *pgAdapter) GetTableDetails(ctx context.Context, name string) (*TableSchema, error) {
	if a.db == nil {
		return nil, NewConnectionError(nil)
	}
	return a.tableInfo(ctx, name)
}

func (a *pgAdapter) GetDatabaseSchema(ctx context.Context) (DatabaseSchema, error) {
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

// tableInfo assembles one TableSchema the way
// sqlalchemy_adapter.get_table_info assembles one table_info dict:
// columns, then primary key, then foreign keys, then indexes, each its
// own information_schema/pg_catalog round trip.
func (a *pgAdapter) tableInfo(ctx context.Context, table string) (*TableSchema, error) {
	info := &TableSchema{Name: table}

	colRows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_name = $1
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
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
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

	// Foreign keys: one row per constraint's first column pair, matching
	// SPEC_FULL.md §12.6's composite-FK limitation.
	fkRows, err := a.db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name AS remote_table, ccu.column_name AS remote_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_name = $1 AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY kcu.ordinal_position`, table)
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
			continue // keep only the first remote pair per local column
		}
		seen[fk.LocalColumn] = true
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	fkRows.Close()

	idxRows, err := a.db.QueryContext(ctx, `
		SELECT indexname, indexdef
		FROM pg_indexes
		WHERE tablename = $1`, table)
	if err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}
	for idxRows.Next() {
		var name, def string
		if err := idxRows.Scan(&name, &def); err != nil {
			idxRows.Close()
			return nil, &DatabaseError{Reason: err.Error()}
		}
		info.Indexes = append(info.Indexes, Index{
			Name:    name,
			Columns: indexColumnsFromDef(def),
			Unique:  containsUnique(def),
		})
	}
	idxRows.Close()
	if err := idxRows.Err(); err != nil {
		return nil, &DatabaseError{Reason: err.Error()}
	}

	return info, nil
}
