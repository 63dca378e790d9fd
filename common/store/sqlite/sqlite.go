// Package sqlite is the single-file store backend on modernc.org/sqlite
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
	"github.com/lyzr/workflow-router/common/store/sqlbase"
)

// Backend serves store tables from one sqlite database
type Backend struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens (or creates) the database at path and ensures the schema.
// Foreign keys are enforced so edge rows cannot outlive their nodes.
func Open(ctx context.Context, path string, log *logger.Logger) (*Backend, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serializes writers anyway; one connection also keeps :memory: coherent
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, log: log}
	if err := b.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("sqlite store opened", "path", path)
	return b, nil
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	for _, def := range store.Schema {
		if _, err := b.db.ExecContext(ctx, sqlbase.CreateTable(sqlbase.SQLite, def)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", def.Name, err)
		}
	}
	return nil
}

// Table returns the named table
func (b *Backend) Table(name string) store.Table {
	def, ok := store.Lookup(name)
	return &table{backend: b, name: name, def: def, known: ok}
}

// Health pings the database
func (b *Backend) Health(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database
func (b *Backend) Close() error {
	return b.db.Close()
}

type table struct {
	backend *Backend
	name    string
	def     store.TableDef
	known   bool
}

func (t *table) Name() string { return t.name }

func (t *table) check() error {
	if !t.known {
		return fmt.Errorf("unknown table %q", t.name)
	}
	return nil
}

func (t *table) List(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	stmt, err := sqlbase.Select(sqlbase.SQLite, t.def, q)
	if err != nil {
		return nil, err
	}
	rows, err := t.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return rows, nil
}

func (t *table) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	stmt, err := sqlbase.Insert(sqlbase.SQLite, t.def, row)
	if err != nil {
		return nil, err
	}
	rows, err := t.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", t.name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert %s: no row returned", t.name)
	}
	return rows[0], nil
}

func (t *table) Update(ctx context.Context, id any, patch store.Row) (store.Row, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	stmt, err := sqlbase.Update(sqlbase.SQLite, t.def, id, patch)
	if err != nil {
		return nil, err
	}
	rows, err := t.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %v: %w", t.name, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s %v: %w", t.name, id, store.ErrNotFound)
	}
	return rows[0], nil
}

func (t *table) Remove(ctx context.Context, id any) error {
	return t.RemoveWhere(ctx, store.Eq("id", id))
}

func (t *table) RemoveWhere(ctx context.Context, filters ...store.Filter) error {
	if err := t.check(); err != nil {
		return err
	}
	stmt, err := sqlbase.Delete(sqlbase.SQLite, t.def, filters...)
	if err != nil {
		return err
	}
	res, err := t.backend.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		t.backend.log.Debug("rows deleted", "table", t.name, "count", n)
	}
	return nil
}

func (t *table) query(ctx context.Context, stmt sqlbase.Statement) ([]store.Row, error) {
	rows, err := t.backend.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, sqlbase.Normalize(t.def, row))
	}
	return out, rows.Err()
}
