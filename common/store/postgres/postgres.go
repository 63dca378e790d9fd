// Package postgres is the pgx-backed store backend
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lyzr/workflow-router/common/db"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
	"github.com/lyzr/workflow-router/common/store/sqlbase"
)

// Backend serves store tables from a pgx pool
type Backend struct {
	db  *db.DB
	log *logger.Logger
}

// New wraps an open pool
func New(database *db.DB, log *logger.Logger) *Backend {
	return &Backend{db: database, log: log}
}

// EnsureSchema creates any missing tables in one transaction
func (b *Backend) EnsureSchema(ctx context.Context) error {
	err := b.db.InTx(ctx, func(tx pgx.Tx) error {
		for _, def := range store.Schema {
			if _, err := tx.Exec(ctx, sqlbase.CreateTable(sqlbase.Postgres, def)); err != nil {
				return fmt.Errorf("failed to create table %s: %w", def.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.log.Info("postgres schema ensured", "tables", len(store.Schema))
	return nil
}

// Table returns the named table
func (b *Backend) Table(name string) store.Table {
	def, ok := store.Lookup(name)
	return &table{backend: b, name: name, def: def, known: ok}
}

// Health pings the pool
func (b *Backend) Health(ctx context.Context) error {
	return b.db.Health(ctx)
}

// Close releases the pool
func (b *Backend) Close() error {
	b.db.Close()
	return nil
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
	stmt, err := sqlbase.Select(sqlbase.Postgres, t.def, q)
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
	stmt, err := sqlbase.Insert(sqlbase.Postgres, t.def, row)
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
	stmt, err := sqlbase.Update(sqlbase.Postgres, t.def, id, patch)
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
	stmt, err := sqlbase.Delete(sqlbase.Postgres, t.def, filters...)
	if err != nil {
		return err
	}
	tag, err := t.backend.db.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	t.backend.log.Debug("rows deleted", "table", t.name, "count", tag.RowsAffected())
	return nil
}

func (t *table) query(ctx context.Context, stmt sqlbase.Statement) ([]store.Row, error) {
	rows, err := t.backend.db.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(t.def, rows)
}

func collect(def store.TableDef, rows pgx.Rows) ([]store.Row, error) {
	fields := rows.FieldDescriptions()
	var out []store.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(store.Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, sqlbase.Normalize(def, row))
	}
	return out, rows.Err()
}
