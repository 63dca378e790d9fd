// Package memory is an in-process store backend with auto-increment ids.
// It records every mutating call so tests can assert on the exact set of
// remote operations a component issued.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lyzr/workflow-router/common/store"
)

// Operation is one recorded mutating call
type Operation struct {
	Table   string
	Kind    string // insert | update | remove | remove_where
	ID      any
	Row     store.Row
	Filters []store.Filter
}

// Backend holds every table in memory
type Backend struct {
	mu      sync.Mutex
	tables  map[string]*table
	ops     []Operation
	failing map[string]error // "table:kind" -> error
}

// New creates an empty backend
func New() *Backend {
	return &Backend{
		tables:  make(map[string]*table),
		failing: make(map[string]error),
	}
}

// Table returns the named table, creating it on first use
func (b *Backend) Table(name string) store.Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[name]
	if !ok {
		t = &table{name: name, backend: b}
		b.tables[name] = t
	}
	return t
}

// Health always succeeds
func (b *Backend) Health(ctx context.Context) error { return nil }

// Close is a no-op
func (b *Backend) Close() error { return nil }

// Operations returns the recorded mutating calls
func (b *Backend) Operations() []Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Operation, len(b.ops))
	copy(out, b.ops)
	return out
}

// OperationsOn returns the recorded calls against one table
func (b *Backend) OperationsOn(tableName string) []Operation {
	var out []Operation
	for _, op := range b.Operations() {
		if op.Table == tableName {
			out = append(out, op)
		}
	}
	return out
}

// ResetOperations clears the recorded calls
func (b *Backend) ResetOperations() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// FailOn makes every call of kind ("list", "insert", "update", "remove",
// "remove_where") on tableName return err until cleared with a nil err.
func (b *Backend) FailOn(tableName, kind string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := tableName + ":" + kind
	if err == nil {
		delete(b.failing, key)
		return
	}
	b.failing[key] = err
}

// Rows returns a copy of every row in a table in id order
func (b *Backend) Rows(tableName string) []store.Row {
	rows, _ := b.Table(tableName).List(context.Background(), store.Query{Order: []store.Order{store.Asc("id")}})
	return rows
}

func (b *Backend) failure(tableName, kind string) error {
	if err, ok := b.failing[tableName+":"+kind]; ok {
		return fmt.Errorf("%s %s: %w", kind, tableName, err)
	}
	return nil
}

type table struct {
	name    string
	backend *Backend
	rows    []store.Row
	nextID  int64
}

func (t *table) Name() string { return t.name }

func (t *table) List(ctx context.Context, q store.Query) ([]store.Row, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.failure(t.name, "list"); err != nil {
		return nil, err
	}

	var out []store.Row
	for _, r := range t.rows {
		if matches(r, q.Filters) {
			out = append(out, copyRow(r))
		}
	}
	if len(q.Order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			return less(out[i], out[j], q.Order)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (t *table) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.failure(t.name, "insert"); err != nil {
		return nil, err
	}

	t.nextID++
	stored := copyRow(row)
	if def, ok := store.Lookup(t.name); ok {
		store.ApplyDefaults(def, stored, time.Now().UTC())
	}
	stored["id"] = t.nextID
	t.rows = append(t.rows, stored)
	t.backend.ops = append(t.backend.ops, Operation{Table: t.name, Kind: "insert", ID: t.nextID, Row: copyRow(stored)})
	return copyRow(stored), nil
}

func (t *table) Update(ctx context.Context, id any, patch store.Row) (store.Row, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.failure(t.name, "update"); err != nil {
		return nil, err
	}

	for _, r := range t.rows {
		if store.SameValue(r["id"], id) {
			for k, v := range patch {
				if k == "id" {
					continue
				}
				r[k] = copyValue(v)
			}
			if def, ok := store.Lookup(t.name); ok && def.HasColumn("updated_at") && patch["updated_at"] == nil {
				r["updated_at"] = time.Now().UTC()
			}
			t.backend.ops = append(t.backend.ops, Operation{Table: t.name, Kind: "update", ID: id, Row: copyRow(patch)})
			return copyRow(r), nil
		}
	}
	return nil, fmt.Errorf("update %s %v: %w", t.name, id, store.ErrNotFound)
}

func (t *table) Remove(ctx context.Context, id any) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.failure(t.name, "remove"); err != nil {
		return err
	}

	kept := t.rows[:0]
	for _, r := range t.rows {
		if !store.SameValue(r["id"], id) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	t.backend.ops = append(t.backend.ops, Operation{Table: t.name, Kind: "remove", ID: id})
	return nil
}

func (t *table) RemoveWhere(ctx context.Context, filters ...store.Filter) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.failure(t.name, "remove_where"); err != nil {
		return err
	}

	kept := t.rows[:0]
	for _, r := range t.rows {
		if !matches(r, filters) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	t.backend.ops = append(t.backend.ops, Operation{Table: t.name, Kind: "remove_where", Filters: filters})
	return nil
}

func matches(r store.Row, filters []store.Filter) bool {
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			if !store.SameValue(r[f.Col], f.Value) {
				return false
			}
		case store.OpIn:
			found := false
			for _, v := range f.Values() {
				if store.SameValue(r[f.Col], v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func less(a, b store.Row, order []store.Order) bool {
	for _, o := range order {
		c := compare(a[o.Col], b[o.Col])
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// compare orders nil first, then booleans, numbers, times and strings
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ab, ok := a.(bool); ok {
		bb := store.Bool(b)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}
	if af, ok := store.Float64(a); ok {
		if bf, ok := store.Float64(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := store.Time(a); ok {
		if bt, ok := store.Time(b); ok {
			return at.Compare(bt)
		}
	}
	as, _ := store.String(a)
	bs, _ := store.String(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func copyRow(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = copyValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = copyValue(inner)
		}
		return s
	}
	return v
}
