// Package store is the remote store adapter: table-scoped CRUD with equality
// filters and ordering. Backends live in subpackages (memory, postgres,
// sqlite, rest); callers depend only on Table.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an update targets a row that does not exist
var ErrNotFound = errors.New("row not found")

// Row is one record keyed by column name
type Row map[string]any

// Op is a filter operator
type Op string

const (
	OpEq Op = "eq"
	OpIn Op = "in"
)

// Filter is an equality (or set-membership) predicate on one column
type Filter struct {
	Col   string
	Op    Op
	Value any
}

// Eq matches col = value
func Eq(col string, value any) Filter {
	return Filter{Col: col, Op: OpEq, Value: value}
}

// In matches col IN values. An empty set matches nothing.
func In[T any](col string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Col: col, Op: OpIn, Value: vs}
}

// Values returns the operand of an In filter
func (f Filter) Values() []any {
	vs, _ := f.Value.([]any)
	return vs
}

// Order sorts by one column
type Order struct {
	Col  string
	Desc bool
}

// Asc orders ascending by col
func Asc(col string) Order { return Order{Col: col} }

// Desc orders descending by col
func Desc(col string) Order { return Order{Col: col, Desc: true} }

// Query scopes a List call
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Table is CRUD over one logical table
type Table interface {
	Name() string
	List(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, row Row) (Row, error)
	Update(ctx context.Context, id any, patch Row) (Row, error)
	Remove(ctx context.Context, id any) error
	RemoveWhere(ctx context.Context, filters ...Filter) error
}

// Backend hands out tables and owns the underlying connection
type Backend interface {
	Table(name string) Table
	Health(ctx context.Context) error
	Close() error
}

// CheckFilters rejects filters on columns the table does not have. SQL
// backends interpolate column names, so this runs before query building.
func CheckFilters(def TableDef, filters []Filter) error {
	for _, f := range filters {
		if !def.HasColumn(f.Col) {
			return fmt.Errorf("table %s: unknown filter column %q", def.Name, f.Col)
		}
		if f.Op != OpEq && f.Op != OpIn {
			return fmt.Errorf("table %s: unsupported operator %q", def.Name, f.Op)
		}
	}
	return nil
}

// CheckColumns rejects row keys the table does not have
func CheckColumns(def TableDef, row Row) error {
	for col := range row {
		if !def.HasColumn(col) {
			return fmt.Errorf("table %s: unknown column %q", def.Name, col)
		}
	}
	return nil
}

// CheckOrder rejects ordering by unknown columns
func CheckOrder(def TableDef, order []Order) error {
	for _, o := range order {
		if !def.HasColumn(o.Col) {
			return fmt.Errorf("table %s: unknown order column %q", def.Name, o.Col)
		}
	}
	return nil
}
