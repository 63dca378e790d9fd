package store

import (
	"context"
	"fmt"
)

// ListStore is CRUD over a table restricted to a caller-defined scope. The
// scope is turned into equality filters for List and merged into every
// inserted row, so a per-node sub-table can be served with one declaration.
type ListStore[S any] struct {
	table Table
	scope func(S) []Filter
	order []Order
}

// NewListStore builds a scoped store. scope may be nil for an unscoped table.
func NewListStore[S any](table Table, scope func(S) []Filter, order ...Order) *ListStore[S] {
	return &ListStore[S]{table: table, scope: scope, order: order}
}

func (s *ListStore[S]) filters(scope S) []Filter {
	if s.scope == nil {
		return nil
	}
	return s.scope(scope)
}

// List returns every row in scope, in the configured order
func (s *ListStore[S]) List(ctx context.Context, scope S) ([]Row, error) {
	rows, err := s.table.List(ctx, Query{Filters: s.filters(scope), Order: s.order})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table.Name(), err)
	}
	return rows, nil
}

// Create inserts row with the scope columns merged in. Scope wins over row.
func (s *ListStore[S]) Create(ctx context.Context, scope S, row Row) (Row, error) {
	merged := make(Row, len(row))
	for k, v := range row {
		merged[k] = v
	}
	delete(merged, "id")
	for _, f := range s.filters(scope) {
		if f.Op == OpEq {
			merged[f.Col] = f.Value
		}
	}
	created, err := s.table.Insert(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.table.Name(), err)
	}
	return created, nil
}

// Update patches one row. Scope columns cannot be moved through a patch.
func (s *ListStore[S]) Update(ctx context.Context, scope S, id any, patch Row) (Row, error) {
	clean := make(Row, len(patch))
	for k, v := range patch {
		clean[k] = v
	}
	delete(clean, "id")
	for _, f := range s.filters(scope) {
		delete(clean, f.Col)
	}
	if err := s.ensureInScope(ctx, scope, id); err != nil {
		return nil, err
	}
	updated, err := s.table.Update(ctx, id, clean)
	if err != nil {
		return nil, fmt.Errorf("update %s %v: %w", s.table.Name(), id, err)
	}
	return updated, nil
}

// Delete removes one row in scope
func (s *ListStore[S]) Delete(ctx context.Context, scope S, id any) error {
	if err := s.ensureInScope(ctx, scope, id); err != nil {
		return err
	}
	if err := s.table.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete %s %v: %w", s.table.Name(), id, err)
	}
	return nil
}

func (s *ListStore[S]) ensureInScope(ctx context.Context, scope S, id any) error {
	filters := append(s.filters(scope), Eq("id", id))
	rows, err := s.table.List(ctx, Query{Filters: filters, Limit: 1})
	if err != nil {
		return fmt.Errorf("lookup %s %v: %w", s.table.Name(), id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %v: %w", s.table.Name(), id, ErrNotFound)
	}
	return nil
}
