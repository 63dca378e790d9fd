package telemetry

import (
	"context"

	"github.com/lyzr/workflow-router/common/store"
)

// InstrumentBackend counts every table operation into vwf_sync_operations_total
func (t *Telemetry) InstrumentBackend(b store.Backend) store.Backend {
	return &instrumentedBackend{Backend: b, t: t}
}

type instrumentedBackend struct {
	store.Backend
	t *Telemetry
}

func (b *instrumentedBackend) Table(name string) store.Table {
	return &instrumentedTable{Table: b.Backend.Table(name), t: b.t}
}

type instrumentedTable struct {
	store.Table
	t *Telemetry
}

func (tb *instrumentedTable) count(op string) {
	tb.t.syncOps.WithLabelValues(tb.Table.Name(), op).Inc()
}

func (tb *instrumentedTable) List(ctx context.Context, q store.Query) ([]store.Row, error) {
	tb.count("list")
	return tb.Table.List(ctx, q)
}

func (tb *instrumentedTable) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	tb.count("insert")
	return tb.Table.Insert(ctx, row)
}

func (tb *instrumentedTable) Update(ctx context.Context, id any, patch store.Row) (store.Row, error) {
	tb.count("update")
	return tb.Table.Update(ctx, id, patch)
}

func (tb *instrumentedTable) Remove(ctx context.Context, id any) error {
	tb.count("remove")
	return tb.Table.Remove(ctx, id)
}

func (tb *instrumentedTable) RemoveWhere(ctx context.Context, filters ...store.Filter) error {
	tb.count("remove_where")
	return tb.Table.RemoveWhere(ctx, filters...)
}
