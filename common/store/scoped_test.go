package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/store"
	"github.com/lyzr/workflow-router/common/store/memory"
)

type nodeScope struct {
	WorkflowID int64
	NodeID     int64
}

func errorStore(b store.Backend) *store.ListStore[nodeScope] {
	return store.NewListStore(b.Table(store.TableError),
		func(s nodeScope) []store.Filter {
			return []store.Filter{store.Eq("workflow_id", s.WorkflowID), store.Eq("node_id", s.NodeID)}
		},
		store.Asc("is_fixed"), store.Desc("reported_at"), store.Desc("id"),
	)
}

func TestListStore_ScopeIsMergedAndFiltered(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	errs := errorStore(b)

	here := nodeScope{WorkflowID: 1, NodeID: 10}
	elsewhere := nodeScope{WorkflowID: 1, NodeID: 11}

	created, err := errs.Create(ctx, here, store.Row{"description": "timeout", "node_id": 999, "id": 77})
	require.NoError(t, err)
	assert.EqualValues(t, 10, created["node_id"], "scope wins over the row")
	assert.NotEqualValues(t, 77, created["id"])

	_, err = errs.Create(ctx, elsewhere, store.Row{"description": "other"})
	require.NoError(t, err)

	rows, err := errs.List(ctx, here)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "timeout", rows[0]["description"])
	assert.Equal(t, false, rows[0]["is_fixed"], "defaults applied")
}

func TestListStore_Order(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	errs := errorStore(b)
	scope := nodeScope{WorkflowID: 1, NodeID: 10}

	first, _ := errs.Create(ctx, scope, store.Row{"description": "first"})
	_, _ = errs.Create(ctx, scope, store.Row{"description": "second"})
	_, err := errs.Update(ctx, scope, first["id"], store.Row{"is_fixed": true})
	require.NoError(t, err)

	rows, err := errs.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0]["description"], "open errors come first")
	assert.Equal(t, "first", rows[1]["description"])
}

func TestListStore_UpdateAndDeleteStayInScope(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	errs := errorStore(b)

	row, err := errs.Create(ctx, nodeScope{WorkflowID: 1, NodeID: 10}, store.Row{"description": "x"})
	require.NoError(t, err)

	wrong := nodeScope{WorkflowID: 1, NodeID: 11}
	_, err = errs.Update(ctx, wrong, row["id"], store.Row{"description": "hijack"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, errs.Delete(ctx, wrong, row["id"]), store.ErrNotFound)

	right := nodeScope{WorkflowID: 1, NodeID: 10}
	updated, err := errs.Update(ctx, right, row["id"], store.Row{"description": "y", "node_id": 11})
	require.NoError(t, err)
	assert.Equal(t, "y", updated["description"])
	assert.EqualValues(t, 10, updated["node_id"], "scope columns cannot move")

	require.NoError(t, errs.Delete(ctx, right, row["id"]))
	rows, err := errs.List(ctx, right)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSameValue(t *testing.T) {
	assert.True(t, store.SameValue(int64(3), 3))
	assert.True(t, store.SameValue("3", int64(3)))
	assert.True(t, store.SameValue(true, int64(1)))
	assert.False(t, store.SameValue("a", "b"))
	assert.False(t, store.SameValue(nil, "x"))
}
