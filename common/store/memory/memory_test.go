package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/common/store"
)

func TestBackend_CRUD(t *testing.T) {
	ctx := context.Background()
	b := New()
	nodes := b.Table(store.TableNode)

	a, err := nodes.Insert(ctx, store.Row{"workflow_id": int64(1), "title": "A", "details": map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a["id"])
	assert.Equal(t, "action", a["type"], "schema default")

	_, err = nodes.Insert(ctx, store.Row{"workflow_id": int64(2), "title": "B"})
	require.NoError(t, err)

	rows, err := nodes.List(ctx, store.Query{Filters: []store.Filter{store.Eq("workflow_id", 1)}})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// returned rows are copies
	rows[0]["details"].(map[string]any)["k"] = "mutated"
	again, _ := nodes.List(ctx, store.Query{Filters: []store.Filter{store.Eq("id", 1)}})
	assert.Equal(t, "v", again[0]["details"].(map[string]any)["k"])

	updated, err := nodes.Update(ctx, int64(1), store.Row{"title": "A2"})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated["title"])

	_, err = nodes.Update(ctx, int64(99), store.Row{"title": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, nodes.Remove(ctx, int64(1)))
	assert.Len(t, b.Rows(store.TableNode), 1)
}

func TestBackend_InFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	b := New()
	edges := b.Table(store.TableEdge)
	for _, pair := range [][2]int64{{1, 2}, {2, 3}, {3, 1}} {
		_, err := edges.Insert(ctx, store.Row{"workflow_id": int64(1), "from_node_id": pair[0], "to_node_id": pair[1]})
		require.NoError(t, err)
	}

	rows, err := edges.List(ctx, store.Query{
		Filters: []store.Filter{store.In("from_node_id", []int64{1, 3})},
		Order:   []store.Order{store.Desc("id")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(3), rows[0]["id"])
	assert.Equal(t, int64(1), rows[1]["id"])

	require.NoError(t, edges.RemoveWhere(ctx, store.In("to_node_id", []int64{})))
	assert.Len(t, b.Rows(store.TableEdge), 3, "empty IN matches nothing")

	require.NoError(t, edges.RemoveWhere(ctx, store.In("to_node_id", []int64{1, 2})))
	assert.Len(t, b.Rows(store.TableEdge), 1)
}

func TestBackend_OperationLogAndFailures(t *testing.T) {
	ctx := context.Background()
	b := New()
	tbl := b.Table(store.TableProblem)

	_, err := tbl.Insert(ctx, store.Row{"workflow_id": int64(1), "description": "d"})
	require.NoError(t, err)
	require.NoError(t, tbl.Remove(ctx, int64(1)))

	ops := b.OperationsOn(store.TableProblem)
	require.Len(t, ops, 2)
	assert.Equal(t, "insert", ops[0].Kind)
	assert.Equal(t, "remove", ops[1].Kind)

	boom := errors.New("boom")
	b.FailOn(store.TableProblem, "list", boom)
	_, err = tbl.List(ctx, store.Query{})
	assert.ErrorIs(t, err, boom)

	b.FailOn(store.TableProblem, "list", nil)
	_, err = tbl.List(ctx, store.Query{})
	assert.NoError(t, err)

	b.ResetOperations()
	assert.Empty(t, b.Operations())
}
