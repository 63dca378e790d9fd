package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/store"
)

// EdgeRepository handles store operations for workflow edges
type EdgeRepository struct {
	table store.Table
}

// NewEdgeRepository creates a new edge repository
func NewEdgeRepository(backend store.Backend) *EdgeRepository {
	return &EdgeRepository{table: backend.Table(store.TableEdge)}
}

// ListByWorkflow returns every edge of a workflow in id order
func (r *EdgeRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]models.EdgeRow, error) {
	rows, err := r.table.List(ctx, store.Query{
		Filters: []store.Filter{store.Eq("workflow_id", workflowID)},
		Order:   []store.Order{store.Asc("id")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	edges := make([]models.EdgeRow, 0, len(rows))
	for _, row := range rows {
		edges = append(edges, edgeFromRow(row))
	}
	return edges, nil
}

// Insert creates an edge and returns it with its assigned id
func (r *EdgeRepository) Insert(ctx context.Context, edge models.EdgeRow) (models.EdgeRow, error) {
	row := store.Row{
		"workflow_id":  edge.WorkflowID,
		"from_node_id": edge.FromNodeID,
		"to_node_id":   edge.ToNodeID,
		"style":        edge.StyleValue(),
	}
	if edge.Label != nil {
		row["label"] = *edge.Label
	}
	if edge.Metadata != nil {
		row["metadata"] = edge.Metadata
	}

	created, err := r.table.Insert(ctx, row)
	if err != nil {
		return models.EdgeRow{}, fmt.Errorf("failed to insert edge: %w", err)
	}
	return edgeFromRow(created), nil
}

// Update writes label and style of one edge
func (r *EdgeRepository) Update(ctx context.Context, id int64, label, style string) error {
	if _, err := r.table.Update(ctx, id, store.Row{"label": label, "style": style}); err != nil {
		return fmt.Errorf("failed to update edge %d: %w", id, err)
	}
	return nil
}

// DeleteByIDs removes the given edges
func (r *EdgeRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	return r.deleteIn(ctx, "id", ids)
}

// DeleteBySources removes every edge leaving one of the given nodes
func (r *EdgeRepository) DeleteBySources(ctx context.Context, nodeIDs []int64) error {
	return r.deleteIn(ctx, "from_node_id", nodeIDs)
}

// DeleteByTargets removes every edge entering one of the given nodes
func (r *EdgeRepository) DeleteByTargets(ctx context.Context, nodeIDs []int64) error {
	return r.deleteIn(ctx, "to_node_id", nodeIDs)
}

// DeleteByWorkflow removes every edge of a workflow
func (r *EdgeRepository) DeleteByWorkflow(ctx context.Context, workflowID int64) error {
	if err := r.table.RemoveWhere(ctx, store.Eq("workflow_id", workflowID)); err != nil {
		return fmt.Errorf("failed to delete workflow edges: %w", err)
	}
	return nil
}

func (r *EdgeRepository) deleteIn(ctx context.Context, col string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.table.RemoveWhere(ctx, store.In(col, ids)); err != nil {
		return fmt.Errorf("failed to delete edges by %s: %w", col, err)
	}
	return nil
}

func edgeFromRow(row store.Row) models.EdgeRow {
	id, _ := store.Int64(row["id"])
	workflowID, _ := store.Int64(row["workflow_id"])
	from, _ := store.Int64(row["from_node_id"])
	to, _ := store.Int64(row["to_node_id"])
	style, _ := store.String(row["style"])
	return models.EdgeRow{
		ID:         id,
		WorkflowID: workflowID,
		FromNodeID: from,
		ToNodeID:   to,
		Label:      store.StringPtr(row["label"]),
		Style:      style,
		Metadata:   store.JSONMap(row["metadata"]),
	}
}
