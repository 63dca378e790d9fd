package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/store"
)

// NodeRepository handles store operations for workflow nodes
type NodeRepository struct {
	table store.Table
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(backend store.Backend) *NodeRepository {
	return &NodeRepository{table: backend.Table(store.TableNode)}
}

// ListByWorkflow returns every node of a workflow in id order
func (r *NodeRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]models.NodeRow, error) {
	rows, err := r.table.List(ctx, store.Query{
		Filters: []store.Filter{store.Eq("workflow_id", workflowID)},
		Order:   []store.Order{store.Asc("id")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	nodes := make([]models.NodeRow, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, nodeFromRow(row))
	}
	return nodes, nil
}

// Insert creates a node and returns it with its assigned id
func (r *NodeRepository) Insert(ctx context.Context, node models.NodeRow) (models.NodeRow, error) {
	row := store.Row{
		"workflow_id": node.WorkflowID,
		"title":       node.Title,
		"type":        node.Type,
		"details":     node.Details,
	}
	if node.ProviderID != nil {
		row["provider_id"] = *node.ProviderID
	}
	if node.X != nil {
		row["x"] = *node.X
	}
	if node.Y != nil {
		row["y"] = *node.Y
	}
	if node.Status != "" {
		row["status"] = node.Status
	}

	created, err := r.table.Insert(ctx, row)
	if err != nil {
		return models.NodeRow{}, fmt.Errorf("failed to insert node: %w", err)
	}
	return nodeFromRow(created), nil
}

// UpdatePlacement writes position, title, kind and details of one node
func (r *NodeRepository) UpdatePlacement(ctx context.Context, id int64, patch models.NodePatch) error {
	_, err := r.table.Update(ctx, id, store.Row{
		"title":   patch.Title,
		"type":    patch.Type,
		"x":       patch.X,
		"y":       patch.Y,
		"details": patch.Details,
	})
	if err != nil {
		return fmt.Errorf("failed to update node %d: %w", id, err)
	}
	return nil
}

// DeleteByIDs removes the given nodes
func (r *NodeRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.table.RemoveWhere(ctx, store.In("id", ids)); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	return nil
}

// DeleteByWorkflow removes every node of a workflow
func (r *NodeRepository) DeleteByWorkflow(ctx context.Context, workflowID int64) error {
	if err := r.table.RemoveWhere(ctx, store.Eq("workflow_id", workflowID)); err != nil {
		return fmt.Errorf("failed to delete workflow nodes: %w", err)
	}
	return nil
}

func nodeFromRow(row store.Row) models.NodeRow {
	id, _ := store.Int64(row["id"])
	workflowID, _ := store.Int64(row["workflow_id"])
	title, _ := store.String(row["title"])
	kind, _ := store.String(row["type"])
	status, _ := store.String(row["status"])
	return models.NodeRow{
		ID:         id,
		WorkflowID: workflowID,
		ProviderID: store.StringPtr(row["provider_id"]),
		Title:      title,
		Type:       kind,
		X:          store.Float64Ptr(row["x"]),
		Y:          store.Float64Ptr(row["y"]),
		Details:    store.JSONMap(row["details"]),
		Status:     status,
	}
}
