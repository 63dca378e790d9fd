package repository

import (
	"context"
	"fmt"

	"github.com/lyzr/workflow-router/common/models"
	"github.com/lyzr/workflow-router/common/store"
)

// WorkflowRepository handles store operations for workflows
type WorkflowRepository struct {
	table store.Table
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(backend store.Backend) *WorkflowRepository {
	return &WorkflowRepository{table: backend.Table(store.TableWorkflow)}
}

// List returns workflows, most recently updated first
func (r *WorkflowRepository) List(ctx context.Context) ([]models.Workflow, error) {
	rows, err := r.table.List(ctx, store.Query{
		Order: []store.Order{store.Desc("updated_at"), store.Desc("id")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]models.Workflow, 0, len(rows))
	for _, row := range rows {
		workflows = append(workflows, workflowFromRow(row))
	}
	return workflows, nil
}

// Get returns one workflow or store.ErrNotFound
func (r *WorkflowRepository) Get(ctx context.Context, id int64) (*models.Workflow, error) {
	rows, err := r.table.List(ctx, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workflow %d: %w", id, store.ErrNotFound)
	}
	wf := workflowFromRow(rows[0])
	return &wf, nil
}

// Create inserts a workflow
func (r *WorkflowRepository) Create(ctx context.Context, wf models.Workflow) (*models.Workflow, error) {
	row := store.Row{"title": wf.Title}
	if wf.Slug != nil {
		row["slug"] = *wf.Slug
	}
	if wf.Description != nil {
		row["description"] = *wf.Description
	}
	if wf.Domain != nil {
		row["domain"] = *wf.Domain
	}
	if wf.Status != "" {
		row["status"] = string(wf.Status)
	}
	if wf.Version != "" {
		row["version"] = wf.Version
	}

	created, err := r.table.Insert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	out := workflowFromRow(created)
	return &out, nil
}

// Update applies the non-nil fields of patch
func (r *WorkflowRepository) Update(ctx context.Context, id int64, patch models.WorkflowPatch) (*models.Workflow, error) {
	row := store.Row{}
	if patch.Title != nil {
		row["title"] = *patch.Title
	}
	if patch.Description != nil {
		row["description"] = *patch.Description
	}
	if patch.Domain != nil {
		row["domain"] = *patch.Domain
	}
	if patch.Status != nil {
		row["status"] = string(*patch.Status)
	}
	if patch.Version != nil {
		row["version"] = *patch.Version
	}

	updated, err := r.table.Update(ctx, id, row)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow %d: %w", id, err)
	}
	out := workflowFromRow(updated)
	return &out, nil
}

// Delete removes a workflow row. Callers remove dependent rows first.
func (r *WorkflowRepository) Delete(ctx context.Context, id int64) error {
	if err := r.table.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow %d: %w", id, err)
	}
	return nil
}

func workflowFromRow(row store.Row) models.Workflow {
	id, _ := store.Int64(row["id"])
	title, _ := store.String(row["title"])
	status, _ := store.String(row["status"])
	version, _ := store.String(row["version"])
	return models.Workflow{
		ID:          id,
		Title:       title,
		Slug:        store.StringPtr(row["slug"]),
		Description: store.StringPtr(row["description"]),
		Domain:      store.StringPtr(row["domain"]),
		Status:      models.WorkflowStatus(status),
		Version:     version,
		CreatedAt:   store.TimePtr(row["created_at"]),
		UpdatedAt:   store.TimePtr(row["updated_at"]),
	}
}
