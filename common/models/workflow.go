package models

import "time"

// WorkflowStatus is the lifecycle state of a workflow
type WorkflowStatus string

const (
	WorkflowDraft    WorkflowStatus = "draft"
	WorkflowActive   WorkflowStatus = "active"
	WorkflowArchived WorkflowStatus = "archived"
)

// Valid reports whether s is a known status
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowDraft, WorkflowActive, WorkflowArchived:
		return true
	}
	return false
}

// Workflow is the container row that scopes nodes and edges.
// Maps to: workflow table
type Workflow struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Slug        *string        `json:"slug,omitempty"`
	Description *string        `json:"description,omitempty"`
	Domain      *string        `json:"domain,omitempty"`
	Status      WorkflowStatus `json:"status"`
	Version     string         `json:"version"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// WorkflowPatch holds the mutable workflow columns. Nil fields are left alone.
type WorkflowPatch struct {
	Title       *string         `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string         `json:"description,omitempty"`
	Domain      *string         `json:"domain,omitempty"`
	Status      *WorkflowStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
	Version     *string         `json:"version,omitempty"`
}
