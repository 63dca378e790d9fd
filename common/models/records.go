package models

import "time"

// ProblemRow is a workflow-level systemic issue.
// Maps to: problem table
type ProblemRow struct {
	ID          int64      `json:"id,omitempty"`
	WorkflowID  int64      `json:"workflow_id"`
	Description string     `json:"description" validate:"required"`
	IsSolved    bool       `json:"is_solved"`
	Solution    *string    `json:"solution,omitempty"`
	OwnerNames  *string    `json:"owner_names,omitempty"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`
	SolvedAt    *time.Time `json:"solved_at,omitempty"`
}

// ErrorRow is an incident recorded against one node.
// Maps to: error table
type ErrorRow struct {
	ID              int64      `json:"id,omitempty"`
	WorkflowID      int64      `json:"workflow_id"`
	NodeID          int64      `json:"node_id"`
	Description     string     `json:"description" validate:"required"`
	IsFixed         bool       `json:"is_fixed"`
	Solution        *string    `json:"solution,omitempty"`
	SolverContactID *int64     `json:"solver_contact_id,omitempty"`
	ReportedAt      *time.Time `json:"reported_at,omitempty"`
	FixedAt         *time.Time `json:"fixed_at,omitempty"`
}
