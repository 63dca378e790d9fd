package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
)

// RecordHandler serves problems of a workflow and errors of a node
type RecordHandler struct {
	records *service.RecordService
	log     *logger.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(records *service.RecordService, log *logger.Logger) *RecordHandler {
	return &RecordHandler{records: records, log: log}
}

// ProblemRequest creates or updates a problem row
type ProblemRequest struct {
	Description *string `json:"description,omitempty" validate:"omitempty,min=1"`
	IsSolved    *bool   `json:"is_solved,omitempty"`
	Solution    *string `json:"solution,omitempty"`
	OwnerNames  *string `json:"owner_names,omitempty"`
}

func (r ProblemRequest) row() store.Row {
	row := store.Row{}
	if r.Description != nil {
		row["description"] = *r.Description
	}
	if r.IsSolved != nil {
		row["is_solved"] = *r.IsSolved
		if *r.IsSolved {
			row["solved_at"] = time.Now().UTC()
		} else {
			row["solved_at"] = nil
		}
	}
	if r.Solution != nil {
		row["solution"] = *r.Solution
	}
	if r.OwnerNames != nil {
		row["owner_names"] = *r.OwnerNames
	}
	return row
}

// ErrorRequest creates or updates an error row
type ErrorRequest struct {
	Description     *string `json:"description,omitempty" validate:"omitempty,min=1"`
	IsFixed         *bool   `json:"is_fixed,omitempty"`
	Solution        *string `json:"solution,omitempty"`
	SolverContactID *int64  `json:"solver_contact_id,omitempty"`
}

func (r ErrorRequest) row() store.Row {
	row := store.Row{}
	if r.Description != nil {
		row["description"] = *r.Description
	}
	if r.IsFixed != nil {
		row["is_fixed"] = *r.IsFixed
		if *r.IsFixed {
			row["fixed_at"] = time.Now().UTC()
		} else {
			row["fixed_at"] = nil
		}
	}
	if r.Solution != nil {
		row["solution"] = *r.Solution
	}
	if r.SolverContactID != nil {
		row["solver_contact_id"] = *r.SolverContactID
	}
	return row
}

func nodeScope(c echo.Context) (service.NodeScope, error) {
	workflowID, err := paramID(c, "id")
	if err != nil {
		return service.NodeScope{}, err
	}
	nodeID, err := paramID(c, "node_id")
	if err != nil {
		return service.NodeScope{}, err
	}
	return service.NodeScope{WorkflowID: workflowID, NodeID: nodeID}, nil
}

// ListProblems lists the problems of a workflow, open ones first
// GET /api/v1/workflows/:id/problems
func (h *RecordHandler) ListProblems(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rows, err := h.records.Problems().List(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"problems": nonNil(rows)})
}

// CreateProblem records a problem
// POST /api/v1/workflows/:id/problems
func (h *RecordHandler) CreateProblem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var req ProblemRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	if req.Description == nil {
		return handleServiceError(c, h.log, badRequestErr("description is required", nil))
	}
	row, err := h.records.Problems().Create(c.Request().Context(), id, req.row())
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, row)
}

// UpdateProblem patches a problem
// PATCH /api/v1/workflows/:id/problems/:row_id
func (h *RecordHandler) UpdateProblem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rowID, err := paramID(c, "row_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var req ProblemRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	row, err := h.records.Problems().Update(c.Request().Context(), id, rowID, req.row())
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, row)
}

// DeleteProblem removes a problem
// DELETE /api/v1/workflows/:id/problems/:row_id
func (h *RecordHandler) DeleteProblem(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rowID, err := paramID(c, "row_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	if err := h.records.Problems().Delete(c.Request().Context(), id, rowID); err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListErrors lists the errors of a node, unfixed ones first
// GET /api/v1/workflows/:id/nodes/:node_id/errors
func (h *RecordHandler) ListErrors(c echo.Context) error {
	scope, err := nodeScope(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rows, err := h.records.Errors().List(c.Request().Context(), scope)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"errors": nonNil(rows)})
}

// CreateError records an error against a node
// POST /api/v1/workflows/:id/nodes/:node_id/errors
func (h *RecordHandler) CreateError(c echo.Context) error {
	scope, err := nodeScope(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var req ErrorRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	if req.Description == nil {
		return handleServiceError(c, h.log, badRequestErr("description is required", nil))
	}
	row, err := h.records.Errors().Create(c.Request().Context(), scope, req.row())
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, row)
}

// UpdateError patches an error
// PATCH /api/v1/workflows/:id/nodes/:node_id/errors/:row_id
func (h *RecordHandler) UpdateError(c echo.Context) error {
	scope, err := nodeScope(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rowID, err := paramID(c, "row_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var req ErrorRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	row, err := h.records.Errors().Update(c.Request().Context(), scope, rowID, req.row())
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, row)
}

// DeleteError removes an error
// DELETE /api/v1/workflows/:id/nodes/:node_id/errors/:row_id
func (h *RecordHandler) DeleteError(c echo.Context) error {
	scope, err := nodeScope(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	rowID, err := paramID(c, "row_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	if err := h.records.Errors().Delete(c.Request().Context(), scope, rowID); err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func nonNil(rows []store.Row) []store.Row {
	if rows == nil {
		return []store.Row{}
	}
	return rows
}
