package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/models"
)

// WorkflowHandler handles workflow-related requests
type WorkflowHandler struct {
	workflows *service.WorkflowService
	log       *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflows *service.WorkflowService, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, log: log}
}

// paramID parses a positive integer path parameter
func paramID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestErr("invalid "+name, err)
	}
	return id, nil
}

// ListWorkflows lists all workflows
// GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(c echo.Context) error {
	list, err := h.workflows.List(c.Request().Context())
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"workflows": list,
		"count":     len(list),
	})
}

// GetWorkflow retrieves one workflow
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) GetWorkflow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	wf, err := h.workflows.Get(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, wf)
}

// CreateWorkflow creates an empty draft workflow
// POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(c echo.Context) error {
	var req service.CreateWorkflowRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	wf, err := h.workflows.Create(c.Request().Context(), &req)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, wf)
}

// UpdateWorkflow patches workflow columns
// PATCH /api/v1/workflows/:id
func (h *WorkflowHandler) UpdateWorkflow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var patch models.WorkflowPatch
	if err := bind(c, &patch); err != nil {
		return handleServiceError(c, h.log, err)
	}
	wf, err := h.workflows.Update(c.Request().Context(), id, patch)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, wf)
}

// DeleteWorkflow deletes a workflow with its nodes, edges and records
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) DeleteWorkflow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	if err := h.workflows.Delete(c.Request().Context(), id); err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateWorkflow creates a workflow from a prose description
// POST /api/v1/workflows/generate
func (h *WorkflowHandler) GenerateWorkflow(c echo.Context) error {
	var req service.GenerateWorkflowRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	report, err := h.workflows.Generate(c.Request().Context(), &req)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// ReportWorkflow writes a stakeholder report on the saved graph
// POST /api/v1/workflows/:id/report
func (h *WorkflowHandler) ReportWorkflow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	report, err := h.workflows.Report(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": report})
}

// ExportWorkflow returns the persisted graph of a workflow
// GET /api/v1/workflows/:id/export
func (h *WorkflowHandler) ExportWorkflow(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	out, err := h.workflows.Export(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}
