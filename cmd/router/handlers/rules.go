package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/rules"
)

// RulesHandler compiles and evaluates the rules attached to a node
type RulesHandler struct {
	sessions *service.SessionRegistry
	checker  *rules.Checker
	log      *logger.Logger
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(sessions *service.SessionRegistry, checker *rules.Checker, log *logger.Logger) *RulesHandler {
	return &RulesHandler{sessions: sessions, checker: checker, log: log}
}

// EvaluateRuleRequest runs one rule against sample data
type EvaluateRuleRequest struct {
	Rule    string         `json:"rule" validate:"required"`
	Input   map[string]any `json:"input"`
	Context map[string]any `json:"ctx"`
}

// CheckNodeRules reports a compile diagnostic for every rule of a node.
// Rules that are plain prose simply come back invalid.
// GET /api/v1/workflows/:id/canvas/nodes/:node_id/rules
func (h *RulesHandler) CheckNodeRules(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	nodeID, err := paramID(c, "node_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	s, err := h.sessions.Open(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}

	var ruleList []string
	found := false
	for _, n := range s.View().Nodes {
		if n.ID == nodeID {
			ruleList, found = n.Details.Rules, true
			break
		}
	}
	if !found {
		return handleServiceError(c, h.log, editor.ErrUnknownNode)
	}

	diags := h.checker.Check(ruleList)
	valid := 0
	for _, d := range diags {
		if d.Valid {
			valid++
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"node_id":     nodeID,
		"diagnostics": diags,
		"valid":       valid,
		"total":       len(diags),
	})
}

// EvaluateRule evaluates a single rule expression
// POST /api/v1/rules/evaluate
func (h *RulesHandler) EvaluateRule(c echo.Context) error {
	var req EvaluateRuleRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	result, err := h.checker.Evaluate(req.Rule, req.Input, req.Context)
	if err != nil {
		return problem(c, http.StatusUnprocessableEntity, "rule_error", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rule":   rules.Normalize(req.Rule),
		"result": result,
	})
}
