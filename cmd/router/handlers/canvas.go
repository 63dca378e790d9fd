package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/graph"
	"github.com/lyzr/workflow-router/common/logger"
)

var errEdgeExists = errors.New("edge already exists")

// DepthObserver receives the undo depth after each canvas mutation
type DepthObserver interface {
	ObserveHistoryDepth(past int)
}

// CanvasHandler drives the editing session of a workflow
type CanvasHandler struct {
	sessions *service.SessionRegistry
	depth    DepthObserver
	log      *logger.Logger
}

// NewCanvasHandler creates a new canvas handler. depth may be nil.
func NewCanvasHandler(sessions *service.SessionRegistry, depth DepthObserver, log *logger.Logger) *CanvasHandler {
	return &CanvasHandler{sessions: sessions, depth: depth, log: log}
}

// AddNodeRequest is the body of an add-node call
type AddNodeRequest struct {
	Kind string `json:"kind" validate:"max=40"`
}

// PatchNodeRequest carries any combination of node edits. Details is an
// RFC 7386 merge patch; DetailsOps is an RFC 6902 operation list. At most one
// of the two may be set.
type PatchNodeRequest struct {
	Position   *graph.Position `json:"position,omitempty"`
	Title      *string         `json:"title,omitempty" validate:"omitempty,max=200"`
	Kind       *string         `json:"kind,omitempty" validate:"omitempty,max=40"`
	GoldenPath *bool           `json:"golden_path,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	DetailsOps json.RawMessage `json:"details_ops,omitempty"`
}

// ConnectRequest is the body of a connect call
type ConnectRequest struct {
	Source int64  `json:"source" validate:"required"`
	Target int64  `json:"target" validate:"required"`
	Label  string `json:"label,omitempty" validate:"max=200"`
}

// PatchEdgeRequest carries edge edits
type PatchEdgeRequest struct {
	Label    *string `json:"label,omitempty" validate:"omitempty,max=200"`
	Animated *bool   `json:"animated,omitempty"`
}

func (h *CanvasHandler) session(c echo.Context) (*editor.Session, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.sessions.Open(c.Request().Context(), id)
}

// mutate runs fn against the canvas of the requested workflow and renders
// the resulting view
func (h *CanvasHandler) mutate(c echo.Context, fn func(*editor.Canvas) error) error {
	s, err := h.session(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var past int
	view, err := s.Mutate(func(cv *editor.Canvas) error {
		defer func() { past, _ = cv.History().Len() }()
		return fn(cv)
	})
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	if h.depth != nil {
		h.depth.ObserveHistoryDepth(past)
	}
	return c.JSON(http.StatusOK, view)
}

// LoadCanvas (re)loads the canvas from the store, discarding unsaved edits
// POST /api/v1/workflows/:id/canvas
func (h *CanvasHandler) LoadCanvas(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	s, err := h.sessions.Reload(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

// GetCanvas returns the current canvas, loading it on first use
// GET /api/v1/workflows/:id/canvas
func (h *CanvasHandler) GetCanvas(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

// AddNode persists a new node and links it from the previous one
// POST /api/v1/workflows/:id/canvas/nodes
func (h *CanvasHandler) AddNode(c echo.Context) error {
	var req AddNodeRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	s, err := h.session(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	node, err := s.AddNode(c.Request().Context(), graph.ParseKind(req.Kind))
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"node":   node,
		"canvas": s.View(),
	})
}

// PatchNode edits a node on the canvas
// PATCH /api/v1/workflows/:id/canvas/nodes/:node_id
func (h *CanvasHandler) PatchNode(c echo.Context) error {
	nodeID, err := paramID(c, "node_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	var req PatchNodeRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	if len(req.Details) > 0 && len(req.DetailsOps) > 0 {
		return handleServiceError(c, h.log, badRequestErr("details and details_ops are mutually exclusive", nil))
	}

	return h.mutate(c, func(cv *editor.Canvas) error {
		if _, ok := cv.Node(nodeID); !ok {
			return editor.ErrUnknownNode
		}
		// one PATCH is one undo step
		return cv.Batch(func() error {
			if len(req.Details) > 0 {
				if _, err := cv.MergeDetails(nodeID, req.Details); err != nil {
					return badRequestErr("invalid details patch", err)
				}
			}
			if len(req.DetailsOps) > 0 {
				if _, err := cv.PatchDetails(nodeID, req.DetailsOps); err != nil {
					return badRequestErr("invalid details operations", err)
				}
			}
			if req.Position != nil {
				cv.MoveNode(nodeID, req.Position.X, req.Position.Y)
			}
			if req.Title != nil {
				cv.RenameNode(nodeID, *req.Title)
			}
			if req.Kind != nil {
				cv.SetNodeKind(nodeID, graph.ParseKind(*req.Kind))
			}
			if req.GoldenPath != nil {
				cv.SetGoldenPath(nodeID, *req.GoldenPath)
			}
			return nil
		})
	})
}

// DeleteNode removes a node and its edges from the canvas
// DELETE /api/v1/workflows/:id/canvas/nodes/:node_id
func (h *CanvasHandler) DeleteNode(c echo.Context) error {
	nodeID, err := paramID(c, "node_id")
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return h.mutate(c, func(cv *editor.Canvas) error {
		if !cv.DeleteNode(nodeID) {
			return editor.ErrUnknownNode
		}
		return nil
	})
}

// ConnectNodes adds an edge between two nodes
// POST /api/v1/workflows/:id/canvas/edges
func (h *CanvasHandler) ConnectNodes(c echo.Context) error {
	var req ConnectRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	s, err := h.session(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}

	var edge graph.Edge
	view, err := s.Mutate(func(cv *editor.Canvas) error {
		if _, ok := cv.Node(req.Source); !ok {
			return editor.ErrUnknownNode
		}
		if _, ok := cv.Node(req.Target); !ok {
			return editor.ErrUnknownNode
		}
		e, ok := cv.Connect(req.Source, req.Target, req.Label)
		if !ok {
			return errEdgeExists
		}
		edge = e
		return nil
	})
	if errors.Is(err, errEdgeExists) {
		return problem(c, http.StatusConflict, "edge_exists", "the nodes are already connected")
	}
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"edge":   edge,
		"canvas": view,
	})
}

// PatchEdge relabels an edge or toggles its animation
// PATCH /api/v1/workflows/:id/canvas/edges/:edge_id
func (h *CanvasHandler) PatchEdge(c echo.Context) error {
	edgeID := c.Param("edge_id")
	var req PatchEdgeRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}

	return h.mutate(c, func(cv *editor.Canvas) error {
		if _, ok := cv.Edge(edgeID); !ok {
			return editor.ErrUnknownEdge
		}
		if req.Label != nil {
			labels := cv.Labels()
			labels.BeginEdit(edgeID)
			labels.SetDraft(*req.Label)
			labels.Commit()
		}
		if req.Animated != nil {
			cv.SetAnimated(edgeID, *req.Animated)
		}
		return nil
	})
}

// DeleteEdge removes an edge from the canvas
// DELETE /api/v1/workflows/:id/canvas/edges/:edge_id
func (h *CanvasHandler) DeleteEdge(c echo.Context) error {
	edgeID := c.Param("edge_id")
	return h.mutate(c, func(cv *editor.Canvas) error {
		if !cv.DeleteEdge(edgeID) {
			return editor.ErrUnknownEdge
		}
		return nil
	})
}

// Undo steps back one edit. Nothing to undo is not an error.
// POST /api/v1/workflows/:id/canvas/undo
func (h *CanvasHandler) Undo(c echo.Context) error {
	return h.mutate(c, func(cv *editor.Canvas) error {
		cv.Undo()
		return nil
	})
}

// Redo re-applies one undone edit
// POST /api/v1/workflows/:id/canvas/redo
func (h *CanvasHandler) Redo(c echo.Context) error {
	return h.mutate(c, func(cv *editor.Canvas) error {
		cv.Redo()
		return nil
	})
}

// Save converges the store to the canvas
// POST /api/v1/workflows/:id/canvas/save
func (h *CanvasHandler) Save(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	report, err := s.Save(c.Request().Context())
	if err != nil {
		var stepErr *editor.StepError
		if errors.As(err, &stepErr) {
			h.log.Warn("save aborted", "workflow_id", s.WorkflowID(), "step", stepErr.Step, "error", stepErr.Err)
			return problem(c, http.StatusBadGateway, "save_failed", "save stopped at step "+stepErr.Step+"; the canvas was kept, retry the save")
		}
		return handleServiceError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"report": report,
		"canvas": s.View(),
	})
}
