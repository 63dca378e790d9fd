package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/handlers"
)

// RegisterCanvasRoutes registers the editing session routes of a workflow
func RegisterCanvasRoutes(e *echo.Echo, c *container.Container) {
	var depth handlers.DepthObserver
	if c.Components.Telemetry != nil {
		depth = c.Components.Telemetry
	}
	h := handlers.NewCanvasHandler(c.Sessions, depth, c.Components.Logger)
	r := handlers.NewRulesHandler(c.Sessions, c.Checker, c.Components.Logger)

	api := apiGroup(e, c)
	cv := api.Group("/workflows/:id/canvas")
	{
		cv.POST("", h.LoadCanvas)                         // POST /api/v1/workflows/42/canvas
		cv.GET("", h.GetCanvas)                           // GET /api/v1/workflows/42/canvas
		cv.POST("/nodes", h.AddNode)                      // POST /api/v1/workflows/42/canvas/nodes
		cv.PATCH("/nodes/:node_id", h.PatchNode)          // PATCH /api/v1/workflows/42/canvas/nodes/7
		cv.DELETE("/nodes/:node_id", h.DeleteNode)        // DELETE /api/v1/workflows/42/canvas/nodes/7
		cv.GET("/nodes/:node_id/rules", r.CheckNodeRules) // GET /api/v1/workflows/42/canvas/nodes/7/rules
		cv.POST("/edges", h.ConnectNodes)                 // POST /api/v1/workflows/42/canvas/edges
		cv.PATCH("/edges/:edge_id", h.PatchEdge)          // PATCH /api/v1/workflows/42/canvas/edges/13
		cv.DELETE("/edges/:edge_id", h.DeleteEdge)        // DELETE /api/v1/workflows/42/canvas/edges/13
		cv.POST("/undo", h.Undo)                          // POST /api/v1/workflows/42/canvas/undo
		cv.POST("/redo", h.Redo)                          // POST /api/v1/workflows/42/canvas/redo
		cv.POST("/save", h.Save)                          // POST /api/v1/workflows/42/canvas/save
	}

	api.POST("/rules/evaluate", r.EvaluateRule) // POST /api/v1/rules/evaluate
}
