package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/handlers"
)

// RegisterRecordRoutes registers problem and error sub-record routes
func RegisterRecordRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRecordHandler(c.RecordService, c.Components.Logger)

	wf := apiGroup(e, c).Group("/workflows/:id")
	{
		wf.GET("/problems", h.ListProblems)                        // GET /api/v1/workflows/42/problems
		wf.POST("/problems", h.CreateProblem)                      // POST /api/v1/workflows/42/problems
		wf.PATCH("/problems/:row_id", h.UpdateProblem)             // PATCH /api/v1/workflows/42/problems/3
		wf.DELETE("/problems/:row_id", h.DeleteProblem)            // DELETE /api/v1/workflows/42/problems/3
		wf.GET("/nodes/:node_id/errors", h.ListErrors)             // GET /api/v1/workflows/42/nodes/7/errors
		wf.POST("/nodes/:node_id/errors", h.CreateError)           // POST /api/v1/workflows/42/nodes/7/errors
		wf.PATCH("/nodes/:node_id/errors/:row_id", h.UpdateError)  // PATCH /api/v1/workflows/42/nodes/7/errors/5
		wf.DELETE("/nodes/:node_id/errors/:row_id", h.DeleteError) // DELETE /api/v1/workflows/42/nodes/7/errors/5
	}
}
