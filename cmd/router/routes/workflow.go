package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/handlers"
	"github.com/lyzr/workflow-router/cmd/router/middleware"
	commonmw "github.com/lyzr/workflow-router/common/middleware"
	"github.com/lyzr/workflow-router/common/ratelimit"
)

// apiGroup is the password-gated API root
func apiGroup(e *echo.Echo, c *container.Container) *echo.Group {
	return e.Group("/api/v1", middleware.RequireAccess(c.AuthService))
}

// RegisterWorkflowRoutes registers all workflow-related routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c.WorkflowService, c.Components.Logger)

	wf := apiGroup(e, c).Group("/workflows")
	{
		wf.GET("", h.ListWorkflows)                                   // GET /api/v1/workflows
		wf.POST("", h.CreateWorkflow)                                 // POST /api/v1/workflows
		wf.POST("/generate", h.GenerateWorkflow, generateLimit(c)...) // POST /api/v1/workflows/generate
		wf.GET("/:id", h.GetWorkflow)                                 // GET /api/v1/workflows/42
		wf.PATCH("/:id", h.UpdateWorkflow)                            // PATCH /api/v1/workflows/42
		wf.DELETE("/:id", h.DeleteWorkflow)                           // DELETE /api/v1/workflows/42
		wf.GET("/:id/export", h.ExportWorkflow)                       // GET /api/v1/workflows/42/export
		wf.POST("/:id/report", h.ReportWorkflow, generateLimit(c)...) // POST /api/v1/workflows/42/report
	}
}

// generateLimit throttles LLM calls when redis is available
func generateLimit(c *container.Container) []echo.MiddlewareFunc {
	if c.Limiter == nil {
		return nil
	}
	cfg := c.Components.Config.Generator
	return []echo.MiddlewareFunc{
		commonmw.RateLimit(c.Limiter,
			ratelimit.DefaultGlobalGenerate,
			ratelimit.GenerateRule(cfg.RateLimit, cfg.RateLimitWindow),
			middleware.ClientKey,
		),
	}
}
