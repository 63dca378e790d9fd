package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/container"
	"github.com/lyzr/workflow-router/cmd/router/handlers"
	commonmw "github.com/lyzr/workflow-router/common/middleware"
	"github.com/lyzr/workflow-router/common/ratelimit"
)

// RegisterAuthRoutes registers the password gate routes. They sit outside
// the gated API group.
func RegisterAuthRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAuthHandler(c.AuthService, c.Components.Logger)

	var attempts []echo.MiddlewareFunc
	if c.Limiter != nil {
		attempts = append(attempts, commonmw.RateLimit(c.Limiter, ratelimit.Rule{}, ratelimit.PasswordAttempts, commonmw.RealIP))
	}

	auth := e.Group("/auth")
	{
		auth.POST("/pass", h.Pass, attempts...) // POST /auth/pass
		auth.GET("/status", h.Status)           // GET /auth/status
		auth.POST("/logout", h.Logout)          // POST /auth/logout
	}
}
