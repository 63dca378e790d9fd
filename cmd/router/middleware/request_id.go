package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/logger"
)

// PropagateRequestID copies the id assigned by echo's RequestID middleware
// into the request context so outbound calls and log lines carry it.
// Must run after middleware.RequestID.
func PropagateRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				ctx := clients.WithRequestID(c.Request().Context(), id)
				ctx = logger.ContextWithTraceID(ctx, id)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}
