package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/moogar0880/problems"

	"github.com/lyzr/workflow-router/cmd/router/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ClaimsKey is the context key for the verified access claims
	ClaimsKey ContextKey = "access_claims"
)

// RequireAccess rejects requests without a valid access cookie. With no
// password configured every request passes.
//
// Usage:
//
//	api := e.Group("/api/v1")
//	api.Use(middleware.RequireAccess(authService))
//
// Accessing in handlers:
//
//	claims, ok := middleware.GetClaims(c)
func RequireAccess(auth *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.Enabled() {
				return next(c)
			}

			cookie, err := c.Cookie(auth.CookieName())
			if err != nil || cookie.Value == "" {
				return unauthorized(c, "an access cookie is required")
			}
			claims, err := auth.Parse(cookie.Value)
			if err != nil {
				return unauthorized(c, "the access cookie is invalid or expired")
			}

			c.Set(string(ClaimsKey), claims)
			return next(c)
		}
	}
}

// GetClaims retrieves the access claims from the request context
func GetClaims(c echo.Context) (service.AccessClaims, bool) {
	claims, ok := c.Get(string(ClaimsKey)).(service.AccessClaims)
	return claims, ok
}

// ClientKey identifies a caller for rate limiting: the cookie nonce when the
// gate is on, the client address otherwise
func ClientKey(c echo.Context) string {
	if claims, ok := GetClaims(c); ok && claims.Nonce != "" {
		return "n:" + claims.Nonce
	}
	return "ip:" + c.RealIP()
}

func unauthorized(c echo.Context, detail string) error {
	p := problems.NewStatusProblem(http.StatusUnauthorized).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)
	return c.JSON(http.StatusUnauthorized, p)
}
