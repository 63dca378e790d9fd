package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/moogar0880/problems"

	"github.com/lyzr/workflow-router/common/ratelimit"
)

// Limiter is the subset of ratelimit.RateLimiter the middleware needs
type Limiter interface {
	CheckGlobal(ctx context.Context, rule ratelimit.Rule) (*ratelimit.RateLimitResult, error)
	CheckClient(ctx context.Context, rule ratelimit.Rule, client string) (*ratelimit.RateLimitResult, error)
}

// ClientKeyFunc identifies the caller for per-client limits
type ClientKeyFunc func(c echo.Context) string

// RealIP keys clients by their address
func RealIP(c echo.Context) string {
	return c.RealIP()
}

// RateLimit enforces a global rule and then a per-client rule. Redis errors
// let the request through (fail open for availability).
func RateLimit(limiter Limiter, global, perClient ratelimit.Rule, clientKey ClientKeyFunc) echo.MiddlewareFunc {
	if clientKey == nil {
		clientKey = RealIP
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if global.Limit > 0 {
				result, err := limiter.CheckGlobal(ctx, global)
				if err == nil && !result.Allowed {
					return tooManyRequests(c, result, "The service is handling too many requests. Please try again later.")
				}
			}

			if perClient.Limit > 0 {
				result, err := limiter.CheckClient(ctx, perClient, clientKey(c))
				if err == nil && !result.Allowed {
					return tooManyRequests(c, result, "You have exceeded your request quota. Please wait before trying again.")
				}
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, result *ratelimit.RateLimitResult, detail string) error {
	c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
	problem := problems.NewStatusProblem(http.StatusTooManyRequests).
		WithInstance(c.Path()).
		WithType("rate_limit_exceeded").
		WithDetail(detail)

	return c.JSON(http.StatusTooManyRequests, problem)
}
