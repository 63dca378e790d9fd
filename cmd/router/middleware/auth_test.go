package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/logger"
)

func newGatedEcho(auth *service.AuthService) *echo.Echo {
	e := echo.New()
	g := e.Group("/api", RequireAccess(auth))
	g.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, ClientKey(c))
	})
	return e
}

func TestRequireAccess(t *testing.T) {
	auth := service.NewAuthService(config.AuthConfig{
		Password:     "pw",
		CookieName:   "vwf_access",
		CookieSecret: "s3cret",
		MaxAge:       time.Hour,
	}, logger.Nop())
	e := newGatedEcho(auth)

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("bad cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.AddCookie(&http.Cookie{Name: "vwf_access", Value: "forged.token"})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid cookie", func(t *testing.T) {
		token, claims, err := auth.Issue()
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.AddCookie(&http.Cookie{Name: "vwf_access", Value: token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "n:"+claims.Nonce, rec.Body.String())
	})
}

func TestRequireAccess_DisabledGate(t *testing.T) {
	auth := service.NewAuthService(config.AuthConfig{CookieName: "vwf_access"}, logger.Nop())
	e := newGatedEcho(auth)

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ip:10.0.0.9", rec.Body.String())
}
