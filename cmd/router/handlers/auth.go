package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/logger"
)

// AuthHandler exchanges the shared password for an access cookie
type AuthHandler struct {
	auth *service.AuthService
	log  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// PasswordRequest is the body of a login
type PasswordRequest struct {
	Password string `json:"password" validate:"required,max=512"`
}

// Pass verifies the password and sets the access cookie
// POST /auth/pass
func (h *AuthHandler) Pass(c echo.Context) error {
	if !h.auth.Enabled() {
		return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "gate": "disabled"})
	}

	var req PasswordRequest
	if err := bind(c, &req); err != nil {
		return handleServiceError(c, h.log, err)
	}
	if err := h.auth.VerifyPassword(req.Password); err != nil {
		h.log.Warn("rejected password", "ip", c.RealIP())
		return handleServiceError(c, h.log, err)
	}

	token, claims, err := h.auth.Issue()
	if err != nil {
		return handleServiceError(c, h.log, err)
	}
	c.SetCookie(h.cookie(token, int(h.auth.MaxAge().Seconds())))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":         true,
		"expires_at": time.Unix(claims.ExpiresAt, 0).UTC(),
	})
}

// Status reports whether the caller holds a valid cookie
// GET /auth/status
func (h *AuthHandler) Status(c echo.Context) error {
	if !h.auth.Enabled() {
		return c.JSON(http.StatusOK, map[string]interface{}{"enabled": false, "authenticated": true})
	}
	resp := map[string]interface{}{"enabled": true, "authenticated": false}
	if cookie, err := c.Cookie(h.auth.CookieName()); err == nil {
		if claims, err := h.auth.Parse(cookie.Value); err == nil {
			resp["authenticated"] = true
			resp["expires_at"] = time.Unix(claims.ExpiresAt, 0).UTC()
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout clears the access cookie
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.auth.CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.auth.Secure(),
		SameSite: http.SameSiteLaxMode,
	}
}
