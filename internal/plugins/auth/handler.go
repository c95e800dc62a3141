package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/apperror"
)

// Handler handles HTTP requests for phone code login. Handlers are thin:
// they bind the request, call the service, and shape the JSON response. No
// business logic lives here.
type Handler struct {
	service AuthService

	// exposeCode echoes generated codes in responses. Never enabled in
	// production -- config.Load enforces that.
	exposeCode bool
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService, exposeCode bool) *Handler {
	return &Handler{service: service, exposeCode: exposeCode}
}

// RequestCode issues a verification code (POST /api/auth/code).
func (h *Handler) RequestCode(c echo.Context) error {
	var req RequestCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	code, err := h.service.RequestCode(c.Request().Context(), req.Phone)
	if err != nil {
		return err
	}

	resp := map[string]any{
		"success": true,
		"message": "verification code sent",
	}
	if h.exposeCode {
		resp["code"] = code
	}
	return c.JSON(http.StatusOK, resp)
}

// VerifyCode exchanges a phone and code for a session token (POST /api/auth/verify).
func (h *Handler) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	token, user, err := h.service.VerifyCode(c.Request().Context(), req.Phone, req.Code)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    user,
	})
}

// Me returns the authenticated principal (GET /api/auth/me). Runs behind
// RequireAuth, so either login path may have produced the identity.
func (h *Handler) Me(c echo.Context) error {
	identity, ok := GetIdentity(c)
	if !ok {
		return apperror.NewUnauthorized("authentication required")
	}

	user, err := h.service.GetUser(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}
