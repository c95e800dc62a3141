package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/middleware"
)

// RegisterRoutes sets up the code-login routes on the given Echo instance.
// The issuance and verification endpoints are rate-limited per IP on top of
// the per-phone pending-code limit: 5 code requests and 10 verify attempts
// per minute.
//
// authn is the RequireAuth middleware assembled in app wiring (it spans both
// login paths, so it can't be built here).
func RegisterRoutes(e *echo.Echo, h *Handler, authn echo.MiddlewareFunc) {
	e.POST("/api/auth/code", h.RequestCode, middleware.RateLimit(5, time.Minute))
	e.POST("/api/auth/verify", h.VerifyCode, middleware.RateLimit(10, time.Minute))

	e.GET("/api/auth/me", h.Me, authn)
}
