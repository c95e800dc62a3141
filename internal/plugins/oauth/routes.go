package oauth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/middleware"
)

// RegisterRoutes sets up the delegated login routes on the given Echo
// instance. The flow endpoints are rate-limited per IP; logout is not (it
// only ever destroys the caller's own session).
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/oauth/:provider", h.Start, middleware.RateLimit(10, time.Minute))
	e.GET("/oauth/:provider/callback", h.Callback, middleware.RateLimit(10, time.Minute))

	e.POST("/api/auth/logout", h.Logout)
}
