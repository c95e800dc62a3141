package oauth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// sessionCookieName is the HTTP cookie referencing the delegated session.
const sessionCookieName = "signet_session"

// Handler handles the browser-facing half of the delegated flow. Handlers
// are thin: they call the service and manage the cookie and redirects.
type Handler struct {
	service *Service

	// redirectTo is where the browser lands after a completed sign-in.
	redirectTo string

	// sessionTTL bounds the cookie lifetime; it matches the Redis session
	// TTL so the cookie and the session it references expire together.
	sessionTTL time.Duration
}

// NewHandler creates a new OAuth handler.
func NewHandler(service *Service, redirectTo string, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, redirectTo: redirectTo, sessionTTL: sessionTTL}
}

// Start begins a delegated sign-in (GET /oauth/:provider) by redirecting to
// the provider's authorize endpoint.
func (h *Handler) Start(c echo.Context) error {
	authURL, err := h.service.AuthURL(c.Request().Context(), c.Param("provider"))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, authURL)
}

// Callback completes a delegated sign-in (GET /oauth/:provider/callback).
// On success it sets the session cookie and sends the browser home.
func (h *Handler) Callback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		// The provider declined (user cancelled, bad scope, ...). Nothing
		// to clean up -- the state nonce expires on its own.
		return c.Redirect(http.StatusSeeOther, h.redirectTo)
	}

	sessionID, err := h.service.HandleCallback(
		c.Request().Context(),
		c.Param("provider"),
		c.QueryParam("code"),
		c.QueryParam("state"),
	)
	if err != nil {
		return err
	}

	setSessionCookie(c, sessionID, h.sessionTTL)
	return c.Redirect(http.StatusSeeOther, h.redirectTo)
}

// Logout destroys the delegated session and clears the cookie
// (POST /api/auth/logout). Safe to call without a session.
func (h *Handler) Logout(c echo.Context) error {
	if sessionID := getSessionCookie(c); sessionID != "" {
		// Ignore errors -- the cookie is cleared regardless.
		_ = h.service.Logout(c.Request().Context(), sessionID)
	}

	clearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// --- Cookie helpers ---

// getSessionCookie reads the session id from the cookie.
func getSessionCookie(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure if behind TLS, and SameSite=Lax. Its
// lifetime is the session TTL, so it never outlives the Redis session.
func setSessionCookie(c echo.Context, sessionID string, ttl time.Duration) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
