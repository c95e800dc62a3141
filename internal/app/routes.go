package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/plugins/auth"
	"github.com/lumehaven/signet/internal/plugins/oauth"
)

// RegisterRoutes builds the plugin dependency graph and registers all
// application routes. This is the single place where plugins are wired
// together; nothing else constructs services or repositories.
func RegisterRoutes(a *App) {
	e := a.Echo
	cfg := a.Config

	// --- Shared identity layer ---
	users := auth.NewUserRepository(a.DB)
	identity := auth.NewIdentityResolver(users)

	// --- Code login (self-issued tokens) ---
	codes := auth.NewCodeStore(a.Redis)
	minter := auth.NewTokenMinter(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)

	var sender auth.CodeSender
	if cfg.IsDevelopment() {
		sender = auth.NewLogSender()
	}

	authService := auth.NewAuthService(
		codes, identity, users, minter, sender,
		cfg.Auth.PhonePattern, cfg.Auth.CodeTTL,
	)
	authHandler := auth.NewHandler(authService, cfg.Auth.ExposeCode)

	// --- Delegated login (provider sessions) ---
	oauthStore := oauth.NewStore(a.Redis, cfg.Auth.SessionTTL)
	oauthService := oauth.NewService(cfg.OAuth.Providers, oauthStore, identity, cfg.BaseURL)
	oauthHandler := oauth.NewHandler(oauthService, cfg.BaseURL, cfg.Auth.SessionTTL)

	// Either login path satisfies authenticated routes.
	authn := auth.RequireAuth(
		auth.NewBearerAuthenticator(authService),
		oauth.NewAuthenticator(oauthStore, users),
	)

	// --- Routes ---
	auth.RegisterRoutes(e, authHandler, authn)
	oauth.RegisterRoutes(e, oauthHandler)

	// Health check endpoint for container health monitoring. Pings both
	// backing stores so a wedged dependency flips the check.
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "database unreachable"})
		}
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "redis unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
