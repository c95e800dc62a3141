package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/apperror"
)

// contextKeyIdentity is the Echo context key holding the authenticated
// Identity. Collaborator plugins read it via GetIdentity.
const contextKeyIdentity = "auth_identity"

// GetIdentity retrieves the authenticated identity from the request context.
// The bool is false on routes not behind RequireAuth.
func GetIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(contextKeyIdentity).(Identity)
	return id, ok
}

// RequireAuth returns middleware that resolves the request to an Identity
// using the given authenticators in order, stopping at the first success.
// Requests no authenticator accepts are rejected with 401.
func RequireAuth(authenticators ...Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, a := range authenticators {
				identity, err := a.Authenticate(c)
				if err != nil {
					continue
				}
				c.Set(contextKeyIdentity, identity)
				return next(c)
			}
			return apperror.NewUnauthorized("authentication required")
		}
	}
}

// RequireAdmin returns middleware that rejects non-admin identities. Must
// run inside RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := GetIdentity(c)
			if !ok {
				return apperror.NewUnauthorized("authentication required")
			}
			if !identity.IsAdmin() {
				return apperror.NewForbidden("admin role required")
			}
			return next(c)
		}
	}
}

// BearerAuthenticator authenticates requests carrying a self-issued session
// token in the Authorization header.
type BearerAuthenticator struct {
	service AuthService
}

// NewBearerAuthenticator creates the bearer-token authenticator.
func NewBearerAuthenticator(service AuthService) *BearerAuthenticator {
	return &BearerAuthenticator{service: service}
}

// Authenticate extracts and verifies the bearer token, returning the
// identity its claims carry.
func (a *BearerAuthenticator) Authenticate(c echo.Context) (Identity, error) {
	header := c.Request().Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return Identity{}, apperror.NewUnauthorized("bearer token required")
	}

	claims, err := a.service.VerifyToken(token)
	if err != nil {
		return Identity{}, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, apperror.NewInvalidToken()
	}

	return Identity{UserID: userID, Role: claims.Role}, nil
}
