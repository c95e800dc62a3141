package oauth

import (
	"github.com/labstack/echo/v4"

	"github.com/lumehaven/signet/internal/apperror"
	"github.com/lumehaven/signet/internal/plugins/auth"
)

// Authenticator materializes the provider session referenced by the cookie
// into an auth.Identity. It implements auth.Authenticator, so routes behind
// RequireAuth accept delegated sessions and bearer tokens interchangeably.
type Authenticator struct {
	store *Store
	users auth.UserRepository
}

// NewAuthenticator creates the session-cookie authenticator.
func NewAuthenticator(store *Store, users auth.UserRepository) *Authenticator {
	return &Authenticator{store: store, users: users}
}

// Authenticate loads the session and re-attaches the internal id and role
// from the user table. Looking the principal up on every materialization
// keeps the enriched claims correct even if the role changed after sign-in.
func (a *Authenticator) Authenticate(c echo.Context) (auth.Identity, error) {
	sessionID := getSessionCookie(c)
	if sessionID == "" {
		return auth.Identity{}, apperror.NewUnauthorized("session cookie required")
	}

	ctx := c.Request().Context()

	sess, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		return auth.Identity{}, apperror.NewUnauthorized("session expired or invalid")
	}

	user, err := a.users.FindByEmail(ctx, sess.Email)
	if err != nil {
		return auth.Identity{}, apperror.NewUnauthorized("session expired or invalid")
	}
	enrichSession(sess, user)

	return auth.Identity{UserID: sess.InternalID, Role: sess.Role}, nil
}
