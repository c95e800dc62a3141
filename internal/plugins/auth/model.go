// Package auth is the identity and session issuance core of Signet. It
// implements phone one-time-code login end to end: code generation and
// storage, rate-limited reissue, single-use verification, principal upsert,
// and signed session token minting. The delegated (OAuth) login path in the
// oauth plugin reuses this package's identity resolver and claim types.
//
// This is a CORE plugin -- always enabled, cannot be disabled.
package auth

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Roles assignable to a principal. New sign-ins always start as RoleUser;
// an upsert never changes an existing role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the internal principal record every other subsystem joins against.
// ID is immutable once assigned. A user created through phone login has
// Phone set; one created through delegated login has Email set.
type User struct {
	ID          int64      `json:"id"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	DisplayName string     `json:"display_name"`
	AvatarPath  *string    `json:"avatar_path,omitempty"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Profile is the identity claim set received from a third-party provider.
// Email is the only field that correlates the profile to an account.
type Profile struct {
	Email     string
	Name      string
	AvatarURL string
}

// Identity is the claim pair collaborators consume from a verified session,
// regardless of which login path produced it.
type Identity struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Authenticator resolves an incoming request to an Identity. The bearer
// token path (this package) and the provider session path (oauth plugin)
// each supply one; RequireAuth tries them in order.
type Authenticator interface {
	Authenticate(c echo.Context) (Identity, error)
}

// --- Request DTOs (bound from HTTP requests) ---

// RequestCodeRequest holds the body of POST /api/auth/code.
type RequestCodeRequest struct {
	Phone string `json:"phone" form:"phone"`
}

// VerifyCodeRequest holds the body of POST /api/auth/verify.
type VerifyCodeRequest struct {
	Phone string `json:"phone" form:"phone"`
	Code  string `json:"code" form:"code"`
}
