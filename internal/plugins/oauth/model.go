// Package oauth implements the delegated third-party login path: the
// provider redirect flow, the single-use state nonce, profile resolution to
// an internal principal, and the provider-managed session object that gets
// the internal id and role merged into it. The code-login path lives in the
// auth plugin; this package reuses its identity resolver and Identity type.
package oauth

import (
	"time"
)

// Session is the provider-managed session object, stored in Redis and
// referenced by a cookie. InternalID and Role are merged in when the
// session is created and re-attached from the user table every time the
// session is materialized, so they are never stale even if the stored copy
// predates a role change.
type Session struct {
	Provider  string    `json:"provider"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Enriched claims.
	InternalID int64  `json:"internal_id"`
	Role       string `json:"role"`
}

// profilePayload is the shape decoded from the provider's userinfo endpoint.
// Providers disagree on field names, so common aliases are accepted.
type profilePayload struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Picture   string `json:"picture"`
}

// tokenPayload is the shape decoded from the provider's token endpoint.
type tokenPayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
}
