package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumehaven/signet/internal/apperror"
)

// Claims is the payload of a self-issued session token. Subject carries the
// internal user id; exactly one of Phone or Email carries the identity key
// the session was minted for.
type Claims struct {
	jwt.RegisteredClaims
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// UserID returns the internal user id from the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing subject claim: %w", err)
	}
	return id, nil
}

// TokenMinter produces and verifies compact signed session credentials
// (HS256 JWTs). The signing secret comes from configuration and is never
// embedded in source.
type TokenMinter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenMinter creates a minter with the given signing secret and token
// lifetime.
func NewTokenMinter(secret string, ttl time.Duration) *TokenMinter {
	return &TokenMinter{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint issues a signed token carrying the principal's id, identity key, and
// role, valid from now until now plus the configured lifetime.
func (m *TokenMinter) Mint(user *User) (string, error) {
	now := m.now().UTC()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role: user.Role,
	}
	if user.Phone != nil {
		claims.Phone = *user.Phone
	}
	if user.Email != nil {
		claims.Email = *user.Email
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token, returning its claims. Every failure
// mode -- bad signature, wrong algorithm, malformed token, or passed expiry
// -- yields the same InvalidToken error so callers can't probe which check
// failed.
func (m *TokenMinter) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, apperror.NewInvalidToken()
	}
	return claims, nil
}
