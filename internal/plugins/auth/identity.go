package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lumehaven/signet/internal/apperror"
)

// IdentityResolver owns the create-vs-update decision for principals. Both
// entry points are idempotent: repeated calls with the same identity key
// converge to the same principal modulo last_login_at.
type IdentityResolver interface {
	// UpsertByPhone resolves the phone to a principal, creating one with
	// RoleUser on first login and stamping last_login_at on every login.
	UpsertByPhone(ctx context.Context, phone string) (*User, error)

	// UpsertByEmail resolves a delegated profile to a principal by its
	// email. A profile without an email is rejected outright -- email is
	// the only key that correlates the profile to a pre-existing account.
	UpsertByEmail(ctx context.Context, profile Profile) (*User, error)
}

// identityResolver implements IdentityResolver over the user repository.
type identityResolver struct {
	repo UserRepository
	now  func() time.Time
}

// NewIdentityResolver creates an identity resolver backed by the given
// repository.
func NewIdentityResolver(repo UserRepository) IdentityResolver {
	return &identityResolver{repo: repo, now: time.Now}
}

func (r *identityResolver) UpsertByPhone(ctx context.Context, phone string) (*User, error) {
	now := r.now().UTC()

	if err := r.repo.CreateOrTouchByPhone(ctx, phone, maskPhone(phone), now); err != nil {
		return nil, apperror.NewIdentityStoreFailure(fmt.Errorf("upserting by phone: %w", err))
	}

	user, err := r.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, apperror.NewIdentityStoreFailure(fmt.Errorf("reading back upserted user: %w", err))
	}
	return user, nil
}

func (r *identityResolver) UpsertByEmail(ctx context.Context, profile Profile) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, apperror.NewMissingIdentityClaim("provider profile did not include an email address")
	}

	displayName := strings.TrimSpace(profile.Name)
	if displayName == "" {
		displayName = email
	}

	var avatarPath *string
	if profile.AvatarURL != "" {
		avatarPath = &profile.AvatarURL
	}

	now := r.now().UTC()
	if err := r.repo.CreateOrRefreshByEmail(ctx, email, displayName, avatarPath, now); err != nil {
		return nil, apperror.NewIdentityStoreFailure(fmt.Errorf("upserting by email: %w", err))
	}

	user, err := r.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperror.NewIdentityStoreFailure(fmt.Errorf("reading back upserted user: %w", err))
	}
	return user, nil
}

// maskPhone builds the default display name for a phone-created principal,
// e.g. "138****0000". Phones shorter than 8 digits are used as-is.
func maskPhone(phone string) string {
	if len(phone) < 8 {
		return phone
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
