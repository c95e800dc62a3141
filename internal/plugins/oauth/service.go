package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumehaven/signet/internal/apperror"
	"github.com/lumehaven/signet/internal/config"
	"github.com/lumehaven/signet/internal/plugins/auth"
)

// Service drives the delegated login flow: building the provider authorize
// URL, exchanging the callback code, resolving the profile to a principal,
// and creating the enriched session.
type Service struct {
	providers map[string]config.Provider
	store     *Store
	identity  auth.IdentityResolver
	client    *http.Client
	baseURL   string
}

// NewService creates the OAuth service. baseURL is the public URL callbacks
// are registered under at each provider.
func NewService(providers map[string]config.Provider, store *Store, identity auth.IdentityResolver, baseURL string) *Service {
	return &Service{
		providers: providers,
		store:     store,
		identity:  identity,
		client:    &http.Client{Timeout: 10 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// AuthURL installs a state nonce and returns the provider authorize URL the
// browser should be redirected to.
func (s *Service) AuthURL(ctx context.Context, provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", apperror.NewNotFound("unknown identity provider")
	}

	state, err := s.store.CreateState(ctx, provider)
	if err != nil {
		return "", apperror.NewInternal(err)
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", p.ClientID)
	query.Set("redirect_uri", s.redirectURI(provider))
	query.Set("state", state)
	if len(p.Scopes) > 0 {
		query.Set("scope", strings.Join(p.Scopes, " "))
	}

	authURL, err := url.Parse(p.AuthURL)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("invalid provider auth URL: %w", err))
	}
	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}

// HandleCallback completes a delegated sign-in: it consumes the state,
// exchanges the code, fetches the profile, upserts the principal by email,
// and creates the enriched session. Returns the session id for the cookie.
//
// An identity-store failure rejects the whole sign-in; no session is created
// over a half-resolved principal.
func (s *Service) HandleCallback(ctx context.Context, provider, code, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", apperror.NewNotFound("unknown identity provider")
	}
	if code == "" || state == "" {
		return "", apperror.NewBadRequest("missing code or state")
	}

	// Single-use: a replayed state fails here no matter how fresh it is.
	issuedFor, err := s.store.ConsumeState(ctx, state)
	if err == ErrNotFound {
		return "", apperror.NewBadRequest("login attempt is invalid or has expired")
	}
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	if issuedFor != provider {
		return "", apperror.NewBadRequest("login attempt is invalid or has expired")
	}

	accessToken, err := s.exchangeCode(ctx, provider, p, code)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("exchanging authorization code: %w", err))
	}

	profile, err := s.fetchProfile(ctx, p, accessToken)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("fetching provider profile: %w", err))
	}

	// Rejects profiles without an email (MissingIdentityClaim) and surfaces
	// store failures without leaving a partial principal behind.
	user, err := s.identity.UpsertByEmail(ctx, profile)
	if err != nil {
		return "", err
	}

	sess := &Session{
		Provider:  provider,
		Email:     strings.ToLower(strings.TrimSpace(profile.Email)),
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
		CreatedAt: time.Now().UTC(),
	}
	enrichSession(sess, user)

	id, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return "", apperror.NewInternal(err)
	}

	slog.Info("delegated sign-in",
		slog.String("provider", provider),
		slog.Int64("user_id", user.ID),
	)

	return id, nil
}

// Logout destroys a delegated session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// enrichSession merges the principal's internal id and role into the
// provider session object. Runs at sign-in and again on every
// materialization (see Authenticator), so the merged fields track the user
// table rather than the snapshot taken at login.
func enrichSession(sess *Session, user *auth.User) {
	sess.InternalID = user.ID
	sess.Role = user.Role
}

// redirectURI builds the callback URL registered at the provider.
func (s *Service) redirectURI(provider string) string {
	return s.baseURL + "/oauth/" + provider + "/callback"
}

// exchangeCode swaps the callback authorization code for an access token.
func (s *Service) exchangeCode(ctx context.Context, provider string, p config.Provider, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)
	form.Set("redirect_uri", s.redirectURI(provider))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("token endpoint error: %s", payload.Error)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return payload.AccessToken, nil
}

// fetchProfile loads the userinfo document and maps it onto the identity
// resolver's profile shape.
func (s *Service) fetchProfile(ctx context.Context, p config.Provider, accessToken string) (auth.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return auth.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return auth.Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return auth.Profile{}, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var payload profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return auth.Profile{}, fmt.Errorf("decoding userinfo response: %w", err)
	}

	name := payload.Name
	if name == "" {
		name = payload.Login
	}
	avatar := payload.AvatarURL
	if avatar == "" {
		avatar = payload.Picture
	}

	return auth.Profile{
		Email:     payload.Email,
		Name:      name,
		AvatarURL: avatar,
	}, nil
}
