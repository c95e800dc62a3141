package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for the two kinds of OAuth state.
const (
	stateKeyPrefix   = "oauth:state:"
	sessionKeyPrefix = "oauth:session:"
)

// stateTTL bounds how long a login attempt may sit between the redirect to
// the provider and the callback.
const stateTTL = 10 * time.Minute

// ErrNotFound is returned for absent or expired states and sessions.
var ErrNotFound = errors.New("oauth: not found")

// Store keeps OAuth flow state in Redis: single-use state nonces for the
// redirect round trip and the provider session objects themselves.
type Store struct {
	rdb        *redis.Client
	sessionTTL time.Duration
}

// NewStore creates a Redis-backed OAuth store. sessionTTL bounds the
// provider session lifetime.
func NewStore(rdb *redis.Client, sessionTTL time.Duration) *Store {
	return &Store{rdb: rdb, sessionTTL: sessionTTL}
}

// CreateState installs a fresh state nonce bound to the provider and returns
// it. The nonce expires on its own if the callback never arrives.
func (s *Store) CreateState(ctx context.Context, provider string) (string, error) {
	state := uuid.NewString()
	if err := s.rdb.Set(ctx, stateKeyPrefix+state, provider, stateTTL).Err(); err != nil {
		return "", fmt.Errorf("storing oauth state: %w", err)
	}
	return state, nil
}

// ConsumeState validates and deletes a state nonce in one step, returning
// the provider it was issued for. A replayed or expired state yields
// ErrNotFound.
func (s *Store) ConsumeState(ctx context.Context, state string) (string, error) {
	provider, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consuming oauth state: %w", err)
	}
	return provider, nil
}

// CreateSession stores the session object under a fresh session id and
// returns the id for the cookie.
func (s *Store) CreateSession(ctx context.Context, sess *Session) (string, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	id := uuid.NewString()
	if err := s.rdb.Set(ctx, sessionKeyPrefix+id, data, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return id, nil
}

// GetSession loads a session object by id. Expired or unknown ids yield
// ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session, logging the user out of the delegated path.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
