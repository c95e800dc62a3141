package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lumehaven/signet/internal/apperror"
)

// newTestStore spins up an in-process Redis and a store over it.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func TestStore_StateSingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state, err := store.CreateState(ctx, "github")
	if err != nil {
		t.Fatalf("CreateState error: %v", err)
	}
	if state == "" {
		t.Fatal("expected non-empty state")
	}

	provider, err := store.ConsumeState(ctx, state)
	if err != nil {
		t.Fatalf("ConsumeState error: %v", err)
	}
	if provider != "github" {
		t.Errorf("expected provider github, got %s", provider)
	}

	// Replay must fail regardless of freshness.
	if _, err := store.ConsumeState(ctx, state); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestStore_StateExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	state, err := store.CreateState(ctx, "github")
	if err != nil {
		t.Fatalf("CreateState error: %v", err)
	}

	mr.FastForward(stateTTL + time.Second)

	if _, err := store.ConsumeState(ctx, state); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestStore_ConsumeState_Unknown(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.ConsumeState(context.Background(), "never-issued"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := &Session{
		Provider:   "github",
		Email:      "alice@example.com",
		Name:       "Alice",
		AvatarURL:  "https://cdn.example.com/a.png",
		CreatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		InternalID: 42,
		Role:       "admin",
	}

	id, err := store.CreateSession(ctx, sess)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	got, err := store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession error: %v", err)
	}
	if got.Provider != sess.Provider || got.Email != sess.Email || got.InternalID != 42 || got.Role != "admin" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", sess.CreatedAt, got.CreatedAt)
	}
}

func TestStore_SessionExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, &Session{Provider: "github", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	mr.FastForward(time.Hour + time.Second)

	if _, err := store.GetSession(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestStore_DeleteSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, &Session{Provider: "github", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}

	if err := store.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession error: %v", err)
	}
	if _, err := store.GetSession(ctx, id); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing session is not an error.
	if err := store.DeleteSession(ctx, "already-gone"); err != nil {
		t.Errorf("expected nil for missing session, got %v", err)
	}
}

func TestStore_SessionIDsUnique(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		id, err := store.CreateSession(ctx, &Session{Provider: "github", Email: "alice@example.com"})
		if err != nil {
			t.Fatalf("CreateSession error: %v", err)
		}
		if seen[id] {
			t.Fatal("session id collision")
		}
		seen[id] = true
	}
}
