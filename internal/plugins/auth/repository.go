package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumehaven/signet/internal/apperror"
)

// UserRepository defines the data access contract for principal records.
// All SQL lives in the concrete implementation -- no SQL leaks out.
//
// The CreateOr* operations are atomic per identity key: the conditional
// insert and the update are one statement, so concurrent first-time logins
// for the same phone or email cannot create duplicate principals. Their
// update branches deliberately omit id and role -- those columns are
// write-once.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// CreateOrTouchByPhone inserts a principal for the phone if none exists,
	// otherwise only stamps last_login_at.
	CreateOrTouchByPhone(ctx context.Context, phone, displayName string, now time.Time) error

	// CreateOrRefreshByEmail inserts a principal for the email if none
	// exists, otherwise refreshes display_name, avatar_path, and
	// last_login_at from the incoming profile.
	CreateOrRefreshByEmail(ctx context.Context, email, displayName string, avatarPath *string, now time.Time) error
}

// userRepository implements UserRepository with hand-written MySQL queries.
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository backed by the given DB pool.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

// userColumns is the select list shared by all Find queries.
const userColumns = `id, phone, email, display_name, avatar_path, role, created_at, last_login_at`

// scanUser reads one user row from a QueryRow result.
func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Phone,
		&user.Email,
		&user.DisplayName,
		&user.AvatarPath,
		&user.Role,
		&user.CreatedAt,
		&user.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user row: %w", err)
	}
	return user, nil
}

// FindByID retrieves a principal by its internal id.
// Returns apperror.NotFound if no user exists with this id.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByPhone retrieves a principal by phone number.
// Returns apperror.NotFound if no user exists with this phone.
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, phone))
}

// FindByEmail retrieves a principal by email address.
// Returns apperror.NotFound if no user exists with this email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// CreateOrTouchByPhone upserts a principal keyed by the unique phone column.
// The update branch touches nothing but last_login_at, so id, role, and
// profile fields survive every repeat login unchanged.
func (r *userRepository) CreateOrTouchByPhone(ctx context.Context, phone, displayName string, now time.Time) error {
	query := `INSERT INTO users (phone, display_name, role, created_at, last_login_at)
	          VALUES (?, ?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE last_login_at = VALUES(last_login_at)`

	_, err := r.db.ExecContext(ctx, query, phone, displayName, RoleUser, now, now)
	if err != nil {
		return fmt.Errorf("upserting user by phone: %w", err)
	}
	return nil
}

// CreateOrRefreshByEmail upserts a principal keyed by the unique email
// column. The update branch refreshes the profile fields only -- id and role
// keep whatever the row already holds, even if the upstream profile claims
// otherwise.
func (r *userRepository) CreateOrRefreshByEmail(ctx context.Context, email, displayName string, avatarPath *string, now time.Time) error {
	query := `INSERT INTO users (email, display_name, avatar_path, role, created_at, last_login_at)
	          VALUES (?, ?, ?, ?, ?, ?)
	          ON DUPLICATE KEY UPDATE
	            display_name = VALUES(display_name),
	            avatar_path = VALUES(avatar_path),
	            last_login_at = VALUES(last_login_at)`

	_, err := r.db.ExecContext(ctx, query, email, displayName, avatarPath, RoleUser, now, now)
	if err != nil {
		return fmt.Errorf("upserting user by email: %w", err)
	}
	return nil
}
