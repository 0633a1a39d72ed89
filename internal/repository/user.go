package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lreview/lreview/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// userColumns is the scan order shared by all user queries.
const userColumns = "id, email, username, password_hash, name, birthday, avatar_ref, created_at, updated_at"

// CreateUser inserts a new user. Duplicate email or username surfaces as
// ErrEmailExists / ErrUsernameExists via the unique constraints.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, name, birthday, avatar_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Name,
		user.Birthday,
		user.AvatarRef,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if dup := duplicateUserError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetUserByUsername retrieves a user by their username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

// UpdateUserProfile updates the mutable profile fields. A duplicate
// email surfaces as ErrEmailExists.
func (r *Repository) UpdateUserProfile(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, birthday = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Birthday,
	)

	if err != nil {
		if dup := duplicateUserError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateUserPassword replaces the stored password digest.
func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateUserAvatar replaces the avatar file reference and returns the
// previous reference so the caller can remove the orphaned file.
func (r *Repository) UpdateUserAvatar(ctx context.Context, id, avatarRef string) (string, error) {
	query := `
		UPDATE users u
		SET avatar_ref = $2, updated_at = NOW()
		FROM (SELECT avatar_ref FROM users WHERE id = $1) old
		WHERE u.id = $1
		RETURNING old.avatar_ref
	`

	var previous string
	err := r.pool.QueryRow(ctx, query, id, avatarRef).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to update avatar: %w", err)
	}

	return previous, nil
}

// duplicateUserError maps a unique violation on the users table to the
// matching sentinel, or nil if the error is something else.
func duplicateUserError(err error) error {
	constraint := uniqueViolation(err)
	switch {
	case constraint == "":
		return nil
	case strings.Contains(constraint, "email"):
		return ErrEmailExists
	case strings.Contains(constraint, "username"):
		return ErrUsernameExists
	default:
		return ErrEmailExists
	}
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Name,
		&user.Birthday,
		&user.AvatarRef,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return &user, err
}
