// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lreview/lreview/internal/auth"
	"github.com/lreview/lreview/internal/cache"
	"github.com/lreview/lreview/internal/mail"
	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/repository"
	"github.com/lreview/lreview/internal/storage"
)

// User service errors.
var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrEmailNotFound      = errors.New("email not registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingFile        = errors.New("missing upload file")
	ErrUnsupportedFile    = errors.New("unsupported file type")
)

// UserService handles registration, authentication and profile logic.
type UserService struct {
	repo   *repository.Repository
	cache  *cache.Cache
	tokens *auth.TokenService
	store  storage.Store
	mailer mail.Mailer
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	repo *repository.Repository,
	cacheClient *cache.Cache,
	tokens *auth.TokenService,
	store storage.Store,
	mailer mail.Mailer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:   repo,
		cache:  cacheClient,
		tokens: tokens,
		store:  store,
		mailer: mailer,
		logger: logger,
	}
}

// RegisterInput defines input for creating a user account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     string
	Birthday string
}

// Register creates a new user with a hashed password. The database
// unique constraints decide duplicates, so two concurrent registrations
// with the same email end with exactly one success.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if anyBlank(input.Email, input.Username, input.Password, input.Name, input.Birthday) {
		return nil, ErrMissingFields
	}

	digest, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        strings.TrimSpace(input.Email),
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: digest,
		Name:         strings.TrimSpace(input.Name),
		Birthday:     strings.TrimSpace(input.Birthday),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Session is an issued login credential.
type Session struct {
	AccessToken string
	ExpiresIn   int64
}

// Authenticate verifies the password and issues a session token. The
// same error covers an unknown username and a wrong password so the
// response does not reveal which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, auth.PurposeSession)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	return &Session{
		AccessToken: token,
		ExpiresIn:   int64(s.tokens.TTL(auth.PurposeSession).Seconds()),
	}, nil
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfileInput defines the mutable profile fields.
type UpdateProfileInput struct {
	Email    string
	Name     string
	Birthday string
}

// UpdateProfile updates profile fields and invalidates the cached
// principal so the auth gate stops serving stale identity data.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	if anyBlank(input.Email, input.Name, input.Birthday) {
		return nil, ErrMissingFields
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Email = strings.TrimSpace(input.Email)
	user.Name = strings.TrimSpace(input.Name)
	user.Birthday = strings.TrimSpace(input.Birthday)

	if err := s.repo.UpdateUserProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrDuplicateEmail
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.invalidatePrincipal(ctx, userID)

	return user, nil
}

// RequestPasswordReset issues a short-lived reset token and mails it to
// the account's address.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if strings.TrimSpace(emailAddr) == "" {
		return ErrMissingFields
	}

	user, err := s.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, auth.PurposeReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(user.Email, user.Name, token); err != nil {
		return fmt.Errorf("dispatch reset mail: %w", err)
	}

	return nil
}

// ResetPassword swaps the stored digest for the given user. The caller
// has already redeemed a reset-purpose token for this user ID.
func (s *UserService) ResetPassword(ctx context.Context, userID, password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrMissingFields
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, digest); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.invalidatePrincipal(ctx, userID)

	return nil
}

// SetAvatar stores the uploaded file, points the user at it, and
// removes the previous avatar file. The file is written before the
// metadata commit; if the commit fails the new file is cleaned up.
func (s *UserService) SetAvatar(ctx context.Context, userID, filename string, src io.Reader) (string, error) {
	if filename == "" || src == nil {
		return "", ErrMissingFile
	}

	ref, err := s.store.Save(filename, src)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return "", ErrUnsupportedFile
		}
		return "", fmt.Errorf("store avatar: %w", err)
	}

	previous, err := s.repo.UpdateUserAvatar(ctx, userID, ref)
	if err != nil {
		if removeErr := s.store.Remove(ref); removeErr != nil {
			s.logger.Warn("orphaned avatar file left behind", "ref", ref, "error", removeErr)
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("update avatar: %w", err)
	}

	// The old file is no longer referenced; a failed removal is logged
	// and the request still succeeds.
	if previous != "" && previous != ref {
		if err := s.store.Remove(previous); err != nil {
			s.logger.Warn("failed to remove previous avatar", "ref", previous, "error", err)
		}
	}

	return ref, nil
}

// invalidatePrincipal best-effort drops the cached principal.
func (s *UserService) invalidatePrincipal(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrincipal(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate cached principal", "user_id", userID, "error", err)
	}
}

// anyBlank reports whether any value is empty after trimming.
func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
