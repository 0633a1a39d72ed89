// Package testutil provides helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/lreview/lreview/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates all tables for tests.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	// Down migrations run in reverse order, ups forward.
	steps := []string{
		"000002_posts.down.sql",
		"000001_users.down.sql",
		"000001_users.up.sql",
		"000002_posts.up.sql",
	}

	for _, name := range steps {
		sql, err := os.ReadFile(filepath.Join(root, "migrations", name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with sensible defaults. The password
// hash is an opaque placeholder; use the auth package when a test needs
// a verifiable digest.
func NewTestUser(t testing.TB, username string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:           ulid.Make().String(),
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "digest-" + username,
		Name:         "Test " + username,
		Birthday:     "2000-01-01",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestPost creates a test post owned by the given user.
func NewTestPost(t testing.TB, ownerID string) *model.Post {
	t.Helper()
	now := time.Now().UTC()
	return &model.Post{
		ID:            ulid.Make().String(),
		Title:         "A day worth keeping",
		Body:          "Wrote this down before it faded.",
		HappenAge:     23,
		Introspection: "Calmer than expected.",
		Emotion:       "content",
		Score:         8,
		Timestamp:     now,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTestImage creates a test image attached to the given post.
func NewTestImage(t testing.TB, postID string) *model.Image {
	t.Helper()
	return &model.Image{
		ID:          ulid.Make().String(),
		FilenameRef: ulid.Make().String() + ".jpg",
		PostID:      postID,
		CreatedAt:   time.Now().UTC(),
	}
}

// UniqueName generates a unique name for tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
