package cache

import (
	"context"
	"testing"
	"time"

	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/testutil"
)

// setupCache connects to the test Redis instance and flushes it. Skips
// when REDIS_URL is not set.
func setupCache(t *testing.T) (*Cache, context.Context) {
	t.Helper()

	url := testutil.RequireEnv(t, "REDIS_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	return c, ctx
}

func TestPrincipalCache_Roundtrip(t *testing.T) {
	c, ctx := setupCache(t)

	p := &model.Principal{
		UserID:   "u1",
		Username: "keeper",
		Email:    "keeper@example.com",
	}

	if err := c.SetPrincipal(ctx, p); err != nil {
		t.Fatalf("SetPrincipal failed: %v", err)
	}

	got, err := c.GetPrincipal(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPrincipal failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached principal, got nil")
	}
	if got.UserID != p.UserID || got.Username != p.Username || got.Email != p.Email {
		t.Errorf("principal mismatch: %+v", got)
	}
}

func TestPrincipalCache_MissIsNotAnError(t *testing.T) {
	c, ctx := setupCache(t)

	got, err := c.GetPrincipal(ctx, "nobody")
	if err != nil {
		t.Fatalf("a cache miss should not error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestPrincipalCache_Invalidate(t *testing.T) {
	c, ctx := setupCache(t)

	p := &model.Principal{UserID: "u2", Username: "old-name", Email: "old@example.com"}
	if err := c.SetPrincipal(ctx, p); err != nil {
		t.Fatalf("SetPrincipal failed: %v", err)
	}

	if err := c.InvalidatePrincipal(ctx, "u2"); err != nil {
		t.Fatalf("InvalidatePrincipal failed: %v", err)
	}

	got, err := c.GetPrincipal(ctx, "u2")
	if err != nil {
		t.Fatalf("GetPrincipal failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss after invalidation, got %+v", got)
	}

	// Invalidating an absent key stays a no-op.
	if err := c.InvalidatePrincipal(ctx, "u2"); err != nil {
		t.Errorf("repeat invalidation should succeed: %v", err)
	}
}

func TestPrincipalCache_CorruptEntryIsAMiss(t *testing.T) {
	c, ctx := setupCache(t)

	if err := c.client.Set(ctx, principalCachePrefix+"u3", "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	got, err := c.GetPrincipal(ctx, "u3")
	if err != nil {
		t.Fatalf("corrupt entry should read as a miss: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for corrupt entry, got %+v", got)
	}
}
