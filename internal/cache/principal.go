package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lreview/lreview/internal/model"
)

const (
	// principalCachePrefix is the Redis key prefix for resolved principals.
	principalCachePrefix = "auth:principal:"
	// principalCacheTTL bounds how long a deleted or renamed user can
	// still authenticate from cache.
	principalCacheTTL = 5 * time.Minute
)

// GetPrincipal retrieves a cached principal by user ID.
// Returns nil on a cache miss; a miss is not an error.
func (c *Cache) GetPrincipal(ctx context.Context, userID string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, principalCachePrefix+userID).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var p model.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &p, nil
}

// SetPrincipal caches a resolved principal.
func (c *Cache) SetPrincipal(ctx context.Context, p *model.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	return c.client.Set(ctx, principalCachePrefix+p.UserID, data, principalCacheTTL).Err()
}

// InvalidatePrincipal removes a cached principal. Called after profile
// or password mutations so stale identity data does not linger.
func (c *Cache) InvalidatePrincipal(ctx context.Context, userID string) error {
	return c.client.Del(ctx, principalCachePrefix+userID).Err()
}
