package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - user:{user_id}:name - display name, TTL set by the caller

// NameCache stores resolved display names in Redis.
type NameCache struct {
	client *goredis.Client
}

func NewNameCache(client *goredis.Client) *NameCache {
	return &NameCache{client: client}
}

func nameKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:name", userID.String())
}

// GetDisplayName reports a cache miss with ok=false and a nil error.
func (c *NameCache) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	name, err := c.client.Get(ctx, nameKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (c *NameCache) SetDisplayName(ctx context.Context, userID uuid.UUID, name string, ttl time.Duration) error {
	return c.client.Set(ctx, nameKey(userID), name, ttl).Err()
}

func (c *NameCache) InvalidateDisplayName(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, nameKey(userID)).Err()
}
