package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist stores revoked refresh-token ids in Redis until they expire.
// Key format: blacklist:refresh:<jti>
type Blacklist struct {
	client *redis.Client
}

// NewBlacklist creates a Blacklist wrapping the given Redis client.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client}
}

// Add revokes jti for ttl. Re-adding an id only refreshes its expiry.
func (b *Blacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

// Contains reports whether jti has been revoked.
func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist check: %w", err)
	}
	return n > 0, nil
}

func (b *Blacklist) key(jti string) string {
	return "blacklist:refresh:" + jti
}
