package ports

import (
	"context"
	"time"
)

// TokenBlacklist stores revoked refresh-token identifiers until they expire.
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}
