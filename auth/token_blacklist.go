package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/umlhub/umlhub/internal/slogging"
)

const blacklistKeyPrefix = "blacklist:jti:"

// TokenBlacklist records revoked JWT IDs in Redis until their natural expiry
type TokenBlacklist struct {
	redis *redis.Client
}

// NewTokenBlacklist creates a new token blacklist service
func NewTokenBlacklist(redisClient *redis.Client) *TokenBlacklist {
	slogging.Get().Info("Initializing token blacklist service")
	return &TokenBlacklist{redis: redisClient}
}

// Add blacklists a JWT ID for the given TTL
func (tb *TokenBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return fmt.Errorf("cannot blacklist token without jti")
	}
	if ttl <= 0 {
		// Already expired, nothing to revoke
		return nil
	}
	if err := tb.redis.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	slogging.Get().Debug("Token blacklisted jti=%s ttl=%v", jti, ttl)
	return nil
}

// IsBlacklisted reports whether a JWT ID has been revoked
func (tb *TokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := tb.redis.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n > 0, nil
}
