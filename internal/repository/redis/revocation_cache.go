package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"credential-service/internal/client"
)

const revocationKeyPrefix = "revoked:credential:"

// RevocationCache is the shared revocation list: credential ids an
// operator has invalidated before their natural expiry (lost cards,
// withdrawn staff). Entries carry a TTL matched to the credential's
// remaining validity, after which expiry makes the entry redundant.
type RevocationCache struct {
	redis  *client.RedisClient
	logger *zap.Logger
}

func NewRevocationCache(redisClient *client.RedisClient, logger *zap.Logger) *RevocationCache {
	return &RevocationCache{
		redis:  redisClient,
		logger: logger,
	}
}

// Revoke marks a credential id revoked for ttl. A non-positive ttl
// keeps the entry until an operator clears it.
func (c *RevocationCache) Revoke(ctx context.Context, credentialID, reason string, ttl time.Duration) error {
	key := revocationKeyPrefix + credentialID
	if err := c.redis.Client.Set(ctx, key, reason, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}
	c.logger.Info("credential revoked",
		zap.String("credential_id", credentialID),
		zap.String("reason", reason),
	)
	return nil
}

// IsRevoked implements qrcode.RevocationChecker.
func (c *RevocationCache) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	_, err := c.redis.Client.Get(ctx, revocationKeyPrefix+credentialID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("revocation lookup failed: %w", err)
	}
	return true, nil
}
