package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"credential-service/internal/client"
)

const attemptKeyPrefix = "biometric:failures:"

// AttemptCache counts recent biometric verification failures per
// subject across all verification stations, feeding the spoofing
// heuristic. A fixed window via key TTL is deliberate: the first
// failure opens the window, the counter dies with it.
type AttemptCache struct {
	redis  *client.RedisClient
	window time.Duration
	logger *zap.Logger
}

func NewAttemptCache(redisClient *client.RedisClient, window time.Duration, logger *zap.Logger) *AttemptCache {
	if window <= 0 {
		window = time.Minute
	}
	return &AttemptCache{
		redis:  redisClient,
		window: window,
		logger: logger,
	}
}

// RecordFailure implements biometric.AttemptTracker.
func (c *AttemptCache) RecordFailure(ctx context.Context, subjectID string) (int, error) {
	key := attemptKeyPrefix + subjectID

	count, err := c.redis.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count failure: %w", err)
	}
	if count == 1 {
		if err := c.redis.Client.Expire(ctx, key, c.window).Err(); err != nil {
			c.logger.Warn("failed to set failure counter expiry",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
	}
	return int(count), nil
}
