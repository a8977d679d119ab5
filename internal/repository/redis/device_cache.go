package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"credential-service/internal/client"
	"credential-service/internal/devices"
	"credential-service/internal/models"
)

const deviceKeyPrefix = "device:status:"

// DeviceCache mirrors device status to Redis so every verification
// station shares one availability picture. Implements
// devices.StatusCache.
type DeviceCache struct {
	redis  *client.RedisClient
	logger *zap.Logger
}

func NewDeviceCache(redisClient *client.RedisClient, logger *zap.Logger) *DeviceCache {
	return &DeviceCache{
		redis:  redisClient,
		logger: logger,
	}
}

func (c *DeviceCache) SetStatus(ctx context.Context, deviceID string, status models.DeviceStatus, lastSync time.Time) error {
	key := deviceKeyPrefix + deviceID
	err := c.redis.Client.HSet(ctx, key,
		"status", string(status),
		"last_sync", lastSync.Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache device status: %w", err)
	}
	return nil
}

func (c *DeviceCache) GetStatus(ctx context.Context, deviceID string) (models.DeviceStatus, time.Time, error) {
	key := deviceKeyPrefix + deviceID
	fields, err := c.redis.Client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", time.Time{}, devices.ErrDeviceNotFound
		}
		return "", time.Time{}, fmt.Errorf("failed to read device status: %w", err)
	}
	if len(fields) == 0 {
		return "", time.Time{}, devices.ErrDeviceNotFound
	}

	lastSync, err := time.Parse(time.RFC3339, fields["last_sync"])
	if err != nil {
		lastSync = time.Time{}
	}
	return models.DeviceStatus(fields["status"]), lastSync, nil
}
