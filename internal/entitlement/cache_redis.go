// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package entitlement

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/coursehub/internal/platform/constants"
)

// RedisCache is a [PendingCache] backed by one expiring Redis key per entry.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCache creates a Redis-backed [PendingCache].
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, now: time.Now}
}

func (cache *RedisCache) key(key Key) string {
	return constants.RedisPrefixPendingEntitlement + key.UserID + ":" + key.CourseID
}

// Set implements [PendingCache]. The value is the grant time in unix seconds.
func (cache *RedisCache) Set(ctx context.Context, key Key, ttl time.Duration) error {
	grantedAt := strconv.FormatInt(cache.now().Unix(), 10)

	if err := cache.client.Set(ctx, cache.key(key), grantedAt, ttl).Err(); err != nil {
		return fmt.Errorf("redis_pending_set_failed: %w", err)
	}
	return nil
}

// Has implements [PendingCache]. Redis expires the key, so existence is liveness.
func (cache *RedisCache) Has(ctx context.Context, key Key) (bool, error) {
	count, err := cache.client.Exists(ctx, cache.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis_pending_get_failed: %w", err)
	}
	return count > 0, nil
}

// Delete implements [PendingCache].
func (cache *RedisCache) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		redisKeys = append(redisKeys, cache.key(key))
	}

	if err := cache.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("redis_pending_delete_failed: %w", err)
	}
	return nil
}
