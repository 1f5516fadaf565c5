// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/sec"
)

const (
	fieldToken = "token"
	fieldUser  = "user"
)

// RedisStores is a [StoreFactory] keeping one Redis hash per browser session.
type RedisStores struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStores creates a Redis-backed [StoreFactory].
func NewRedisStores(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStores {
	return &RedisStores{client: client, ttl: ttl, logger: logger}
}

// For implements [StoreFactory].
//
// The key is derived from the hash of the browser session id.
func (factory *RedisStores) For(browserSessionID string) TokenStore {
	return &RedisStore{
		client: factory.client,
		key:    constants.RedisPrefixSession + sec.HashToken(browserSessionID),
		ttl:    factory.ttl,
		logger: factory.logger,
	}
}

// RedisStore implements [TokenStore] on a single Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

/*
Save writes token and profile in one MULTI/EXEC transaction.

Parameters:
  - ctx: context.Context
  - token: string
  - user: *UserProfile

Returns:
  - error: Encoding or Redis failures
*/
func (store *RedisStore) Save(ctx context.Context, token string, user *UserProfile) error {
	if token == "" || user == nil {
		return errIncompleteSession
	}

	encodedUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("redis_session_encode_failed: %w", err)
	}

	// Both fields and the TTL land together or not at all.
	pipeline := store.client.TxPipeline()
	pipeline.HSet(ctx, store.key, fieldToken, token, fieldUser, encodedUser)
	pipeline.Expire(ctx, store.key, store.ttl)

	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("redis_session_save_failed: %w", err)
	}

	return nil
}

/*
Load reads the persisted session.

Description: Every failure mode degrades to an empty session.

Parameters:
  - ctx: context.Context

Returns:
  - Session: Persisted or zero value
*/
func (store *RedisStore) Load(ctx context.Context) Session {
	values, err := store.client.HGetAll(ctx, store.key).Result()
	if err != nil {
		store.logger.WarnContext(ctx, "session_store_load_failed", slog.Any("error", err))
		return Session{}
	}

	token, encodedUser := values[fieldToken], values[fieldUser]
	if token == "" || encodedUser == "" {
		return Session{}
	}

	var user UserProfile
	if err := json.Unmarshal([]byte(encodedUser), &user); err != nil {
		store.logger.WarnContext(ctx, "session_store_decode_failed", slog.Any("error", err))
		return Session{}
	}

	return Session{AccessToken: token, User: &user}
}

/*
Clear deletes the hash.

Parameters:
  - ctx: context.Context

Returns:
  - error: Deletion failures
*/
func (store *RedisStore) Clear(ctx context.Context) error {
	if err := store.client.Del(ctx, store.key).Err(); err != nil {
		return fmt.Errorf("redis_session_clear_failed: %w", err)
	}
	return nil
}
