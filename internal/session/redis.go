package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medscan-console/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps the envelope under a single Redis key.
// Sessions never expire on the client side, so no TTL is set.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// NewRedisStorage connects to redisURL and verifies the connection
func NewRedisStorage(ctx context.Context, redisURL, key string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStorageFromClient(client, key), nil
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStorage{client: client, key: "medscan:" + key}
}

// Load implements Storage
func (r *RedisStorage) Load(ctx context.Context) (*domain.Session, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return decodeEnvelope(val)
}

// Save implements Storage
func (r *RedisStorage) Save(ctx context.Context, session domain.Session) error {
	data, err := encodeEnvelope(session)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete implements Storage
func (r *RedisStorage) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close implements Storage
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
