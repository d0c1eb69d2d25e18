package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/cartbuilder/session"
	"github.com/redis/go-redis/v9"
)

// Storage implements session.MultiStorage using Redis. It lets several
// client processes on different hosts share one session.
type Storage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStorage creates a new [Storage]. A ttl of zero stores keys without expiry.
func NewStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *Storage {
	return &Storage{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// redisKey returns the Redis key for a storage key.
func (r *Storage) redisKey(key string) string {
	if r.prefix == "" {
		return "session:" + key
	}
	return fmt.Sprintf("%s:session:%s", r.prefix, key)
}

func (r *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return val, nil
}

func (r *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}

func (r *Storage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
	}
	return nil
}

// SetMany writes all entries in one MULTI/EXEC transaction.
func (r *Storage) SetMany(ctx context.Context, entries map[string][]byte) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, r.redisKey(k), v, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set session keys in Redis: %w", err)
	}
	return nil
}

// DeleteMany removes all keys with a single DEL.
func (r *Storage) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.redisKey(k)
	}
	if err := r.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session keys from Redis: %w", err)
	}
	return nil
}

var _ session.MultiStorage = (*Storage)(nil)
