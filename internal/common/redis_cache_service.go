package common

import (
	"context"
	"errors"
	"time"

	"devmind/datacollector/internal/logging"

	"github.com/redis/go-redis/v9"
)

// RedisCacheService implements CacheInterface on Redis. Failures degrade to cache misses.
type RedisCacheService struct {
	client *redis.Client
	prefix string
}

var _ CacheInterface = (*RedisCacheService)(nil)

// NewRedisCacheService shares an existing client. Keys are namespaced under prefix.
func NewRedisCacheService(client *redis.Client, prefix string) *RedisCacheService {
	return &RedisCacheService{client: client, prefix: prefix}
}

func (r *RedisCacheService) key(k string) string {
	return r.prefix + k
}

func (r *RedisCacheService) Set(ctx context.Context, key string, value []byte, duration time.Duration) {
	if err := r.client.Set(ctx, r.key(key), value, duration).Err(); err != nil {
		logging.Warn("Redis cache: failed to set key", "key", key, "error", err.Error())
	}
}

func (r *RedisCacheService) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis cache: failed to get key", "key", key, "error", err.Error())
		return nil, false
	}
	return data, true
}

func (r *RedisCacheService) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		logging.Warn("Redis cache: failed to delete key", "key", key, "error", err.Error())
	}
}

func (r *RedisCacheService) GetOrSet(ctx context.Context, key string, duration time.Duration, loader func() ([]byte, error)) ([]byte, error) {
	if val, found := r.Get(ctx, key); found {
		return val, nil
	}

	val, err := loader()
	if err != nil {
		return nil, err
	}

	r.Set(ctx, key, val, duration)
	return val, nil
}

// Close leaves the shared client open; its owner closes it.
func (r *RedisCacheService) Close() error {
	return nil
}

// TTL returns the remaining time to live of a key
func (r *RedisCacheService) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, r.key(key)).Result()
}
