package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// TaskLock is a named, expiring mutual-exclusion lock shared by all workers.
type TaskLock interface {
	// TryLock acquires key for ttl. ok is false when someone else holds it.
	// The returned token must be passed to Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Unlock releases key if it is still held with token
	Unlock(ctx context.Context, key, token string) error
}

// TaskLockKey names the lock guarding one job kind for one config
func TaskLockKey(jobKind, configUUID string) string {
	return fmt.Sprintf("data_collector:lock:%s:%s", jobKind, configUUID)
}

// RedisTaskLock implements TaskLock with SET NX PX and a compare-and-delete release
type RedisTaskLock struct {
	client *redis.Client
}

var _ TaskLock = (*RedisTaskLock)(nil)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisTaskLock(client *redis.Client) *RedisTaskLock {
	return &RedisTaskLock{client: client}
}

func (l *RedisTaskLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *RedisTaskLock) Unlock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// MemoryTaskLock implements TaskLock in-process on top of go-cache.
// It only excludes runs inside a single process.
type MemoryTaskLock struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ TaskLock = (*MemoryTaskLock)(nil)

func NewMemoryTaskLock() *MemoryTaskLock {
	return &MemoryTaskLock{cache: cache.New(time.Hour, 10*time.Minute)}
}

// TryLock and Unlock share mu so a release can never remove an entry that
// expired and was re-acquired between its read and its delete.
func (l *MemoryTaskLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.NewString()
	// Add fails while an unexpired entry exists
	if err := l.cache.Add(key, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

func (l *MemoryTaskLock) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, found := l.cache.Get(key); found && current == token {
		l.cache.Delete(key)
	}
	return nil
}
