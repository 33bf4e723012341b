package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when a lock could not be acquired in time.
var ErrLockNotObtained = errors.New("cache: lock not obtained")

// Lock and Locker are the domain lock contracts.
type (
	Lock   = grn.Lock
	Locker = grn.Locker
)

// RedisLocker is a Locker shared by all instances using the same Redis.
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
	retry     redislock.RetryStrategy
}

// NewRedisLocker creates a locker. Obtain retries every 100ms, at most 20 times.
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{
		client:    redislock.New(client),
		keyPrefix: keyPrefix + "lock:",
		retry:     redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
	}
}

// Obtain acquires key for at most ttl.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return lock, nil
}

// LocalLocker serializes work within the process. The ttl is ignored.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

// Obtain blocks until key is free or ctx is done.
func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (Lock, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return &localLock{slot: slot}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrLockNotObtained, key, ctx.Err())
	}
}

type localLock struct {
	once sync.Once
	slot chan struct{}
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() { <-l.slot })
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
