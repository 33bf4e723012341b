package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultKeyPrefix = "labeldesk:"

// RedisCache shares records across instances. Values are JSON objects written
// with SETNX, so the first writer of a key wins.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// NewRedisCache wraps an existing client. ttl of 0 keeps entries forever.
func NewRedisCache(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *RedisCache) key(ns grn.Namespace, key string) string {
	return c.keyPrefix + "record:" + string(ns) + ":" + key
}

// Get returns the record stored under key.
func (c *RedisCache) Get(ctx context.Context, ns grn.Namespace, key string) (grn.Record, bool, error) {
	data, err := c.client.Get(ctx, c.key(ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s/%s: %w", ns, key, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		c.misses.Add(1)
		c.logger.Warn("Dropping undecodable cache value",
			zap.String("namespace", string(ns)),
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	c.hits.Add(1)
	return rec, true, nil
}

// GetMany fetches keys with a single MGET.
func (c *RedisCache) GetMany(ctx context.Context, ns grn.Namespace, keys []string) (map[string]grn.Record, error) {
	out := make(map[string]grn.Record, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = c.key(ns, k)
	}
	values, err := c.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", ns, err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			c.logger.Warn("Dropping undecodable cache value",
				zap.String("namespace", string(ns)),
				zap.String("key", keys[i]),
				zap.Error(err))
			continue
		}
		out[keys[i]] = rec
	}

	c.hits.Add(int64(len(out)))
	c.misses.Add(int64(len(keys) - len(out)))
	return out, nil
}

// Add writes rec with SETNX. It returns false when the key already existed.
func (c *RedisCache) Add(ctx context.Context, ns grn.Namespace, key string, rec grn.Record) (bool, error) {
	if rec == nil {
		rec = grn.EmptyRecord()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode %s/%s: %w", ns, key, err)
	}

	written, err := c.client.SetNX(ctx, c.key(ns, key), data, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s/%s: %w", ns, key, err)
	}
	if written {
		c.writes.Add(1)
	}
	return written, nil
}

// Stats reports counters for the redis tier. Entries is not tracked.
func (c *RedisCache) Stats() []grn.CacheStats {
	return []grn.CacheStats{{
		Tier:   "redis",
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Writes: c.writes.Load(),
	}}
}

// Client returns the underlying Redis client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func decodeRecord(data []byte) (grn.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	rec := grn.Record{}
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

var (
	_ grn.RecordCache   = (*RedisCache)(nil)
	_ grn.StatsReporter = (*RedisCache)(nil)
)
