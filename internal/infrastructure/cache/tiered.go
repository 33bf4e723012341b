package cache

import (
	"context"
	"slices"

	"github.com/erp/labeldesk/internal/domain/grn"
	"go.uber.org/zap"
)

// TieredCache puts a local memory cache (L1) in front of Redis (L2).
// Reads go L1 -> L2 and promote L2 hits into L1; writes go to both.
// L2 failures are logged and served from L1 alone.
type TieredCache struct {
	l1     *MemoryCache
	l2     *RedisCache
	logger *zap.Logger
}

// NewTieredCache combines l1 and l2.
func NewTieredCache(l1 *MemoryCache, l2 *RedisCache, logger *zap.Logger) *TieredCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredCache{l1: l1, l2: l2, logger: logger}
}

// Get reads L1, then L2.
func (c *TieredCache) Get(ctx context.Context, ns grn.Namespace, key string) (grn.Record, bool, error) {
	if rec, ok, _ := c.l1.Get(ctx, ns, key); ok {
		return rec, true, nil
	}

	rec, ok, err := c.l2.Get(ctx, ns, key)
	if err != nil {
		c.logger.Warn("L2 cache read failed",
			zap.String("namespace", string(ns)),
			zap.String("key", key),
			zap.Error(err))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	_, _ = c.l1.Add(ctx, ns, key, rec)
	return rec, true, nil
}

// GetMany reads L1 and fetches what is missing from L2 in one round trip.
func (c *TieredCache) GetMany(ctx context.Context, ns grn.Namespace, keys []string) (map[string]grn.Record, error) {
	out, _ := c.l1.GetMany(ctx, ns, keys)

	missing := slices.DeleteFunc(slices.Clone(keys), func(k string) bool {
		_, ok := out[k]
		return ok
	})
	if len(missing) == 0 {
		return out, nil
	}

	fromL2, err := c.l2.GetMany(ctx, ns, missing)
	if err != nil {
		c.logger.Warn("L2 cache read failed",
			zap.String("namespace", string(ns)),
			zap.Int("keys", len(missing)),
			zap.Error(err))
		return out, nil
	}
	for k, rec := range fromL2 {
		_, _ = c.l1.Add(ctx, ns, k, rec)
		out[k] = rec
	}
	return out, nil
}

// Add writes L2 first. When another instance already owns the key in L2,
// L1 takes that value so both tiers agree.
func (c *TieredCache) Add(ctx context.Context, ns grn.Namespace, key string, rec grn.Record) (bool, error) {
	written, err := c.l2.Add(ctx, ns, key, rec)
	if err != nil {
		c.logger.Warn("L2 cache write failed",
			zap.String("namespace", string(ns)),
			zap.String("key", key),
			zap.Error(err))
		return c.l1.Add(ctx, ns, key, rec)
	}

	if !written {
		if existing, ok, getErr := c.l2.Get(ctx, ns, key); getErr == nil && ok {
			rec = existing
		}
	}
	if _, err := c.l1.Add(ctx, ns, key, rec); err != nil {
		return written, err
	}
	return written, nil
}

// Stats concatenates the counters of both tiers.
func (c *TieredCache) Stats() []grn.CacheStats {
	return append(c.l1.Stats(), c.l2.Stats()...)
}

// Close stops the L1 cleanup goroutine.
func (c *TieredCache) Close() error {
	return c.l1.Close()
}

var (
	_ grn.RecordCache   = (*TieredCache)(nil)
	_ grn.StatsReporter = (*TieredCache)(nil)
)
