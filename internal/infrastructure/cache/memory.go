package cache

import (
	"container/list"
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"go.uber.org/zap"
)

const defaultCleanupInterval = 30 * time.Second

// MemoryCache is the process-wide record cache.
// Each namespace holds at most Capacity entries; once full, the oldest entry is evicted.
type MemoryCache struct {
	config grn.CacheConfig
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[grn.Namespace]*memorySpace

	stopCh  chan struct{}
	stopped int32

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

type memorySpace struct {
	entries map[string]*list.Element
	order   *list.List // front is the oldest entry
}

type memoryEntry struct {
	key       string
	record    grn.Record
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithMemoryConfig sets capacity and TTL.
func WithMemoryConfig(cfg grn.CacheConfig) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.config = cfg
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *zap.Logger) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.logger = logger
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates an in-memory cache. When a TTL is configured a
// background goroutine drops expired entries until Close is called.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		config: grn.DefaultCacheConfig(),
		logger: zap.NewNop(),
		now:    time.Now,
		spaces: make(map[grn.Namespace]*memorySpace),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.config.TTL > 0 {
		go c.cleanupExpired()
	}
	return c
}

func (c *MemoryCache) space(ns grn.Namespace) *memorySpace {
	s, ok := c.spaces[ns]
	if !ok {
		s = &memorySpace{entries: make(map[string]*list.Element), order: list.New()}
		c.spaces[ns] = s
	}
	return s
}

// lookup must be called with mu held.
func (c *MemoryCache) lookup(ns grn.Namespace, key string) (grn.Record, bool) {
	s, ok := c.spaces[ns]
	if !ok {
		return nil, false
	}
	el, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if entry.expired(c.now()) {
		s.order.Remove(el)
		delete(s.entries, key)
		return nil, false
	}
	return entry.record, true
}

// Get returns the record stored under key.
func (c *MemoryCache) Get(_ context.Context, ns grn.Namespace, key string) (grn.Record, bool, error) {
	c.mu.Lock()
	rec, ok := c.lookup(ns, key)
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return rec, true, nil
}

// GetMany returns the present subset of keys.
func (c *MemoryCache) GetMany(_ context.Context, ns grn.Namespace, keys []string) (map[string]grn.Record, error) {
	out := make(map[string]grn.Record, len(keys))

	c.mu.Lock()
	for _, key := range keys {
		if rec, ok := c.lookup(ns, key); ok {
			out[key] = rec
		}
	}
	c.mu.Unlock()

	c.hits.Add(int64(len(out)))
	c.misses.Add(int64(len(keys) - len(out)))
	return out, nil
}

// Add stores rec unless key is already present.
func (c *MemoryCache) Add(_ context.Context, ns grn.Namespace, key string, rec grn.Record) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookup(ns, key); ok {
		return false, nil
	}

	s := c.space(ns)
	if c.config.Capacity > 0 {
		for s.order.Len() >= c.config.Capacity {
			oldest := s.order.Front()
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*memoryEntry).key)
		}
	}

	entry := &memoryEntry{key: key, record: maps.Clone(rec)}
	if entry.record == nil {
		entry.record = grn.EmptyRecord()
	}
	if c.config.TTL > 0 {
		entry.expiresAt = c.now().Add(c.config.TTL)
	}
	s.entries[key] = s.order.PushBack(entry)
	c.writes.Add(1)
	return true, nil
}

// Len returns the number of entries held for ns.
func (c *MemoryCache) Len(ns grn.Namespace) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.spaces[ns]; ok {
		return s.order.Len()
	}
	return 0
}

// Stats reports counters for the memory tier.
func (c *MemoryCache) Stats() []grn.CacheStats {
	c.mu.Lock()
	var entries int64
	for _, s := range c.spaces {
		entries += int64(s.order.Len())
	}
	c.mu.Unlock()

	return []grn.CacheStats{{
		Tier:    "memory",
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Writes:  c.writes.Load(),
		Entries: entries,
	}}
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if removed := c.doCleanup(); removed > 0 {
				c.logger.Debug("Cleaned up expired cache entries", zap.Int("removed", removed))
			}
		}
	}
}

func (c *MemoryCache) doCleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, s := range c.spaces {
		for el := s.order.Front(); el != nil; {
			next := el.Next()
			entry := el.Value.(*memoryEntry)
			if entry.expired(now) {
				s.order.Remove(el)
				delete(s.entries, entry.key)
				removed++
			}
			el = next
		}
	}
	return removed
}

var (
	_ grn.RecordCache   = (*MemoryCache)(nil)
	_ grn.StatsReporter = (*MemoryCache)(nil)
)
