package grn

import (
	"context"
	"time"
)

// ManufacturerLoadedKey marks, inside NamespaceManufacturer, that the full
// manufacturer registry has been loaded.
const ManufacturerLoadedKey = "__ALL__"

// RecordCache stores master records per namespace.
//
// Entries are additive-only: Add never replaces a key that is already present,
// so a record, once written, stays as written until the backend expires it.
type RecordCache interface {
	// Get returns the record for key. The boolean is false when the key was never written
	// (or has expired). An attempted-but-empty fetch returns an empty Record and true.
	Get(ctx context.Context, ns Namespace, key string) (Record, bool, error)

	// GetMany returns the subset of keys that are present.
	GetMany(ctx context.Context, ns Namespace, keys []string) (map[string]Record, error)

	// Add stores rec under key unless the key already exists.
	// It returns true when the record was written.
	Add(ctx context.Context, ns Namespace, key string, rec Record) (bool, error)
}

// CacheConfig bounds the record caches.
type CacheConfig struct {
	// Capacity is the maximum number of entries per namespace in memory (0 = unbounded).
	Capacity int
	// TTL is the lifetime of an entry (0 = never expires).
	TTL time.Duration
}

// DefaultCacheConfig keeps entries for the process lifetime.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Capacity: 100000,
		TTL:      0,
	}
}

// CacheStats reports hit/miss counters for a cache tier.
type CacheStats struct {
	Tier    string `json:"tier"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Writes  int64  `json:"writes"`
	Entries int64  `json:"entries"`
}

// StatsReporter is implemented by caches that expose counters.
type StatsReporter interface {
	Stats() []CacheStats
}

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes work on a key, within the process or across instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
