package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend is the record cache selected from configuration, with the locker
// matching its scope.
type Backend struct {
	Name   string
	Cache  grn.RecordCache
	Locker Locker

	closers []func() error
}

// Stats reports the counters of the selected cache.
func (b *Backend) Stats() []grn.CacheStats {
	if r, ok := b.Cache.(grn.StatsReporter); ok {
		return r.Stats()
	}
	return nil
}

// Close releases the cache and its Redis connection.
func (b *Backend) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Factory creates cache backends from configuration.
type Factory struct {
	cfg    config.CacheConfig
	logger *zap.Logger
	dial   func(config.RedisConfig) (*redis.Client, error)
}

// FactoryOption is a functional option for configuring the factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory.
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithRedisDialer replaces how the Redis client is created.
func WithRedisDialer(dial func(config.RedisConfig) (*redis.Client, error)) FactoryOption {
	return func(f *Factory) {
		f.dial = dial
	}
}

// NewFactory creates a new factory.
func NewFactory(cfg config.CacheConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:    cfg,
		logger: zap.NewNop(),
		dial:   DialRedis,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DialRedis connects and pings Redis.
func DialRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (f *Factory) memory() *MemoryCache {
	return NewMemoryCache(
		WithMemoryConfig(grn.CacheConfig{Capacity: f.cfg.Capacity, TTL: f.cfg.TTL}),
		WithMemoryLogger(f.logger.Named("cache.memory")),
	)
}

func (f *Factory) memoryBackend() *Backend {
	mem := f.memory()
	return &Backend{
		Name:    config.CacheBackendMemory,
		Cache:   mem,
		Locker:  NewLocalLocker(),
		closers: []func() error{mem.Close},
	}
}

// Create builds the configured backend. When Redis is unreachable and fallback
// is allowed, the memory backend is returned instead.
func (f *Factory) Create() (*Backend, error) {
	if f.cfg.Backend == "" || f.cfg.Backend == config.CacheBackendMemory {
		f.logger.Info("using in-memory record cache",
			zap.Int("capacity", f.cfg.Capacity),
			zap.Duration("ttl", f.cfg.TTL))
		return f.memoryBackend(), nil
	}

	client, err := f.dial(f.cfg.Redis)
	if err != nil {
		if !f.cfg.AllowFallback {
			return nil, fmt.Errorf("Redis required for %s cache but unavailable: %w", f.cfg.Backend, err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory record cache. "+
			"Instances will not share cached master data.",
			zap.String("backend", f.cfg.Backend),
			zap.Error(err),
		)
		return f.memoryBackend(), nil
	}

	l2 := NewRedisCache(client, f.cfg.Redis.KeyPrefix, f.cfg.TTL, f.logger.Named("cache.redis"))
	locker := NewRedisLocker(client, f.cfg.Redis.KeyPrefix)

	switch f.cfg.Backend {
	case config.CacheBackendRedis:
		f.logger.Info("using Redis record cache", zap.String("addr", f.cfg.Redis.Addr()))
		return &Backend{
			Name:    config.CacheBackendRedis,
			Cache:   l2,
			Locker:  locker,
			closers: []func() error{client.Close},
		}, nil
	case config.CacheBackendTiered:
		mem := f.memory()
		f.logger.Info("using tiered record cache", zap.String("addr", f.cfg.Redis.Addr()))
		return &Backend{
			Name:    config.CacheBackendTiered,
			Cache:   NewTieredCache(mem, l2, f.logger.Named("cache.tiered")),
			Locker:  locker,
			closers: []func() error{mem.Close, client.Close},
		}, nil
	default:
		_ = client.Close()
		return nil, fmt.Errorf("unknown cache backend %q", f.cfg.Backend)
	}
}
