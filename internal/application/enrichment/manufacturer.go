package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	manufacturerSource  = "manufacturers"
	manufacturerLockKey = "manufacturers"
	manufacturerLockTTL = time.Minute
)

// ManufacturerPath is the full manufacturer registry.
const ManufacturerPath = ManufacturerService + "/ManfoDtls?$format=json"

// ManufacturerLoader loads the manufacturer registry into the cache once.
// Concurrent loads in the process collapse into one; across instances they are
// serialized by the locker.
type ManufacturerLoader struct {
	gateway Gateway
	cache   grn.RecordCache
	locker  grn.Locker
	retry   RetryPolicy
	metrics *telemetry.EnrichmentMetrics
	logger  *zap.Logger
	group   singleflight.Group
}

// NewManufacturerLoader creates a loader. A nil locker loads without serialization.
func NewManufacturerLoader(gateway Gateway, cache grn.RecordCache, locker grn.Locker, retry RetryPolicy, metrics *telemetry.EnrichmentMetrics, logger *zap.Logger) *ManufacturerLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ManufacturerLoader{
		gateway: gateway,
		cache:   cache,
		locker:  locker,
		retry:   retry,
		metrics: metrics,
		logger:  logger,
	}
}

// Ensure loads the registry unless the loaded marker is present.
// A failed load leaves the marker unset so the next request tries again.
func (l *ManufacturerLoader) Ensure(ctx context.Context) error {
	if l.loaded(ctx) {
		return nil
	}
	_, err, _ := l.group.Do(manufacturerLockKey, func() (any, error) {
		return nil, l.load(ctx)
	})
	return err
}

// Lookup returns the cached records of numbers. Unknown numbers are absent.
func (l *ManufacturerLoader) Lookup(ctx context.Context, numbers []string) map[string]grn.Record {
	if len(numbers) == 0 {
		return map[string]grn.Record{}
	}
	recs, err := l.cache.GetMany(ctx, grn.NamespaceManufacturer, numbers)
	if err != nil {
		l.logger.Warn("cache read failed, treating keys as misses",
			zap.String("source", manufacturerSource), zap.Error(err))
		return map[string]grn.Record{}
	}
	l.metrics.RecordCacheLookup(ctx, string(grn.NamespaceManufacturer), len(recs), len(numbers)-len(recs))
	return recs
}

func (l *ManufacturerLoader) loaded(ctx context.Context) bool {
	_, ok, err := l.cache.Get(ctx, grn.NamespaceManufacturer, grn.ManufacturerLoadedKey)
	return err == nil && ok
}

func (l *ManufacturerLoader) load(ctx context.Context) error {
	if l.locker != nil {
		lock, err := l.locker.Obtain(ctx, manufacturerLockKey, manufacturerLockTTL)
		if err != nil {
			l.logger.Warn("manufacturer lock not obtained, loading without it", zap.Error(err))
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					l.logger.Debug("manufacturer lock release failed", zap.Error(err))
				}
			}()
		}
	}
	// another instance may have finished while we waited
	if l.loaded(ctx) {
		return nil
	}

	doc, err := doWithRetry(ctx, l.retry, func(ctx context.Context) (erp.Document, error) {
		start := time.Now()
		doc, err := l.gateway.Get(ctx, ManufacturerPath)
		l.metrics.RecordUpstream(ctx, manufacturerSource, telemetry.ModeQuery, err, time.Since(start))
		return doc, err
	})
	if err != nil {
		l.logger.Warn("manufacturer registry load failed", zap.String("source", manufacturerSource), zap.Error(err))
		return err
	}

	rows := doc.V2Results()
	stored := 0
	for _, row := range rows {
		no := strings.TrimSpace(grn.Record(row).String("ManfNo"))
		if no == "" {
			continue
		}
		if _, err := l.cache.Add(ctx, grn.NamespaceManufacturer, no, grn.Record(row)); err != nil {
			l.logger.Warn("cache write failed", zap.String("source", manufacturerSource), zap.String("key", no), zap.Error(err))
			continue
		}
		stored++
	}
	if _, err := l.cache.Add(ctx, grn.NamespaceManufacturer, grn.ManufacturerLoadedKey,
		grn.Record{"loaded": true}); err != nil {
		return err
	}
	l.logger.Info("manufacturer registry loaded", zap.Int("rows", len(rows)), zap.Int("stored", stored))
	return nil
}
