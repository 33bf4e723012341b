package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fan-out limits. They are fixed so that upstream load does not depend on the caller.
const (
	BatchSize           = 50
	MaxInFlightChunks   = 4
	FallbackConcurrency = 4
)

// Orchestrator resolves the keys of one source through the cache, fetching
// misses in $batch chunks and falling back to single GETs when a batch fails.
type Orchestrator struct {
	gateway Gateway
	cache   grn.RecordCache
	retry   RetryPolicy
	metrics *telemetry.EnrichmentMetrics
	logger  *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorRetry sets the retry policy of the per-key fallback.
func WithOrchestratorRetry(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retry = p
	}
}

// WithOrchestratorMetrics records upstream calls and cache lookups.
func WithOrchestratorMetrics(m *telemetry.EnrichmentMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator over gateway and cache.
func NewOrchestrator(gateway Gateway, cache grn.RecordCache, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		cache:   cache,
		retry:   DefaultRetryPolicy(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Resolve returns a record for every key of src: cached, fetched or empty.
// Upstream failures are absorbed. The error is non-nil only when ctx ended
// before every key was attempted; the map is complete even then.
func (o *Orchestrator) Resolve(ctx context.Context, src Source, keys []grn.Key) (map[string]grn.Record, error) {
	ctx, span := telemetry.StartSpan(ctx, "enrichment.resolve",
		telemetry.WithAttribute(telemetry.SpanAttrSource, src.Name),
		telemetry.WithAttribute(telemetry.SpanAttrKeys, len(keys)))
	defer span.End()

	out := make(map[string]grn.Record, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cached, err := o.cache.GetMany(ctx, src.Namespace, grn.IDs(keys))
	if err != nil {
		o.logger.Warn("cache read failed, treating keys as misses",
			zap.String("source", src.Name), zap.Error(err))
		cached = nil
	}

	missing := make([]grn.Key, 0, len(keys))
	for _, k := range keys {
		if rec, ok := cached[k.ID]; ok {
			out[k.ID] = rec
			continue
		}
		missing = append(missing, k)
	}
	o.metrics.RecordCacheLookup(ctx, string(src.Namespace), len(keys)-len(missing), len(missing))

	chunks := chunkKeys(missing, BatchSize)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrMisses, len(missing),
		telemetry.SpanAttrChunks, len(chunks))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(MaxInFlightChunks)
	for _, chunk := range chunks {
		g.Go(func() error {
			recs := o.fetchChunk(ctx, src, chunk)
			mu.Lock()
			for id, rec := range recs {
				out[id] = rec
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, k := range keys {
		if _, ok := out[k.ID]; !ok {
			out[k.ID] = grn.EmptyRecord()
		}
	}
	return out, ctx.Err()
}

func (o *Orchestrator) fetchChunk(ctx context.Context, src Source, chunk []grn.Key) map[string]grn.Record {
	paths := make([]string, len(chunk))
	for i, k := range chunk {
		paths[i] = src.Entity(k)
	}

	start := time.Now()
	docs, err := o.gateway.Batch(ctx, src.ServicePath, paths)
	o.metrics.RecordUpstream(ctx, src.Name, telemetry.ModeBatch, err, time.Since(start))
	if err == nil && len(docs) != len(chunk) {
		err = erp.ErrMalformedBatch
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		o.logger.Warn("batch request failed, falling back to single requests",
			zap.String("source", src.Name),
			zap.Strings("keys", grn.IDs(chunk)),
			zap.Error(grn.ErrUpstreamBatch.WithCause(err)),
		)
		return o.fallback(ctx, src, chunk)
	}

	out := make(map[string]grn.Record, len(chunk))
	for i, k := range chunk {
		out[k.ID] = o.store(ctx, src, k.ID, src.Extract(docs[i]))
	}
	return out
}

func (o *Orchestrator) fallback(ctx context.Context, src Source, keys []grn.Key) map[string]grn.Record {
	out := make(map[string]grn.Record, len(keys))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(FallbackConcurrency)
	for _, k := range keys {
		g.Go(func() error {
			rec, ok := o.fetchOne(ctx, src, k)
			if !ok {
				return nil
			}
			mu.Lock()
			out[k.ID] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fetchOne GETs one key under the retry policy. A key that fails for good is
// stored as an empty record; ok is false only when ctx ended first.
func (o *Orchestrator) fetchOne(ctx context.Context, src Source, k grn.Key) (grn.Record, bool) {
	doc, err := doWithRetry(ctx, o.retry, func(ctx context.Context) (erp.Document, error) {
		start := time.Now()
		doc, err := o.gateway.Get(ctx, src.Path(k))
		o.metrics.RecordUpstream(ctx, src.Name, telemetry.ModeFallback, err, time.Since(start))
		return doc, err
	})

	switch {
	case err == nil:
		return o.store(ctx, src, k.ID, src.Extract(doc)), true
	case ctx.Err() != nil:
		return nil, false
	case erp.IsNotFound(err):
		return o.store(ctx, src, k.ID, grn.EmptyRecord()), true
	default:
		o.logger.Warn("single request failed, caching empty record",
			zap.String("source", src.Name),
			zap.Strings("keys", []string{k.ID}),
			zap.Error(grn.ErrUpstreamItem.WithCause(err)),
		)
		return o.store(ctx, src, k.ID, grn.EmptyRecord()), true
	}
}

// store adds rec unless another writer got there first, in which case the
// stored record wins.
func (o *Orchestrator) store(ctx context.Context, src Source, id string, rec grn.Record) grn.Record {
	if rec == nil {
		rec = grn.EmptyRecord()
	}
	written, err := o.cache.Add(ctx, src.Namespace, id, rec)
	if err != nil {
		o.logger.Warn("cache write failed",
			zap.String("source", src.Name), zap.String("key", id), zap.Error(err))
		return rec
	}
	if !written {
		if existing, ok, err := o.cache.Get(ctx, src.Namespace, id); err == nil && ok {
			return existing
		}
	}
	return rec
}

func chunkKeys(keys []grn.Key, size int) [][]grn.Key {
	var chunks [][]grn.Key
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
