package enrichment

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Phase names reported in Timings.
const (
	PhaseItems              = "items"
	PhaseProducts           = "products"
	PhaseSuppliers          = "suppliers"
	PhaseHeaders            = "headers"
	PhasePurchaseOrderItems = "purchaseOrderItems"
	PhaseManufacturers      = "manufacturers"
	PhaseBusinessUsers      = "businessUsers"
	PhaseAggregates         = "aggregates"
	PhaseOverall            = "overall"
)

// DefaultListTop bounds the list queries.
const DefaultListTop = 10000

// Timings holds milliseconds per phase.
type Timings map[string]int64

// DetailsResult is the outcome of ResolveDetails.
type DetailsResult struct {
	Records []grn.EnrichedRecord
	Timings Timings
}

// Service runs the enrichment pipeline.
type Service struct {
	gateway       Gateway
	cache         grn.RecordCache
	orchestrator  *Orchestrator
	manufacturers *ManufacturerLoader
	aggregator    *Aggregator
	plan          grn.JoinPlan
	retry         RetryPolicy
	metrics       *telemetry.EnrichmentMetrics
	logger        *zap.Logger
	listTop       int
	locker        grn.Locker
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *telemetry.EnrichmentMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetryPolicy sets the policy of the item query and the per-key fallback.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		s.retry = p
	}
}

// WithListTop sets $top of the list queries.
func WithListTop(top int) Option {
	return func(s *Service) {
		if top > 0 {
			s.listTop = top
		}
	}
}

// WithJoinPlan replaces the default join plan.
func WithJoinPlan(plan grn.JoinPlan) Option {
	return func(s *Service) {
		if len(plan) > 0 {
			s.plan = plan
		}
	}
}

// WithLocker serializes the manufacturer load across instances.
func WithLocker(l grn.Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

// NewService wires the pipeline over gateway and cache.
func NewService(gateway Gateway, cache grn.RecordCache, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		cache:   cache,
		plan:    grn.DefaultJoinPlan(),
		retry:   DefaultRetryPolicy(),
		logger:  zap.NewNop(),
		listTop: DefaultListTop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("enrichment")
	s.orchestrator = NewOrchestrator(gateway, cache,
		WithOrchestratorRetry(s.retry),
		WithOrchestratorMetrics(s.metrics),
		WithOrchestratorLogger(s.logger),
	)
	s.manufacturers = NewManufacturerLoader(gateway, cache, s.locker, s.retry, s.metrics, s.logger)
	s.aggregator = NewAggregator(gateway, s.metrics, s.logger)
	return s
}

// ResolveDetails turns references into enriched label records.
//
// Master-data failures degrade to empty fields. Only invalid input, a failed
// item query, an empty item set or an unexpected failure while assembling the
// result are returned as errors.
func (s *Service) ResolveDetails(ctx context.Context, in grn.ReferenceInput) (result *DetailsResult, err error) {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "enrichment.resolve_details")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while assembling records", zap.Any("panic", r), zap.Stack("stack"))
			result, err = nil, grn.NewFatalAggregationError(fmt.Errorf("%v", r))
		}
		records := 0
		if result != nil {
			records = len(result.Records)
		}
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.RecordRequest(ctx, "resolve_details", records, err, time.Since(started))
	}()

	refs, err := grn.Normalize(in)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrReferences, len(refs))

	timings := Timings{}
	phase := time.Now()
	rows, err := s.queryItems(ctx, refs)
	timings[PhaseItems] = time.Since(phase).Milliseconds()
	if err != nil {
		s.logger.Warn("item query failed", zap.String("source", itemSource), zap.Int("references", len(refs)), zap.Error(err))
		return nil, grn.NewUpstreamUnavailableError(err)
	}
	if len(rows) == 0 {
		return nil, grn.ErrNoItemsFound
	}

	items := grn.NewMovementItems(rows)
	plan := grn.PlanKeys(items)
	telemetry.SetAttributes(span, telemetry.SpanAttrItems, len(items))

	snapshot, totals := s.resolveAll(ctx, items, plan, timings)
	if ctx.Err() != nil {
		return nil, grn.NewUpstreamUnavailableError(ctx.Err())
	}

	joined := grn.NewJoiner(s.plan, snapshot, totals).JoinAll(items)
	grn.SortRecords(joined)
	records := grn.Records(joined)
	timings[PhaseOverall] = time.Since(started).Milliseconds()

	telemetry.SetAttributes(span, telemetry.SpanAttrRecords, len(records))
	s.logger.Info("material document details resolved",
		zap.Int("references", len(refs)),
		zap.Int("items", len(items)),
		zap.Int("records", len(records)),
		zap.Any("timings", timings),
	)
	return &DetailsResult{Records: records, Timings: timings}, nil
}

// resolveAll fetches every master source, loads the manufacturer registry and
// computes the GRN totals concurrently. Each task absorbs its own failures.
func (s *Service) resolveAll(ctx context.Context, items []grn.MovementItem, plan grn.KeyPlan, timings Timings) (grn.Snapshot, map[grn.GroupKey]grn.GroupTotals) {
	snapshot := grn.NewSnapshot()
	var totals map[grn.GroupKey]grn.GroupTotals
	var mu sync.Mutex

	timed := func(name string, fn func()) func() error {
		return func() error {
			start := time.Now()
			telemetry.WithRegion(ctx, name, func(context.Context) { fn() })
			mu.Lock()
			timings[name] = time.Since(start).Milliseconds()
			mu.Unlock()
			return nil
		}
	}
	resolve := func(src Source, keys []grn.Key) func() {
		return func() {
			recs, err := s.orchestrator.Resolve(ctx, src, keys)
			if err != nil {
				s.logger.Warn("source resolution interrupted", zap.String("source", src.Name), zap.Error(err))
			}
			mu.Lock()
			snapshot.Merge(src.Namespace, recs)
			mu.Unlock()
		}
	}

	products := make([]grn.Key, 0, len(plan.MaterialPlants)+len(plan.Materials))
	products = append(append(products, plan.MaterialPlants...), plan.Materials...)

	var g errgroup.Group
	g.Go(timed(PhaseProducts, resolve(ProductSource(), products)))
	g.Go(timed(PhaseSuppliers, resolve(SupplierSource(), plan.Suppliers)))
	g.Go(timed(PhaseHeaders, resolve(HeaderSource(), plan.DocumentYears)))
	g.Go(timed(PhasePurchaseOrderItems, resolve(PurchaseOrderItemSource(), plan.PurchaseOrderItems)))
	g.Go(timed(PhaseBusinessUsers, resolve(BusinessUserSource(), plan.Documents)))
	g.Go(timed(PhaseManufacturers, func() {
		if err := s.manufacturers.Ensure(ctx); err != nil {
			s.logger.Warn("manufacturer registry unavailable", zap.String("source", manufacturerSource), zap.Error(err))
		}
	}))
	g.Go(timed(PhaseAggregates, func() {
		t := s.aggregator.Totals(ctx, plan.Groups, items)
		mu.Lock()
		totals = t
		mu.Unlock()
	}))
	_ = g.Wait()

	// the manufacturer key is only known once the purchase-order lines are in
	start := time.Now()
	var numbers []string
	seen := make(map[string]struct{})
	for _, k := range plan.PurchaseOrderItems {
		rec, _ := snapshot.Record(grn.NamespacePurchaseOrderItem, k.ID)
		no := grn.ManufacturerNumber(rec)
		if no == "" {
			continue
		}
		if _, ok := seen[no]; ok {
			continue
		}
		seen[no] = struct{}{}
		numbers = append(numbers, no)
	}
	snapshot.Merge(grn.NamespaceManufacturer, s.manufacturers.Lookup(ctx, numbers))
	timings[PhaseManufacturers] += time.Since(start).Milliseconds()

	return snapshot, totals
}

// ListDocuments returns up to top material document headers, newest document first.
// A non-positive top uses the configured default.
func (s *Service) ListDocuments(ctx context.Context, top int) ([]grn.Record, error) {
	return s.list(ctx, "list_documents", "A_MaterialDocumentHeader", top)
}

// ListItems returns up to top material document lines, newest document first.
func (s *Service) ListItems(ctx context.Context, top int) ([]grn.Record, error) {
	return s.list(ctx, "list_items", "A_MaterialDocumentItem", top)
}

func (s *Service) list(ctx context.Context, operation, entity string, top int) (records []grn.Record, err error) {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "enrichment."+operation)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		s.metrics.RecordRequest(ctx, operation, len(records), err, time.Since(started))
	}()

	if top <= 0 {
		top = s.listTop
	}
	path := MaterialDocumentService + "/" + entity + "?$format=json&$top=" + strconv.Itoa(top)
	doc, err := doWithRetry(ctx, s.retry, func(ctx context.Context) (erp.Document, error) {
		start := time.Now()
		doc, err := s.gateway.Get(ctx, path)
		s.metrics.RecordUpstream(ctx, operation, telemetry.ModeQuery, err, time.Since(start))
		return doc, err
	})
	if err != nil {
		s.logger.Warn("list query failed", zap.String("operation", operation), zap.Error(err))
		return nil, grn.NewUpstreamUnavailableError(err)
	}

	rows := doc.V2Results()
	records = make([]grn.Record, len(rows))
	for i, r := range rows {
		records[i] = grn.Record(r)
	}
	grn.SortByDocumentDesc(records, func(r grn.Record) string { return r.String("MaterialDocument") })
	s.logger.Info("material documents listed", zap.String("operation", operation), zap.Int("rows", len(records)))
	return records, nil
}
