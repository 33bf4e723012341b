package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on upstream calls.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Upstream call modes.
const (
	ModeBatch    = "batch"
	ModeFallback = "fallback"
	ModeQuery    = "query"
)

// EnrichmentMetrics records upstream traffic, cache effectiveness and request
// latency of the enrichment pipeline. A nil *EnrichmentMetrics records nothing.
type EnrichmentMetrics struct {
	upstreamRequests *Counter
	upstreamDuration *Histogram
	cacheLookups     *Counter
	requestDuration  *Histogram
	recordsProduced  *Counter
}

// NewEnrichmentMetrics registers the instruments on meter.
func NewEnrichmentMetrics(meter metric.Meter) (*EnrichmentMetrics, error) {
	upstreamRequests, err := NewCounter(meter, "labeldesk_upstream_requests_total",
		"Outbound ERP calls by source, mode and outcome", "{request}")
	if err != nil {
		return nil, err
	}
	upstreamDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "labeldesk_upstream_duration_seconds",
		Description: "Outbound ERP call latency",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	cacheLookups, err := NewCounter(meter, "labeldesk_cache_lookups_total",
		"Master data cache lookups by namespace and result", "{lookup}")
	if err != nil {
		return nil, err
	}
	requestDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "labeldesk_enrichment_duration_seconds",
		Description: "End-to-end enrichment latency",
		Unit:        "s",
		Boundaries:  EnrichDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	recordsProduced, err := NewCounter(meter, "labeldesk_enriched_records_total",
		"Enriched records returned", "{record}")
	if err != nil {
		return nil, err
	}

	return &EnrichmentMetrics{
		upstreamRequests: upstreamRequests,
		upstreamDuration: upstreamDuration,
		cacheLookups:     cacheLookups,
		requestDuration:  requestDuration,
		recordsProduced:  recordsProduced,
	}, nil
}

// RecordUpstream counts one outbound call.
func (m *EnrichmentMetrics) RecordUpstream(ctx context.Context, source, mode string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.upstreamRequests.Inc(ctx, AttrSource.String(source), AttrMode.String(mode), AttrOutcome.String(outcome))
	m.upstreamDuration.RecordDuration(ctx, d, AttrSource.String(source), AttrMode.String(mode))
}

// RecordCacheLookup counts hits and misses for one namespace.
func (m *EnrichmentMetrics) RecordCacheLookup(ctx context.Context, namespace string, hits, misses int) {
	if m == nil {
		return
	}
	if hits > 0 {
		m.cacheLookups.Add(ctx, int64(hits), AttrNamespace.String(namespace), AttrResult.String("hit"))
	}
	if misses > 0 {
		m.cacheLookups.Add(ctx, int64(misses), AttrNamespace.String(namespace), AttrResult.String("miss"))
	}
}

// RecordRequest records one enrichment request.
func (m *EnrichmentMetrics) RecordRequest(ctx context.Context, operation string, records int, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.requestDuration.RecordDuration(ctx, d, AttrOperation.String(operation), AttrOutcome.String(outcome))
	if records > 0 {
		m.recordsProduced.Add(ctx, int64(records), AttrOperation.String(operation))
	}
}
