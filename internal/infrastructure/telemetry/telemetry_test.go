package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.Config{Enabled: false, ServiceName: "labeldesk-test"}

	tp, err := telemetry.NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.Equal(t, "labeldesk-test", tp.GetConfig().ServiceName)
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartSpan(context.Background(), "enrichment.resolve_details",
		telemetry.WithAttribute(telemetry.SpanAttrReferences, 3))
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	telemetry.SetAttributes(span, telemetry.SpanAttrRecords, 2, 42, "skipped key")
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(span, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "enrichment.resolve_details", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 2)
	assert.Len(t, spans[0].Events(), 1)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}

func TestEnrichmentMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := telemetry.NewEnrichmentMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordUpstream(ctx, "supplier", telemetry.ModeBatch, nil, 120*time.Millisecond)
	m.RecordUpstream(ctx, "supplier", telemetry.ModeFallback, errors.New("down"), time.Second)
	m.RecordCacheLookup(ctx, "supplier", 3, 1)
	m.RecordRequest(ctx, "resolve_details", 5, nil, 2*time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[metric.Name] += dp.Value
				}
			}
		}
	}
	assert.EqualValues(t, 2, sums["labeldesk_upstream_requests_total"])
	assert.EqualValues(t, 4, sums["labeldesk_cache_lookups_total"])
	assert.EqualValues(t, 5, sums["labeldesk_enriched_records_total"])
}

func TestEnrichmentMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.EnrichmentMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordUpstream(ctx, "header", telemetry.ModeBatch, nil, time.Millisecond)
		m.RecordCacheLookup(ctx, "header", 1, 1)
		m.RecordRequest(ctx, "resolve_details", 1, nil, time.Millisecond)
	})
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())

	core := lp.NewZapCore(zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestProfiler(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, logger)
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("enabled requires an address", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "labeldesk"}, logger)
		assert.Error(t, err)
	})

	t.Run("enabled requires a name", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, logger)
		assert.Error(t, err)
	})

	t.Run("region runs the function", func(t *testing.T) {
		ran := 0
		telemetry.WithRegion(context.Background(), "products", func(context.Context) { ran++ })
		telemetry.WithRegion(context.Background(), "", func(context.Context) { ran++ })
		assert.Equal(t, 2, ran)
	})
}
