package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/labeldesk/internal/application/enrichment"
	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/erp/labeldesk/internal/infrastructure/config"
	"github.com/erp/labeldesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct{}

func (fakeService) ResolveDetails(context.Context, grn.ReferenceInput) (*enrichment.DetailsResult, error) {
	return &enrichment.DetailsResult{Records: []grn.EnrichedRecord{}}, nil
}

func (fakeService) ListDocuments(context.Context, int) ([]grn.Record, error) {
	return []grn.Record{{"MaterialDocument": "5000000001"}}, nil
}

func (fakeService) ListItems(context.Context, int) ([]grn.Record, error) { return nil, nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "labeldesk", Env: "test", Version: "test"},
		HTTP: config.HTTPConfig{
			MaxBodySize:      1024,
			CORSAllowOrigins: []string{"http://labels.example.com"},
			CORSAllowMethods: []string{"GET", "POST", "OPTIONS"},
			CORSAllowHeaders: []string{"Content-Type", "X-Request-ID"},
		},
		Enrichment: config.EnrichmentConfig{RequestTimeout: time.Minute},
		Telemetry:  config.TelemetryConfig{ServiceName: "labeldesk"},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	engine, err := newEngine(engineDeps{
		cfg:     cfg,
		log:     zaptest.NewLogger(t),
		meter:   noop.NewMeterProvider().Meter("test"),
		service: fakeService{},
		backend: config.CacheBackendMemory,
		limiter: limiter,
	})
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Routes(t *testing.T) {
	engine := newTestEngine(t, testConfig(), nil)

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/material-documents?top=1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"fields":["MaterialDocument"]`)
	})

	t.Run("details", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/material-documents/details",
			strings.NewReader(`{"MaterialDocument":"5000000001","MaterialDocumentYear":"2025"}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/material-documents/details",
			strings.NewReader(`{"materialDocuments":["`+strings.Repeat("1", 2048)+`"]}`))
		req.Header.Set("Content-Type", "application/json")
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestNewEngine_CORS(t *testing.T) {
	engine := newTestEngine(t, testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil)
	req.Header.Set("Origin", "http://labels.example.com")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://labels.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNewEngine_InvalidCORSOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.CORSAllowOrigins = []string{"labels.example.com"}

	_, err := newEngine(engineDeps{
		cfg:   cfg,
		log:   zaptest.NewLogger(t),
		meter: noop.NewMeterProvider().Meter("test"),
	})
	assert.Error(t, err)
}

func TestNewEngine_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 2, time.Minute)
	engine := newTestEngine(t, testConfig(), limiter)

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
