package main

import (
	"fmt"

	"github.com/erp/labeldesk/internal/infrastructure/config"
	"github.com/erp/labeldesk/internal/infrastructure/logger"
	"github.com/erp/labeldesk/internal/interfaces/http/handler"
	"github.com/erp/labeldesk/internal/interfaces/http/middleware"
	"github.com/erp/labeldesk/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type engineDeps struct {
	cfg     *config.Config
	log     *zap.Logger
	meter   metric.Meter
	service handler.MaterialDocumentService
	cache   handler.CacheStatsSource
	backend string
	// nil disables per-client rate limiting
	limiter *middleware.RateLimiter
}

// newEngine assembles the middleware chain and the route table.
func newEngine(d engineDeps) (*gin.Engine, error) {
	cfg := d.cfg
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(d.log))

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	engine.Use(middleware.TracingWithConfig(tracingCfg))
	if tracingCfg.Enabled {
		engine.Use(middleware.TracingAttributeInjector(), middleware.SpanErrorMarker())
	}

	engine.Use(logger.GinMiddleware(d.log))

	httpMetrics, err := middleware.HTTPMetricsWithMeter(d.meter)
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}
	engine.Use(httpMetrics)
	engine.Use(middleware.Profiling(cfg.Profiling.Enabled, "/health"))

	security := middleware.DefaultSecurityConfig()
	security.HSTSEnabled = cfg.IsProduction()
	engine.Use(middleware.SecureWithConfig(security))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	corsHandler, err := middleware.CORSWithConfig(corsCfg)
	if err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	engine.Use(corsHandler)

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if d.limiter != nil {
		engine.Use(middleware.RateLimit(d.limiter))
	}

	docs := handler.NewMaterialDocumentHandler(d.service, cfg.Enrichment.RequestTimeout)
	system := handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, d.backend, d.cache)

	router.RegisterHealth(engine, system)
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(router.MaterialDocumentRoutes(docs)).
		Register(router.SystemRoutes(system)).
		Setup()

	return engine, nil
}
