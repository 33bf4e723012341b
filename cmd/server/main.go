package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/labeldesk/internal/application/enrichment"
	"github.com/erp/labeldesk/internal/infrastructure/cache"
	"github.com/erp/labeldesk/internal/infrastructure/config"
	"github.com/erp/labeldesk/internal/infrastructure/erp"
	"github.com/erp/labeldesk/internal/infrastructure/logger"
	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"github.com/erp/labeldesk/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

//	@title			GRN Label API
//	@version		1.0
//	@description	Enriches goods-receipt lines from the ERP with the master data needed to print labels.

//	@host		localhost:8080
//	@BasePath	/api/v1

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	// the OTLP pipelines log through this until the teed logger exists
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log, err := logger.New(logCfg,
		logger.WithCore(loggerProvider.NewZapCore(logger.ParseLevel(cfg.Log.Level))),
		logger.WithFields(zap.String("service", cfg.App.Name)),
	)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting label service",
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Profiling.ApplicationName,
		AuthToken:       cfg.Profiling.AuthToken,
	}, log)
	if err != nil {
		// profiling is optional
		log.Warn("Profiler disabled", zap.Error(err))
	} else if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	client, err := erp.NewClient(erp.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		Username:          cfg.Upstream.Username,
		Password:          cfg.Upstream.Password,
		Client:            cfg.Upstream.Client,
		Timeout:           cfg.Upstream.Timeout,
		MaxResponseBytes:  cfg.Upstream.MaxResponseBytes,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	}, log)
	if err != nil {
		log.Fatal("Failed to create ERP client", zap.Error(err))
	}

	backend, err := cache.NewFactory(cfg.Cache, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create record cache", zap.Error(err))
	}

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	enrichmentMetrics, err := telemetry.NewEnrichmentMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register enrichment metrics", zap.Error(err))
	}

	service := enrichment.NewService(client, backend.Cache,
		enrichment.WithLogger(log),
		enrichment.WithMetrics(enrichmentMetrics),
		enrichment.WithRetryPolicy(enrichment.RetryPolicy{
			MaxAttempts: cfg.Upstream.Retry.MaxAttempts,
			BaseDelay:   cfg.Upstream.Retry.BaseDelay,
			MaxDelay:    cfg.Upstream.Retry.MaxDelay,
		}),
		enrichment.WithListTop(cfg.Upstream.ListTop),
		enrichment.WithLocker(backend.Locker),
	)

	var limiter *middleware.RateLimiter
	done := make(chan struct{})
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, 10*time.Minute)
		go limiter.Run(time.Minute, done)
	}

	engine, err := newEngine(engineDeps{
		cfg:     cfg,
		log:     log,
		meter:   meter,
		service: service,
		cache:   backend,
		backend: backend.Name,
		limiter: limiter,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")
	close(done)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := backend.Close(); err != nil {
		log.Error("Error closing record cache", zap.Error(err))
	}
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	// last, so the entries above still reach the collector
	_ = loggerProvider.Shutdown(shutdownCtx)
}
