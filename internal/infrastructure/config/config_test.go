package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"LABELDESK_APP_NAME":                     os.Getenv("LABELDESK_APP_NAME"),
		"LABELDESK_APP_ENV":                      os.Getenv("LABELDESK_APP_ENV"),
		"LABELDESK_APP_PORT":                     os.Getenv("LABELDESK_APP_PORT"),
		"LABELDESK_UPSTREAM_BASE_URL":            os.Getenv("LABELDESK_UPSTREAM_BASE_URL"),
		"LABELDESK_UPSTREAM_USERNAME":            os.Getenv("LABELDESK_UPSTREAM_USERNAME"),
		"LABELDESK_UPSTREAM_PASSWORD":            os.Getenv("LABELDESK_UPSTREAM_PASSWORD"),
		"LABELDESK_UPSTREAM_SAP_CLIENT":          os.Getenv("LABELDESK_UPSTREAM_SAP_CLIENT"),
		"LABELDESK_UPSTREAM_TIMEOUT":             os.Getenv("LABELDESK_UPSTREAM_TIMEOUT"),
		"LABELDESK_UPSTREAM_RETRY_MAX_ATTEMPTS":  os.Getenv("LABELDESK_UPSTREAM_RETRY_MAX_ATTEMPTS"),
		"LABELDESK_CACHE_BACKEND":                os.Getenv("LABELDESK_CACHE_BACKEND"),
		"LABELDESK_CACHE_CAPACITY":               os.Getenv("LABELDESK_CACHE_CAPACITY"),
		"LABELDESK_CACHE_TTL":                    os.Getenv("LABELDESK_CACHE_TTL"),
		"LABELDESK_CACHE_ALLOW_FALLBACK":         os.Getenv("LABELDESK_CACHE_ALLOW_FALLBACK"),
		"LABELDESK_CACHE_REDIS_HOST":             os.Getenv("LABELDESK_CACHE_REDIS_HOST"),
		"LABELDESK_TELEMETRY_SAMPLING_RATIO":     os.Getenv("LABELDESK_TELEMETRY_SAMPLING_RATIO"),
		"LABELDESK_ENRICHMENT_REQUEST_TIMEOUT":   os.Getenv("LABELDESK_ENRICHMENT_REQUEST_TIMEOUT"),
		"LABELDESK_HTTP_CORS_ALLOW_ORIGINS":      os.Getenv("LABELDESK_HTTP_CORS_ALLOW_ORIGINS"),
		"LABELDESK_UPSTREAM_MAX_RESPONSE_BYTES":  os.Getenv("LABELDESK_UPSTREAM_MAX_RESPONSE_BYTES"),
		"LABELDESK_UPSTREAM_REQUESTS_PER_SECOND": os.Getenv("LABELDESK_UPSTREAM_REQUESTS_PER_SECOND"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
		os.Setenv("LABELDESK_UPSTREAM_BASE_URL", "https://erp.example.com")
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "labeldesk", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "100", cfg.Upstream.Client)
		assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, 2, cfg.Upstream.Retry.MaxAttempts)
		assert.Equal(t, 10000, cfg.Upstream.ListTop)
		assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
		assert.Equal(t, 100000, cfg.Cache.Capacity)
		assert.Zero(t, cfg.Cache.TTL)
		assert.True(t, cfg.Cache.AllowFallback)
		assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr())
		assert.Equal(t, 3*time.Minute, cfg.Enrichment.RequestTimeout)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
		assert.Equal(t, "labeldesk", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with LABELDESK prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_APP_NAME", "label-api")
		os.Setenv("LABELDESK_APP_PORT", "9000")
		os.Setenv("LABELDESK_UPSTREAM_USERNAME", "svc-user")
		os.Setenv("LABELDESK_UPSTREAM_PASSWORD", "svc-pass")
		os.Setenv("LABELDESK_UPSTREAM_SAP_CLIENT", "200")
		os.Setenv("LABELDESK_UPSTREAM_TIMEOUT", "5s")
		os.Setenv("LABELDESK_UPSTREAM_RETRY_MAX_ATTEMPTS", "4")
		os.Setenv("LABELDESK_CACHE_BACKEND", "tiered")
		os.Setenv("LABELDESK_CACHE_CAPACITY", "500")
		os.Setenv("LABELDESK_CACHE_TTL", "1h")
		os.Setenv("LABELDESK_CACHE_ALLOW_FALLBACK", "false")
		os.Setenv("LABELDESK_CACHE_REDIS_HOST", "redis.local")
		os.Setenv("LABELDESK_ENRICHMENT_REQUEST_TIMEOUT", "90s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "label-api", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "https://erp.example.com", cfg.Upstream.BaseURL)
		assert.Equal(t, "svc-user", cfg.Upstream.Username)
		assert.Equal(t, "svc-pass", cfg.Upstream.Password)
		assert.Equal(t, "200", cfg.Upstream.Client)
		assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
		assert.Equal(t, 4, cfg.Upstream.Retry.MaxAttempts)
		assert.Equal(t, CacheBackendTiered, cfg.Cache.Backend)
		assert.Equal(t, 500, cfg.Cache.Capacity)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.False(t, cfg.Cache.AllowFallback)
		assert.Equal(t, "redis.local", cfg.Cache.Redis.Host)
		assert.Equal(t, 90*time.Second, cfg.Enrichment.RequestTimeout)
	})

	t.Run("requires an upstream base URL", func(t *testing.T) {
		clearEnv()
		os.Unsetenv("LABELDESK_UPSTREAM_BASE_URL")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream.base_url")
	})

	t.Run("rejects a relative upstream base URL", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_UPSTREAM_BASE_URL", "erp.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute URL")
	})

	t.Run("rejects unknown cache backend", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_CACHE_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("rejects negative cache capacity", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_CACHE_CAPACITY", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.capacity")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("production requires upstream credentials", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required in production")
	})

	t.Run("production rejects wildcard CORS", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_APP_ENV", "production")
		os.Setenv("LABELDESK_UPSTREAM_USERNAME", "svc-user")
		os.Setenv("LABELDESK_UPSTREAM_PASSWORD", "svc-pass")
		os.Setenv("LABELDESK_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("production with credentials is valid", func(t *testing.T) {
		clearEnv()
		os.Setenv("LABELDESK_APP_ENV", "production")
		os.Setenv("LABELDESK_UPSTREAM_USERNAME", "svc-user")
		os.Setenv("LABELDESK_UPSTREAM_PASSWORD", "svc-pass")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "labeldesk", cfg.App.Name)
	assert.Equal(t, "dev", cfg.App.Version)
	assert.Equal(t, 200*time.Millisecond, cfg.Upstream.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Upstream.Retry.MaxDelay)
	assert.Equal(t, int64(64<<20), cfg.Upstream.MaxResponseBytes)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.HTTP.CORSAllowMethods)
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
	assert.Equal(t, "labeldesk", cfg.Profiling.ApplicationName)
}
