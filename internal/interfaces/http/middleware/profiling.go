package middleware

import (
	"context"

	"github.com/erp/labeldesk/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling labels
const (
	ProfilingLabelRoute  = "route"
	ProfilingLabelMethod = "method"
)

// Profiling returns middleware that runs each request under pprof labels for
// its route and method, so profiles can be filtered per endpoint. Requests
// on skipPaths run unlabeled.
func Profiling(enabled bool, skipPaths ...string) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skip[c.Request.URL.Path]; ok || route == "" {
			c.Next()
			return
		}

		telemetry.WithLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		}, ProfilingLabelRoute, route, ProfilingLabelMethod, c.Request.Method)
	}
}
