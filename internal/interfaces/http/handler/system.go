package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erp/labeldesk/internal/domain/grn"
	"github.com/gin-gonic/gin"
)

// CacheStatsSource reports master-data cache counters
type CacheStatsSource interface {
	Stats() []grn.CacheStats
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	backend   string
	cache     CacheStatsSource
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. backend names the configured cache backend.
func NewSystemHandler(name, version, backend string, cache CacheStatsSource) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		backend:   backend,
		cache:     cache,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"labeldesk"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// CacheStatsResponse lists counters per cache tier
type CacheStatsResponse struct {
	Backend string           `json:"backend" example:"tiered"`
	Tiers   []grn.CacheStats `json:"tiers"`
}

// Ping godoc
// @Summary      Ping the API
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetCacheStats godoc
// @Summary      Master-data cache counters
// @Description  Hits, misses, writes and entries per cache tier since start-up
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /system/cache [get]
func (h *SystemHandler) GetCacheStats(c *gin.Context) {
	resp := CacheStatsResponse{Backend: h.backend, Tiers: []grn.CacheStats{}}
	if h.cache != nil {
		if stats := h.cache.Stats(); stats != nil {
			resp.Tiers = stats
		}
	}
	h.Success(c, resp)
}

// Health reports liveness with build information. It is registered outside /api/v1.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"info": SystemInfoResponse{
			Name:      h.name,
			Version:   h.version,
			GoVersion: runtime.Version(),
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		},
	})
}
