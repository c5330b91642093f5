package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/market"
)

// StatusController serves health and engine statistics
type StatusController struct {
	registry  *alerts.Registry
	cache     *market.PriceCache
	fetcher   *market.Fetcher
	startedAt time.Time
}

// NewStatusController creates a new status controller
func NewStatusController(registry *alerts.Registry, cache *market.PriceCache, fetcher *market.Fetcher) *StatusController {
	return &StatusController{
		registry:  registry,
		cache:     cache,
		fetcher:   fetcher,
		startedAt: time.Now(),
	}
}

// Health reports liveness
// GET /api/health
func (sc *StatusController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "alert-engine",
		"uptime":    time.Since(sc.startedAt).String(),
		"timestamp": time.Now(),
	})
}

// Ready reports whether the engine has market data to evaluate against
// GET /ready
func (sc *StatusController) Ready(c *gin.Context) {
	if sc.cache.Len() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"message": "market data not yet loaded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Stats reports registry occupancy, cache freshness, and request budget
// GET /api/stats
func (sc *StatusController) Stats(c *gin.Context) {
	stats := sc.registry.Stats()
	c.JSON(http.StatusOK, gin.H{
		"alerts": stats,
		"market": gin.H{
			"cached_symbols":     sc.cache.Len(),
			"cache_updated_at":   sc.cache.UpdatedAt(),
			"cache_age_seconds":  int(sc.cache.Age().Seconds()),
			"remaining_requests": sc.fetcher.RemainingRequests(),
		},
		"uptime": time.Since(sc.startedAt).String(),
	})
}
