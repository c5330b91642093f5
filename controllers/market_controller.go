package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tokenalert_backend/services/market"
)

// MarketController serves cached market data
type MarketController struct {
	cache   *market.PriceCache
	fetcher *market.Fetcher
}

// NewMarketController creates a new market controller
func NewMarketController(cache *market.PriceCache, fetcher *market.Fetcher) *MarketController {
	return &MarketController{cache: cache, fetcher: fetcher}
}

// GetMarketData returns the full cached price table
// GET /api/market-data
func (mc *MarketController) GetMarketData(c *gin.Context) {
	snapshots := mc.cache.All()
	c.JSON(http.StatusOK, gin.H{
		"data":       snapshots,
		"count":      len(snapshots),
		"updated_at": mc.cache.UpdatedAt(),
	})
}

// GetPrices returns cached snapshots for a comma-separated symbol list
// GET /api/prices?symbols=bitcoin,ethereum
func (mc *MarketController) GetPrices(c *gin.Context) {
	raw := c.Query("symbols")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "symbols query parameter is required",
		})
		return
	}

	prices := make(map[string]market.PriceSnapshot)
	missing := []string{}
	for _, symbol := range strings.Split(raw, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		if snap, ok := mc.cache.Get(symbol); ok {
			prices[symbol] = snap
		} else {
			missing = append(missing, symbol)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"prices":     prices,
		"missing":    missing,
		"updated_at": mc.cache.UpdatedAt(),
	})
}
