package market

import "time"

// PriceSnapshot holds one asset's market data from a single fetch
type PriceSnapshot struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	CurrentPrice     float64   `json:"current_price"`
	Change24h        float64   `json:"price_change_24h"`
	ChangePercent24h float64   `json:"price_change_percentage_24h"`
	Volume24h        float64   `json:"total_volume"`
	MarketCap        float64   `json:"market_cap"`
	RSI              float64   `json:"rsi"`
	HasRSI           bool      `json:"has_rsi"`
	LastUpdated      time.Time `json:"last_updated"`
	IsValid          bool      `json:"is_valid"`
}
