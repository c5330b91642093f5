package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Fetch errors
var (
	// ErrFetchFailed means every attempt, including the proxy fallback, failed
	ErrFetchFailed = errors.New("market data fetch failed")
	// ErrRateLimited means the rolling request window is exhausted
	ErrRateLimited = errors.New("market request rate limit reached")
)

// FetcherOptions configure a Fetcher
type FetcherOptions struct {
	BaseURL            string
	ProxyPrefix        string
	MaxRetries         int
	Timeout            time.Duration
	UseFallback        bool
	RateLimitPerMinute int
}

// Fetcher pulls batched market data with retry, rate limiting, and an
// optional single proxy fallback
type Fetcher struct {
	transport Transport
	opts      FetcherOptions

	mu           sync.Mutex
	windowStart  time.Time
	requestCount int

	now   func() time.Time
	sleep func(time.Duration)
}

// NewFetcher creates a fetcher over the given transport
func NewFetcher(transport Transport, opts FetcherOptions) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ProxyPrefix == "" {
		opts.ProxyPrefix = DefaultProxyPrefix
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = 50
	}
	return &Fetcher{
		transport: transport,
		opts:      opts,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// CanRequest reports whether the rolling window still has budget
func (f *Fetcher) CanRequest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollWindowLocked()
	return f.requestCount < f.opts.RateLimitPerMinute
}

// RemainingRequests returns the unused budget in the current window
func (f *Fetcher) RemainingRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollWindowLocked()
	remaining := f.opts.RateLimitPerMinute - f.requestCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (f *Fetcher) rollWindowLocked() {
	now := f.now()
	if f.windowStart.IsZero() || now.Sub(f.windowStart) >= time.Minute {
		f.windowStart = now
		f.requestCount = 0
	}
}

// recordRequest consumes one unit of budget, returning false if exhausted
func (f *Fetcher) recordRequest() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollWindowLocked()
	if f.requestCount >= f.opts.RateLimitPerMinute {
		return false
	}
	f.requestCount++
	return true
}

// marketRecord mirrors one element of the markets endpoint response.
// Pointer fields distinguish a missing value from a zero.
type marketRecord struct {
	ID                       string   `json:"id"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	TotalVolume              *float64 `json:"total_volume"`
	MarketCap                *float64 `json:"market_cap"`
}

// proxyEnvelope is the fallback proxy's wrapper around the real body
type proxyEnvelope struct {
	Contents string `json:"contents"`
}

// FetchBatch retrieves snapshots for the given symbols, consuming one
// unit of the rolling request budget
func (f *Fetcher) FetchBatch(symbols []string) ([]PriceSnapshot, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if !f.recordRequest() {
		return nil, ErrRateLimited
	}
	return f.FetchWithRetry(symbols)
}

// FetchWithRetry tries the direct endpoint up to maxRetries+1 times
// with linear backoff, then tries the proxy fallback exactly once
// before giving up. It does not touch the request budget.
func (f *Fetcher) FetchWithRetry(symbols []string) ([]PriceSnapshot, error) {
	directURL := BuildMarketURL(f.opts.BaseURL, symbols)

	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			f.sleep(time.Duration(attempt) * 2 * time.Second)
		}
		body, status, err := f.transport.Send(directURL, f.opts.Timeout)
		if err != nil {
			lastErr = err
			log.Printf("Market fetch attempt %d failed: %v", attempt+1, err)
			continue
		}
		if status != 200 {
			lastErr = fmt.Errorf("unexpected status %d", status)
			log.Printf("Market fetch attempt %d failed: status %d", attempt+1, status)
			continue
		}
		return f.parseBatch(body, symbols)
	}

	if f.opts.UseFallback {
		snaps, err := f.fetchViaProxy(directURL, symbols)
		if err == nil {
			return snaps, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrFetchFailed, lastErr)
}

// fetchViaProxy makes a single attempt through the CORS proxy and
// unwraps its contents envelope
func (f *Fetcher) fetchViaProxy(directURL string, symbols []string) ([]PriceSnapshot, error) {
	proxyURL := BuildProxyURL(f.opts.ProxyPrefix, directURL)
	log.Printf("Market fetch falling back to proxy")

	body, status, err := f.transport.Send(proxyURL, f.opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("proxy fetch: %w", err)
	}
	if status != 200 {
		return nil, fmt.Errorf("proxy fetch: unexpected status %d", status)
	}

	var envelope proxyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("proxy envelope: %w", err)
	}
	if envelope.Contents == "" {
		return nil, errors.New("proxy envelope: empty contents")
	}
	return f.parseBatch([]byte(envelope.Contents), symbols)
}

// parseBatch decodes a markets response. Records with missing price
// fields become invalid snapshots rather than failing the batch.
func (f *Fetcher) parseBatch(body []byte, symbols []string) ([]PriceSnapshot, error) {
	var records []marketRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("parse market response: %w", err)
	}

	limit := len(records)
	if limit > len(symbols) {
		limit = len(symbols)
	}

	now := f.now()
	snaps := make([]PriceSnapshot, 0, limit)
	for _, rec := range records[:limit] {
		snap := PriceSnapshot{
			Symbol:      rec.ID,
			Name:        rec.Name,
			LastUpdated: now,
		}
		// a snapshot is valid only when every numeric field parsed
		if rec.CurrentPrice == nil || rec.PriceChange24h == nil ||
			rec.PriceChangePercentage24h == nil || rec.TotalVolume == nil || rec.MarketCap == nil {
			snaps = append(snaps, snap)
			continue
		}
		snap.IsValid = true
		snap.CurrentPrice = *rec.CurrentPrice
		snap.Change24h = *rec.PriceChange24h
		snap.ChangePercent24h = *rec.PriceChangePercentage24h
		snap.Volume24h = *rec.TotalVolume
		snap.MarketCap = *rec.MarketCap
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
