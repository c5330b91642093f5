package monitor

import (
	"errors"
	"log"
	"sync"
	"time"

	"tokenalert_backend/models"
	"tokenalert_backend/services/alerts"
	"tokenalert_backend/services/market"
)

// IndicatorSource supplies precomputed technical indicators. The loop
// never computes indicators itself.
type IndicatorSource interface {
	RSI(symbol string) (float64, bool)
}

// MarketPublisher receives each fresh batch, e.g. for broadcast to
// connected clients
type MarketPublisher interface {
	PublishMarketUpdate(snapshots []market.PriceSnapshot)
}

// Options configure the monitor loop
type Options struct {
	Interval time.Duration
	Symbols  []string
}

// Loop drives the periodic fetch-evaluate-notify cycle
type Loop struct {
	registry   *alerts.Registry
	fetcher    *market.Fetcher
	cache      *market.PriceCache
	notifier   alerts.Notifier
	indicators IndicatorSource
	publisher  MarketPublisher

	interval time.Duration
	symbols  []string

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	now func() time.Time
}

// NewLoop wires a monitor loop; indicators and publisher may be nil
func NewLoop(registry *alerts.Registry, fetcher *market.Fetcher, cache *market.PriceCache,
	notifier alerts.Notifier, indicators IndicatorSource, publisher MarketPublisher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = market.TrackedSymbols
	}
	return &Loop{
		registry:   registry,
		fetcher:    fetcher,
		cache:      cache,
		notifier:   notifier,
		indicators: indicators,
		publisher:  publisher,
		interval:   opts.Interval,
		symbols:    opts.Symbols,
		now:        time.Now,
	}
}

// Start launches the background cycle. Calling Start on a running
// loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.doneChan = make(chan struct{})
	go l.run(l.stopChan, l.doneChan)
	log.Printf("Monitor loop started with %ds interval", int(l.interval.Seconds()))
}

// Stop signals shutdown and waits for the in-flight cycle to finish
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	stop, done := l.stopChan, l.doneChan
	l.mu.Unlock()

	close(stop)
	<-done
	log.Println("Monitor loop stopped")
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.RunCycle()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.RunCycle()
		}
	}
}

// RunCycle performs one full pass: refresh market data if needed,
// then evaluate every alert against the cache
func (l *Loop) RunCycle() {
	l.refreshMarketData()
	l.checkAlerts()
}

// refreshMarketData pulls a fresh batch unless the cache is still
// fresh or the request budget is spent. Failures leave the previous
// cache contents in place.
func (l *Loop) refreshMarketData() {
	if l.cache.Age() < l.interval {
		return
	}
	if !l.fetcher.CanRequest() {
		log.Println("Market refresh skipped: rate limit reached")
		return
	}

	snaps, err := l.fetcher.FetchBatch(l.symbols)
	if err != nil {
		if errors.Is(err, market.ErrRateLimited) {
			log.Println("Market refresh skipped: rate limit reached")
			return
		}
		log.Printf("Market refresh failed, keeping stale data: %v", err)
		return
	}

	if l.indicators != nil {
		for i := range snaps {
			if rsi, ok := l.indicators.RSI(snaps[i].Symbol); ok {
				snaps[i].RSI = rsi
				snaps[i].HasRSI = true
			}
		}
	}

	l.cache.Update(snaps)
	if l.publisher != nil {
		l.publisher.PublishMarketUpdate(snaps)
	}
}

// checkAlerts evaluates every live alert against the cached table
func (l *Loop) checkAlerts() {
	now := l.now()
	for _, id := range l.registry.ListIDs() {
		l.checkAlert(id, now)
	}
}

// checkAlert evaluates one alert, reporting whether its condition was
// actually examined. Paused alerts, missing snapshots, and cooldown
// skips do not count as checked.
func (l *Loop) checkAlert(id string, now time.Time) bool {
	alert, ok := l.registry.GetByID(id)
	if !ok || alert.Status != models.AlertStatusActive {
		return false
	}
	snap, ok := l.cache.Get(alert.Symbol)
	if !ok || !snap.IsValid {
		return false
	}
	// an alert still cooling down is not considered checked
	if alert.InCooldown(now) {
		return false
	}

	current := alerts.CurrentValueFor(alert.Kind, snap)
	if !alerts.Evaluate(alert, snap) {
		l.registry.MarkChecked(id, now, current)
		return true
	}

	fired, ok := l.registry.CommitTrigger(id, now, current)
	if !ok {
		return true
	}
	log.Printf("Alert triggered: %s (%s)", fired.Message, fired.ID)
	if l.notifier != nil {
		l.notifier.Notify(fired, snap)
	}
	return true
}

// CheckSymbol evaluates only the alerts watching one symbol, used for
// on-demand re-checks outside the normal cycle. The count covers
// alerts whose condition was actually evaluated.
func (l *Loop) CheckSymbol(symbol string) int {
	now := l.now()
	checked := 0
	for _, id := range l.registry.ListIDs() {
		alert, ok := l.registry.GetByID(id)
		if !ok || alert.Symbol != symbol {
			continue
		}
		if l.checkAlert(id, now) {
			checked++
		}
	}
	return checked
}
