package indicators

import "sync"

// StaticSource serves RSI values from a fixed in-memory table. Used
// when no MongoDB indicator store is configured, and in tests.
type StaticSource struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStaticSource creates a source seeded with values
func NewStaticSource(values map[string]float64) *StaticSource {
	if values == nil {
		values = make(map[string]float64)
	}
	return &StaticSource{values: values}
}

// Set stores one symbol's RSI
func (s *StaticSource) Set(symbol string, rsi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[symbol] = rsi
}

// RSI returns the stored indicator for one symbol
func (s *StaticSource) RSI(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[symbol]
	return value, ok
}
