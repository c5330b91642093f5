package market

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type scriptedResponse struct {
	body   string
	status int
	err    error
}

// scriptedTransport replays canned responses and records the URLs it saw
type scriptedTransport struct {
	responses []scriptedResponse
	urls      []string
}

func (s *scriptedTransport) Send(url string, timeout time.Duration) ([]byte, int, error) {
	s.urls = append(s.urls, url)
	if len(s.responses) == 0 {
		return nil, 0, errors.New("no scripted response left")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return []byte(resp.body), resp.status, resp.err
}

func validBody(t *testing.T, price float64) string {
	t.Helper()
	records := []map[string]interface{}{
		{
			"id": "bitcoin", "name": "Bitcoin", "current_price": price,
			"price_change_24h": 100.0, "price_change_percentage_24h": 1.0,
			"total_volume": 1000.0, "market_cap": 900000.0,
		},
	}
	raw, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(raw)
}

func newTestFetcher(transport Transport, opts FetcherOptions) (*Fetcher, *[]time.Duration) {
	f := NewFetcher(transport, opts)
	sleeps := &[]time.Duration{}
	f.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return f, sleeps
}

func TestFetchBatchRetriesWithLinearBackoff(t *testing.T) {
	// maxRetries=3 allows four attempts in total; a transport that
	// fails three times must still see the fourth succeed
	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: errors.New("connection refused")},
		{status: 503, body: "busy"},
		{err: errors.New("connection reset")},
		{status: 200, body: validBody(t, 50000)},
	}}
	f, sleeps := newTestFetcher(transport, FetcherOptions{MaxRetries: 3})

	snaps, err := f.FetchBatch([]string{"bitcoin"})
	if err != nil {
		t.Fatalf("expected success on fourth attempt, got %v", err)
	}
	if len(snaps) != 1 || snaps[0].CurrentPrice != 50000 {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
	if len(transport.urls) != 4 {
		t.Fatalf("expected 4 direct attempts, got %d", len(transport.urls))
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}
}

func TestFetchBatchFallsBackToProxyOnce(t *testing.T) {
	direct := validBody(t, 42000)
	envelope, err := json.Marshal(map[string]string{"contents": direct})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{status: 200, body: string(envelope)},
	}}
	f, _ := newTestFetcher(transport, FetcherOptions{MaxRetries: 1, UseFallback: true})

	snaps, err := f.FetchBatch([]string{"bitcoin"})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(snaps) != 1 || snaps[0].CurrentPrice != 42000 {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
	// two direct attempts (maxRetries+1), then exactly one proxy request
	if len(transport.urls) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(transport.urls))
	}
	last := transport.urls[2]
	if !strings.HasPrefix(last, DefaultProxyPrefix) {
		t.Errorf("last request should hit the proxy, got %s", last)
	}
}

func TestFetchBatchFailsWhenProxyAlsoFails(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{err: errors.New("proxy down")},
	}}
	f, _ := newTestFetcher(transport, FetcherOptions{MaxRetries: 1, UseFallback: true})

	_, err := f.FetchBatch([]string{"bitcoin"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	// one proxy attempt only, never more
	if len(transport.urls) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(transport.urls))
	}
}

func TestFetchBatchNoFallbackWhenDisabled(t *testing.T) {
	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
	}}
	f, _ := newTestFetcher(transport, FetcherOptions{MaxRetries: 1, UseFallback: false})

	_, err := f.FetchBatch([]string{"bitcoin"})
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if len(transport.urls) != 2 {
		t.Fatalf("expected 2 direct requests only, got %d", len(transport.urls))
	}
}

func TestFetchBatchMarksPartialRecordsInvalid(t *testing.T) {
	body := `[
		{"id": "bitcoin", "name": "Bitcoin", "current_price": 50000,
		 "price_change_24h": 100, "price_change_percentage_24h": 1,
		 "total_volume": 1000, "market_cap": 900000},
		{"id": "ethereum", "name": "Ethereum"},
		{"id": "solana", "name": "Solana", "current_price": 150,
		 "price_change_24h": 2, "price_change_percentage_24h": 1.5,
		 "market_cap": 70000}
	]`
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: body},
	}}
	f, _ := newTestFetcher(transport, FetcherOptions{})

	snaps, err := f.FetchBatch([]string{"bitcoin", "ethereum", "solana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if !snaps[0].IsValid {
		t.Error("complete bitcoin record should be valid")
	}
	if snaps[1].IsValid {
		t.Error("ethereum record without any numbers should be invalid")
	}
	// one absent numeric field is enough to downgrade the record
	if snaps[2].IsValid {
		t.Error("solana record missing total_volume should be invalid")
	}
}

func TestFetchBatchCapsAtRequestedSymbols(t *testing.T) {
	body := `[
		{"id": "bitcoin", "current_price": 1, "price_change_24h": 1,
		 "price_change_percentage_24h": 1, "total_volume": 1, "market_cap": 1},
		{"id": "ethereum", "current_price": 2, "price_change_24h": 1,
		 "price_change_percentage_24h": 1, "total_volume": 1, "market_cap": 1},
		{"id": "solana", "current_price": 3, "price_change_24h": 1,
		 "price_change_percentage_24h": 1, "total_volume": 1, "market_cap": 1}
	]`
	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: body},
	}}
	f, _ := newTestFetcher(transport, FetcherOptions{})

	snaps, err := f.FetchBatch([]string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected batch capped at 2, got %d", len(snaps))
	}
}

func TestFetcherRateLimitWindow(t *testing.T) {
	transport := &scriptedTransport{}
	f, _ := newTestFetcher(transport, FetcherOptions{RateLimitPerMinute: 2, MaxRetries: 1})

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return current }

	for i := 0; i < 2; i++ {
		transport.responses = append(transport.responses, scriptedResponse{status: 200, body: validBody(t, 100)})
		if _, err := f.FetchBatch([]string{"bitcoin"}); err != nil {
			t.Fatalf("request %d should pass, got %v", i+1, err)
		}
	}

	if _, err := f.FetchBatch([]string{"bitcoin"}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third request should be rate limited, got %v", err)
	}
	if f.CanRequest() {
		t.Error("CanRequest should report exhausted window")
	}

	// window rolls over after a minute
	current = current.Add(61 * time.Second)
	if !f.CanRequest() {
		t.Error("window should reset after a minute")
	}
	if f.RemainingRequests() != 2 {
		t.Errorf("expected full budget after reset, got %d", f.RemainingRequests())
	}
}
