package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport performs one HTTP request against a market data endpoint
type Transport interface {
	Send(url string, timeout time.Duration) ([]byte, int, error)
}

// HTTPTransport is the real Transport backed by net/http
type HTTPTransport struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPTransport creates a transport with a shared client
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{
		Client:    &http.Client{},
		UserAgent: "TokenAlert/1.0",
	}
}

// Send issues a GET and returns the body and status code.
// The timeout covers connection, headers, and body read together.
func (t *HTTPTransport) Send(url string, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
