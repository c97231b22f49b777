// Package coingecko supplies the SOL/USD rate used to value positions in
// notifications. Pricing is advisory: a missing rate must never block the
// trade path, so failures fall back to the last known or a default value.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultBaseURL is the public CoinGecko API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// DefaultSOLPrice stands in when no rate was ever fetched.
const DefaultSOLPrice = 200.0

// cacheTTL bounds how long a fetched rate is reused.
const cacheTTL = 5 * time.Minute

// Client fetches and caches the SOL/USD rate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	price     float64
	fetchedAt time.Time
}

// NewClient creates a CoinGecko client. An empty baseURL selects the public
// endpoint.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "coingecko")),
	}
}

// SOLPrice returns the current SOL/USD rate. It serves the cached value
// while fresh, refreshes when stale, and degrades to the last known value
// or the default rather than failing.
func (c *Client) SOLPrice(ctx context.Context) float64 {
	c.mu.RLock()
	price, at := c.price, c.fetchedAt
	c.mu.RUnlock()

	if !at.IsZero() && time.Since(at) < cacheTTL {
		return price
	}

	fetched, err := c.fetch(ctx)
	if err != nil {
		if at.IsZero() {
			c.logger.Warn("SOL price unavailable, using default",
				slog.Float64("default", DefaultSOLPrice),
				slog.String("error", err.Error()),
			)
			return DefaultSOLPrice
		}
		c.logger.Warn("SOL price refresh failed, using stale value",
			slog.Float64("stale", price),
			slog.String("error", err.Error()),
		)
		return price
	}

	c.mu.Lock()
	c.price = fetched
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return fetched
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?ids=solana&vs_currencies=usd", nil)
	if err != nil {
		return 0, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coingecko: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("coingecko: decode response: %w", err)
	}
	if parsed.Solana.USD <= 0 {
		return 0, fmt.Errorf("coingecko: missing solana price in response")
	}
	return parsed.Solana.USD, nil
}
