// Package jupiter routes swaps through the Jupiter aggregator. It is the
// exit pipeline's fallback channel: when the curve sell cannot be landed,
// an aggregator swap out of the token is better than holding it.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is Jupiter's public swap API.
const DefaultBaseURL = "https://lite-api.jup.ag/swap/v1"

// DefaultSellSlippageBps is the slippage sent with fallback sells, wide
// enough that a distressed exit fills at whatever the pool offers.
const DefaultSellSlippageBps uint64 = 15_000

// swapMaxPriorityLamports caps the priority fee Jupiter may attach.
const swapMaxPriorityLamports uint64 = 1_000_000

// defaultRequestTimeout bounds each quote or swap round trip.
const defaultRequestTimeout = 5 * time.Second

// Client calls the Jupiter quote and swap endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Jupiter API client. An empty baseURL selects the
// public endpoint, a zero timeout the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Quote asks for a route swapping amount of inputMint into outputMint. The
// response is kept raw because the swap endpoint wants it echoed verbatim.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount, slippageBps uint64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.FormatUint(slippageBps, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jupiter: create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter: quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jupiter: read quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: quote HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.RawMessage(body), nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage   `json:"quoteResponse"`
	UserPublicKey             string            `json:"userPublicKey"`
	WrapAndUnwrapSol          bool              `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool              `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports prioritizationFee `json:"prioritizationFeeLamports"`
}

type prioritizationFee struct {
	PriorityLevelWithMaxLamports priorityLevel `json:"priorityLevelWithMaxLamports"`
}

type priorityLevel struct {
	MaxLamports   uint64 `json:"maxLamports"`
	PriorityLevel string `json:"priorityLevel"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// Swap exchanges a quote for a ready-to-sign transaction, returned as raw
// bytes.
func (c *Client) Swap(ctx context.Context, quote json.RawMessage, userPublicKey string) ([]byte, error) {
	reqBody := swapRequest{
		QuoteResponse:           quote,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
		PrioritizationFeeLamports: prioritizationFee{
			PriorityLevelWithMaxLamports: priorityLevel{
				MaxLamports:   swapMaxPriorityLamports,
				PriorityLevel: "high",
			},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("jupiter: create swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter: swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("jupiter: read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter: swap HTTP %d: %s", resp.StatusCode, string(body))
	}

	var swapResp swapResponse
	if err := json.Unmarshal(body, &swapResp); err != nil {
		return nil, fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	if swapResp.Error != "" {
		return nil, fmt.Errorf("jupiter: swap rejected: %s", swapResp.Error)
	}
	if swapResp.SwapTransaction == "" {
		return nil, fmt.Errorf("jupiter: swap response missing transaction")
	}

	raw, err := base64.StdEncoding.DecodeString(swapResp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("jupiter: decode swap transaction: %w", err)
	}
	return raw, nil
}
