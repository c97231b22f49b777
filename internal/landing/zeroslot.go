package landing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// maxTipLamports caps the relay tip at 0.1 SOL.
const maxTipLamports uint64 = 100_000_000

const lamportsPerSOL = 1_000_000_000

// RelayConfig describes the priority relay endpoint.
type RelayConfig struct {
	URL         string
	APIKey      string
	TipAccounts []string
	TipSOL      float64
}

// RelayClient submits signed transactions to a low-latency relay. Every
// transaction it carries must tip one of the relay's designated accounts;
// the engine appends that transfer using TipAccount and TipLamports.
type RelayClient struct {
	endpoint    string
	httpClient  *http.Client
	tipAccounts []solana.PublicKey
	tipLamports uint64
	logger      *slog.Logger
}

// NewRelayClient validates the relay configuration and returns a client.
func NewRelayClient(cfg RelayConfig, logger *slog.Logger) (*RelayClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("landing: relay URL required")
	}
	if len(cfg.TipAccounts) == 0 {
		return nil, fmt.Errorf("landing: relay tip accounts required")
	}
	accounts := make([]solana.PublicKey, 0, len(cfg.TipAccounts))
	for _, raw := range cfg.TipAccounts {
		pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("landing: parse tip account %q: %w", raw, err)
		}
		accounts = append(accounts, pk)
	}

	tipLamports := uint64(cfg.TipSOL * lamportsPerSOL)
	if tipLamports == 0 {
		return nil, fmt.Errorf("landing: relay tip of %g SOL rounds to zero lamports", cfg.TipSOL)
	}
	if tipLamports > maxTipLamports {
		return nil, fmt.Errorf("landing: relay tip of %g SOL exceeds the 0.1 SOL cap", cfg.TipSOL)
	}

	endpoint := strings.TrimRight(cfg.URL, "/")
	if cfg.APIKey != "" {
		endpoint += "?api-key=" + cfg.APIKey
	}

	return &RelayClient{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 3 * time.Second},
		tipAccounts: accounts,
		tipLamports: tipLamports,
		logger:      logger.With(slog.String("component", "relay")),
	}, nil
}

// TipAccount picks one of the relay's tip accounts at random, spreading
// writes so concurrent transactions do not contend on one account.
func (c *RelayClient) TipAccount() solana.PublicKey {
	return c.tipAccounts[rand.Intn(len(c.tipAccounts))]
}

// TipLamports returns the configured tip.
func (c *RelayClient) TipLamports() uint64 {
	return c.tipLamports
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send submits the signed transaction through the relay.
func (c *RelayClient) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	encoded, err := tx.ToBase64()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: encode transaction: %w", err)
	}

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []any{
			encoded,
			map[string]any{"encoding": "base64", "skipPreflight": true},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: relay request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: read relay response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return solana.Signature{}, fmt.Errorf("landing: relay HTTP %d: %s", resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return solana.Signature{}, fmt.Errorf("landing: decode relay response: %w", err)
	}
	if rpcResp.Error != nil {
		return solana.Signature{}, fmt.Errorf("landing: relay error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	sig, err := solana.SignatureFromBase58(rpcResp.Result)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("landing: parse relay signature %q: %w", rpcResp.Result, err)
	}
	return sig, nil
}
