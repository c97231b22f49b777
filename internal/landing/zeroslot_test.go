package landing

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

func validRelayConfig(url string) RelayConfig {
	return RelayConfig{
		URL:         url,
		APIKey:      "key",
		TipAccounts: []string{"CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"},
		TipSOL:      0.0025,
	}
}

func TestNewRelayClientValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RelayConfig)
	}{
		{"missing url", func(c *RelayConfig) { c.URL = " " }},
		{"no tip accounts", func(c *RelayConfig) { c.TipAccounts = nil }},
		{"bad tip account", func(c *RelayConfig) { c.TipAccounts = []string{"not-a-key"} }},
		{"zero tip", func(c *RelayConfig) { c.TipSOL = 0 }},
		{"tip above cap", func(c *RelayConfig) { c.TipSOL = 0.2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validRelayConfig("https://relay.example")
			tc.mutate(&cfg)
			if _, err := NewRelayClient(cfg, slog.New(slog.DiscardHandler)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRelayTipConversion(t *testing.T) {
	c, err := NewRelayClient(validRelayConfig("https://relay.example"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRelayClient: %v", err)
	}
	if got := c.TipLamports(); got != 2_500_000 {
		t.Fatalf("tip = %d lamports, want 2_500_000", got)
	}
	if c.TipAccount().IsZero() {
		t.Fatal("tip account must not be zero")
	}
}

func signedTestTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	to := solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, key.PublicKey(), to).Build()},
		solana.Hash{1},
		solana.TransactionPayer(key.PublicKey()),
	)
	if err != nil {
		t.Fatalf("build transaction: %v", err)
	}
	if _, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		t.Fatalf("sign transaction: %v", err)
	}
	return tx
}

func TestRelaySend(t *testing.T) {
	wantSig := "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

	var gotBody rpcRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api-key") != "key" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":"` + wantSig + `","id":1}`))
	}))
	defer srv.Close()

	c, err := NewRelayClient(validRelayConfig(srv.URL), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRelayClient: %v", err)
	}

	sig, err := c.Send(context.Background(), signedTestTransaction(t))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sig.String() != wantSig {
		t.Fatalf("signature = %s, want %s", sig, wantSig)
	}
	if gotBody.Method != "sendTransaction" {
		t.Fatalf("method = %q, want sendTransaction", gotBody.Method)
	}
	if len(gotBody.Params) != 2 {
		t.Fatalf("param count = %d, want 2", len(gotBody.Params))
	}
	encoded, ok := gotBody.Params[0].(string)
	if !ok || len(strings.TrimSpace(encoded)) == 0 {
		t.Fatal("first param must be the base64 transaction")
	}
}

func TestRelaySendErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32005,"message":"tip too low"},"id":1}`))
	}))
	defer srv.Close()

	c, err := NewRelayClient(validRelayConfig(srv.URL), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRelayClient: %v", err)
	}

	_, err = c.Send(context.Background(), signedTestTransaction(t))
	if err == nil || !strings.Contains(err.Error(), "tip too low") {
		t.Fatalf("err = %v, want relay error message surfaced", err)
	}
}

func TestRelaySendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewRelayClient(validRelayConfig(srv.URL), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewRelayClient: %v", err)
	}

	if _, err := c.Send(context.Background(), signedTestTransaction(t)); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}
