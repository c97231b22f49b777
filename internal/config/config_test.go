package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testKey is long enough to pass the keypair length check; the decode
// itself belongs to the wallet package.
var testKey = strings.Repeat("4", 88)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = testKey
	return cfg
}

func TestDefaultsValidateOnceKeyIsSet(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults + key should validate, got: %v", err)
	}
}

func TestValidateRequiresPrivateKey(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error without a private key")
	}
	if !strings.Contains(err.Error(), "wallet: private_key") {
		t.Errorf("error does not mention the wallet key: %v", err)
	}

	cfg.Wallet.PrivateKey = "tooshort"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least 85") {
		t.Errorf("short key not flagged: %v", err)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "yolo"
	cfg.RPC.Endpoints = nil
	cfg.Trade.BuyAmountSOL = 0
	cfg.Trade.BuySlippageBps = maxSlippageBps + 1
	cfg.Relay.URL = "https://ny.example.org"
	cfg.Telegram.BotToken = "123:abc" // chat_id missing

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected a combined validation error")
	}
	for _, frag := range []string{
		`unknown mode "yolo"`,
		"rpc: endpoints must not be empty",
		"buy_amount_sol must be > 0",
		"buy_slippage_bps must be <= 50000",
		"relay: tip_accounts must not be empty",
		"telegram: bot_token and chat_id must be set together",
	} {
		if !strings.Contains(err.Error(), frag) {
			t.Errorf("error missing %q:\n%v", frag, err)
		}
	}
}

func TestValidateRelayTipBounds(t *testing.T) {
	tests := []struct {
		name   string
		tipSOL float64
		wantOK bool
	}{
		{"zero tip", 0, false},
		{"negative tip", -0.001, false},
		{"default tip", 0.0025, true},
		{"at cap", 0.1, true},
		{"over cap", 0.11, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Relay.URL = "https://ny.example.org"
			cfg.Relay.TipAccounts = []string{"6fQaVhYZA4w3MBSXjJ81Vf6W1EDYeUPXpgVQ6UQyU1Av"}
			cfg.Relay.TipSOL = tt.tipSOL
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Fatalf("tip %v should validate, got: %v", tt.tipSOL, err)
			}
			if !tt.wantOK && (err == nil || !strings.Contains(err.Error(), "tip_sol")) {
				t.Fatalf("tip %v not flagged: %v", tt.tipSOL, err)
			}
		})
	}
}

func TestValidateNonceNeedsAccount(t *testing.T) {
	cfg := validConfig()
	cfg.Nonce.Enabled = true
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "nonce: account") {
		t.Errorf("enabled nonce without account not flagged: %v", err)
	}
}

func TestLoadMergesFileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	raw := `
mode = "sell"

[rpc]
endpoints = ["https://rpc.example.org"]

[trade]
buy_amount_sol = 0.01
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PRIVATE_KEY", testKey)
	t.Setenv("BUY_SLIPPAGE", "1200")
	t.Setenv("RPC_HTTP", "https://a.example.org, https://b.example.org")
	t.Setenv("ZERO_SLOT_TIP_VALUE", "0.004")
	t.Setenv("NONCE_ACCOUNT", "CiDwVBFgWV9E5MvXWoLgnEgn2hK7rJikbvfWavzAQz3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "sell" {
		t.Errorf("mode = %q, want file value", cfg.Mode)
	}
	if cfg.Trade.BuyAmountSOL != 0.01 {
		t.Errorf("buy_amount_sol = %v, want file value 0.01", cfg.Trade.BuyAmountSOL)
	}
	if cfg.Trade.BuySlippageBps != 1200 {
		t.Errorf("buy_slippage_bps = %d, want env value 1200", cfg.Trade.BuySlippageBps)
	}
	// Env beats the file for the endpoint list, and the comma split trims.
	want := []string{"https://a.example.org", "https://b.example.org"}
	if len(cfg.RPC.Endpoints) != 2 || cfg.RPC.Endpoints[0] != want[0] || cfg.RPC.Endpoints[1] != want[1] {
		t.Errorf("endpoints = %v, want %v", cfg.RPC.Endpoints, want)
	}
	if cfg.Wallet.PrivateKey != testKey {
		t.Error("private key not taken from env")
	}
	if cfg.Relay.TipSOL != 0.004 {
		t.Errorf("tip_sol = %v, want env value 0.004", cfg.Relay.TipSOL)
	}
	if !cfg.Nonce.Enabled || cfg.Nonce.Account == "" {
		t.Errorf("NONCE_ACCOUNT in env should set and enable the nonce, got %+v", cfg.Nonce)
	}
	// Untouched sections keep their defaults.
	if cfg.Jupiter.BaseURL != "https://lite-api.jup.ag/swap/v1" {
		t.Errorf("jupiter base_url lost its default: %q", cfg.Jupiter.BaseURL)
	}
	if cfg.Maintenance.Timeout.Duration.Seconds() != 30 {
		t.Errorf("maintenance timeout lost its default: %v", cfg.Maintenance.Timeout.Duration)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	raw := `
[blockhash]
refresh_interval = "250ms"
stale_after = "8s"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Blockhash.RefreshInterval.Duration.Milliseconds() != 250 {
		t.Errorf("refresh_interval = %v", cfg.Blockhash.RefreshInterval.Duration)
	}
	if cfg.Blockhash.StaleAfter.Duration.Seconds() != 8 {
		t.Errorf("stale_after = %v", cfg.Blockhash.StaleAfter.Duration)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.APIKey = "relay-secret"
	cfg.Telegram.BotToken = "123456:token"
	cfg.Telegram.ChatID = "42"

	red := RedactedConfig(&cfg)

	if red.Wallet.PrivateKey != redacted {
		t.Errorf("private key not redacted: %q", red.Wallet.PrivateKey)
	}
	if red.Relay.APIKey != redacted {
		t.Errorf("relay api key not redacted: %q", red.Relay.APIKey)
	}
	if red.Telegram.BotToken != redacted {
		t.Errorf("bot token not redacted: %q", red.Telegram.BotToken)
	}
	if red.Telegram.ChatID != "42" {
		t.Errorf("chat id should survive redaction, got %q", red.Telegram.ChatID)
	}

	// The original is untouched and the copied slices are independent.
	if cfg.Wallet.PrivateKey != testKey || cfg.Relay.APIKey != "relay-secret" {
		t.Error("RedactedConfig mutated the original")
	}
	red.RPC.Endpoints[0] = "mutated"
	if cfg.RPC.Endpoints[0] == "mutated" {
		t.Error("redacted copy shares the endpoints slice with the original")
	}
}
