// Package config defines the top-level configuration for the sniper and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by environment variables.
type Config struct {
	RPC         RPCConfig         `toml:"rpc"`
	Stream      StreamConfig      `toml:"stream"`
	Wallet      WalletConfig      `toml:"wallet"`
	Trade       TradeConfig       `toml:"trade"`
	Relay       RelayConfig       `toml:"relay"`
	Jupiter     JupiterConfig     `toml:"jupiter"`
	Nonce       NonceConfig       `toml:"nonce"`
	Blockhash   BlockhashConfig   `toml:"blockhash"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Monitor     MonitorConfig     `toml:"monitor"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// RPCConfig holds the JSON-RPC endpoints used for reads and direct sends.
// Requests rotate across Endpoints round-robin.
type RPCConfig struct {
	Endpoints      []string `toml:"endpoints"`
	Commitment     string   `toml:"commitment"`
	RequestTimeout duration `toml:"request_timeout"`
}

// StreamConfig holds the websocket endpoint the trade feed subscribes on.
type StreamConfig struct {
	WsURL            string   `toml:"ws_url"`
	Commitment       string   `toml:"commitment"`
	ReconnectBackoff duration `toml:"reconnect_backoff"`
}

// WalletConfig holds the signing key. PrivateKey is the base58-encoded
// 64-byte keypair, the same format solana-keygen prints.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
}

// TradeConfig holds the buy-side parameters of the pipeline.
type TradeConfig struct {
	BuyAmountSOL    float64 `toml:"buy_amount_sol"`
	BuySlippageBps  uint64  `toml:"buy_slippage_bps"`
	MinLiquiditySOL float64 `toml:"min_liquidity_sol"`
	UnitLimit       uint32  `toml:"unit_limit"`
	UnitPrice       uint64  `toml:"unit_price"`
	QueueSize       int     `toml:"queue_size"`
	WrapAmountSOL   float64 `toml:"wrap_amount_sol"`
}

// RelayConfig holds the low-latency relay endpoint. Leave URL empty to send
// everything through the regular RPC endpoints instead.
type RelayConfig struct {
	URL         string   `toml:"url"`
	APIKey      string   `toml:"api_key"`
	TipSOL      float64  `toml:"tip_sol"`
	TipAccounts []string `toml:"tip_accounts"`
}

// JupiterConfig holds the aggregator used as the sell fallback.
type JupiterConfig struct {
	BaseURL         string   `toml:"base_url"`
	RequestTimeout  duration `toml:"request_timeout"`
	SellSlippageBps uint64   `toml:"sell_slippage_bps"`
}

// NonceConfig holds the durable nonce account. When enabled, sells anchor
// on the nonce instead of a recent blockhash.
type NonceConfig struct {
	Enabled bool   `toml:"enabled"`
	Account string `toml:"account"`
}

// BlockhashConfig tunes the background blockhash refresher.
type BlockhashConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	StaleAfter      duration `toml:"stale_after"`
}

// MaintenanceConfig tunes the periodic store sweep.
type MaintenanceConfig struct {
	Interval         duration `toml:"interval"`
	Timeout          duration `toml:"timeout"`
	MetricRetention  duration `toml:"metric_retention"`
	MetricCapPerMint int      `toml:"metric_cap_per_mint"`
	MaxMetricSeries  int      `toml:"max_metric_series"`
	HoldingTTL       duration `toml:"holding_ttl"`
	StuckAfter       duration `toml:"stuck_after"`
	DeadTokenTTL     duration `toml:"dead_token_ttl"`
}

// TelegramConfig holds the notification channel credentials. Events selects
// which event kinds are forwarded; an empty list forwards everything.
type TelegramConfig struct {
	BotToken string   `toml:"bot_token"`
	ChatID   string   `toml:"chat_id"`
	Events   []string `toml:"events"`
}

// MonitorConfig tunes the memory watcher and the task registry.
type MonitorConfig struct {
	MemoryInterval   duration `toml:"memory_interval"`
	WarnHeapMB       uint64   `toml:"warn_heap_mb"`
	CriticalHeapMB   uint64   `toml:"critical_heap_mb"`
	WarnPoints       int      `toml:"warn_points"`
	CriticalPoints   int      `toml:"critical_points"`
	TaskScanInterval duration `toml:"task_scan_interval"`
	ZombieAfter      duration `toml:"zombie_after"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// maxSlippageBps caps both the buy and the fallback-sell slippage.
const maxSlippageBps = 50_000

// maxRelayTipSOL bounds the per-transaction relay tip.
const maxRelayTipSOL = 0.1

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			Endpoints:      []string{"https://api.mainnet-beta.solana.com"},
			Commitment:     "processed",
			RequestTimeout: duration{10 * time.Second},
		},
		Stream: StreamConfig{
			WsURL:            "wss://api.mainnet-beta.solana.com",
			Commitment:       "processed",
			ReconnectBackoff: duration{2 * time.Second},
		},
		Trade: TradeConfig{
			BuyAmountSOL:    0.001,
			BuySlippageBps:  700,
			MinLiquiditySOL: 0,
			UnitLimit:       200_000,
			UnitPrice:       20_000,
			QueueSize:       512,
			WrapAmountSOL:   0.1,
		},
		Relay: RelayConfig{
			TipSOL: 0.0025,
		},
		Jupiter: JupiterConfig{
			BaseURL:         "https://lite-api.jup.ag/swap/v1",
			RequestTimeout:  duration{5 * time.Second},
			SellSlippageBps: 15_000,
		},
		Blockhash: BlockhashConfig{
			RefreshInterval: duration{300 * time.Millisecond},
			StaleAfter:      duration{10 * time.Second},
		},
		Maintenance: MaintenanceConfig{
			Interval:         duration{200 * time.Second},
			Timeout:          duration{30 * time.Second},
			MetricRetention:  duration{time.Hour},
			MetricCapPerMint: 1_000,
			MaxMetricSeries:  500,
			HoldingTTL:       duration{24 * time.Hour},
			StuckAfter:       duration{5 * time.Minute},
			DeadTokenTTL:     duration{30 * time.Minute},
		},
		Telegram: TelegramConfig{
			Events: []string{"buy", "sell", "system"},
		},
		Monitor: MonitorConfig{
			MemoryInterval:   duration{time.Minute},
			WarnHeapMB:       512,
			CriticalHeapMB:   1024,
			WarnPoints:       80_000,
			CriticalPoints:   100_000,
			TaskScanInterval: duration{5 * time.Minute},
			ZombieAfter:      duration{10 * time.Minute},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"wrap":   true,
	"unwrap": true,
	"sell":   true,
	"close":  true,
	"nonce":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCommitments enumerates the accepted RPC commitment levels.
var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, wrap, unwrap, sell, close, nonce)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// RPC
	if len(c.RPC.Endpoints) == 0 {
		errs = append(errs, "rpc: endpoints must not be empty")
	}
	for _, ep := range c.RPC.Endpoints {
		if strings.TrimSpace(ep) == "" {
			errs = append(errs, "rpc: endpoints must not contain blank entries")
			break
		}
	}
	if !validCommitments[c.RPC.Commitment] {
		errs = append(errs, fmt.Sprintf("rpc: unknown commitment %q (valid: processed, confirmed, finalized)", c.RPC.Commitment))
	}

	// Stream
	if c.Stream.WsURL == "" {
		errs = append(errs, "stream: ws_url must not be empty")
	}
	if !validCommitments[c.Stream.Commitment] {
		errs = append(errs, fmt.Sprintf("stream: unknown commitment %q (valid: processed, confirmed, finalized)", c.Stream.Commitment))
	}

	// Every mode signs transactions, so the wallet key is always required.
	if c.Wallet.PrivateKey == "" {
		errs = append(errs, "wallet: private_key must be set (base58 64-byte keypair)")
	} else if len(c.Wallet.PrivateKey) < 85 {
		errs = append(errs, fmt.Sprintf("wallet: private_key is %d chars, a base58 64-byte keypair is at least 85", len(c.Wallet.PrivateKey)))
	}

	// Trade
	if c.Trade.BuyAmountSOL <= 0 {
		errs = append(errs, "trade: buy_amount_sol must be > 0")
	}
	if c.Trade.BuySlippageBps > maxSlippageBps {
		errs = append(errs, fmt.Sprintf("trade: buy_slippage_bps must be <= %d, got %d", maxSlippageBps, c.Trade.BuySlippageBps))
	}
	if c.Trade.MinLiquiditySOL < 0 {
		errs = append(errs, "trade: min_liquidity_sol must be >= 0")
	}
	if c.Trade.UnitLimit == 0 {
		errs = append(errs, "trade: unit_limit must be > 0")
	}
	if c.Trade.QueueSize < 0 {
		errs = append(errs, "trade: queue_size must be >= 0")
	}
	if c.Trade.WrapAmountSOL <= 0 {
		errs = append(errs, "trade: wrap_amount_sol must be > 0")
	}

	// The relay is optional, but when an endpoint is set the tip must be usable.
	if c.Relay.URL != "" {
		if len(c.Relay.TipAccounts) == 0 {
			errs = append(errs, "relay: tip_accounts must not be empty when url is set")
		}
		if c.Relay.TipSOL <= 0 || c.Relay.TipSOL > maxRelayTipSOL {
			errs = append(errs, fmt.Sprintf("relay: tip_sol must be in (0, %v], got %v", maxRelayTipSOL, c.Relay.TipSOL))
		}
	}

	// Jupiter
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, "jupiter: base_url must not be empty")
	}
	if c.Jupiter.SellSlippageBps > maxSlippageBps {
		errs = append(errs, fmt.Sprintf("jupiter: sell_slippage_bps must be <= %d, got %d", maxSlippageBps, c.Jupiter.SellSlippageBps))
	}

	// Nonce
	if c.Nonce.Enabled && c.Nonce.Account == "" {
		errs = append(errs, "nonce: account must be set when enabled (use the nonce mode to create one)")
	}

	// Blockhash
	if c.Blockhash.RefreshInterval.Duration <= 0 {
		errs = append(errs, "blockhash: refresh_interval must be > 0")
	}
	if c.Blockhash.StaleAfter.Duration <= c.Blockhash.RefreshInterval.Duration {
		errs = append(errs, "blockhash: stale_after must exceed refresh_interval")
	}

	// The sweeper takes the maintenance values verbatim, so zeros are config bugs.
	if c.Maintenance.Interval.Duration <= 0 {
		errs = append(errs, "maintenance: interval must be > 0")
	}
	if c.Maintenance.Timeout.Duration <= 0 {
		errs = append(errs, "maintenance: timeout must be > 0")
	}
	if c.Maintenance.MetricRetention.Duration <= 0 {
		errs = append(errs, "maintenance: metric_retention must be > 0")
	}
	if c.Maintenance.MetricCapPerMint < 1 {
		errs = append(errs, "maintenance: metric_cap_per_mint must be >= 1")
	}
	if c.Maintenance.MaxMetricSeries < 1 {
		errs = append(errs, "maintenance: max_metric_series must be >= 1")
	}
	if c.Maintenance.HoldingTTL.Duration <= 0 {
		errs = append(errs, "maintenance: holding_ttl must be > 0")
	}
	if c.Maintenance.StuckAfter.Duration <= 0 {
		errs = append(errs, "maintenance: stuck_after must be > 0")
	}
	if c.Maintenance.DeadTokenTTL.Duration <= 0 {
		errs = append(errs, "maintenance: dead_token_ttl must be > 0")
	}

	// Telegram needs both halves of the credential or neither.
	tb := c.Telegram.BotToken != ""
	tc := c.Telegram.ChatID != ""
	if tb != tc {
		errs = append(errs, "telegram: bot_token and chat_id must be set together")
	}

	// Monitor
	if c.Monitor.MemoryInterval.Duration <= 0 {
		errs = append(errs, "monitor: memory_interval must be > 0")
	}
	if c.Monitor.WarnHeapMB >= c.Monitor.CriticalHeapMB {
		errs = append(errs, "monitor: warn_heap_mb must be below critical_heap_mb")
	}
	if c.Monitor.WarnPoints >= c.Monitor.CriticalPoints {
		errs = append(errs, "monitor: warn_points must be below critical_points")
	}
	if c.Monitor.TaskScanInterval.Duration <= 0 {
		errs = append(errs, "monitor: task_scan_interval must be > 0")
	}
	if c.Monitor.ZombieAfter.Duration <= c.Monitor.TaskScanInterval.Duration {
		errs = append(errs, "monitor: zombie_after must exceed task_scan_interval")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
