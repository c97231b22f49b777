package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies environment variable overrides, and returns the
// final Config. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set (i.e. not empty). This
// lets operators inject secrets at deploy time without touching the TOML
// file. The names match what the bot has historically read from .env.
func applyEnvOverrides(cfg *Config) {
	// ── RPC / stream ──
	setStringSlice(&cfg.RPC.Endpoints, "RPC_HTTP")
	setStr(&cfg.Stream.WsURL, "RPC_WSS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")

	// ── Trade ──
	setFloat64(&cfg.Trade.BuyAmountSOL, "BUY_AMOUNT_IN_SOL")
	setUint64(&cfg.Trade.BuySlippageBps, "BUY_SLIPPAGE")
	setUint32(&cfg.Trade.UnitLimit, "UNIT_LIMIT")
	setUint64(&cfg.Trade.UnitPrice, "UNIT_PRICE")
	setFloat64(&cfg.Trade.WrapAmountSOL, "WRAP_AMOUNT")

	// ── Relay ──
	setStr(&cfg.Relay.URL, "ZERO_SLOT_URL")
	setStr(&cfg.Relay.APIKey, "ZERO_SLOT_KEY")
	setFloat64(&cfg.Relay.TipSOL, "ZERO_SLOT_TIP_VALUE")

	// Naming a nonce account in the environment also turns durable mode on.
	if v := os.Getenv("NONCE_ACCOUNT"); v != "" {
		cfg.Nonce.Account = v
		cfg.Nonce.Enabled = true
	}

	// ── Telegram ──
	setStr(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
