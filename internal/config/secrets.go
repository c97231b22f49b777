package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)

	// Relay
	out.Relay = cfg.Relay
	redact(&out.Relay.APIKey)

	// Telegram
	out.Telegram = cfg.Telegram
	redact(&out.Telegram.BotToken)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.RPC.Endpoints != nil {
		out.RPC.Endpoints = make([]string, len(cfg.RPC.Endpoints))
		copy(out.RPC.Endpoints, cfg.RPC.Endpoints)
	}
	if cfg.Relay.TipAccounts != nil {
		out.Relay.TipAccounts = make([]string, len(cfg.Relay.TipAccounts))
		copy(out.Relay.TipAccounts, cfg.Relay.TipAccounts)
	}
	if cfg.Telegram.Events != nil {
		out.Telegram.Events = make([]string, len(cfg.Telegram.Events))
		copy(out.Telegram.Events, cfg.Telegram.Events)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
