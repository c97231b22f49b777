package builder

import "github.com/gagliardetto/solana-go"

// Pump.fun bonding curve program and its fixed companion accounts.
var (
	PumpProgramID       = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	pumpGlobal          = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	pumpFeeRecipient    = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	pumpEventAuthority  = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	pumpFeeConfig       = solana.MustPublicKeyFromBase58("8Wf5TiAheLUqBrKXeYg2JtAFFMWtKdG2BSFgqUcPVwTt")
	pumpFeeProgram      = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")
)

// Anchor discriminators for the curve program's swap instructions, already
// folded to little-endian u64.
const (
	buyDiscriminator  uint64 = 16927863322537952870
	sellDiscriminator uint64 = 12502976635542562355
)

// slippageCapBps bounds caller-supplied slippage so a typo cannot authorize
// an unbounded overpay.
const slippageCapBps = 50_000
