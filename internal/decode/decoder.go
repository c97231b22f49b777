// Package decode turns raw AMM event bytes into trade records. Decoding is
// pure and total: the buffer length selects the venue encoding, anything
// else yields no record, and a truncated field read drops the whole record
// rather than returning partial data.
package decode

import (
	"encoding/binary"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// TxMeta is the transaction-level context that accompanies the raw event
// bytes: log messages, the post-transaction token-balance mints in metadata
// order, slot and signature.
type TxMeta struct {
	Slot                  uint64
	Signature             string
	Logs                  []string
	PostTokenBalanceMints []string
}

const (
	buyLogMarker  = "Instruction: Buy"
	sellLogMarker = "Instruction: Sell"

	wsolMint = "So11111111111111111111111111111111111111112"

	// Substituted when a pooled-AMM event carries no usable token balance
	// record; keeps the pipeline total instead of failing the event.
	fallbackMint = "2ivzYvjnKqA4X3dVvPKr7bctGpbxwrXbbxm44TJCpump"

	lamportsPerSol = 1_000_000_000.0
	tokenUnit      = 1_000_000.0
)

// Decode parses one raw event buffer into a trade record. It returns nil
// for every unrecognized buffer length; unknown events are routine on a
// shared stream, not errors.
func Decode(data []byte, meta TxMeta) *domain.TradeEvent {
	switch len(data) {
	case pumpSwapEventLen, pumpSwapEventLenAlt:
		return decodePumpSwap(data, meta)
	case pumpFunEventLen, pumpFunEventLenAlt:
		return decodePumpFun(data, meta)
	default:
		return nil
	}
}

func readU64(data []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+8 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), true
}

func readPubkey(data []byte, offset int) (string, bool) {
	if offset < 0 || offset+32 > len(data) {
		return "", false
	}
	return solana.PublicKeyFromBytes(data[offset : offset+32]).String(), true
}

func hasLog(logs []string, marker string) bool {
	for _, log := range logs {
		if strings.Contains(log, marker) {
			return true
		}
	}
	return false
}

// mintFromBalances walks the first three post-transaction balance mints
// past the wrapped-native mint, falling back to a well-known default when
// the metadata carries none.
func mintFromBalances(mints []string) string {
	if len(mints) == 0 {
		return fallbackMint
	}
	mint := mints[0]
	if mint == wsolMint && len(mints) > 1 {
		mint = mints[1]
		if mint == wsolMint && len(mints) > 2 {
			mint = mints[2]
		}
	}
	if mint == "" {
		return fallbackMint
	}
	return mint
}
