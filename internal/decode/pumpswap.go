package decode

import (
	"github.com/gagliardetto/solana-go"

	"github.com/AV1080p/-solana-sniper-bot/internal/curve"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// Pooled-liquidity AMM event layout. Two observed sizes share one field
// placement; the extra tail bytes of the long form are not read.
const (
	pumpSwapEventLen    = 368
	pumpSwapEventLenAlt = 416

	psOffTimestamp     = 16  // u64
	psOffBaseAmount    = 24  // u64, base in on buys / base out on sells
	psOffBaseReserves  = 56  // u64, pool base token reserves
	psOffQuoteReserves = 64  // u64, pool quote token reserves
	psOffQuoteAmount   = 72  // u64
	psOffPoolID        = 128 // 32-byte key
	psOffCoinCreator   = 320 // 32-byte key, zero key marks a reversed pool
)

func decodePumpSwap(data []byte, meta TxMeta) *domain.TradeEvent {
	timestamp, ok := readU64(data, psOffTimestamp)
	if !ok {
		return nil
	}
	baseAmount, ok := readU64(data, psOffBaseAmount)
	if !ok {
		return nil
	}
	baseReserves, ok := readU64(data, psOffBaseReserves)
	if !ok {
		return nil
	}
	quoteReserves, ok := readU64(data, psOffQuoteReserves)
	if !ok {
		return nil
	}
	quoteAmount, ok := readU64(data, psOffQuoteAmount)
	if !ok {
		return nil
	}
	poolID, ok := readPubkey(data, psOffPoolID)
	if !ok {
		return nil
	}
	creator, ok := readPubkey(data, psOffCoinCreator)
	if !ok {
		return nil
	}

	// A zero creator key marks a pool whose base asset is the native asset,
	// which inverts input/output mapping and the buy/sell log markers.
	reversed := creator == solana.SystemProgramID.String()

	var postPrice float64
	if baseReserves > 0 && quoteReserves > 0 {
		if reversed {
			postPrice = float64(baseReserves) / float64(quoteReserves) / curve.PriceScale
		} else {
			postPrice = float64(quoteReserves) / float64(baseReserves) / curve.PriceScale
		}
	}

	var prePrice float64
	if baseAmount > 0 && quoteAmount > 0 {
		if reversed {
			prePrice = float64(baseAmount) / float64(quoteAmount) / curve.PriceScale
		} else {
			prePrice = float64(quoteAmount) / float64(baseAmount) / curve.PriceScale
		}
	}

	var isBuy bool
	if reversed {
		isBuy = hasLog(meta.Logs, sellLogMarker)
	} else {
		isBuy = hasLog(meta.Logs, buyLogMarker)
	}

	// Native and token deltas are positive on buys, negative on sells; the
	// reversed flag decides which raw amount sits on which side.
	var solChange, tokenChange float64
	if reversed {
		solChange = float64(baseAmount) / lamportsPerSol
		tokenChange = float64(quoteAmount) / lamportsPerSol
	} else {
		solChange = float64(quoteAmount) / lamportsPerSol
		tokenChange = float64(baseAmount) / lamportsPerSol
	}
	if !isBuy {
		solChange = -solChange
		tokenChange = -tokenChange
	}

	var liquidity float64
	if reversed {
		liquidity = float64(baseReserves) / lamportsPerSol
	} else {
		liquidity = float64(quoteReserves) / lamportsPerSol
	}

	return &domain.TradeEvent{
		Venue:         domain.VenuePumpSwap,
		Slot:          meta.Slot,
		Signature:     meta.Signature,
		PoolID:        poolID,
		Mint:          mintFromBalances(meta.PostTokenBalanceMints),
		Creator:       creator,
		Timestamp:     timestamp,
		IsBuy:         isBuy,
		PostPrice:     postPrice,
		PrePrice:      prePrice,
		ReversedQuote: reversed,
		SolChange:     solChange,
		TokenChange:   tokenChange,
		Liquidity:     liquidity,
		VirtualSol:    quoteReserves,
		VirtualToken:  baseReserves,
		BuySellSameTx: false,
	}
}
