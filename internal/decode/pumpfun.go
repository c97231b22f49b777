package decode

import (
	"github.com/AV1080p/-solana-sniper-bot/internal/curve"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// Bonding-curve trade event layout.
const (
	pumpFunEventLen    = 274
	pumpFunEventLenAlt = 275

	pfOffMint         = 16 // 32-byte key
	pfOffSolAmount    = 48 // u64
	pfOffTokenAmount  = 56 // u64
	pfOffIsBuy        = 64 // single byte, 1 = buy
	pfOffTimestamp    = 97 // u64
	pfOffVirtualSol   = 105
	pfOffVirtualToken = 113
	pfOffRealSol      = 121
	pfOffCreator      = 185 // 32-byte key
)

func decodePumpFun(data []byte, meta TxMeta) *domain.TradeEvent {
	mint, ok := readPubkey(data, pfOffMint)
	if !ok {
		return nil
	}
	solAmount, ok := readU64(data, pfOffSolAmount)
	if !ok {
		return nil
	}
	tokenAmount, ok := readU64(data, pfOffTokenAmount)
	if !ok {
		return nil
	}
	if pfOffIsBuy >= len(data) {
		return nil
	}
	isBuy := data[pfOffIsBuy] == 1
	timestamp, ok := readU64(data, pfOffTimestamp)
	if !ok {
		return nil
	}
	virtualSol, ok := readU64(data, pfOffVirtualSol)
	if !ok {
		return nil
	}
	virtualToken, ok := readU64(data, pfOffVirtualToken)
	if !ok {
		return nil
	}
	realSol, ok := readU64(data, pfOffRealSol)
	if !ok {
		return nil
	}
	creator, ok := readPubkey(data, pfOffCreator)
	if !ok {
		return nil
	}

	// Price after the trade comes from the curve reserves so both venue
	// paths price in the same unit; the pre-trade price falls back to the
	// swapped amounts.
	postPrice := curve.Price(virtualSol, virtualToken)
	var prePrice float64
	if tokenAmount != 0 {
		prePrice = float64(solAmount) / float64(tokenAmount) / curve.PriceScale
	}

	solChange := float64(solAmount) / lamportsPerSol
	tokenChange := float64(tokenAmount) / tokenUnit
	if !isBuy {
		solChange = -solChange
		tokenChange = -tokenChange
	}

	return &domain.TradeEvent{
		Venue:         domain.VenuePumpFun,
		Slot:          meta.Slot,
		Signature:     meta.Signature,
		Mint:          mint,
		Creator:       creator,
		Timestamp:     timestamp,
		IsBuy:         isBuy,
		PostPrice:     postPrice,
		PrePrice:      prePrice,
		ReversedQuote: false,
		SolChange:     solChange,
		TokenChange:   tokenChange,
		Liquidity:     float64(realSol) / lamportsPerSol,
		VirtualSol:    virtualSol,
		VirtualToken:  virtualToken,
		BuySellSameTx: hasLog(meta.Logs, buyLogMarker) && hasLog(meta.Logs, sellLogMarker),
	}
}
