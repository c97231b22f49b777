package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the bot's owned quantity of one mint, in human-readable
// units. Set when a buy confirms, read by every sell build, removed when
// the sell completes or maintenance expires it.
type Holding struct {
	Mint      string
	Amount    decimal.Decimal
	Decimals  uint8
	UpdatedAt time.Time
}

// HoldingFromRaw builds a Holding from a base-unit quantity.
func HoldingFromRaw(mint string, raw uint64, decimals uint8) Holding {
	return Holding{
		Mint:     mint,
		Amount:   decimal.NewFromUint64(raw).Shift(-int32(decimals)),
		Decimals: decimals,
	}
}

// RawAmount converts the human-readable quantity back to base units.
func (h Holding) RawAmount() uint64 {
	raw := h.Amount.Shift(int32(h.Decimals)).Floor()
	if !raw.IsPositive() {
		return 0
	}
	return uint64(raw.IntPart())
}

// PendingSell gates sell builds: a build for a mint must fail fast when no
// marker is present, and at most one build per mint may be in flight.
type PendingSell struct {
	Mint     string
	Reason   SellReason
	Since    time.Time
	InFlight bool
}

// PricePoint is one sample in a mint's short trade-metric history, pruned
// by the maintenance sweep after its retention window.
type PricePoint struct {
	Price float64
	At    time.Time
}
