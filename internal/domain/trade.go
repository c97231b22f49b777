package domain

// Venue identifies which AMM program emitted a trade event.
type Venue string

const (
	VenuePumpFun  Venue = "pumpfun"  // bonding-curve program
	VenuePumpSwap Venue = "pumpswap" // pooled-liquidity AMM
	VenueUnknown  Venue = "unknown"
)

// TradeEvent is one decoded on-chain swap. It is constructed once per
// observed event, never mutated, and consumed within the same processing
// step. Price fields are reserve ratios scaled so both venue encodings
// share one price unit; zero reserves yield price 0, never a fault.
type TradeEvent struct {
	Venue     Venue
	Slot      uint64
	Signature string
	PoolID    string
	Mint      string
	Creator   string // empty when the event carries no creator field
	Timestamp uint64
	IsBuy     bool

	// PostPrice is derived from the reserves after the swap, PrePrice from
	// the swapped amounts themselves.
	PostPrice float64
	PrePrice  float64

	// ReversedQuote is set when the pool's base asset is the native asset
	// instead of the traded token, which inverts which raw field is input
	// vs output. Bonding-curve events are never reversed.
	ReversedQuote bool

	// SolChange is the native-asset delta in SOL, positive on buys and
	// negative on sells. TokenChange is the traded-asset delta in token
	// units with the same sign convention.
	SolChange   float64
	TokenChange float64

	// Liquidity is the native-asset side of the reserve pair in SOL, used
	// to filter dust pools.
	Liquidity float64

	VirtualSol   uint64
	VirtualToken uint64

	// BuySellSameTx marks a transaction carrying both a buy and a sell
	// instruction, a market-manipulation signal.
	BuySellSameTx bool
}
