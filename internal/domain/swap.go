package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountMode selects how SwapOrder.Amount is interpreted.
type AmountMode string

const (
	AmountModeExact   AmountMode = "qty" // Amount is an absolute quantity
	AmountModePercent AmountMode = "pct" // Amount is a percentage of the holding
)

// SellReason records why a sell was scheduled; it travels with the
// pending-sell marker so the exit path can report it.
type SellReason string

const (
	SellReasonTakeProfit SellReason = "take_profit"
	SellReasonStopLoss   SellReason = "stop_loss"
	SellReasonManual     SellReason = "manual"
)

// SwapOrder describes one sell to be built and landed. Amount is a
// UI-facing quantity: token units or a percentage of the holding.
type SwapOrder struct {
	Mode        AmountMode
	Amount      decimal.Decimal
	SlippageBps uint64
	// CorrelationID ties log lines and notifications of one order together.
	CorrelationID string
}

// Channel identifies a transaction delivery channel.
type Channel string

const (
	ChannelDirect Channel = "direct" // plain RPC broadcast, no tip
	ChannelRelay  Channel = "relay"  // priority relay, tip required
)

// Receipt is returned as soon as a delivery channel accepts a transaction
// for broadcast. It says nothing about confirmation.
type Receipt struct {
	Signature   string
	Channel     Channel
	SubmittedAt time.Time
}

// SellResult reports the outcome of a sell across both delivery channels.
type SellResult struct {
	Mint         string
	Reason       SellReason
	Signature    string
	Success      bool
	UsedFallback bool
	Attempts     int
	Err          error
}
