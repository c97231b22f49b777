package engine

import (
	"context"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// BuyAll approves every launch that survived the mechanical filters. It is
// the default entry policy.
type BuyAll struct{}

// ShouldBuy always reports true.
func (BuyAll) ShouldBuy(context.Context, domain.TradeEvent) bool { return true }

// HoldUntilMarked never schedules an exit on its own; positions leave only
// through markers placed by an operator or an external policy. It is the
// default exit policy.
type HoldUntilMarked struct{}

// ShouldSell always reports false.
func (HoldUntilMarked) ShouldSell(context.Context, domain.TradeEvent, domain.Holding) (domain.SellReason, bool) {
	return "", false
}
