package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

// PriceSource supplies the SOL/USD spot used to annotate SOL amounts.
type PriceSource interface {
	SOLPrice(ctx context.Context) float64
}

// TradeAlerter turns executed orders into operator messages. The engine
// invokes it from per-event goroutines, so delivery latency never stalls
// the feed; dispatch errors are logged by the notifier and dropped here.
type TradeAlerter struct {
	notifier *Notifier
	prices   PriceSource
	logger   *slog.Logger
}

// NewTradeAlerter wires trade notifications onto an existing notifier.
// prices may be nil, in which case messages omit USD valuations.
func NewTradeAlerter(n *Notifier, prices PriceSource, logger *slog.Logger) *TradeAlerter {
	return &TradeAlerter{
		notifier: n,
		prices:   prices,
		logger:   logger.With(slog.String("component", "alerts")),
	}
}

func (a *TradeAlerter) solUSD(ctx context.Context) float64 {
	if a.prices == nil {
		return 0
	}
	return a.prices.SOLPrice(ctx)
}

// BuyExecuted reports a submitted entry. Spent is estimated from the fill
// price and the expected token quantity; the receipt only proves channel
// acceptance, not the on-chain fill.
func (a *TradeAlerter) BuyExecuted(ctx context.Context, ev domain.TradeEvent, receipt domain.Receipt, bought domain.Holding) {
	_ = a.notifier.Notify(ctx, EventBuy, "🟢 BUY ORDER EXECUTED", buyBody(ev, receipt, bought, a.solUSD(ctx)))
}

// SellExecuted reports the outcome of an exit, including failures so the
// operator knows a marker is still waiting.
func (a *TradeAlerter) SellExecuted(ctx context.Context, ev domain.TradeEvent, result domain.SellResult) {
	if !result.Success {
		_ = a.notifier.Notify(ctx, EventSell, "⚠️ SELL FAILED", sellFailureBody(result))
		return
	}
	_ = a.notifier.Notify(ctx, EventSell, "🔴 SELL ORDER EXECUTED", sellBody(ev, result))
}

// PoolTrade reports an observed trade on a token the bot holds. Filtered
// out unless the operator opts into the pool event kind.
func (a *TradeAlerter) PoolTrade(ctx context.Context, ev domain.TradeEvent) {
	_ = a.notifier.Notify(ctx, EventPool, "💧 POOL TRADE", poolBody(ev, a.solUSD(ctx)))
}

// venueBadge maps a venue to its emoji and display name.
func venueBadge(v domain.Venue) (emoji, label string) {
	switch v {
	case domain.VenuePumpFun:
		return "🚀", "PumpFun"
	case domain.VenuePumpSwap:
		return "💧", "PumpSwap"
	default:
		return "🔗", string(v)
	}
}

func buyBody(ev domain.TradeEvent, receipt domain.Receipt, bought domain.Holding, solUSD float64) string {
	emoji, label := venueBadge(ev.Venue)
	tokens, _ := bought.Amount.Float64()
	spent := ev.PostPrice * tokens
	return fmt.Sprintf(
		"🪙 Mint: %s\n%s Protocol: %s\n💵 Spent: %.6f SOL%s\n💎 Price: %.12f SOL/token\n📊 Amount: %.6f tokens\n📝 Reason: launch snipe\n🔗 Tx: %s",
		ev.Mint, emoji, label, spent, usdSuffix(spent, solUSD), ev.PostPrice, tokens, receipt.Signature,
	)
}

// usdSuffix renders " (≈$x.xx)" for a SOL amount, or nothing when no
// spot price is available.
func usdSuffix(sol, solUSD float64) string {
	if solUSD <= 0 {
		return ""
	}
	return fmt.Sprintf(" (≈$%.2f)", sol*solUSD)
}

func sellBody(ev domain.TradeEvent, result domain.SellResult) string {
	emoji, label := venueBadge(ev.Venue)
	body := fmt.Sprintf(
		"🪙 Mint: %s\n%s Protocol: %s\n💎 Price: %.12f SOL/token\n📝 Reason: %s\n🔗 Tx: %s",
		result.Mint, emoji, label, ev.PostPrice, result.Reason, result.Signature,
	)
	if result.UsedFallback {
		body += "\n🔁 Channel: aggregator fallback"
	}
	return body
}

func sellFailureBody(result domain.SellResult) string {
	return fmt.Sprintf(
		"🪙 Mint: %s\n📝 Reason: %s\n📊 Attempts: %d\n❗ Error: %v",
		result.Mint, result.Reason, result.Attempts, result.Err,
	)
}

func poolBody(ev domain.TradeEvent, solUSD float64) string {
	side := "🔴 Sell"
	if ev.IsBuy {
		side = "🟢 Buy"
	}
	sol := math.Abs(ev.SolChange)
	return fmt.Sprintf(
		"🪙 Mint: %s\n%s of %.6f SOL%s\n💎 Price: %.12f SOL/token",
		ev.Mint, side, sol, usdSuffix(sol, solUSD), ev.PostPrice,
	)
}
