// Package engine drives the trading loop. The sniper consumes decoded
// trade events, screens them against the token state, executes entries on
// the bonding curve and hands exits to the two-tier seller. Entry and exit
// policy are pluggable boundaries; the engine owns the mechanics, not the
// strategy.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/AV1080p/-solana-sniper-bot/internal/blockhash"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/landing"
	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

// Bonding-curve mints are created with six decimals.
const pumpTokenDecimals = 6

const defaultQueueSize = 512

// BuyBuilder assembles the bonding-curve buy leg for a launch.
type BuyBuilder interface {
	BuildBuy(ctx context.Context, mint, creator solana.PublicKey, virtualSol, virtualToken, lamportsIn, slippageBps uint64) ([]solana.Instruction, uint64, error)
}

// TokenSeller executes the exit for one held mint.
type TokenSeller interface {
	Sell(ctx context.Context, ev domain.TradeEvent) domain.SellResult
}

// BuyDecider is the entry-policy boundary. The loop applies its mechanical
// filters first; the decider only sees launches that already passed them.
type BuyDecider interface {
	ShouldBuy(ctx context.Context, ev domain.TradeEvent) bool
}

// SellDecider is the exit-policy boundary, consulted once per observed
// trade on a held mint.
type SellDecider interface {
	ShouldSell(ctx context.Context, ev domain.TradeEvent, held domain.Holding) (domain.SellReason, bool)
}

// TaskTracker registers long-running work so stuck operations can be
// spotted. The returned done must be called when the work finishes.
type TaskTracker interface {
	Track(description string) (done func())
}

// Alerter pushes trade summaries to the operator. Calls are made from the
// per-event goroutines, so implementations must be safe for concurrent use.
type Alerter interface {
	BuyExecuted(ctx context.Context, ev domain.TradeEvent, receipt domain.Receipt, bought domain.Holding)
	SellExecuted(ctx context.Context, ev domain.TradeEvent, result domain.SellResult)
	PoolTrade(ctx context.Context, ev domain.TradeEvent)
}

// Config carries the sniper's sizing and screening knobs.
type Config struct {
	// BuyLamports is the nominal entry size.
	BuyLamports    uint64
	BuySlippageBps uint64
	// MinLiquiditySOL skips launches whose native reserve side is dust.
	MinLiquiditySOL float64
	// DeadTokenTTL quarantines a mint after a manipulation signal.
	DeadTokenTTL time.Duration
	Channel      domain.Channel
	HashMode     blockhash.Mode
	// QueueSize bounds the event backlog between the feed and the loop.
	QueueSize int
}

// Sniper reads trade events from its queue, filters them, and dispatches
// one tracked goroutine per actionable event. Per-mint markers in the
// state store keep concurrent operations on the same mint from racing.
type Sniper struct {
	cfg    Config
	store  *state.Store
	builds BuyBuilder
	lander Lander
	seller TokenSeller
	buys   BuyDecider
	sells  SellDecider
	tasks  TaskTracker
	alerts Alerter
	logger *slog.Logger

	events  chan domain.TradeEvent
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewSniper creates a sniper with permissive default policies: every
// screened launch is bought and exits happen only via explicit markers.
// Real strategies replace the deciders at wiring time.
func NewSniper(
	cfg Config,
	store *state.Store,
	builds BuyBuilder,
	lander Lander,
	seller TokenSeller,
	logger *slog.Logger,
) *Sniper {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Channel == "" {
		cfg.Channel = domain.ChannelRelay
	}
	return &Sniper{
		cfg:    cfg,
		store:  store,
		builds: builds,
		lander: lander,
		seller: seller,
		buys:   BuyAll{},
		sells:  HoldUntilMarked{},
		logger: logger.With(slog.String("component", "sniper")),
		events: make(chan domain.TradeEvent, cfg.QueueSize),
	}
}

// SetDeciders replaces the entry and exit policies. Must be called before
// Run. A nil decider keeps the current one.
func (s *Sniper) SetDeciders(buys BuyDecider, sells SellDecider) {
	if buys != nil {
		s.buys = buys
	}
	if sells != nil {
		s.sells = sells
	}
}

// SetTaskTracker enables per-operation tracking. Must be called before Run.
func (s *Sniper) SetTaskTracker(tasks TaskTracker) {
	s.tasks = tasks
}

// SetAlerter enables operator notifications. Must be called before Run.
func (s *Sniper) SetAlerter(alerts Alerter) {
	s.alerts = alerts
}

// HandleTrade enqueues one decoded event for processing. It never blocks:
// when the queue is full the event is dropped and counted.
func (s *Sniper) HandleTrade(_ context.Context, ev domain.TradeEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event queue full, dropping",
			slog.String("mint", ev.Mint),
			slog.Uint64("dropped_total", s.dropped.Add(1)),
		)
	}
}

// Run processes events until the context is cancelled. Queued events left
// at shutdown are discarded; in-flight operations are waited for.
func (s *Sniper) Run(ctx context.Context) error {
	s.logger.Info("sniper started",
		slog.Uint64("buy_lamports", s.cfg.BuyLamports),
		slog.String("channel", string(s.cfg.Channel)),
		slog.Float64("min_liquidity_sol", s.cfg.MinLiquiditySOL),
	)
	defer s.logger.Info("sniper stopped")

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()

		case ev, ok := <-s.events:
			if !ok {
				s.wg.Wait()
				return nil
			}
			s.process(ctx, ev)
		}
	}
}

// process screens a single event and dispatches the matching operation.
func (s *Sniper) process(ctx context.Context, ev domain.TradeEvent) {
	log := s.logger.With(
		slog.String("mint", ev.Mint),
		slog.String("venue", string(ev.Venue)),
		slog.Uint64("slot", ev.Slot),
	)

	// 1. Manipulation screen: a buy and a sell in one transaction sends
	// the mint straight to the dead list.
	if ev.BuySellSameTx {
		s.store.MarkDead(ev.Mint, s.cfg.DeadTokenTTL)
		log.Warn("buy and sell in one transaction, quarantining mint")
		return
	}

	// 2. Held mints take the exit path whatever the venue.
	if held, ok := s.store.Holding(ev.Mint); ok {
		s.observeHeld(ctx, ev, held, log)
		return
	}

	// 3. Entries happen on the curve only; pooled venues are past the
	// launch window.
	if ev.Venue != domain.VenuePumpFun || !ev.IsBuy {
		return
	}

	// 4. Dead list.
	if s.store.IsDead(ev.Mint) {
		log.Debug("mint on dead list, skipping")
		return
	}

	// 5. Liquidity floor.
	if ev.Liquidity < s.cfg.MinLiquiditySOL {
		log.Debug("liquidity below floor, skipping",
			slog.Float64("liquidity_sol", ev.Liquidity),
		)
		return
	}

	// 6. Entry policy boundary.
	if !s.buys.ShouldBuy(ctx, ev) {
		log.Debug("entry policy declined")
		return
	}

	// 7. One buy per mint; the marker holds until the attempt resolves.
	if !s.store.MarkPendingBuy(ev.Mint) {
		log.Debug("buy already underway, skipping")
		return
	}

	s.spawn(ctx, "buy "+ev.Mint, func(ctx context.Context) {
		s.executeBuy(ctx, ev, log)
	})
}

// observeHeld records the trade against the position and triggers the exit
// when a marker is already waiting or the policy schedules one.
func (s *Sniper) observeHeld(ctx context.Context, ev domain.TradeEvent, held domain.Holding, log *slog.Logger) {
	s.store.RecordPrice(ev.Mint, ev.PostPrice, time.Now())

	if s.alerts != nil && ev.Venue == domain.VenuePumpSwap {
		s.alerts.PoolTrade(ctx, ev)
	}

	// An idle marker placed earlier (operator or policy) executes on the
	// next observed trade of the mint.
	if pending, ok := s.store.PendingSell(ev.Mint); ok {
		if pending.InFlight {
			return
		}
		s.spawn(ctx, "sell "+ev.Mint, func(ctx context.Context) {
			s.executeSell(ctx, ev, log)
		})
		return
	}

	reason, exit := s.sells.ShouldSell(ctx, ev, held)
	if !exit {
		return
	}
	if err := s.store.MarkPendingSell(ev.Mint, reason); err != nil {
		log.Debug("sell already in flight, skipping")
		return
	}
	log.Info("exit scheduled", slog.String("reason", string(reason)))
	s.spawn(ctx, "sell "+ev.Mint, func(ctx context.Context) {
		s.executeSell(ctx, ev, log)
	})
}

// executeBuy builds and lands the entry, then records the new position.
func (s *Sniper) executeBuy(ctx context.Context, ev domain.TradeEvent, log *slog.Logger) {
	defer s.store.ClearPendingBuy(ev.Mint)

	mint, err := solana.PublicKeyFromBase58(ev.Mint)
	if err != nil {
		log.Error("malformed mint, cannot buy", slog.String("error", err.Error()))
		return
	}
	var creator solana.PublicKey
	if ev.Creator != "" {
		if creator, err = solana.PublicKeyFromBase58(ev.Creator); err != nil {
			log.Error("malformed creator, cannot buy", slog.String("error", err.Error()))
			return
		}
	}

	ixs, tokensOut, err := s.builds.BuildBuy(ctx, mint, creator, ev.VirtualSol, ev.VirtualToken, s.cfg.BuyLamports, s.cfg.BuySlippageBps)
	if err != nil {
		log.Warn("buy build failed", slog.String("error", err.Error()))
		return
	}

	receipt, err := s.lander.Land(ctx, ixs, landing.Options{
		Channel:  s.cfg.Channel,
		HashMode: s.cfg.HashMode,
	})
	if err != nil {
		log.Error("buy landing failed", slog.String("error", err.Error()))
		return
	}

	bought := domain.HoldingFromRaw(ev.Mint, tokensOut, pumpTokenDecimals)
	s.store.SetHolding(bought)
	s.store.RecordPrice(ev.Mint, ev.PostPrice, time.Now())

	log.Info("buy submitted",
		slog.String("signature", receipt.Signature),
		slog.String("channel", string(receipt.Channel)),
		slog.String("tokens", bought.Amount.String()),
	)
	if s.alerts != nil {
		s.alerts.BuyExecuted(ctx, ev, receipt, bought)
	}
}

// executeSell runs the two-tier exit and reports its outcome.
func (s *Sniper) executeSell(ctx context.Context, ev domain.TradeEvent, log *slog.Logger) {
	res := s.seller.Sell(ctx, ev)
	if errors.Is(res.Err, domain.ErrSellInFlight) || errors.Is(res.Err, domain.ErrNoPendingSell) {
		// Lost the claim race; the winning goroutine reports.
		return
	}
	if res.Success {
		log.Info("position exited",
			slog.String("signature", res.Signature),
			slog.Bool("used_fallback", res.UsedFallback),
			slog.Int("attempts", res.Attempts),
		)
	} else {
		log.Error("exit failed, marker kept",
			slog.String("error", res.Err.Error()),
			slog.Int("attempts", res.Attempts),
		)
	}
	if s.alerts != nil {
		s.alerts.SellExecuted(ctx, ev, res)
	}
}

// spawn runs fn in its own goroutine, registered with the task tracker and
// the shutdown wait group.
func (s *Sniper) spawn(ctx context.Context, description string, fn func(context.Context)) {
	var done func()
	if s.tasks != nil {
		done = s.tasks.Track(description)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if done != nil {
			defer done()
		}
		fn(ctx)
	}()
}
