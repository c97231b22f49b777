package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/AV1080p/-solana-sniper-bot/internal/blockhash"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/landing"
	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

// SellBuilder assembles the bonding-curve sell leg and resolves how many
// raw token units an order amounts to.
type SellBuilder interface {
	BuildSell(ctx context.Context, mint, creator solana.PublicKey, order domain.SwapOrder) ([]solana.Instruction, uint64, error)
	ResolveSellQuantity(ctx context.Context, mint solana.PublicKey, order domain.SwapOrder) (uint64, error)
}

// Lander signs an instruction list and submits it through a delivery
// channel, returning as soon as the channel accepts it for broadcast.
type Lander interface {
	Land(ctx context.Context, ixs []solana.Instruction, opts landing.Options) (domain.Receipt, error)
}

// FallbackSwapper routes a token-to-native swap through an external
// aggregator that builds and broadcasts its own transaction.
type FallbackSwapper interface {
	SellToSOL(ctx context.Context, mint solana.PublicKey, amount, slippageBps uint64) (solana.Signature, error)
}

// Seller runs the two-tier exit for held mints: one curve sell through the
// configured channel (relay unless overridden), then one aggregator-routed
// attempt if the primary fails in any way. Exits triggered by pooled-venue
// events skip the curve tier, the mint has migrated and its curve is
// closed. There is no retry loop on either tier; repeated submissions of a
// time-sensitive sell risk racing the same state change.
type Seller struct {
	store    *state.Store
	builds   SellBuilder
	lander   Lander
	fallback FallbackSwapper
	land     landing.Options
	logger   *slog.Logger
}

// NewSeller wires the exit path. The fallback swapper may be nil, in which
// case a primary failure is terminal.
func NewSeller(store *state.Store, builds SellBuilder, lander Lander, fallback FallbackSwapper, logger *slog.Logger) *Seller {
	return &Seller{
		store:    store,
		builds:   builds,
		lander:   lander,
		fallback: fallback,
		land: landing.Options{
			Channel:  domain.ChannelRelay,
			HashMode: blockhash.ModeRecent,
		},
		logger: logger.With(slog.String("component", "seller")),
	}
}

// SetLanding overrides how tier-one sells are delivered: which channel
// carries them and whether they anchor on a recent blockhash or the
// durable nonce. Call before the seller handles traffic.
func (s *Seller) SetLanding(opts landing.Options) {
	if opts.Channel != "" {
		s.land.Channel = opts.Channel
	}
	s.land.HashMode = opts.HashMode
}

// Sell liquidates the full holding for the event's mint. The pending-sell
// marker is the precondition: Sell claims it before any work and at most
// one claim per mint succeeds at a time. On success the marker and the
// holding are removed. On failure the claim is released but the marker
// stays, so the decision layer can observe the terminal state and the
// result retains the last underlying error.
func (s *Seller) Sell(ctx context.Context, ev domain.TradeEvent) domain.SellResult {
	res := domain.SellResult{Mint: ev.Mint}

	claim, err := s.store.ClaimPendingSell(ev.Mint)
	if err != nil {
		res.Err = fmt.Errorf("engine: sell %s: %w", ev.Mint, err)
		return res
	}
	res.Reason = claim.Reason

	log := s.logger.With(
		slog.String("mint", ev.Mint),
		slog.String("reason", string(claim.Reason)),
	)

	mint, err := solana.PublicKeyFromBase58(ev.Mint)
	if err != nil {
		s.store.ReleasePendingSell(ev.Mint)
		res.Err = fmt.Errorf("engine: sell %s: parse mint: %w", ev.Mint, err)
		return res
	}

	// The creator only feeds the curve tier's vault derivation, so parsing
	// is best effort.
	var creator solana.PublicKey
	if ev.Creator != "" {
		if parsed, perr := solana.PublicKeyFromBase58(ev.Creator); perr == nil {
			creator = parsed
		}
	}

	order := domain.SwapOrder{
		Mode:          domain.AmountModePercent,
		Amount:        decimal.NewFromInt(100),
		CorrelationID: ev.Signature,
	}

	// Tier one: curve sell, single attempt. Pooled events mean the mint
	// has migrated off the curve, so their exits start at tier two.
	var quantity uint64
	if ev.Venue == domain.VenuePumpFun {
		res.Attempts = 1
		ixs, built, err := s.builds.BuildSell(ctx, mint, creator, order)
		if err == nil {
			quantity = built
			receipt, landErr := s.lander.Land(ctx, ixs, s.land)
			if landErr == nil {
				s.settle(ev.Mint)
				res.Success = true
				res.Signature = receipt.Signature
				log.Info("sell landed",
					slog.String("signature", receipt.Signature),
					slog.Uint64("quantity", quantity),
				)
				return res
			}
			err = landErr
		}

		if s.fallback == nil {
			s.store.ReleasePendingSell(ev.Mint)
			res.Err = fmt.Errorf("engine: sell %s: %w", ev.Mint, err)
			log.Error("sell failed, no fallback configured", slog.String("error", err.Error()))
			return res
		}
		log.Warn("curve sell failed, routing through aggregator", slog.String("error", err.Error()))
	} else {
		if s.fallback == nil {
			s.store.ReleasePendingSell(ev.Mint)
			res.Err = fmt.Errorf("engine: sell %s: migrated mint needs the aggregator: %w", ev.Mint, domain.ErrNotConfigured)
			log.Error("sell failed, no aggregator configured for a migrated mint")
			return res
		}
		log.Debug("pooled venue, exiting through the aggregator")
	}

	// Tier two: aggregator swap, single attempt.
	res.Attempts++
	res.UsedFallback = true
	if quantity == 0 {
		var err error
		quantity, err = s.builds.ResolveSellQuantity(ctx, mint, order)
		if err != nil {
			s.store.ReleasePendingSell(ev.Mint)
			res.Err = fmt.Errorf("engine: sell %s: resolve fallback quantity: %w", ev.Mint, err)
			log.Error("aggregator sell impossible", slog.String("error", err.Error()))
			return res
		}
	}
	sig, err := s.fallback.SellToSOL(ctx, mint, quantity, 0)
	if err != nil {
		s.store.ReleasePendingSell(ev.Mint)
		res.Err = fmt.Errorf("engine: sell %s: aggregator: %w", ev.Mint, err)
		log.Error("aggregator sell failed", slog.String("error", err.Error()))
		return res
	}

	s.settle(ev.Mint)
	res.Success = true
	res.Signature = sig.String()
	log.Info("aggregator sell landed",
		slog.String("signature", res.Signature),
		slog.Uint64("quantity", quantity),
	)
	return res
}

// settle removes the state an exit leaves behind once a channel has
// accepted the transaction.
func (s *Seller) settle(mint string) {
	s.store.ReleaseAfterSell(mint)
}
