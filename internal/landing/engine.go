// Package landing takes finished instruction lists and puts them on chain:
// it prepends the anchoring and compute budget preamble, appends the relay
// tip when one is due, signs, and hands the transaction to the selected
// delivery channel.
package landing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/AV1080p/-solana-sniper-bot/internal/blockhash"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/wallet"
)

// Broadcaster is one delivery channel for a signed transaction.
type Broadcaster interface {
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// TipProvider supplies the tip destination and amount for channels that
// require one. The relay client implements it.
type TipProvider interface {
	TipAccount() solana.PublicKey
	TipLamports() uint64
}

// Config bounds every transaction the engine assembles.
type Config struct {
	UnitLimit uint32 // compute unit ceiling
	UnitPrice uint64 // priority fee in micro-lamports per unit
}

// Options selects delivery for one landing attempt.
type Options struct {
	Channel  domain.Channel
	HashMode blockhash.Mode
}

// Engine signs and lands transactions for one wallet.
type Engine struct {
	cfg    Config
	wallet *wallet.Wallet
	hashes *blockhash.Cache
	direct Broadcaster
	relay  Broadcaster
	tips   TipProvider
	logger *slog.Logger
}

// New wires a landing engine. relay and tips may be nil when no relay is
// configured; landing on the relay channel then fails with
// domain.ErrNotConfigured.
func New(cfg Config, w *wallet.Wallet, hashes *blockhash.Cache, direct, relay Broadcaster, tips TipProvider, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		wallet: w,
		hashes: hashes,
		direct: direct,
		relay:  relay,
		tips:   tips,
		logger: logger.With(slog.String("component", "landing")),
	}
}

// Land assembles, signs, and broadcasts the instructions on the selected
// channel. The receipt reports acceptance by the channel, not confirmation.
func (e *Engine) Land(ctx context.Context, ixs []solana.Instruction, opts Options) (domain.Receipt, error) {
	if len(ixs) == 0 {
		return domain.Receipt{}, fmt.Errorf("landing: %w", domain.ErrEmptyInstructions)
	}

	channel, err := e.broadcaster(opts.Channel)
	if err != nil {
		return domain.Receipt{}, err
	}

	assembled, err := e.assemble(ixs, opts)
	if err != nil {
		return domain.Receipt{}, err
	}

	hash, err := e.hashes.Hash(ctx, opts.HashMode)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("landing: %w: %v", domain.ErrNoBlockhash, err)
	}

	tx, err := solana.NewTransaction(
		assembled,
		hash,
		solana.TransactionPayer(e.wallet.PublicKey()),
	)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("landing: build transaction: %w", err)
	}
	if _, err := tx.Sign(e.wallet.Signer()); err != nil {
		return domain.Receipt{}, fmt.Errorf("landing: sign transaction: %w", err)
	}

	sig, err := channel.Send(ctx, tx)
	if err != nil {
		if opts.HashMode == blockhash.ModeDurable {
			// The advance may still have consumed the stored value.
			e.hashes.InvalidateDurable()
		}
		return domain.Receipt{}, fmt.Errorf("landing: %w: %v", domain.ErrChannelFailed, err)
	}
	if opts.HashMode == blockhash.ModeDurable {
		e.hashes.InvalidateDurable()
	}

	e.logger.Info("transaction submitted",
		slog.String("signature", sig.String()),
		slog.String("channel", string(opts.Channel)),
		slog.Int("instructions", len(assembled)),
	)
	return domain.Receipt{
		Signature:   sig.String(),
		Channel:     opts.Channel,
		SubmittedAt: time.Now(),
	}, nil
}

// assemble produces the final instruction order: nonce advance (durable
// mode only), compute unit limit, compute unit price, the caller's
// instructions, and the relay tip last.
func (e *Engine) assemble(ixs []solana.Instruction, opts Options) ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(ixs)+4)

	if opts.HashMode == blockhash.ModeDurable {
		nonceAccount := e.hashes.NonceAccount()
		if nonceAccount.IsZero() {
			return nil, fmt.Errorf("landing: durable mode: %w", domain.ErrNotConfigured)
		}
		out = append(out, system.NewAdvanceNonceAccountInstruction(
			nonceAccount,
			solana.SysVarRecentBlockHashesPubkey,
			e.wallet.PublicKey(),
		).Build())
	}

	limitIx, err := computebudget.NewSetComputeUnitLimitInstruction(e.cfg.UnitLimit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("landing: build unit limit: %w", err)
	}
	priceIx, err := computebudget.NewSetComputeUnitPriceInstruction(e.cfg.UnitPrice).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("landing: build unit price: %w", err)
	}
	out = append(out, limitIx, priceIx)
	out = append(out, ixs...)

	if opts.Channel == domain.ChannelRelay {
		if e.tips == nil {
			return nil, fmt.Errorf("landing: relay tip: %w", domain.ErrNotConfigured)
		}
		out = append(out, system.NewTransferInstruction(
			e.tips.TipLamports(),
			e.wallet.PublicKey(),
			e.tips.TipAccount(),
		).Build())
	}
	return out, nil
}

func (e *Engine) broadcaster(channel domain.Channel) (Broadcaster, error) {
	switch channel {
	case domain.ChannelDirect:
		return e.direct, nil
	case domain.ChannelRelay:
		if e.relay == nil {
			return nil, fmt.Errorf("landing: relay channel: %w", domain.ErrNotConfigured)
		}
		return e.relay, nil
	default:
		return nil, fmt.Errorf("landing: unknown channel %q", channel)
	}
}
