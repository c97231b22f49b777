package jupiter

import (
	"context"
	"fmt"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/AV1080p/-solana-sniper-bot/internal/wallet"
)

// Broadcaster lands the signed aggregator transaction.
type Broadcaster interface {
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Swapper drives a full quote, build, sign, and send round trip.
type Swapper struct {
	client      *Client
	wallet      *wallet.Wallet
	sender      Broadcaster
	slippageBps uint64
	logger      *slog.Logger
}

// NewSwapper wires the aggregator exit path. sellSlippageBps is used when a
// caller passes zero slippage; zero selects the package default.
func NewSwapper(client *Client, w *wallet.Wallet, sender Broadcaster, sellSlippageBps uint64, logger *slog.Logger) *Swapper {
	if sellSlippageBps == 0 {
		sellSlippageBps = DefaultSellSlippageBps
	}
	return &Swapper{
		client:      client,
		wallet:      w,
		sender:      sender,
		slippageBps: sellSlippageBps,
		logger:      logger.With(slog.String("component", "jupiter")),
	}
}

// SellToSOL swaps amount raw units of mint into SOL through the aggregator
// and broadcasts the result.
func (s *Swapper) SellToSOL(ctx context.Context, mint solana.PublicKey, amount, slippageBps uint64) (solana.Signature, error) {
	if slippageBps == 0 {
		slippageBps = s.slippageBps
	}

	quote, err := s.client.Quote(ctx, mint.String(), solana.WrappedSol.String(), amount, slippageBps)
	if err != nil {
		return solana.Signature{}, err
	}

	raw, err := s.client.Swap(ctx, quote, s.wallet.PublicKey().String())
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("jupiter: deserialize swap transaction: %w", err)
	}
	if _, err := tx.Sign(s.wallet.Signer()); err != nil {
		return solana.Signature{}, fmt.Errorf("jupiter: sign swap transaction: %w", err)
	}

	sig, err := s.sender.Send(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("jupiter: broadcast swap: %w", err)
	}

	s.logger.Info("aggregator swap submitted",
		slog.String("mint", mint.String()),
		slog.Uint64("amount", amount),
		slog.String("signature", sig.String()),
	)
	return sig, nil
}
