package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"golang.org/x/sync/errgroup"

	"github.com/AV1080p/-solana-sniper-bot/internal/blockhash"
	"github.com/AV1080p/-solana-sniper-bot/internal/builder"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/landing"
	"github.com/AV1080p/-solana-sniper-bot/internal/platform/solrpc"
)

// RunMode starts the full sniping pipeline: the blockhash refresher, the
// state sweeper, the monitors, the trade engine, and finally the event
// feed. It blocks until the context is cancelled or a component fails, at
// which point every other component is cancelled too.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	log := a.logger.With(slog.String("mode", "run"))
	log.InfoContext(ctx, "starting sniper pipeline",
		slog.Float64("buy_sol", a.cfg.Trade.BuyAmountSOL),
		slog.Uint64("buy_slippage_bps", a.cfg.Trade.BuySlippageBps),
		slog.Float64("min_liquidity_sol", a.cfg.Trade.MinLiquiditySOL),
		slog.Bool("durable_nonce", a.cfg.Nonce.Enabled),
	)

	a.reportBalances(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Hashes.Run(ctx) })
	g.Go(func() error { return deps.Sweeper.Run(ctx) })
	g.Go(func() error { return deps.Tasks.Run(ctx) })
	g.Go(func() error { return deps.MemWatch.Run(ctx) })
	g.Go(func() error { return deps.Sniper.Run(ctx) })
	g.Go(func() error { return deps.Feed.Run(ctx) })
	return g.Wait()
}

// WrapMode converts the configured amount of SOL into wrapped SOL in the
// wallet's associated token account, creating the account if needed.
func (a *App) WrapMode(ctx context.Context, deps *Dependencies) error {
	log := a.logger.With(slog.String("mode", "wrap"))
	lamports := uint64(a.cfg.Trade.WrapAmountSOL * lamportsPerSOL)
	log.Info("wrapping SOL", slog.Float64("amount_sol", a.cfg.Trade.WrapAmountSOL))

	ixs, err := builder.WrapInstructions(deps.Wallet.PublicKey(), lamports)
	if err != nil {
		return fmt.Errorf("app: wrap: %w", err)
	}
	receipt, err := a.landDirect(ctx, deps, ixs)
	if err != nil {
		return fmt.Errorf("app: wrap: %w", err)
	}
	log.Info("wrap submitted", slog.String("signature", receipt.Signature))
	return nil
}

// UnwrapMode closes the wallet's wrapped-SOL account, releasing its
// entire balance back to native SOL. It is an error if no wrapped-SOL
// account exists.
func (a *App) UnwrapMode(ctx context.Context, deps *Dependencies) error {
	owner := deps.Wallet.PublicKey()
	log := a.logger.With(slog.String("mode", "unwrap"))

	ata, _, err := solana.FindAssociatedTokenAddress(owner, solana.WrappedSol)
	if err != nil {
		return fmt.Errorf("app: unwrap: derive token account: %w", err)
	}
	accounts, err := deps.Pool.Accounts(ctx, ata)
	if err != nil {
		return fmt.Errorf("app: unwrap: %w", err)
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return fmt.Errorf("app: unwrap: wallet %s has no wrapped SOL account", owner)
	}
	var balance float64
	if amount, ok := solrpc.TokenAmount(accounts[0].Data.GetBinary()); ok {
		balance = float64(amount) / lamportsPerSOL
	}
	log.Info("unwrapping", slog.String("account", ata.String()), slog.Float64("wsol", balance))

	ix, err := builder.UnwrapInstruction(owner)
	if err != nil {
		return fmt.Errorf("app: unwrap: %w", err)
	}
	receipt, err := a.landDirect(ctx, deps, []solana.Instruction{ix})
	if err != nil {
		return fmt.Errorf("app: unwrap: %w", err)
	}
	log.Info("unwrap submitted", slog.String("signature", receipt.Signature))
	return nil
}

// SellMode liquidates every token balance the wallet holds through the
// aggregator, one swap at a time. Wrapped SOL and empty accounts are
// skipped. Failures are reported at the end rather than aborting the
// sweep, so one bad route never strands the rest of the inventory.
func (a *App) SellMode(ctx context.Context, deps *Dependencies) error {
	log := a.logger.With(slog.String("mode", "sell"))

	accounts, err := collectTokenAccounts(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: sell: %w", err)
	}
	var toSell []solrpc.TokenAccountInfo
	for _, acc := range accounts {
		if acc.Mint.Equals(solana.WrappedSol) || acc.Amount == 0 {
			continue
		}
		toSell = append(toSell, acc)
	}
	if len(toSell) == 0 {
		log.Info("no token balances to sell")
		return nil
	}
	log.Info("selling all holdings", slog.Int("tokens", len(toSell)))

	var failed int
	for i, acc := range toSell {
		sig, err := deps.Swapper.SellToSOL(ctx, acc.Mint, acc.Amount, 0)
		if err != nil {
			failed++
			log.Error("sell failed",
				slog.String("mint", acc.Mint.String()),
				slog.String("error", err.Error()),
			)
		} else {
			log.Info("sell submitted",
				slog.String("mint", acc.Mint.String()),
				slog.String("signature", sig.String()),
			)
		}
		// Sequential with a gap between swaps, to stay inside the
		// aggregator's request rate.
		if i < len(toSell)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	log.Info("sell sweep complete",
		slog.Int("sold", len(toSell)-failed),
		slog.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("app: sell: %d of %d tokens failed", failed, len(toSell))
	}
	return nil
}

// CloseMode closes the wallet's token accounts to reclaim their rent.
// A wrapped-SOL account holding a balance is skipped; closing it would
// unwrap funds the operator may still want parked.
func (a *App) CloseMode(ctx context.Context, deps *Dependencies) error {
	owner := deps.Wallet.PublicKey()
	log := a.logger.With(slog.String("mode", "close"))

	accounts, err := collectTokenAccounts(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: close: %w", err)
	}
	if len(accounts) == 0 {
		log.Info("no token accounts to close")
		return nil
	}

	var closed, failed int
	for _, acc := range accounts {
		if acc.Mint.Equals(solana.WrappedSol) && acc.Amount > 0 {
			log.Info("skipping wrapped SOL account with balance",
				slog.String("account", acc.Address.String()),
			)
			continue
		}
		ix, err := builder.CloseTokenAccountInstruction(acc.Address, owner)
		if err != nil {
			failed++
			log.Error("close instruction failed",
				slog.String("account", acc.Address.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, err := a.landDirect(ctx, deps, []solana.Instruction{ix}); err != nil {
			failed++
			log.Error("close failed",
				slog.String("account", acc.Address.String()),
				slog.String("mint", acc.Mint.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		closed++
		log.Info("close submitted",
			slog.String("account", acc.Address.String()),
			slog.String("mint", acc.Mint.String()),
		)
	}

	log.Info("close sweep complete", slog.Int("closed", closed), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("app: close: %d account(s) failed to close", failed)
	}
	return nil
}

// NonceMode creates and initializes a durable nonce account authorized by
// the wallet, then prints what the operator needs to enable durable
// signing. The fresh account must co-sign its own creation.
func (a *App) NonceMode(ctx context.Context, deps *Dependencies) error {
	owner := deps.Wallet.PublicKey()
	log := a.logger.With(slog.String("mode", "nonce"))

	nonceKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return fmt.Errorf("app: nonce: generate keypair: %w", err)
	}
	noncePub := nonceKey.PublicKey()

	rent, err := deps.Pool.RentExempt(ctx, solrpc.NonceAccountSize)
	if err != nil {
		return fmt.Errorf("app: nonce: rent exemption: %w", err)
	}

	ixs := []solana.Instruction{
		system.NewCreateAccountInstruction(rent, solrpc.NonceAccountSize, solana.SystemProgramID, owner, noncePub).Build(),
		system.NewInitializeNonceAccountInstruction(owner, noncePub, solana.SysVarRecentBlockHashesPubkey, solana.SysVarRentPubkey).Build(),
	}

	hash, err := deps.Pool.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("app: nonce: blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(ixs, hash, solana.TransactionPayer(owner))
	if err != nil {
		return fmt.Errorf("app: nonce: build transaction: %w", err)
	}

	walletSigner := deps.Wallet.Signer()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(noncePub) {
			return &nonceKey
		}
		return walletSigner(key)
	}); err != nil {
		return fmt.Errorf("app: nonce: sign: %w", err)
	}

	sig, err := deps.Pool.Send(ctx, tx)
	if err != nil {
		return fmt.Errorf("app: nonce: send: %w", err)
	}

	log.Info("nonce account created",
		slog.String("account", noncePub.String()),
		slog.String("signature", sig.String()),
	)
	log.Info(fmt.Sprintf("set NONCE_ACCOUNT=%s in the environment to enable durable sells", noncePub))
	log.Info("nonce account private key", slog.String("key", nonceKey.String()))
	return nil
}

// reportBalances logs the wallet's starting SOL and wrapped-SOL balances
// and pushes a startup notification. Lookup failures degrade to zeros;
// the pipeline starts either way.
func (a *App) reportBalances(ctx context.Context, deps *Dependencies) {
	owner := deps.Wallet.PublicKey()

	var solBalance float64
	if lamports, err := deps.Pool.Balance(ctx, owner); err != nil {
		a.logger.Warn("balance lookup failed", slog.String("error", err.Error()))
	} else {
		solBalance = float64(lamports) / lamportsPerSOL
	}

	var wsolBalance float64
	if ata, _, err := solana.FindAssociatedTokenAddress(owner, solana.WrappedSol); err == nil {
		if accounts, aerr := deps.Pool.Accounts(ctx, ata); aerr == nil && len(accounts) > 0 && accounts[0] != nil {
			if amount, ok := solrpc.TokenAmount(accounts[0].Data.GetBinary()); ok {
				wsolBalance = float64(amount) / lamportsPerSOL
			}
		}
	}

	price := deps.Prices.SOLPrice(ctx)
	total := solBalance + wsolBalance
	a.logger.Info("starting balance",
		slog.Float64("total_sol", total),
		slog.Float64("sol", solBalance),
		slog.Float64("wsol", wsolBalance),
		slog.Float64("sol_usd", price),
	)

	// The startup banner bypasses the event filter; a one-time liveness
	// signal should reach the operator whatever kinds they subscribed to.
	_ = deps.Notifier.NotifyAll(ctx, "🚀 SNIPER STARTED", fmt.Sprintf(
		"👛 Wallet: %s\n💰 Balance: %.6f SOL (wallet %.6f, wrapped %.6f)\n💵 SOL price: $%.2f",
		owner, total, solBalance, wsolBalance, price,
	))
}

// collectTokenAccounts lists the wallet's token accounts under both the
// classic and the 2022 token programs.
func collectTokenAccounts(ctx context.Context, deps *Dependencies) ([]solrpc.TokenAccountInfo, error) {
	var all []solrpc.TokenAccountInfo
	for _, program := range []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID} {
		accounts, err := deps.Pool.TokenAccounts(ctx, deps.Wallet.PublicKey(), program)
		if err != nil {
			return nil, fmt.Errorf("list token accounts for %s: %w", program, err)
		}
		all = append(all, accounts...)
	}
	return all, nil
}

// landDirect submits a one-off maintenance transaction through the direct
// RPC channel, retrying exactly once when the node rejects the blockhash.
func (a *App) landDirect(ctx context.Context, deps *Dependencies, ixs []solana.Instruction) (domain.Receipt, error) {
	opts := landing.Options{Channel: domain.ChannelDirect, HashMode: blockhash.ModeRecent}
	receipt, err := deps.Lander.Land(ctx, ixs, opts)
	if err != nil && isBlockhashNotFound(err) {
		a.logger.Warn("blockhash rejected, retrying once", slog.String("error", err.Error()))
		receipt, err = deps.Lander.Land(ctx, ixs, opts)
	}
	return receipt, err
}

func isBlockhashNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Blockhash not found") || strings.Contains(msg, "blockhash not found")
}
