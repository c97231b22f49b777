// Package builder turns trade decisions into venue instruction lists. It
// owns the account layout of the bonding curve program's buy and sell
// instructions; anchoring, compute budget, and tips are the landing layer's
// job.
package builder

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/AV1080p/-solana-sniper-bot/internal/curve"
	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

// sellMinSolOutput is the proceeds threshold encoded into sells. Exits are
// scheduled because holding is judged worse than any price, so the program
// floor of one lamport is used rather than a slippage-derived bound.
const sellMinSolOutput uint64 = 1

// BalanceReader answers on-chain token balance queries during sell quantity
// resolution.
type BalanceReader interface {
	TokenBalance(ctx context.Context, account solana.PublicKey) (amount uint64, decimals uint8, err error)
}

// Builder assembles swap instructions for one wallet.
type Builder struct {
	owner    solana.PublicKey
	store    *state.Store
	balances BalanceReader
	logger   *slog.Logger
}

// New returns a Builder for the given wallet.
func New(owner solana.PublicKey, store *state.Store, balances BalanceReader, logger *slog.Logger) *Builder {
	return &Builder{
		owner:    owner,
		store:    store,
		balances: balances,
		logger:   logger.With(slog.String("component", "builder")),
	}
}

// BuildBuy assembles the instruction list for entering a position:
// an idempotent token account create followed by the curve buy. The
// expected token output is derived from the event's virtual reserves and
// returned for position bookkeeping. The caller's slippage widens the
// authorized SOL spend above lamportsIn.
func (b *Builder) BuildBuy(ctx context.Context, mint, creator solana.PublicKey, virtualSol, virtualToken, lamportsIn, slippageBps uint64) ([]solana.Instruction, uint64, error) {
	if creator.IsZero() {
		return nil, 0, fmt.Errorf("builder: buy %s: %w", mint, domain.ErrNoCreator)
	}
	if lamportsIn == 0 {
		return nil, 0, fmt.Errorf("builder: buy %s: %w", mint, domain.ErrZeroAmount)
	}

	tokensOut := curve.BuyOut(lamportsIn, virtualSol, virtualToken)
	if tokensOut == 0 {
		return nil, 0, fmt.Errorf("builder: buy %s: reserves produce no output: %w", mint, domain.ErrZeroAmount)
	}

	if slippageBps > slippageCapBps {
		slippageBps = slippageCapBps
	}
	maxSolCost := lamportsIn * (10_000 + slippageBps) / 10_000

	accounts, err := b.buyAccounts(mint, creator)
	if err != nil {
		return nil, 0, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(b.owner, mint)
	if err != nil {
		return nil, 0, fmt.Errorf("builder: buy %s: derive token account: %w", mint, err)
	}

	ixs := []solana.Instruction{
		createIdempotentATAInstruction(b.owner, b.owner, ata, mint),
		solana.NewInstruction(PumpProgramID, accounts, swapData(buyDiscriminator, tokensOut, maxSolCost)),
	}

	b.logger.Debug("buy instructions built",
		slog.String("mint", mint.String()),
		slog.Uint64("lamports_in", lamportsIn),
		slog.Uint64("tokens_out", tokensOut),
		slog.Uint64("max_sol_cost", maxSolCost),
	)
	return ixs, tokensOut, nil
}

// BuildSell assembles the curve sell for the order, resolving the token
// quantity from held state and, failing that, the chain. The resolved raw
// quantity is returned alongside the instructions. A pending-sell marker
// must exist for the mint; a build against a withdrawn intent fails before
// any derivation work.
func (b *Builder) BuildSell(ctx context.Context, mint, creator solana.PublicKey, order domain.SwapOrder) ([]solana.Instruction, uint64, error) {
	if _, ok := b.store.PendingSell(mint.String()); !ok {
		return nil, 0, fmt.Errorf("builder: sell %s: %w", mint, domain.ErrNoPendingSell)
	}
	if creator.IsZero() {
		return nil, 0, fmt.Errorf("builder: sell %s: %w", mint, domain.ErrNoCreator)
	}

	quantity, err := b.ResolveSellQuantity(ctx, mint, order)
	if err != nil {
		return nil, 0, err
	}

	accounts, err := b.sellAccounts(mint, creator)
	if err != nil {
		return nil, 0, err
	}

	ix := solana.NewInstruction(PumpProgramID, accounts, swapData(sellDiscriminator, quantity, sellMinSolOutput))

	b.logger.Debug("sell instruction built",
		slog.String("mint", mint.String()),
		slog.Uint64("quantity", quantity),
		slog.String("mode", string(order.Mode)),
		slog.String("correlation_id", order.CorrelationID),
	)
	return []solana.Instruction{ix}, quantity, nil
}

// ResolveSellQuantity turns the order's amount into a raw token quantity.
// The holding cache is consulted first, then the chain (writing the answer
// back), then the cache once more in case a concurrent fill landed between
// the two reads.
func (b *Builder) ResolveSellQuantity(ctx context.Context, mint solana.PublicKey, order domain.SwapOrder) (uint64, error) {
	holding, err := b.heldBalance(ctx, mint)
	if err != nil {
		return 0, err
	}

	var quantity uint64
	switch order.Mode {
	case domain.AmountModePercent:
		q := holding.Amount.
			Mul(order.Amount).
			Div(decimal.NewFromInt(100)).
			Shift(int32(holding.Decimals)).
			Floor()
		if !q.IsPositive() {
			return 0, fmt.Errorf("builder: sell %s: %s%% of %s tokens: %w", mint, order.Amount, holding.Amount, domain.ErrZeroAmount)
		}
		quantity = uint64(q.IntPart())
	case domain.AmountModeExact:
		q := order.Amount.Shift(int32(holding.Decimals)).Floor()
		if !q.IsPositive() {
			return 0, fmt.Errorf("builder: sell %s: quantity %s: %w", mint, order.Amount, domain.ErrZeroAmount)
		}
		quantity = uint64(q.IntPart())
	default:
		return 0, fmt.Errorf("builder: sell %s: unknown amount mode %q", mint, order.Mode)
	}

	if held := holding.RawAmount(); quantity > held {
		quantity = held
	}
	return quantity, nil
}

// heldBalance finds how much of the mint the wallet holds.
func (b *Builder) heldBalance(ctx context.Context, mint solana.PublicKey) (domain.Holding, error) {
	if h, ok := b.store.Holding(mint.String()); ok && h.Amount.IsPositive() {
		return h, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(b.owner, mint)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("builder: sell %s: derive token account: %w", mint, err)
	}
	amount, decimals, err := b.balances.TokenBalance(ctx, ata)
	if err == nil && amount > 0 {
		h := domain.HoldingFromRaw(mint.String(), amount, decimals)
		b.store.SetHolding(h)
		return h, nil
	}
	if err != nil {
		b.logger.Debug("token balance lookup failed, rechecking cache",
			slog.String("mint", mint.String()),
			slog.String("error", err.Error()),
		)
	}

	// A buy confirmation may have raced the lookup.
	if h, ok := b.store.Holding(mint.String()); ok && h.Amount.IsPositive() {
		return h, nil
	}
	return domain.Holding{}, fmt.Errorf("builder: sell %s: %w", mint, domain.ErrHoldingNotFound)
}

// buyAccounts lays out the sixteen accounts of the buy instruction in
// program order.
func (b *Builder) buyAccounts(mint, creator solana.PublicKey) (solana.AccountMetaSlice, error) {
	shared, err := b.curveAccounts(mint, creator)
	if err != nil {
		return nil, err
	}
	globalVolume, err := GlobalVolumeAccumulator()
	if err != nil {
		return nil, err
	}
	userVolume, err := UserVolumeAccumulator(b.owner)
	if err != nil {
		return nil, err
	}

	return solana.AccountMetaSlice{
		solana.NewAccountMeta(pumpGlobal, false, false),
		solana.NewAccountMeta(pumpFeeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(shared.bondingCurve, true, false),
		solana.NewAccountMeta(shared.curveTokenAccount, true, false),
		solana.NewAccountMeta(shared.ownerTokenAccount, true, false),
		solana.NewAccountMeta(b.owner, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(shared.creatorVault, true, false),
		solana.NewAccountMeta(pumpEventAuthority, false, false),
		solana.NewAccountMeta(PumpProgramID, false, false),
		solana.NewAccountMeta(globalVolume, true, false),
		solana.NewAccountMeta(userVolume, true, false),
		solana.NewAccountMeta(pumpFeeConfig, false, false),
		solana.NewAccountMeta(pumpFeeProgram, false, false),
	}, nil
}

// sellAccounts lays out the fourteen accounts of the sell instruction in
// program order. Unlike the buy, the creator vault follows the system
// program and the volume accumulators are absent.
func (b *Builder) sellAccounts(mint, creator solana.PublicKey) (solana.AccountMetaSlice, error) {
	shared, err := b.curveAccounts(mint, creator)
	if err != nil {
		return nil, err
	}

	return solana.AccountMetaSlice{
		solana.NewAccountMeta(pumpGlobal, false, false),
		solana.NewAccountMeta(pumpFeeRecipient, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(shared.bondingCurve, true, false),
		solana.NewAccountMeta(shared.curveTokenAccount, true, false),
		solana.NewAccountMeta(shared.ownerTokenAccount, true, false),
		solana.NewAccountMeta(b.owner, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(shared.creatorVault, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(pumpEventAuthority, false, false),
		solana.NewAccountMeta(PumpProgramID, false, false),
		solana.NewAccountMeta(pumpFeeConfig, false, false),
		solana.NewAccountMeta(pumpFeeProgram, false, false),
	}, nil
}

type curveAccountSet struct {
	bondingCurve      solana.PublicKey
	curveTokenAccount solana.PublicKey
	ownerTokenAccount solana.PublicKey
	creatorVault      solana.PublicKey
}

func (b *Builder) curveAccounts(mint, creator solana.PublicKey) (curveAccountSet, error) {
	bondingCurve, err := BondingCurve(mint)
	if err != nil {
		return curveAccountSet{}, err
	}
	curveATA, _, err := solana.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return curveAccountSet{}, fmt.Errorf("builder: derive curve token account for %s: %w", mint, err)
	}
	ownerATA, _, err := solana.FindAssociatedTokenAddress(b.owner, mint)
	if err != nil {
		return curveAccountSet{}, fmt.Errorf("builder: derive owner token account for %s: %w", mint, err)
	}
	vault, err := CreatorVault(creator)
	if err != nil {
		return curveAccountSet{}, err
	}
	return curveAccountSet{
		bondingCurve:      bondingCurve,
		curveTokenAccount: curveATA,
		ownerTokenAccount: ownerATA,
		creatorVault:      vault,
	}, nil
}

// swapData encodes the 24-byte instruction payload: discriminator, amount,
// and the cost or proceeds bound, all little-endian.
func swapData(discriminator, amount, limit uint64) []byte {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], limit)
	return data
}
