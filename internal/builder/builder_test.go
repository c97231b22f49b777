package builder

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
	"github.com/AV1080p/-solana-sniper-bot/internal/state"
)

type fakeBalances struct {
	amount   uint64
	decimals uint8
	err      error
	calls    int
}

func (f *fakeBalances) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, uint8, error) {
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.amount, f.decimals, nil
}

var (
	testMint    = solana.MustPublicKeyFromBase58("2ivzYvjnKqA4X3dVvPKr7bctGpbxwrXbbxm44TJCpump")
	testCreator = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
)

func newTestBuilder(t *testing.T, balances BalanceReader) (*Builder, *state.Store) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := state.NewStore(logger)
	owner := solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")
	return New(owner, store, balances, logger), store
}

func decodeSwapData(t *testing.T, ix solana.Instruction) (disc, amount, limit uint64) {
	t.Helper()
	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	if len(data) != 24 {
		t.Fatalf("data length = %d, want 24", len(data))
	}
	return binary.LittleEndian.Uint64(data[0:8]),
		binary.LittleEndian.Uint64(data[8:16]),
		binary.LittleEndian.Uint64(data[16:24])
}

func TestBuildBuyShape(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeBalances{})

	const (
		vSol     = 30_000_000_000
		vTok     = 1_073_000_000_000_000
		lamports = 1_000_000
		slippage = 700
	)
	ixs, tokensOut, err := b.BuildBuy(context.Background(), testMint, testCreator, vSol, vTok, lamports, slippage)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}
	if len(ixs) != 2 {
		t.Fatalf("instruction count = %d, want 2 (create account + buy)", len(ixs))
	}

	create := ixs[0]
	if !create.ProgramID().Equals(solana.SPLAssociatedTokenAccountProgramID) {
		t.Fatalf("first instruction program = %s, want associated token program", create.ProgramID())
	}
	createData, err := create.Data()
	if err != nil {
		t.Fatalf("create data: %v", err)
	}
	if len(createData) != 1 || createData[0] != 1 {
		t.Fatalf("create data = %v, want idempotent discriminant [1]", createData)
	}

	buy := ixs[1]
	if !buy.ProgramID().Equals(PumpProgramID) {
		t.Fatalf("buy program = %s, want curve program", buy.ProgramID())
	}
	accounts := buy.Accounts()
	if len(accounts) != 16 {
		t.Fatalf("buy account count = %d, want 16", len(accounts))
	}

	disc, amount, limit := decodeSwapData(t, buy)
	if disc != buyDiscriminator {
		t.Fatalf("discriminator = %d, want %d", disc, buyDiscriminator)
	}
	if amount != tokensOut {
		t.Fatalf("encoded amount = %d, want returned tokensOut %d", amount, tokensOut)
	}
	wantMax := uint64(lamports) * (10_000 + slippage) / 10_000
	if limit != wantMax {
		t.Fatalf("max sol cost = %d, want %d", limit, wantMax)
	}

	// Spot-check the fixed positions that the program verifies.
	if !accounts[0].PublicKey.Equals(pumpGlobal) || accounts[0].IsWritable {
		t.Fatal("account 0 must be the read-only global config")
	}
	if !accounts[1].PublicKey.Equals(pumpFeeRecipient) || !accounts[1].IsWritable {
		t.Fatal("account 1 must be the writable fee recipient")
	}
	if !accounts[2].PublicKey.Equals(testMint) {
		t.Fatal("account 2 must be the mint")
	}
	if !accounts[6].IsSigner || !accounts[6].IsWritable {
		t.Fatal("account 6 must be the writable signing owner")
	}
	if !accounts[7].PublicKey.Equals(solana.SystemProgramID) {
		t.Fatal("account 7 must be the system program")
	}
	if !accounts[8].PublicKey.Equals(solana.TokenProgramID) {
		t.Fatal("account 8 must be the token program")
	}
	if !accounts[11].PublicKey.Equals(PumpProgramID) {
		t.Fatal("account 11 must be the curve program")
	}
	if !accounts[12].IsWritable || !accounts[13].IsWritable {
		t.Fatal("volume accumulators at 12 and 13 must be writable")
	}
	if !accounts[14].PublicKey.Equals(pumpFeeConfig) || !accounts[15].PublicKey.Equals(pumpFeeProgram) {
		t.Fatal("accounts 14 and 15 must be the fee config and fee program")
	}
}

func TestBuildBuySlippageClamp(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeBalances{})

	const lamports = 1_000_000
	ixs, _, err := b.BuildBuy(context.Background(), testMint, testCreator, 30_000_000_000, 1_073_000_000_000_000, lamports, 999_999)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}
	_, _, limit := decodeSwapData(t, ixs[1])
	wantMax := uint64(lamports) * (10_000 + slippageCapBps) / 10_000
	if limit != wantMax {
		t.Fatalf("max sol cost = %d, want clamped %d", limit, wantMax)
	}
}

func TestBuildBuyRejections(t *testing.T) {
	b, _ := newTestBuilder(t, &fakeBalances{})
	ctx := context.Background()

	cases := []struct {
		name     string
		creator  solana.PublicKey
		vSol     uint64
		vTok     uint64
		lamports uint64
		wantErr  error
	}{
		{"zero creator", solana.PublicKey{}, 1, 1, 1_000_000, domain.ErrNoCreator},
		{"zero lamports", testCreator, 1, 1, 0, domain.ErrZeroAmount},
		{"zero reserves", testCreator, 0, 0, 1_000_000, domain.ErrZeroAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := b.BuildBuy(ctx, testMint, tc.creator, tc.vSol, tc.vTok, tc.lamports, 700)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestBuildSellRequiresMarker(t *testing.T) {
	b, store := newTestBuilder(t, &fakeBalances{})
	store.SetHolding(domain.HoldingFromRaw(testMint.String(), 1_500_000, 6))

	ixs, _, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
		Mode:   domain.AmountModePercent,
		Amount: decimal.NewFromInt(100),
	})
	if !errors.Is(err, domain.ErrNoPendingSell) {
		t.Fatalf("err = %v, want ErrNoPendingSell", err)
	}
	if len(ixs) != 0 {
		t.Fatalf("instructions = %d, want none for a withdrawn intent", len(ixs))
	}
}

func markSell(t *testing.T, store *state.Store) {
	t.Helper()
	if err := store.MarkPendingSell(testMint.String(), domain.SellReasonManual); err != nil {
		t.Fatalf("mark pending sell: %v", err)
	}
}

func TestBuildSellShape(t *testing.T) {
	b, store := newTestBuilder(t, &fakeBalances{})
	store.SetHolding(domain.HoldingFromRaw(testMint.String(), 1_500_000, 6))
	markSell(t, store)

	order := domain.SwapOrder{
		Mode:   domain.AmountModePercent,
		Amount: decimal.NewFromInt(100),
	}
	ixs, quantity, err := b.BuildSell(context.Background(), testMint, testCreator, order)
	if err != nil {
		t.Fatalf("BuildSell: %v", err)
	}
	if len(ixs) != 1 {
		t.Fatalf("instruction count = %d, want 1", len(ixs))
	}
	if quantity != 1_500_000 {
		t.Fatalf("quantity = %d, want full holding", quantity)
	}

	sell := ixs[0]
	accounts := sell.Accounts()
	if len(accounts) != 14 {
		t.Fatalf("sell account count = %d, want 14", len(accounts))
	}
	disc, amount, limit := decodeSwapData(t, sell)
	if disc != sellDiscriminator {
		t.Fatalf("discriminator = %d, want %d", disc, sellDiscriminator)
	}
	if amount != 1_500_000 {
		t.Fatalf("encoded amount = %d, want 1_500_000", amount)
	}
	if limit != sellMinSolOutput {
		t.Fatalf("min sol output = %d, want %d", limit, sellMinSolOutput)
	}

	if !accounts[7].PublicKey.Equals(solana.SystemProgramID) {
		t.Fatal("account 7 must be the system program")
	}
	// The sell layout swaps the creator vault ahead of the token program.
	if !accounts[9].PublicKey.Equals(solana.TokenProgramID) {
		t.Fatal("account 9 must be the token program")
	}
	if !accounts[8].IsWritable {
		t.Fatal("account 8 (creator vault) must be writable")
	}
	if !accounts[12].PublicKey.Equals(pumpFeeConfig) || !accounts[13].PublicKey.Equals(pumpFeeProgram) {
		t.Fatal("accounts 12 and 13 must be the fee config and fee program")
	}
}

func TestBuildSellSharesCurveAccountsWithBuy(t *testing.T) {
	b, store := newTestBuilder(t, &fakeBalances{})
	store.SetHolding(domain.HoldingFromRaw(testMint.String(), 1_000, 6))
	markSell(t, store)

	buyIxs, _, err := b.BuildBuy(context.Background(), testMint, testCreator, 30_000_000_000, 1_073_000_000_000_000, 1_000_000, 700)
	if err != nil {
		t.Fatalf("BuildBuy: %v", err)
	}
	sellIxs, _, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
		Mode:   domain.AmountModePercent,
		Amount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("BuildSell: %v", err)
	}

	buyAccs := buyIxs[1].Accounts()
	sellAccs := sellIxs[0].Accounts()
	// Bonding curve, curve token account, and owner token account occupy the
	// same slots in both layouts.
	for _, i := range []int{3, 4, 5} {
		if !buyAccs[i].PublicKey.Equals(sellAccs[i].PublicKey) {
			t.Fatalf("account %d differs between buy (%s) and sell (%s)", i, buyAccs[i].PublicKey, sellAccs[i].PublicKey)
		}
		if buyAccs[i].PublicKey.IsZero() {
			t.Fatalf("account %d derived to the zero key", i)
		}
	}
}

func TestSellQuantityResolution(t *testing.T) {
	t.Run("cache hit skips the chain", func(t *testing.T) {
		balances := &fakeBalances{amount: 9_999, decimals: 6}
		b, store := newTestBuilder(t, balances)
		store.SetHolding(domain.HoldingFromRaw(testMint.String(), 2_000_000, 6))
		markSell(t, store)

		_, quantity, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModePercent,
			Amount: decimal.NewFromInt(50),
		})
		if err != nil {
			t.Fatalf("BuildSell: %v", err)
		}
		if quantity != 1_000_000 {
			t.Fatalf("quantity = %d, want half the cached holding", quantity)
		}
		if balances.calls != 0 {
			t.Fatalf("chain queried %d times despite cache hit", balances.calls)
		}
	})

	t.Run("cache miss falls back to chain and writes back", func(t *testing.T) {
		balances := &fakeBalances{amount: 750_000, decimals: 6}
		b, store := newTestBuilder(t, balances)
		markSell(t, store)

		_, quantity, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModePercent,
			Amount: decimal.NewFromInt(100),
		})
		if err != nil {
			t.Fatalf("BuildSell: %v", err)
		}
		if quantity != 750_000 {
			t.Fatalf("quantity = %d, want chain balance", quantity)
		}
		if balances.calls != 1 {
			t.Fatalf("chain queried %d times, want 1", balances.calls)
		}
		h, ok := store.Holding(testMint.String())
		if !ok || !h.Amount.Equal(decimal.RequireFromString("0.75")) || h.Decimals != 6 {
			t.Fatalf("holding not written back: %+v ok=%v", h, ok)
		}
	})

	t.Run("chain failure rechecks cache", func(t *testing.T) {
		balances := &fakeBalances{err: errors.New("rpc down")}
		b, store := newTestBuilder(t, balances)
		markSell(t, store)

		_, _, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModePercent,
			Amount: decimal.NewFromInt(100),
		})
		if !errors.Is(err, domain.ErrHoldingNotFound) {
			t.Fatalf("err = %v, want ErrHoldingNotFound", err)
		}

		// A holding that appears after the failed lookup is picked up.
		store.SetHolding(domain.HoldingFromRaw(testMint.String(), 10, 6))
		_, quantity, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModePercent,
			Amount: decimal.NewFromInt(100),
		})
		if err != nil {
			t.Fatalf("BuildSell after holding appeared: %v", err)
		}
		if quantity != 10 {
			t.Fatalf("quantity = %d, want 10", quantity)
		}
	})

	t.Run("exact mode shifts by decimals and clamps", func(t *testing.T) {
		b, store := newTestBuilder(t, &fakeBalances{})
		store.SetHolding(domain.HoldingFromRaw(testMint.String(), 1_200_000, 6))
		markSell(t, store)

		_, quantity, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModeExact,
			Amount: decimal.RequireFromString("1.5"),
		})
		if err != nil {
			t.Fatalf("BuildSell: %v", err)
		}
		// 1.5 tokens at 6 decimals exceeds the holding, so it clamps.
		if quantity != 1_200_000 {
			t.Fatalf("quantity = %d, want clamped holding", quantity)
		}

		_, quantity, err = b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModeExact,
			Amount: decimal.RequireFromString("0.25"),
		})
		if err != nil {
			t.Fatalf("BuildSell: %v", err)
		}
		if quantity != 250_000 {
			t.Fatalf("quantity = %d, want 250_000", quantity)
		}
	})

	t.Run("zero resolved quantity is rejected", func(t *testing.T) {
		b, store := newTestBuilder(t, &fakeBalances{})
		store.SetHolding(domain.HoldingFromRaw(testMint.String(), 10, 6))
		markSell(t, store)

		_, _, err := b.BuildSell(context.Background(), testMint, testCreator, domain.SwapOrder{
			Mode:   domain.AmountModePercent,
			Amount: decimal.RequireFromString("0.1"),
		})
		if !errors.Is(err, domain.ErrZeroAmount) {
			t.Fatalf("err = %v, want ErrZeroAmount", err)
		}
	})
}

func TestWrapUnwrapInstructions(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")

	ixs, err := WrapInstructions(owner, 1_000_000_000)
	if err != nil {
		t.Fatalf("WrapInstructions: %v", err)
	}
	if len(ixs) != 3 {
		t.Fatalf("instruction count = %d, want 3 (create, transfer, sync)", len(ixs))
	}
	if !ixs[1].ProgramID().Equals(solana.SystemProgramID) {
		t.Fatalf("second instruction program = %s, want system program", ixs[1].ProgramID())
	}
	if !ixs[2].ProgramID().Equals(solana.TokenProgramID) {
		t.Fatalf("third instruction program = %s, want token program", ixs[2].ProgramID())
	}

	unwrap, err := UnwrapInstruction(owner)
	if err != nil {
		t.Fatalf("UnwrapInstruction: %v", err)
	}
	if !unwrap.ProgramID().Equals(solana.TokenProgramID) {
		t.Fatalf("unwrap program = %s, want token program", unwrap.ProgramID())
	}
}
