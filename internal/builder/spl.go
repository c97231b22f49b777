package builder

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// createIdempotentATAInstruction builds the associated token program's
// CreateIdempotent instruction (discriminant 1). The library builder only
// covers the plain Create, which fails when the account already exists.
func createIdempotentATAInstruction(payer, owner, ata, mint solana.PublicKey) solana.Instruction {
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1})
}

// WrapInstructions moves lamports into the wallet's wrapped SOL account,
// creating the account if it does not exist yet.
func WrapInstructions(owner solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, solana.WrappedSol)
	if err != nil {
		return nil, fmt.Errorf("builder: derive wrapped SOL account: %w", err)
	}
	syncIx, err := token.NewSyncNativeInstruction(ata).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("builder: build sync native: %w", err)
	}
	return []solana.Instruction{
		createIdempotentATAInstruction(owner, owner, ata, solana.WrappedSol),
		system.NewTransferInstruction(lamports, owner, ata).Build(),
		syncIx,
	}, nil
}

// UnwrapInstruction closes the wallet's wrapped SOL account, returning its
// lamports to the wallet.
func UnwrapInstruction(owner solana.PublicKey) (solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, solana.WrappedSol)
	if err != nil {
		return nil, fmt.Errorf("builder: derive wrapped SOL account: %w", err)
	}
	ix, err := token.NewCloseAccountInstruction(ata, owner, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("builder: build close account: %w", err)
	}
	return ix, nil
}

// CloseTokenAccountInstruction closes an arbitrary token account owned by
// the wallet, reclaiming its rent.
func CloseTokenAccountInstruction(account, owner solana.PublicKey) (solana.Instruction, error) {
	ix, err := token.NewCloseAccountInstruction(account, owner, owner, nil).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("builder: build close account for %s: %w", account, err)
	}
	return ix, nil
}
