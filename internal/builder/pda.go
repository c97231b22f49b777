package builder

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// BondingCurve derives the curve state account for a mint.
func BondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		PumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("builder: derive bonding curve for %s: %w", mint, err)
	}
	return addr, nil
}

// CreatorVault derives the account that collects the coin creator's fee
// share. Both swap directions must include it.
func CreatorVault(creator solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("creator-vault"), creator.Bytes()},
		PumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("builder: derive creator vault for %s: %w", creator, err)
	}
	return addr, nil
}

// GlobalVolumeAccumulator derives the program-wide buy volume counter.
func GlobalVolumeAccumulator() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("global_volume_accumulator")},
		PumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("builder: derive global volume accumulator: %w", err)
	}
	return addr, nil
}

// UserVolumeAccumulator derives the per-wallet buy volume counter.
func UserVolumeAccumulator(user solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("user_volume_accumulator"), user.Bytes()},
		PumpProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("builder: derive user volume accumulator for %s: %w", user, err)
	}
	return addr, nil
}
