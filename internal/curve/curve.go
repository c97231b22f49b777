// Package curve implements the constant-product bonding-curve math shared
// by the event decoder and the instruction builder. All functions are pure;
// reserve arithmetic runs on 128-bit intermediates and saturates instead of
// overflowing. No fees are modeled at this layer.
package curve

import (
	"math"
	"math/big"
)

// PriceScale aligns both venue encodings onto one price unit (native asset
// has 9 decimals, traded tokens 6).
const PriceScale = 1_000.0

// Seed reserves a fresh bonding curve starts from.
const (
	InitialVirtualSolReserves   uint64 = 30_000_000_000
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
)

// BuyOut returns the token amount received for solIn against the given
// virtual reserves: floor(solIn * vTok / (vSol + solIn)). Zero on any zero
// input.
func BuyOut(solIn, vSol, vTok uint64) uint64 {
	return mulDivSat(solIn, vTok, vSol, solIn)
}

// SellOut returns the native amount received for tokenIn against the given
// virtual reserves: floor(tokenIn * vSol / (vTok + tokenIn)). Zero on any
// zero input.
func SellOut(tokenIn, vSol, vTok uint64) uint64 {
	return mulDivSat(tokenIn, vSol, vTok, tokenIn)
}

// Price returns the unit price implied by the virtual reserves,
// vSol/vTok/PriceScale. Zero when vTok is zero; never faults.
func Price(vSol, vTok uint64) float64 {
	if vTok == 0 {
		return 0.0
	}
	return float64(vSol) / float64(vTok) / PriceScale
}

// mulDivSat computes floor(a*b / (c+d)) with 128-bit intermediates,
// returning 0 on any zero operand or zero denominator and MaxUint64 when
// the quotient exceeds 64 bits.
func mulDivSat(a, b, c, d uint64) uint64 {
	if a == 0 || b == 0 || c == 0 {
		return 0
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	den := new(big.Int).Add(new(big.Int).SetUint64(c), new(big.Int).SetUint64(d))
	if den.Sign() == 0 {
		return 0
	}
	out := num.Div(num, den)
	if !out.IsUint64() {
		return math.MaxUint64
	}
	return out.Uint64()
}
