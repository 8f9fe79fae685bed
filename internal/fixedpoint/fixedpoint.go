// internal/fixedpoint/fixedpoint.go
package fixedpoint

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	AmountConfig     = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001 stake units
	MultiplierConfig = DecimalConfig{DecimalPrecision: 2, Scale: 100}       // 0.01x payout multiplier
)

// BpsScale is the divisor for basis-point fee rates (100% = 10_000 bps).
const BpsScale int64 = 10_000

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()

	switch roundingMode {
	case RoundUp:
		if remainder.Sign() != 0 {
			result++
		}
	case RoundHalfEven:
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			if result%2 != 0 {
				result++
			}
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncate toward zero (default for all payouts)
	RoundUp
	RoundHalfEven
)

// MulDiv computes a * b / denominator without int64 overflow in the product.
func MulDiv(a, b, denominator int64, roundingMode RoundingMode) int64 {
	product := MultiplyInt128(a, b)
	result := DivideInt128(product, denominator, roundingMode)
	putInt128(product)
	return result
}

// ComputeFee calculates the fee on a wager amount at a basis-point rate,
// rounded down so the bettor never pays a fractional unit more than owed.
func ComputeFee(amount, feeBps int64) int64 {
	return MulDiv(amount, feeBps, BpsScale, RoundDown)
}

// ComputePayout calculates the winning payout: netAmount * multiplier,
// where multiplier is in MultiplierConfig scale (100 = 1.00x).
// The result truncates toward zero.
func ComputePayout(netAmount, multiplier int64) int64 {
	return MulDiv(netAmount, multiplier, MultiplierConfig.Scale, RoundDown)
}
