/*
This file contains the typed decimal-shift helpers used whenever token
amounts cross a decimals boundary (e.g. an 8-decimal yield wrapper into
the vault's 18-decimal internal accounting). Every cross-decimal
operation in the codebase goes through these functions so the shift is
explicit and auditable.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals = errors.New("decimals are invalid")
	ErrAmountNil       = errors.New("amount is nil")
	ErrAmountNegative  = errors.New("amount is negative")
)

// WadDecimals is the number of decimals of the internal fixed-point
// accounting unit.
const WadDecimals = 18

// Pow10 returns 10^n as an Int. n must be within [0, 36].
func Pow10(n int) (sdkmath.Int, error) {
	if n < 0 || n > 36 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: exponent %d out of range", ErrInvalidDecimals, n)
	}
	result := sdkmath.NewInt(1)
	ten := sdkmath.NewInt(10)
	for i := 0; i < n; i++ {
		result = result.Mul(ten)
	}
	return result, nil
}

// DecimalShift rescales amount from one decimals convention to another.
// Scaling down truncates toward zero, which always rounds in favour of
// the pool rather than the account being paid out.
func DecimalShift(amount sdkmath.Int, fromDecimals, toDecimals int) (sdkmath.Int, error) {
	if fromDecimals < 0 || fromDecimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: from=%d", ErrInvalidDecimals, fromDecimals)
	}
	if toDecimals < 0 || toDecimals > 18 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: to=%d", ErrInvalidDecimals, toDecimals)
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if fromDecimals == toDecimals {
		return amount, nil
	}
	if toDecimals > fromDecimals {
		factor, err := Pow10(toDecimals - fromDecimals)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		return amount.Mul(factor), nil
	}
	factor, err := Pow10(fromDecimals - toDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount.Quo(factor), nil
}

// ToWad rescales amount from the given token decimals into 18-decimal
// internal accounting units.
func ToWad(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	return DecimalShift(amount, decimals, WadDecimals)
}

// FromWad rescales an 18-decimal internal amount into the given token
// decimals, truncating toward zero.
func FromWad(amount sdkmath.Int, decimals int) (sdkmath.Int, error) {
	return DecimalShift(amount, WadDecimals, decimals)
}

// MulDiv computes amount * mul / div with multiply-before-divide
// ordering and truncation, guarding the zero divisor explicitly.
func MulDiv(amount, mul, div sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || mul.IsNil() || div.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if div.IsZero() {
		return sdkmath.ZeroInt(), errors.New("division by zero")
	}
	return amount.Mul(mul).Quo(div), nil
}

// MulDivUp is MulDiv rounding the quotient up. Venue fee and margin
// math uses this so rounding never under-collateralizes the protocol.
func MulDivUp(amount, mul, div sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || mul.IsNil() || div.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if div.IsZero() {
		return sdkmath.ZeroInt(), errors.New("division by zero")
	}
	num := amount.Mul(mul)
	q := num.Quo(div)
	if !num.Mod(div).IsZero() {
		q = q.Add(sdkmath.OneInt())
	}
	return q, nil
}
