package venue

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/utils"
)

const secondsPerYear = 31_536_000

// premiumQuote prices an option with a volatility-scaled square-root-of
// -time curve, the shape both reference venues use for quoting:
//
//	premium = notional * iv * sqrt(T) * moneyness
//
// where notional is amount * spot, T is time to expiry in years, and
// moneyness skews the quote toward intrinsic value for in-the-money
// strikes. All terms are 18-decimal fixed point; amount is in wad
// underlying units, spot and strike are wad prices, iv is a wad
// fraction. The result is in payment-currency wads.
func premiumQuote(terms types.OptionTerms, amount, spot, iv sdkmath.Int, now time.Time) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	if !terms.Expiry.After(now) {
		return sdkmath.ZeroInt(), ErrOptionExpired
	}

	period := terms.Expiry.Sub(now)
	tYears := sdkmath.LegacyNewDec(int64(period / time.Second)).QuoInt64(secondsPerYear)
	sqrtT, err := tYears.ApproxSqrt()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("premium quote: %w", err)
	}

	amountDec := sdkmath.LegacyNewDecFromIntWithPrec(amount, 18)
	spotDec := sdkmath.LegacyNewDecFromIntWithPrec(spot, 18)
	strikeDec := sdkmath.LegacyNewDecFromIntWithPrec(terms.StrikePrice, 18)
	ivDec := sdkmath.LegacyNewDecFromIntWithPrec(iv, 18)

	timeValue := amountDec.Mul(spotDec).Mul(ivDec).Mul(sqrtT)

	// Intrinsic value floor: an ITM option is never cheaper than its
	// immediate exercise value.
	intrinsic := sdkmath.LegacyZeroDec()
	switch terms.OptionType {
	case types.Call:
		if spotDec.GT(strikeDec) {
			intrinsic = amountDec.Mul(spotDec.Sub(strikeDec))
		}
	case types.Put:
		if strikeDec.GT(spotDec) {
			intrinsic = amountDec.Mul(strikeDec.Sub(spotDec))
		}
	default:
		return sdkmath.ZeroInt(), types.ErrInvalidOptionType
	}

	total := timeValue.Add(intrinsic)
	// A LegacyDec is stored scaled by 10^18, so its raw integer is
	// exactly the wad representation.
	return sdkmath.NewIntFromBigInt(total.BigInt()), nil
}

// settlementFee is the venue's flat exercise fee, rounded up so fee
// truncation never favors the account being charged.
func settlementFee(premium sdkmath.Int, feeBps int64) (sdkmath.Int, error) {
	return utils.MulDivUp(premium, sdkmath.NewInt(feeBps), sdkmath.NewInt(10_000))
}

// paymentUnits converts a wad cost into ledger base units, rounding up
// so the venue is never short-paid by truncation.
func paymentUnits(costWad sdkmath.Int, decimals int) (sdkmath.Int, error) {
	if decimals == utils.WadDecimals {
		return costWad, nil
	}
	factor, err := utils.Pow10(utils.WadDecimals - decimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.MulDivUp(costWad, sdkmath.OneInt(), factor)
}
