/*

This file models the yield-bearing collateral wrapper (a yearn-style
vault token). It is 1:1-redeemable for its underlying at a time-varying
exchange rate reported by PricePerShare. The wrapper's share decimals
may differ from the underlying's, which is exactly the case the typed
decimal-shift helpers exist for.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidRate     = errors.New("exchange rate is invalid")
	ErrWrapperDrained  = errors.New("wrapper has insufficient underlying")
	ErrInvalidSlippage = errors.New("slippage tolerance is invalid")
)

// YieldWrapper is the surface the vault needs from the collateral token.
type YieldWrapper interface {
	ERC20
	// UnderlyingToken is the asset the wrapper is redeemable for.
	UnderlyingToken() ERC20
	// Deposit wraps amount of underlying held by from, crediting shares.
	Deposit(from common.Address, amount sdkmath.Int) (sdkmath.Int, error)
	// Withdraw redeems shares held by from, paying underlying to recipient.
	// slippageBps bounds the acceptable shortfall against the quoted rate.
	Withdraw(from common.Address, shares sdkmath.Int, recipient common.Address, slippageBps int) (sdkmath.Int, error)
	// PricePerShare is the underlying value of one whole share, as an
	// 18-decimal fixed-point rate. Monotonically non-decreasing absent
	// losses in the wrapped strategy.
	PricePerShare() sdkmath.Int
}

// MemYieldWrapper is the in-memory reference implementation.
type MemYieldWrapper struct {
	*Ledger
	mu         sync.Mutex
	underlying ERC20
	rate       sdkmath.Int // wad underlying per whole share
}

// NewMemYieldWrapper creates a wrapper over underlying with the given
// share decimals and a 1.0 initial exchange rate.
func NewMemYieldWrapper(symbol string, decimals int, underlying ERC20) *MemYieldWrapper {
	return &MemYieldWrapper{
		Ledger:     NewLedger(symbol, decimals),
		underlying: underlying,
		rate:       sdkmath.NewIntWithDecimal(1, 18),
	}
}

func (y *MemYieldWrapper) UnderlyingToken() ERC20 { return y.underlying }

func (y *MemYieldWrapper) PricePerShare() sdkmath.Int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.rate
}

// Accrue moves the exchange rate, simulating yield (or loss) in the
// wrapped strategy. Rate is a wad; must be positive.
func (y *MemYieldWrapper) Accrue(rate sdkmath.Int) error {
	if rate.IsNil() || !rate.IsPositive() {
		return ErrInvalidRate
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	y.rate = rate
	return nil
}

func (y *MemYieldWrapper) Deposit(from common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := validateAmount(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	if err := y.underlying.Transfer(from, y.Address(), amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	// shares = underlyingWad / rate, truncated, then shifted to share decimals
	amountWad, err := utils.ToWad(amount, y.underlying.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	wad := sdkmath.NewIntWithDecimal(1, 18)
	sharesWad, err := utils.MulDiv(amountWad, wad, y.PricePerShare())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	shares, err := utils.FromWad(sharesWad, y.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := y.Mint(from, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

func (y *MemYieldWrapper) Withdraw(from common.Address, shares sdkmath.Int, recipient common.Address, slippageBps int) (sdkmath.Int, error) {
	if err := validateAmount(shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if slippageBps < 0 || slippageBps > 10_000 {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d bps", ErrInvalidSlippage, slippageBps)
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	sharesWad, err := utils.ToWad(shares, y.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	wad := sdkmath.NewIntWithDecimal(1, 18)
	amountWad, err := utils.MulDiv(sharesWad, y.PricePerShare(), wad)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	amount, err := utils.FromWad(amountWad, y.underlying.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := y.Burn(from, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if y.underlying.BalanceOf(y.Address()).LT(amount) {
		return sdkmath.ZeroInt(), ErrWrapperDrained
	}
	if err := y.underlying.Transfer(y.Address(), recipient, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}
