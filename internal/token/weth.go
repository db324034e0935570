package token

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var ErrNotWrappedNative = errors.New("vault asset is not the wrapped native token")

// WrappedNative is a WETH-style wrapper: 1:1 between the native-currency
// ledger and its own ERC-20 ledger.
type WrappedNative struct {
	*Ledger
	native *Ledger
}

// NewWrappedNative wraps the given native-currency ledger.
func NewWrappedNative(native *Ledger) *WrappedNative {
	return &WrappedNative{
		Ledger: NewLedger("WETH", 18),
		native: native,
	}
}

// Native returns the underlying native-currency ledger.
func (w *WrappedNative) Native() *Ledger { return w.native }

// Wrap moves native currency from owner into the wrapper and credits an
// equal balance of wrapped tokens.
func (w *WrappedNative) Wrap(owner common.Address, amount sdkmath.Int) error {
	if err := w.native.Transfer(owner, w.Address(), amount); err != nil {
		return err
	}
	return w.Mint(owner, amount)
}

// Unwrap burns wrapped tokens and returns native currency to recipient.
func (w *WrappedNative) Unwrap(owner common.Address, amount sdkmath.Int, recipient common.Address) error {
	if err := w.Burn(owner, amount); err != nil {
		return err
	}
	return w.native.Transfer(w.Address(), recipient, amount)
}
