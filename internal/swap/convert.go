package swap

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/utils"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

var ErrSameToken = errors.New("conversion tokens are identical")

// Converter is the RFQ leg of the settlement counterparty: an immediate
// oracle-priced conversion between two tokens. Adapters use it when a
// venue settles in a currency other than the one the caller expects.
type Converter interface {
	// Convert sells amount of the from token held by owner and credits
	// owner with the to token at the oracle rate. Returns the credited
	// amount in to-token units.
	Convert(owner common.Address, from, to common.Address, amount sdkmath.Int) (sdkmath.Int, error)
}

// MemConverter fills conversions out of its own liquidity pool at the
// oracle mid price.
type MemConverter struct {
	tokens *venue.TokenRegistry
	oracle oracle.PriceOracle
	swap   *MemSwap
}

func NewMemConverter(tokens *venue.TokenRegistry, po oracle.PriceOracle, s *MemSwap) *MemConverter {
	return &MemConverter{tokens: tokens, oracle: po, swap: s}
}

func (c *MemConverter) Convert(owner common.Address, from, to common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if from == to {
		return sdkmath.ZeroInt(), ErrSameToken
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), ErrInvalidAmounts
	}

	fromLedger, err := c.tokens.Get(from)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	toLedger, err := c.tokens.Get(to)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	fromPrice, _, err := c.oracle.LatestPrice(from)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("converter: %w", err)
	}
	toPrice, _, err := c.oracle.LatestPrice(to)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("converter: %w", err)
	}

	fromWad, err := utils.ToWad(amount, fromLedger.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	outWad, err := utils.MulDiv(fromWad, fromPrice, toPrice)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	out, err := utils.FromWad(outWad, toLedger.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := fromLedger.Transfer(owner, c.swap.Address(), amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if toLedger.BalanceOf(c.swap.Address()).LT(out) {
		// RFQ liquidity pool backstop for the reference backend.
		if err := toLedger.Mint(c.swap.Address(), out); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if err := toLedger.Transfer(c.swap.Address(), owner, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}
