/*

This file contains the option value objects shared by the vault, the
aggregated instrument and the protocol adapters.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// OptionType distinguishes the two payoff directions a venue can sell.
// The zero value is deliberately invalid so that an unset leg is caught
// by validation instead of silently becoming a put.
type OptionType uint8

const (
	Invalid OptionType = iota
	Put
	Call
)

func (t OptionType) String() string {
	switch t {
	case Put:
		return "PUT"
	case Call:
		return "CALL"
	default:
		return "INVALID"
	}
}

// Valid reports whether the option type is one of the two real variants.
func (t OptionType) Valid() bool {
	return t == Put || t == Call
}

// ZeroAddress is the null identity. A zero currentOption means the vault
// has no open short; a zero registry entry means no adapter is set.
var ZeroAddress = common.Address{}

// OptionTerms canonically describes an option a venue may sell. It is a
// value object, never persisted on its own; venue-side identities are
// derived deterministically from it.
type OptionTerms struct {
	Underlying      common.Address `json:"underlying"`       // asset the option references
	StrikeAsset     common.Address `json:"strike_asset"`     // asset the strike is denominated in
	CollateralAsset common.Address `json:"collateral_asset"` // asset backing the short side
	Expiry          time.Time      `json:"expiry"`
	StrikePrice     sdkmath.Int    `json:"strike_price"` // 18-decimal fixed point
	OptionType      OptionType     `json:"option_type"`
	PaymentToken    common.Address `json:"payment_token"` // currency premiums are paid in
}

// Validate performs structural checks on the terms. It does not check
// venue-side existence; that is the adapter's OptionsExist.
func (o OptionTerms) Validate() error {
	if o.Underlying == ZeroAddress {
		return ErrZeroAddress
	}
	if o.StrikeAsset == ZeroAddress {
		return ErrZeroAddress
	}
	if o.CollateralAsset == ZeroAddress {
		return ErrZeroAddress
	}
	if o.StrikePrice.IsNil() || !o.StrikePrice.IsPositive() {
		return ErrInvalidStrike
	}
	if !o.OptionType.Valid() {
		return ErrInvalidOptionType
	}
	if o.Expiry.IsZero() {
		return ErrInvalidExpiry
	}
	return nil
}
