/*

Package adapter defines the uniform protocol-adapter contract over
heterogeneous options venues, and the two reference implementations: a
non-fungible market (positions are integer IDs) and a fungible
tokenized-option protocol (positions are option-token balances).

The vault uses an adapter for its short rotation; the aggregated
instrument uses adapters polymorphically per leg. Callers track
ownership either by the returned position ID (non-fungible) or by the
option-token balance they hold (fungible, ID 0 by convention).

*/

package adapter

import (
	"errors"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotFound            = errors.New("options contract not found for terms")
	ErrNotSupported        = errors.New("operation not supported by this venue")
	ErrInsufficientPayment = errors.New("attached payment is below required cost")
	ErrAlreadyExercised    = errors.New("position already exercised")
)

// Protocol is the uniform venue contract. Profit-reporting methods
// return amounts in underlying-equivalent 18-decimal units regardless of
// the venue's native settlement currency; the adapter performs any
// required conversion internally.
type Protocol interface {
	// ProtocolName is the static venue identifier used as registry key.
	ProtocolName() string

	// NonFungible reports whether positions are identified by opaque
	// integer IDs (true) or by option-token balances (false).
	NonFungible() bool

	// OptionsExist reports whether the venue has a matching instrument.
	// False means "cannot purchase", never an error.
	OptionsExist(terms types.OptionTerms) bool

	// GetOptionsAddress deterministically resolves the venue-side option
	// contract for terms. Fails with ErrNotFound only when the terms
	// cannot be canonically resolved; existence-checking stays with
	// OptionsExist.
	GetOptionsAddress(terms types.OptionTerms) (common.Address, error)

	// Premium quotes the purchase cost for amount, in payment-currency
	// 18-decimal units. An upper-bound quote, not a guarantee.
	Premium(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error)

	// Purchase executes the buy, debiting at most payment from buyer and
	// refunding any excess. Returns the position ID for non-fungible
	// venues, 0 for fungible ones.
	Purchase(buyer common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (uint64, error)

	// ExerciseProfit computes the current exercise payout in
	// underlying-equivalent units. Zero when out-of-the-money or outside
	// the venue's exercise window; never an error for those cases.
	ExerciseProfit(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (sdkmath.Int, error)

	// Exercise settles the position, paying recipient directly. Fails
	// with ErrAlreadyExercised on a settled position.
	Exercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error)

	// CanExercise combines the expiry and profitability checks.
	CanExercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (bool, error)

	// CreateShort opens a collateralized short: locks collateralAmount
	// (collateral-token units) from writer and returns the venue option
	// identity plus the amount of short tokens minted to writer.
	CreateShort(writer common.Address, terms types.OptionTerms, collateralAmount sdkmath.Int) (common.Address, sdkmath.Int, error)

	// CloseShort settles writer's short after expiry, returning the
	// released collateral amount.
	CloseShort(writer common.Address, options common.Address) (sdkmath.Int, error)
}

// ShortTokenDeliverer is implemented by fungible-venue adapters whose
// shorts mint transferable option tokens. The vault type-asserts for it
// after CreateShort to hand the minted tokens to the settlement
// counterparty.
type ShortTokenDeliverer interface {
	DeliverShortTokens(from, to, options common.Address, amount sdkmath.Int) error
}
