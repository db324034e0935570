/*

This file defines the protocol constants. The locked ratio is a protocol
constant rather than an owner-configurable parameter so the 90/10
capital-split invariant stays auditable.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

var (
	// LockedRatio is the fraction of total pool value rotated into the
	// short position on each roll. The remaining 10% stays liquid for
	// instant withdrawals.
	LockedRatio = sdkmath.LegacyNewDecWithPrec(9, 1) // 0.9

	// MaxWithdrawalFee bounds the instant withdrawal fee fraction.
	MaxWithdrawalFee = sdkmath.LegacyNewDecWithPrec(3, 1) // 0.3

	// MinimumSupply is the floor for both pool balance and share supply,
	// in base units. Deposits that would leave either below the floor are
	// rejected; this blocks share-price manipulation through a near-empty
	// pool.
	MinimumSupply = sdkmath.NewInt(100_000_000) // 10^8
)

const (
	// RolloverDelay is the minimum time between committing the next
	// option and rolling into it.
	RolloverDelay = time.Hour

	// MinTimeToExpiry is the minimum remaining lifetime an option must
	// have when committed as the next position.
	MinTimeToExpiry = 24 * time.Hour

	// WithdrawSlippageBps is the tolerance passed to the yield wrapper
	// when unwrapping collateral for withdrawals.
	WithdrawSlippageBps = 50
)
