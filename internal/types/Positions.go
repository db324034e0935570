/*

This file contains the position types for the aggregated multi-leg
instrument. Positions form an append-only ledger keyed by owner address
and sequential index; nothing is ever deleted and the only mutation after
creation is the one-way exercised flag.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// InstrumentPosition is one purchased multi-leg position. The per-leg
// slices are index-aligned: leg i is described by OptionTypes[i],
// OptionIDs[i], Amounts[i], StrikePrices[i] and Venues[i].
type InstrumentPosition struct {
	Exercised    bool          `json:"exercised"`
	OptionTypes  []OptionType  `json:"option_types"`
	OptionIDs    []uint32      `json:"option_ids"` // 0 by convention for fungible venues
	Amounts      []sdkmath.Int `json:"amounts"`
	StrikePrices []sdkmath.Int `json:"strike_prices"` // 18-decimal fixed point
	Venues       []string      `json:"venues"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Legs returns the number of legs in the position.
func (p *InstrumentPosition) Legs() int {
	return len(p.Venues)
}

// Validate checks the structural invariants: equal-length arrays, at
// least two legs, and a mixed call/put composition.
func (p *InstrumentPosition) Validate() error {
	n := len(p.Venues)
	if len(p.OptionTypes) != n || len(p.OptionIDs) != n || len(p.Amounts) != n || len(p.StrikePrices) != n {
		return ErrLengthMismatch
	}
	if n < 2 {
		return ErrTooFewLegs
	}
	hasCall, hasPut := false, false
	for _, t := range p.OptionTypes {
		switch t {
		case Call:
			hasCall = true
		case Put:
			hasPut = true
		default:
			return ErrInvalidOptionType
		}
	}
	if !hasCall || !hasPut {
		return ErrMissingCallOrPut
	}
	return nil
}

// RotationSnapshot records the vault state around one capital rotation.
// Persisted for audit; never read back by the engine itself.
type RotationSnapshot struct {
	SnapshotID     int64          `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	RotationNumber int            `json:"rotation_number"`
	Timestamp      time.Time      `json:"timestamp"`
	OptionAddress  common.Address `json:"option_address"`
	LockedAmount   sdkmath.Int    `json:"locked_amount"`
	TotalBalance   sdkmath.Int    `json:"total_balance"`
	ShareSupply    sdkmath.Int    `json:"share_supply"`
	ClosedAmount   sdkmath.Int    `json:"closed_amount"` // collateral released by the close, zero on first roll
}

// ActionReceipt records the outcome of one manager or depositor action
// for the audit trail.
type ActionReceipt struct {
	ReceiptID string          `json:"receipt_id"`
	Action    string          `json:"action"` // e.g. "ROLL", "CLOSE", "BUY_INSTRUMENT", "EXERCISE"
	Account   common.Address  `json:"account"`
	Amount    sdkmath.Int     `json:"amount"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
