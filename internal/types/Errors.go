package types

import "errors"

// Shared validation errors. Component-specific policy errors live in the
// packages that enforce them.
var (
	ErrZeroAddress       = errors.New("address cannot be zero")
	ErrZeroAmount        = errors.New("amount must be positive")
	ErrInvalidStrike     = errors.New("strike price must be positive")
	ErrInvalidOptionType = errors.New("option type is invalid")
	ErrInvalidExpiry     = errors.New("expiry is invalid")
	ErrLengthMismatch    = errors.New("leg arrays must have equal length")
	ErrTooFewLegs        = errors.New("position requires at least two legs")
	ErrMissingCallOrPut  = errors.New("position must contain at least one call and one put")
)
