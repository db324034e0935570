/*

Package instrument implements the aggregated multi-leg option product:
one instrument fixes an underlying, expiry and payment currency, and
each purchase composes two or more legs (at least one call and one put)
bought on possibly different venues through their protocol adapters.

Positions form an append-only per-owner ledger. The only mutation after
creation is the one-way exercised flag.

*/

package instrument

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/metrics"
	"github.com/0xhector27/ribbon-v1/internal/state"
	"github.com/0xhector27/ribbon-v1/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAdapterNotFound     = errors.New("no adapter registered for venue")
	ErrInstrumentExpired   = errors.New("instrument is expired")
	ErrPositionNotFound    = errors.New("position does not exist")
	ErrAlreadyExercised    = errors.New("position already exercised")
	ErrInsufficientPayment = errors.New("payment is below total premium")
	ErrOptionUnavailable   = errors.New("venue has no matching option")
)

// AdapterResolver resolves venue names to protocol adapters. Returns
// nil when no adapter is registered under the name.
type AdapterResolver interface {
	GetAdapter(name string) adapter.Protocol
}

// BalanceReader reports spendable balances in the payment currency.
// Venues debit buyers directly, so affordability of the whole purchase
// must be proven before the first leg executes.
type BalanceReader interface {
	BalanceOf(owner common.Address) sdkmath.Int
}

// Config fixes the static parameters of an instrument.
type Config struct {
	Name            string
	Symbol          string
	Underlying      common.Address
	StrikeAsset     common.Address
	CollateralAsset common.Address
	PaymentToken    common.Address
	Expiry          time.Time
	Resolver        AdapterResolver
	Payments        BalanceReader // balance source for PaymentToken
}

// Leg describes one requested leg of a purchase.
type Leg struct {
	Venue       string
	OptionType  types.OptionType
	Amount      sdkmath.Int
	StrikePrice sdkmath.Int
}

// Instrument is the aggregated product. One instance per listed
// underlying/expiry pair.
type Instrument struct {
	mu        sync.Mutex
	cfg       Config
	positions map[common.Address][]types.InstrumentPosition
	logger    zerolog.Logger
}

// NewInstrument creates an instrument with comprehensive validation.
func NewInstrument(cfg Config) (*Instrument, error) {
	if cfg.Name == "" || cfg.Symbol == "" {
		return nil, errors.New("instrument name and symbol cannot be empty")
	}
	if cfg.Underlying == types.ZeroAddress || cfg.StrikeAsset == types.ZeroAddress ||
		cfg.CollateralAsset == types.ZeroAddress || cfg.PaymentToken == types.ZeroAddress {
		return nil, types.ErrZeroAddress
	}
	if cfg.Expiry.IsZero() {
		return nil, types.ErrInvalidExpiry
	}
	if cfg.Resolver == nil {
		return nil, errors.New("adapter resolver cannot be nil")
	}
	if cfg.Payments == nil {
		return nil, errors.New("payment balance reader cannot be nil")
	}
	return &Instrument{
		cfg:       cfg,
		positions: make(map[common.Address][]types.InstrumentPosition),
		logger:    logger.GetForComponent("instrument").With().Str("instrument", cfg.Symbol).Logger(),
	}, nil
}

// Name returns the instrument's name.
func (i *Instrument) Name() string { return i.cfg.Name }

// Symbol returns the instrument's ticker symbol.
func (i *Instrument) Symbol() string { return i.cfg.Symbol }

// Expiry returns the shared expiry of every leg this instrument sells.
func (i *Instrument) Expiry() time.Time { return i.cfg.Expiry }

// Underlying returns the asset the instrument references.
func (i *Instrument) Underlying() common.Address { return i.cfg.Underlying }

// termsFor builds the canonical venue terms for one leg.
func (i *Instrument) termsFor(leg Leg) types.OptionTerms {
	return types.OptionTerms{
		Underlying:      i.cfg.Underlying,
		StrikeAsset:     i.cfg.StrikeAsset,
		CollateralAsset: i.cfg.CollateralAsset,
		Expiry:          i.cfg.Expiry,
		StrikePrice:     leg.StrikePrice,
		OptionType:      leg.OptionType,
		PaymentToken:    i.cfg.PaymentToken,
	}
}

// CostOfPosition quotes the total premium for the legs, in
// payment-currency units. An upper bound, same contract as the venue
// quotes it aggregates.
func (i *Instrument) CostOfPosition(legs []Leg) (sdkmath.Int, error) {
	if err := i.validateComposition(legs); err != nil {
		return sdkmath.ZeroInt(), err
	}
	total := sdkmath.ZeroInt()
	for _, leg := range legs {
		proto := i.cfg.Resolver.GetAdapter(leg.Venue)
		if proto == nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrAdapterNotFound, leg.Venue)
		}
		premium, err := proto.Premium(i.termsFor(leg), leg.Amount)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(premium)
	}
	return total, nil
}

// validateComposition checks the structural invariants of a purchase
// request before any venue interaction: every composition fault is
// caught while the buyer still holds their full payment.
func (i *Instrument) validateComposition(legs []Leg) error {
	if len(legs) < 2 {
		return types.ErrTooFewLegs
	}
	hasCall, hasPut := false, false
	for _, leg := range legs {
		if !leg.OptionType.Valid() {
			return types.ErrInvalidOptionType
		}
		if leg.Amount.IsNil() || !leg.Amount.IsPositive() {
			return types.ErrZeroAmount
		}
		if leg.StrikePrice.IsNil() || !leg.StrikePrice.IsPositive() {
			return types.ErrInvalidStrike
		}
		if leg.Venue == "" {
			return fmt.Errorf("%w: empty venue name", ErrAdapterNotFound)
		}
		switch leg.OptionType {
		case types.Call:
			hasCall = true
		case types.Put:
			hasPut = true
		}
	}
	if !hasCall || !hasPut {
		return types.ErrMissingCallOrPut
	}
	return nil
}

// BuyInstrument purchases every leg and appends the position to the
// buyer's ledger, returning its index. Composition and affordability
// are validated before the first venue purchase.
func (i *Instrument) BuyInstrument(buyer common.Address, legs []Leg, payment sdkmath.Int) (int, error) {
	if time.Now().After(i.cfg.Expiry) {
		return 0, ErrInstrumentExpired
	}
	if err := i.validateComposition(legs); err != nil {
		return 0, err
	}
	if payment.IsNil() || !payment.IsPositive() {
		return 0, types.ErrZeroAmount
	}

	// Resolve adapters and quote all legs up front.
	protos := make([]adapter.Protocol, len(legs))
	premiums := make([]sdkmath.Int, len(legs))
	total := sdkmath.ZeroInt()
	for idx, leg := range legs {
		proto := i.cfg.Resolver.GetAdapter(leg.Venue)
		if proto == nil {
			return 0, fmt.Errorf("%w: %s", ErrAdapterNotFound, leg.Venue)
		}
		terms := i.termsFor(leg)
		if !proto.OptionsExist(terms) {
			return 0, fmt.Errorf("%w: %s %s strike %s", ErrOptionUnavailable, leg.Venue, leg.OptionType, leg.StrikePrice)
		}
		premium, err := proto.Premium(terms, leg.Amount)
		if err != nil {
			return 0, err
		}
		protos[idx] = proto
		premiums[idx] = premium
		total = total.Add(premium)
	}
	if payment.LT(total) {
		return 0, fmt.Errorf("%w: need %s, got %s", ErrInsufficientPayment, total, payment)
	}
	// Venues debit the buyer per leg with no way to claw a leg back, so
	// the whole purchase must be funded before the first one executes.
	if balance := i.cfg.Payments.BalanceOf(buyer); balance.LT(total) {
		return 0, fmt.Errorf("%w: need %s, buyer holds %s", ErrInsufficientPayment, total, balance)
	}

	position := types.InstrumentPosition{
		OptionTypes:  make([]types.OptionType, len(legs)),
		OptionIDs:    make([]uint32, len(legs)),
		Amounts:      make([]sdkmath.Int, len(legs)),
		StrikePrices: make([]sdkmath.Int, len(legs)),
		Venues:       make([]string, len(legs)),
		CreatedAt:    time.Now().UTC(),
	}
	for idx, leg := range legs {
		optionID, err := protos[idx].Purchase(buyer, i.termsFor(leg), leg.Amount, premiums[idx])
		if err != nil {
			return 0, fmt.Errorf("leg %d (%s) purchase failed: %w", idx, leg.Venue, err)
		}
		position.OptionTypes[idx] = leg.OptionType
		position.OptionIDs[idx] = uint32(optionID)
		position.Amounts[idx] = leg.Amount
		position.StrikePrices[idx] = leg.StrikePrice
		position.Venues[idx] = leg.Venue
	}

	i.mu.Lock()
	i.positions[buyer] = append(i.positions[buyer], position)
	positionID := len(i.positions[buyer]) - 1
	i.mu.Unlock()

	i.mirrorPosition(buyer, positionID, position)
	metrics.InstrumentPurchasesTotal.WithLabelValues(i.cfg.Symbol).Inc()
	i.logger.Info().
		Str("buyer", buyer.Hex()).
		Int("positionID", positionID).
		Int("legs", len(legs)).
		Str("totalPremium", total.String()).
		Msg("Instrument purchased")
	return positionID, nil
}

// mirrorPosition upserts the position into the database for audit and
// the dashboard. Best effort: the in-memory ledger is authoritative and
// a missing database only costs the mirror.
func (i *Instrument) mirrorPosition(owner common.Address, positionID int, p types.InstrumentPosition) {
	if state.DB == nil {
		return
	}
	if err := state.SaveInstrumentPosition(i.cfg.Name, owner, positionID, p); err != nil {
		i.logger.Warn().Err(err).
			Str("owner", owner.Hex()).
			Int("positionID", positionID).
			Msg("Failed to mirror position to database")
	}
}

// GetPosition returns a copy of the position at index.
func (i *Instrument) GetPosition(owner common.Address, positionID int) (types.InstrumentPosition, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	list := i.positions[owner]
	if positionID < 0 || positionID >= len(list) {
		return types.InstrumentPosition{}, fmt.Errorf("%w: %s index %d", ErrPositionNotFound, owner.Hex(), positionID)
	}
	return list[positionID], nil
}

// NumPositions returns the number of positions the owner holds.
func (i *Instrument) NumPositions(owner common.Address) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.positions[owner])
}

// Positions returns a copy of the owner's full position list.
func (i *Instrument) Positions(owner common.Address) []types.InstrumentPosition {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]types.InstrumentPosition, len(i.positions[owner]))
	copy(out, i.positions[owner])
	return out
}

// positionLegTerms rebuilds the venue terms for leg idx of a stored
// position.
func (i *Instrument) positionLegTerms(p types.InstrumentPosition, idx int) types.OptionTerms {
	return i.termsFor(Leg{
		Venue:       p.Venues[idx],
		OptionType:  p.OptionTypes[idx],
		Amount:      p.Amounts[idx],
		StrikePrice: p.StrikePrices[idx],
	})
}

// ExerciseProfit returns the current total exercise payout of the
// position, in underlying-equivalent units. Out-of-the-money legs
// contribute zero rather than erroring.
func (i *Instrument) ExerciseProfit(owner common.Address, positionID int) (sdkmath.Int, error) {
	p, err := i.GetPosition(owner, positionID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if p.Exercised {
		return sdkmath.ZeroInt(), nil
	}
	total := sdkmath.ZeroInt()
	for idx := range p.Venues {
		proto := i.cfg.Resolver.GetAdapter(p.Venues[idx])
		if proto == nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrAdapterNotFound, p.Venues[idx])
		}
		options, err := proto.GetOptionsAddress(i.positionLegTerms(p, idx))
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		profit, err := proto.ExerciseProfit(owner, options, uint64(p.OptionIDs[idx]), p.Amounts[idx])
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(profit)
	}
	return total, nil
}

// CanExercise reports whether exercising the position right now would
// pay anything.
func (i *Instrument) CanExercise(owner common.Address, positionID int) (bool, error) {
	profit, err := i.ExerciseProfit(owner, positionID)
	if err != nil {
		return false, err
	}
	return profit.IsPositive(), nil
}

// ExercisePosition settles every profitable leg, paying owner directly,
// and marks the position exercised. One-way: a second call fails with
// ErrAlreadyExercised regardless of per-leg outcomes. Returns the total
// payout and the per-leg success flags.
func (i *Instrument) ExercisePosition(owner common.Address, positionID int) (sdkmath.Int, []bool, error) {
	i.mu.Lock()
	list := i.positions[owner]
	if positionID < 0 || positionID >= len(list) {
		i.mu.Unlock()
		return sdkmath.ZeroInt(), nil, fmt.Errorf("%w: %s index %d", ErrPositionNotFound, owner.Hex(), positionID)
	}
	if list[positionID].Exercised {
		i.mu.Unlock()
		return sdkmath.ZeroInt(), nil, ErrAlreadyExercised
	}
	if time.Now().After(i.cfg.Expiry) {
		i.mu.Unlock()
		return sdkmath.ZeroInt(), nil, ErrInstrumentExpired
	}
	// Flag before any venue call so a reentrant exercise of the same
	// position fails; an expired call above leaves the position intact.
	list[positionID].Exercised = true
	p := list[positionID]
	i.mu.Unlock()

	i.mirrorPosition(owner, positionID, p)

	exercised := make([]bool, p.Legs())
	total := sdkmath.ZeroInt()
	for idx := range p.Venues {
		proto := i.cfg.Resolver.GetAdapter(p.Venues[idx])
		if proto == nil {
			return total, exercised, fmt.Errorf("%w: %s", ErrAdapterNotFound, p.Venues[idx])
		}
		options, err := proto.GetOptionsAddress(i.positionLegTerms(p, idx))
		if err != nil {
			return total, exercised, err
		}
		ok, err := proto.CanExercise(owner, options, uint64(p.OptionIDs[idx]), p.Amounts[idx])
		if err != nil {
			return total, exercised, err
		}
		if !ok {
			continue
		}
		payout, err := proto.Exercise(owner, options, uint64(p.OptionIDs[idx]), p.Amounts[idx], owner)
		if err != nil {
			return total, exercised, fmt.Errorf("leg %d (%s) exercise failed: %w", idx, p.Venues[idx], err)
		}
		exercised[idx] = true
		total = total.Add(payout)
	}

	metrics.InstrumentExercisesTotal.WithLabelValues(i.cfg.Symbol).Inc()
	i.logger.Info().
		Str("owner", owner.Hex()).
		Int("positionID", positionID).
		Str("payout", total.String()).
		Msg("Position exercised")
	return total, exercised, nil
}
