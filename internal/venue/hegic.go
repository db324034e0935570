/*

This file contains the non-fungible options market. Positions are
identified by opaque integer IDs and are bound to the holder who bought
them; there is no transferable option token. Premiums are paid in the
terms' payment currency and exercise pays out in the underlying.

*/

package venue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/utils"
)

// hegicSettlementFeeBps is the venue's exercise fee on payouts.
const hegicSettlementFeeBps = 100

// OptionsMarket is the surface the non-fungible adapter needs.
type OptionsMarket interface {
	// ContractAddress returns the venue-side options contract for an
	// underlying, and whether the underlying is supported at all.
	ContractAddress(underlying common.Address) (common.Address, bool)
	// Quote returns the total purchase cost in payment-currency wads.
	Quote(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error)
	// CreateOption buys amount of the option for holder, debiting exactly
	// the quoted cost from payment. Returns the new position ID.
	CreateOption(holder common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (uint64, error)
	// Profit returns the current exercise payout in underlying wads.
	// Zero when out-of-the-money or past expiry, never an error for those.
	Profit(optionID uint64, amount sdkmath.Int) (sdkmath.Int, error)
	// Exercise settles the position, paying the payout to recipient.
	Exercise(holder common.Address, optionID uint64, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error)
}

type hegicOptionState uint8

const (
	hegicActive hegicOptionState = iota
	hegicExercised
)

type hegicOption struct {
	holder common.Address
	terms  types.OptionTerms
	amount sdkmath.Int
	state  hegicOptionState
}

// MemHegic is the in-memory reference implementation of OptionsMarket.
type MemHegic struct {
	mu          sync.Mutex
	tokens      *TokenRegistry
	oracle      oracle.PriceOracle
	iv          sdkmath.Int // wad implied-vol fraction used by the quote curve
	underlyings map[common.Address]common.Address
	options     map[uint64]*hegicOption
	nextID      uint64
}

// NewMemHegic creates a market supporting the given underlyings, quoting
// off the oracle with the given wad implied volatility.
func NewMemHegic(tokens *TokenRegistry, po oracle.PriceOracle, iv sdkmath.Int, underlyings ...common.Address) *MemHegic {
	m := &MemHegic{
		tokens:      tokens,
		oracle:      po,
		iv:          iv,
		underlyings: make(map[common.Address]common.Address),
		options:     make(map[uint64]*hegicOption),
		nextID:      1,
	}
	for _, u := range underlyings {
		// Stable pseudo contract address per supported underlying.
		m.underlyings[u] = common.BytesToAddress(crypto.Keccak256([]byte("hegic:options:"), u.Bytes())[12:])
	}
	return m
}

func (m *MemHegic) ContractAddress(underlying common.Address) (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.underlyings[underlying]
	return addr, ok
}

func (m *MemHegic) Quote(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	if _, ok := m.ContractAddress(terms.Underlying); !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrUnsupportedAsset, terms.Underlying.Hex())
	}
	spot, _, err := m.oracle.LatestPrice(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	premium, err := premiumQuote(terms, amount, spot, m.iv, time.Now())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	fee, err := settlementFee(premium, hegicSettlementFeeBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return premium.Add(fee), nil
}

func (m *MemHegic) CreateOption(holder common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (uint64, error) {
	hegicLogger := logger.GetForComponent("hegic_market")

	cost, err := m.Quote(terms, amount)
	if err != nil {
		return 0, err
	}
	if payment.IsNil() || payment.LT(cost) {
		return 0, fmt.Errorf("%w: need %s, attached %s", ErrInsufficientPayment, cost, payment)
	}

	// Only the quoted cost is debited; any attached excess stays with the
	// buyer, which is the refund semantics callers rely on.
	paymentLedger, err := m.tokens.Get(terms.PaymentToken)
	if err != nil {
		return 0, err
	}
	costUnits, err := paymentUnits(cost, paymentLedger.Decimals())
	if err != nil {
		return 0, err
	}
	if err := paymentLedger.Transfer(holder, m.treasury(), costUnits); err != nil {
		return 0, err
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.options[id] = &hegicOption{
		holder: holder,
		terms:  terms,
		amount: amount,
		state:  hegicActive,
	}
	m.mu.Unlock()

	hegicLogger.Info().
		Uint64("optionID", id).
		Str("type", terms.OptionType.String()).
		Str("amount", amount.String()).
		Str("cost", cost.String()).
		Msg("Option created")
	return id, nil
}

func (m *MemHegic) Profit(optionID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	m.mu.Lock()
	opt, ok := m.options[optionID]
	m.mu.Unlock()
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: id %d", ErrOptionNotFound, optionID)
	}
	if opt.state == hegicExercised {
		return sdkmath.ZeroInt(), nil
	}
	if !opt.terms.Expiry.After(time.Now()) {
		return sdkmath.ZeroInt(), nil
	}
	if amount.IsNil() || amount.GT(opt.amount) {
		amount = opt.amount
	}
	return m.intrinsicPayout(opt.terms, amount)
}

// intrinsicPayout computes the exercise payout in underlying wads:
// calls pay (spot-strike)*amount/spot, puts pay (strike-spot)*amount/spot.
func (m *MemHegic) intrinsicPayout(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	spot, _, err := m.oracle.LatestPrice(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	var itm sdkmath.Int
	switch terms.OptionType {
	case types.Call:
		if spot.LTE(terms.StrikePrice) {
			return sdkmath.ZeroInt(), nil
		}
		itm = spot.Sub(terms.StrikePrice)
	case types.Put:
		if terms.StrikePrice.LTE(spot) {
			return sdkmath.ZeroInt(), nil
		}
		itm = terms.StrikePrice.Sub(spot)
	default:
		return sdkmath.ZeroInt(), types.ErrInvalidOptionType
	}
	return utils.MulDiv(amount, itm, spot)
}

func (m *MemHegic) Exercise(holder common.Address, optionID uint64, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error) {
	hegicLogger := logger.GetForComponent("hegic_market")

	m.mu.Lock()
	opt, ok := m.options[optionID]
	if !ok {
		m.mu.Unlock()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: id %d", ErrOptionNotFound, optionID)
	}
	if opt.holder != holder {
		m.mu.Unlock()
		return sdkmath.ZeroInt(), errors.New("caller does not hold this option")
	}
	if opt.state == hegicExercised {
		m.mu.Unlock()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: id %d", ErrAlreadyExercised, optionID)
	}
	if !opt.terms.Expiry.After(time.Now()) {
		m.mu.Unlock()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: id %d", ErrOptionExpired, optionID)
	}
	terms := opt.terms
	if amount.IsNil() || amount.GT(opt.amount) {
		amount = opt.amount
	}
	opt.state = hegicExercised
	m.mu.Unlock()

	payout, err := m.intrinsicPayout(terms, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if payout.IsZero() {
		return sdkmath.ZeroInt(), errors.New("option is out of the money")
	}

	underlying, err := m.tokens.Get(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payoutUnits, err := utils.FromWad(payout, underlying.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	// Payouts come from the venue's settlement pool.
	if err := underlying.Mint(recipient, payoutUnits); err != nil {
		return sdkmath.ZeroInt(), err
	}

	hegicLogger.Info().
		Uint64("optionID", optionID).
		Str("payout", payout.String()).
		Str("recipient", recipient.Hex()).
		Msg("Option exercised")
	return payout, nil
}

func (m *MemHegic) treasury() common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("hegic:treasury"))[12:])
}
