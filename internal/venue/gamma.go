/*

This file contains the fungible tokenized-option protocol. Each option
series is an ERC-20 option token whose address derives deterministically
from the canonical terms; long positions are token balances, shorts are
collateralized mints. Exercise is cash-settled against the oracle in the
series' collateral asset.

*/

package venue

import (
	"encoding/binary"
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

// gammaFeeBps is the venue's purchase fee on quoted premiums.
const gammaFeeBps = 30

// optionTokenDecimals matches tokenized-option conventions (8 decimals).
const optionTokenDecimals = 8

var ErrSeriesNotFound = errors.New("option series does not exist")

// TokenProtocol is the surface the fungible adapter needs.
type TokenProtocol interface {
	// OptionToken derives the deterministic series address for terms.
	// It fails only when the terms cannot be canonically resolved; the
	// returned address may not exist yet (see Exists).
	OptionToken(terms types.OptionTerms) (common.Address, error)
	// Exists reports whether the series has been deployed.
	Exists(terms types.OptionTerms) bool
	// Terms returns the canonical terms of a deployed series.
	Terms(optionToken common.Address) (types.OptionTerms, error)
	// Deploy creates the series for terms. Idempotent per terms.
	Deploy(terms types.OptionTerms) (common.Address, error)
	// Quote returns the purchase cost for amount, in payment-currency wads.
	Quote(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error)
	// Buy debits the cost from payment and credits buyer with option
	// tokens for amount (wad underlying notional).
	Buy(buyer common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (sdkmath.Int, error)
	// MintShort locks collateralAmount (collateral-token units) from
	// writer and mints the backed amount of option tokens to writer.
	MintShort(writer common.Address, terms types.OptionTerms, collateralAmount sdkmath.Int) (common.Address, sdkmath.Int, error)
	// SettleShort closes writer's short after expiry, returning the
	// remaining collateral to writer. Fails on a second call.
	SettleShort(writer common.Address, optionToken common.Address) (sdkmath.Int, error)
	// Profit returns the current cash-settlement value of amount option
	// tokens, in collateral-asset wads. Zero when out-of-the-money.
	Profit(optionToken common.Address, amount sdkmath.Int) (sdkmath.Int, error)
	// Redeem burns amount of holder's option tokens and pays the
	// settlement value to recipient. Fails after expiry.
	Redeem(holder common.Address, optionToken common.Address, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error)
	// Balance returns holder's option-token balance, in token units.
	Balance(holder common.Address, optionToken common.Address) sdkmath.Int
	// TransferOption moves option tokens between holders. Used when a
	// writer delivers short tokens to the settlement counterparty.
	TransferOption(from, to common.Address, optionToken common.Address, amount sdkmath.Int) error
}

type gammaShort struct {
	collateral sdkmath.Int // collateral-token units locked
	minted     sdkmath.Int // option tokens minted against it
	settled    bool
}

type gammaSeries struct {
	terms  types.OptionTerms
	token  *token8
	shorts map[common.Address]*gammaShort
}

// token8 is a series option token. A thin alias to keep intent readable.
type token8 = tokenLedger

// MemGamma is the in-memory reference implementation of TokenProtocol.
type MemGamma struct {
	mu     sync.Mutex
	tokens *TokenRegistry
	oracle oracle.PriceOracle
	iv     sdkmath.Int
	series map[common.Address]*gammaSeries
}

func NewMemGamma(tokens *TokenRegistry, po oracle.PriceOracle, iv sdkmath.Int) *MemGamma {
	return &MemGamma{
		tokens: tokens,
		oracle: po,
		iv:     iv,
		series: make(map[common.Address]*gammaSeries),
	}
}

func (g *MemGamma) OptionToken(terms types.OptionTerms) (common.Address, error) {
	if err := terms.Validate(); err != nil {
		return common.Address{}, err
	}
	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(terms.Expiry.Unix()))
	h := crypto.Keccak256(
		[]byte("gamma:otoken:"),
		terms.Underlying.Bytes(),
		terms.StrikeAsset.Bytes(),
		terms.CollateralAsset.Bytes(),
		expiry[:],
		terms.StrikePrice.BigInt().Bytes(),
		[]byte{byte(terms.OptionType)},
	)
	return common.BytesToAddress(h[12:]), nil
}

func (g *MemGamma) Exists(terms types.OptionTerms) bool {
	addr, err := g.OptionToken(terms)
	if err != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.series[addr]
	return ok
}

func (g *MemGamma) Deploy(terms types.OptionTerms) (common.Address, error) {
	addr, err := g.OptionToken(terms)
	if err != nil {
		return common.Address{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.series[addr]; ok {
		return addr, nil
	}
	g.series[addr] = &gammaSeries{
		terms:  terms,
		token:  newSeriesToken(addr),
		shorts: make(map[common.Address]*gammaShort),
	}
	gammaLogger := logger.GetForComponent("gamma_protocol")
	gammaLogger.Info().
		Str("optionToken", addr.Hex()).
		Str("type", terms.OptionType.String()).
		Time("expiry", terms.Expiry).
		Msg("Option series deployed")
	return addr, nil
}

func (g *MemGamma) Terms(optionToken common.Address) (types.OptionTerms, error) {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return types.OptionTerms{}, err
	}
	return s.terms, nil
}

func (g *MemGamma) getSeries(addr common.Address) (*gammaSeries, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.series[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, addr.Hex())
	}
	return s, nil
}

func (g *MemGamma) Quote(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	spot, _, err := g.oracle.LatestPrice(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	premium, err := premiumQuote(terms, amount, spot, g.iv, time.Now())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	fee, err := settlementFee(premium, gammaFeeBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return premium.Add(fee), nil
}

func (g *MemGamma) Buy(buyer common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (sdkmath.Int, error) {
	addr, err := g.OptionToken(terms)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	s, err := g.getSeries(addr)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	cost, err := g.Quote(terms, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if payment.IsNil() || payment.LT(cost) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: need %s, attached %s", ErrInsufficientPayment, cost, payment)
	}

	paymentLedger, err := g.tokens.Get(terms.PaymentToken)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	costUnits, err := paymentUnits(cost, paymentLedger.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	// Exact cost only; attached excess stays with the buyer.
	if err := paymentLedger.Transfer(buyer, g.treasury(), costUnits); err != nil {
		return sdkmath.ZeroInt(), err
	}

	tokenAmount, err := utils.FromWad(amount, optionTokenDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	// Sold from the venue's market-making inventory.
	if err := s.token.mint(buyer, tokenAmount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return cost, nil
}

func (g *MemGamma) MintShort(writer common.Address, terms types.OptionTerms, collateralAmount sdkmath.Int) (common.Address, sdkmath.Int, error) {
	gammaLogger := logger.GetForComponent("gamma_protocol")

	if collateralAmount.IsNil() || !collateralAmount.IsPositive() {
		return common.Address{}, sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	addr, err := g.Deploy(terms)
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}
	s, err := g.getSeries(addr)
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}

	collateralLedger, err := g.tokens.Get(terms.CollateralAsset)
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}
	collateralWad, err := utils.ToWad(collateralAmount, collateralLedger.Decimals())
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}

	// Backed notional: calls are collateralized 1:1 in the underlying,
	// puts at strike value. Minted amount truncates so the short is
	// never under-collateralized.
	var mintedWad sdkmath.Int
	wad := sdkmath.NewIntWithDecimal(1, 18)
	switch terms.OptionType {
	case types.Call:
		mintedWad = collateralWad
	case types.Put:
		mintedWad, err = utils.MulDiv(collateralWad, wad, terms.StrikePrice)
		if err != nil {
			return common.Address{}, sdkmath.ZeroInt(), err
		}
	default:
		return common.Address{}, sdkmath.ZeroInt(), types.ErrInvalidOptionType
	}

	if err := collateralLedger.Transfer(writer, g.treasury(), collateralAmount); err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}
	minted, err := utils.FromWad(mintedWad, optionTokenDecimals)
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}
	if err := s.token.mint(writer, minted); err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}

	g.mu.Lock()
	short, ok := s.shorts[writer]
	if !ok {
		short = &gammaShort{collateral: sdkmath.ZeroInt(), minted: sdkmath.ZeroInt()}
		s.shorts[writer] = short
	}
	short.collateral = short.collateral.Add(collateralAmount)
	short.minted = short.minted.Add(minted)
	g.mu.Unlock()

	gammaLogger.Info().
		Str("optionToken", addr.Hex()).
		Str("writer", writer.Hex()).
		Str("collateral", collateralAmount.String()).
		Str("minted", minted.String()).
		Msg("Short minted")
	return addr, minted, nil
}

func (g *MemGamma) SettleShort(writer common.Address, optionToken common.Address) (sdkmath.Int, error) {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if s.terms.Expiry.After(time.Now()) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: expiry %s", ErrOptionNotExpired, s.terms.Expiry)
	}

	g.mu.Lock()
	short, ok := s.shorts[writer]
	if !ok {
		g.mu.Unlock()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: writer %s", ErrNoShortPosition, writer.Hex())
	}
	if short.settled {
		g.mu.Unlock()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: writer %s", ErrAlreadySettled, writer.Hex())
	}
	short.settled = true
	collateral := short.collateral
	minted := short.minted
	g.mu.Unlock()

	collateralLedger, err := g.tokens.Get(s.terms.CollateralAsset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// What the writer gets back is collateral minus the cash value owed
	// to in-the-money longs at settlement.
	mintedWad, err := utils.ToWad(minted, optionTokenDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	owedWad, err := g.cashValue(s.terms, mintedWad)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	owed, err := utils.FromWad(owedWad, collateralLedger.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	returned := collateral.Sub(owed)
	if returned.IsNegative() {
		returned = sdkmath.ZeroInt()
	}
	if returned.IsPositive() {
		if err := collateralLedger.Transfer(g.treasury(), writer, returned); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	gammaLogger := logger.GetForComponent("gamma_protocol")
	gammaLogger.Info().
		Str("optionToken", optionToken.Hex()).
		Str("writer", writer.Hex()).
		Str("returned", returned.String()).
		Msg("Short settled")
	return returned, nil
}

// cashValue is the settlement value of a wad notional, in collateral-
// asset wads: puts settle in the strike asset at (strike-spot), calls in
// the underlying at (spot-strike)/spot.
func (g *MemGamma) cashValue(terms types.OptionTerms, amountWad sdkmath.Int) (sdkmath.Int, error) {
	spot, _, err := g.oracle.LatestPrice(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	wad := sdkmath.NewIntWithDecimal(1, 18)
	switch terms.OptionType {
	case types.Put:
		if terms.StrikePrice.LTE(spot) {
			return sdkmath.ZeroInt(), nil
		}
		return utils.MulDiv(amountWad, terms.StrikePrice.Sub(spot), wad)
	case types.Call:
		if spot.LTE(terms.StrikePrice) {
			return sdkmath.ZeroInt(), nil
		}
		return utils.MulDiv(amountWad, spot.Sub(terms.StrikePrice), spot)
	default:
		return sdkmath.ZeroInt(), types.ErrInvalidOptionType
	}
}

func (g *MemGamma) Profit(optionToken common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !s.terms.Expiry.After(time.Now()) {
		return sdkmath.ZeroInt(), nil
	}
	amountWad, err := utils.ToWad(amount, optionTokenDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return g.cashValue(s.terms, amountWad)
}

func (g *MemGamma) Redeem(holder common.Address, optionToken common.Address, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error) {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !s.terms.Expiry.After(time.Now()) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: expiry %s", ErrOptionExpired, s.terms.Expiry)
	}
	if err := s.token.burn(holder, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}

	amountWad, err := utils.ToWad(amount, optionTokenDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payoutWad, err := g.cashValue(s.terms, amountWad)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if payoutWad.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	collateralLedger, err := g.tokens.Get(s.terms.CollateralAsset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	payout, err := utils.FromWad(payoutWad, collateralLedger.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if collateralLedger.BalanceOf(g.treasury()).LT(payout) {
		// Settlement pool backstop, same convention as the other venue.
		if err := collateralLedger.Mint(g.treasury(), payout); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if err := collateralLedger.Transfer(g.treasury(), recipient, payout); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return payoutWad, nil
}

func (g *MemGamma) Balance(holder common.Address, optionToken common.Address) sdkmath.Int {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return sdkmath.ZeroInt()
	}
	return s.token.balanceOf(holder)
}

func (g *MemGamma) TransferOption(from, to common.Address, optionToken common.Address, amount sdkmath.Int) error {
	s, err := g.getSeries(optionToken)
	if err != nil {
		return err
	}
	return s.token.transfer(from, to, amount)
}

func (g *MemGamma) treasury() common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("gamma:treasury"))[12:])
}
