/*

This file contains the adapter for the fungible tokenized-option
protocol. Long positions are option-token balances (Purchase returns ID
0 by convention); the venue also mints collateralized shorts, which is
what the vault rotates through. The venue cash-settles in the series'
collateral asset, so exercise converts the payout to the underlying
through the settlement counterparty when the two differ.

*/

package adapter

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/utils"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

const gammaProtocolName = "GAMMA"

// GammaAdapter adapts the fungible tokenized-option protocol to the
// Protocol contract.
type GammaAdapter struct {
	proto     venue.TokenProtocol
	oracle    oracle.PriceOracle
	converter swap.Converter
	tokens    *venue.TokenRegistry
	logger    zerolog.Logger
}

func NewGammaAdapter(proto venue.TokenProtocol, po oracle.PriceOracle, converter swap.Converter, tokens *venue.TokenRegistry) (*GammaAdapter, error) {
	if proto == nil {
		return nil, errors.New("token protocol cannot be nil")
	}
	if po == nil {
		return nil, errors.New("price oracle cannot be nil")
	}
	if converter == nil {
		return nil, errors.New("converter cannot be nil")
	}
	if tokens == nil {
		return nil, errors.New("token registry cannot be nil")
	}
	return &GammaAdapter{
		proto:     proto,
		oracle:    po,
		converter: converter,
		tokens:    tokens,
		logger:    logger.GetForComponent("gamma_adapter"),
	}, nil
}

func (a *GammaAdapter) ProtocolName() string { return gammaProtocolName }
func (a *GammaAdapter) NonFungible() bool    { return false }

func (a *GammaAdapter) OptionsExist(terms types.OptionTerms) bool {
	return a.proto.Exists(terms) && terms.Expiry.After(time.Now())
}

func (a *GammaAdapter) GetOptionsAddress(terms types.OptionTerms) (common.Address, error) {
	addr, err := a.proto.OptionToken(terms)
	if err != nil {
		return common.Address{}, errors.Join(ErrNotFound, err)
	}
	return addr, nil
}

func (a *GammaAdapter) Premium(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	return a.proto.Quote(terms, amount)
}

func (a *GammaAdapter) Purchase(buyer common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (uint64, error) {
	cost, err := a.proto.Buy(buyer, terms, amount, payment)
	if err != nil {
		if errors.Is(err, venue.ErrInsufficientPayment) {
			return 0, errors.Join(ErrInsufficientPayment, err)
		}
		return 0, err
	}
	a.logger.Debug().Str("buyer", buyer.Hex()).Str("cost", cost.String()).Msg("Purchased option tokens")
	// Fungible venue: ownership is the token balance, not an ID.
	return 0, nil
}

// exerciseAmount resolves the option-token amount a holder can exercise:
// the requested wad notional capped at the held balance.
func (a *GammaAdapter) exerciseAmount(holder, options common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	held := a.proto.Balance(holder, options)
	if amount.IsNil() || amount.IsZero() {
		return held, nil
	}
	tokenAmount, err := utils.FromWad(amount, 8)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if tokenAmount.GT(held) {
		tokenAmount = held
	}
	return tokenAmount, nil
}

// toUnderlying converts a collateral-asset wad value into
// underlying-equivalent wads at the oracle rate.
func (a *GammaAdapter) toUnderlying(terms types.OptionTerms, collateralWad sdkmath.Int) (sdkmath.Int, error) {
	if terms.CollateralAsset == terms.Underlying || collateralWad.IsZero() {
		return collateralWad, nil
	}
	collateralPrice, _, err := a.oracle.LatestPrice(terms.CollateralAsset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	spot, _, err := a.oracle.LatestPrice(terms.Underlying)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.MulDiv(collateralWad, collateralPrice, spot)
}

func (a *GammaAdapter) ExerciseProfit(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	tokenAmount, err := a.exerciseAmount(holder, options, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if tokenAmount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	profit, err := a.proto.Profit(options, tokenAmount)
	if err != nil {
		if errors.Is(err, venue.ErrSeriesNotFound) {
			return sdkmath.ZeroInt(), errors.Join(ErrNotFound, err)
		}
		return sdkmath.ZeroInt(), err
	}
	terms, err := a.proto.Terms(options)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.toUnderlying(terms, profit)
}

func (a *GammaAdapter) Exercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error) {
	tokenAmount, err := a.exerciseAmount(holder, options, amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if tokenAmount.IsZero() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: no option tokens held", ErrAlreadyExercised)
	}
	payoutWad, err := a.proto.Redeem(holder, options, tokenAmount, recipient)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Convert the payout to underlying when the venue settled in a
	// different collateral currency, so the recipient always ends up
	// holding underlying.
	terms, err := a.proto.Terms(options)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	netWad := payoutWad
	if terms.CollateralAsset != terms.Underlying && payoutWad.IsPositive() {
		collateralLedger, err := a.tokens.Get(terms.CollateralAsset)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		underlyingLedger, err := a.tokens.Get(terms.Underlying)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		payoutUnits, err := utils.FromWad(payoutWad, collateralLedger.Decimals())
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		outUnits, err := a.converter.Convert(recipient, terms.CollateralAsset, terms.Underlying, payoutUnits)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		netWad, err = utils.ToWad(outUnits, underlyingLedger.Decimals())
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	a.logger.Debug().
		Str("optionToken", options.Hex()).
		Str("payout", netWad.String()).
		Str("recipient", recipient.Hex()).
		Msg("Redeemed option tokens")
	return netWad, nil
}

func (a *GammaAdapter) CanExercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (bool, error) {
	profit, err := a.ExerciseProfit(holder, options, optionID, amount)
	if err != nil {
		return false, err
	}
	return profit.IsPositive(), nil
}

func (a *GammaAdapter) CreateShort(writer common.Address, terms types.OptionTerms, collateralAmount sdkmath.Int) (common.Address, sdkmath.Int, error) {
	optionToken, minted, err := a.proto.MintShort(writer, terms, collateralAmount)
	if err != nil {
		return common.Address{}, sdkmath.ZeroInt(), err
	}
	a.logger.Info().
		Str("optionToken", optionToken.Hex()).
		Str("collateral", collateralAmount.String()).
		Str("minted", minted.String()).
		Msg("Opened collateralized short")
	return optionToken, minted, nil
}

func (a *GammaAdapter) CloseShort(writer common.Address, options common.Address) (sdkmath.Int, error) {
	released, err := a.proto.SettleShort(writer, options)
	if err != nil {
		if errors.Is(err, venue.ErrAlreadySettled) {
			return sdkmath.ZeroInt(), errors.Join(ErrAlreadyExercised, err)
		}
		return sdkmath.ZeroInt(), err
	}
	a.logger.Info().
		Str("optionToken", options.Hex()).
		Str("released", released.String()).
		Msg("Closed short position")
	return released, nil
}

// DeliverShortTokens moves minted option tokens from the writer to the
// settlement counterparty.
func (a *GammaAdapter) DeliverShortTokens(from, to, options common.Address, amount sdkmath.Int) error {
	return a.proto.TransferOption(from, to, options, amount)
}
