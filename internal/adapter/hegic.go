/*

This file contains the adapter for the non-fungible options market.
Positions are integer IDs bound to the buyer; the venue has no writing
side, so the short-rotation methods report ErrNotSupported and the vault
must rotate through a venue that can mint shorts.

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
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

const hegicProtocolName = "HEGIC"

// HegicAdapter adapts the non-fungible options market to the Protocol
// contract.
type HegicAdapter struct {
	market venue.OptionsMarket
	logger zerolog.Logger
}

func NewHegicAdapter(market venue.OptionsMarket) (*HegicAdapter, error) {
	if market == nil {
		return nil, errors.New("options market cannot be nil")
	}
	return &HegicAdapter{
		market: market,
		logger: logger.GetForComponent("hegic_adapter"),
	}, nil
}

func (a *HegicAdapter) ProtocolName() string { return hegicProtocolName }
func (a *HegicAdapter) NonFungible() bool    { return true }

func (a *HegicAdapter) OptionsExist(terms types.OptionTerms) bool {
	if err := terms.Validate(); err != nil {
		return false
	}
	if _, ok := a.market.ContractAddress(terms.Underlying); !ok {
		return false
	}
	return terms.Expiry.After(time.Now())
}

func (a *HegicAdapter) GetOptionsAddress(terms types.OptionTerms) (common.Address, error) {
	if err := terms.Validate(); err != nil {
		return common.Address{}, errors.Join(ErrNotFound, err)
	}
	addr, ok := a.market.ContractAddress(terms.Underlying)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: underlying %s", ErrNotFound, terms.Underlying.Hex())
	}
	return addr, nil
}

func (a *HegicAdapter) Premium(terms types.OptionTerms, amount sdkmath.Int) (sdkmath.Int, error) {
	return a.market.Quote(terms, amount)
}

func (a *HegicAdapter) Purchase(buyer common.Address, terms types.OptionTerms, amount, payment sdkmath.Int) (uint64, error) {
	id, err := a.market.CreateOption(buyer, terms, amount, payment)
	if err != nil {
		if errors.Is(err, venue.ErrInsufficientPayment) {
			return 0, errors.Join(ErrInsufficientPayment, err)
		}
		return 0, err
	}
	a.logger.Debug().Uint64("optionID", id).Str("buyer", buyer.Hex()).Msg("Purchased option")
	return id, nil
}

func (a *HegicAdapter) ExerciseProfit(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (sdkmath.Int, error) {
	return a.market.Profit(optionID, amount)
}

func (a *HegicAdapter) Exercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int, recipient common.Address) (sdkmath.Int, error) {
	payout, err := a.market.Exercise(holder, optionID, amount, recipient)
	if err != nil {
		if errors.Is(err, venue.ErrAlreadyExercised) {
			return sdkmath.ZeroInt(), errors.Join(ErrAlreadyExercised, err)
		}
		return sdkmath.ZeroInt(), err
	}
	return payout, nil
}

func (a *HegicAdapter) CanExercise(holder common.Address, options common.Address, optionID uint64, amount sdkmath.Int) (bool, error) {
	profit, err := a.market.Profit(optionID, amount)
	if err != nil {
		return false, err
	}
	return profit.IsPositive(), nil
}

func (a *HegicAdapter) CreateShort(writer common.Address, terms types.OptionTerms, collateralAmount sdkmath.Int) (common.Address, sdkmath.Int, error) {
	return common.Address{}, sdkmath.ZeroInt(), fmt.Errorf("%w: %s has no writing side", ErrNotSupported, hegicProtocolName)
}

func (a *HegicAdapter) CloseShort(writer common.Address, options common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), fmt.Errorf("%w: %s has no writing side", ErrNotSupported, hegicProtocolName)
}
