/*

This file contains the capital-rotation lifecycle: committing the next
option, settling the expired short and rolling 90% of the pool into the
new one. The commit and the roll are separated by RolloverDelay so a
bad commitment can be observed and replaced before any capital moves.

*/

package vault

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/config"
	"github.com/0xhector27/ribbon-v1/internal/metrics"
	"github.com/0xhector27/ribbon-v1/internal/types"
)

// CommitAndClose commits terms as the next option and settles the
// current short if one is open. Manager only. The committed option
// becomes rollable after RolloverDelay.
func (v *ThetaVault) CommitAndClose(caller common.Address, terms types.OptionTerms) error {
	if caller != v.manager {
		return ErrNotAuthorized
	}
	if err := v.acquire(); err != nil {
		return err
	}
	defer v.release()

	if err := v.validateNextOption(terms); err != nil {
		return err
	}

	now := time.Now()
	v.mu.Lock()
	current := v.currentOption
	expiry := v.currentOptionExpiry
	v.mu.Unlock()

	if current != types.ZeroAddress {
		if now.Before(expiry) {
			return fmt.Errorf("%w: expires %s", ErrOptionNotExpired, expiry.UTC())
		}
		if _, err := v.closeCurrentShort(); err != nil {
			return err
		}
	}

	v.mu.Lock()
	v.nextOption = terms
	v.nextOptionSet = true
	v.nextOptionReadyAt = now.Add(config.RolloverDelay)
	readyAt := v.nextOptionReadyAt
	v.mu.Unlock()

	v.logger.Info().
		Str("optionType", terms.OptionType.String()).
		Str("strike", terms.StrikePrice.String()).
		Time("expiry", terms.Expiry).
		Time("readyAt", readyAt).
		Msg("Next option committed")
	return nil
}

// validateNextOption checks terms against the vault's configuration.
func (v *ThetaVault) validateNextOption(terms types.OptionTerms) error {
	if err := terms.Validate(); err != nil {
		return err
	}
	if terms.OptionType != v.optionType {
		return fmt.Errorf("%w: vault sells %s", ErrMismatchedTerms, v.optionType)
	}
	if terms.Underlying != v.asset.Address() {
		return fmt.Errorf("%w: underlying %s", ErrMismatchedTerms, terms.Underlying.Hex())
	}
	if terms.StrikeAsset != v.strikeAsset {
		return fmt.Errorf("%w: strike asset %s", ErrMismatchedTerms, terms.StrikeAsset.Hex())
	}
	if terms.CollateralAsset != v.collateral.Address() {
		return fmt.Errorf("%w: collateral %s", ErrMismatchedTerms, terms.CollateralAsset.Hex())
	}
	if terms.Expiry.Before(time.Now().Add(config.MinTimeToExpiry)) {
		return fmt.Errorf("%w: expiry %s", ErrExpiryTooClose, terms.Expiry.UTC())
	}
	return nil
}

// CloseShort settles the current short after expiry, releasing its
// collateral back into the pool. Callable by anyone once the option has
// expired; the settlement outcome is fixed at that point.
func (v *ThetaVault) CloseShort(caller common.Address) (sdkmath.Int, error) {
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()

	v.mu.Lock()
	current := v.currentOption
	expiry := v.currentOptionExpiry
	v.mu.Unlock()

	if current == types.ZeroAddress {
		return sdkmath.ZeroInt(), ErrNoActiveShort
	}
	if time.Now().Before(expiry) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: expires %s", ErrOptionNotExpired, expiry.UTC())
	}
	released, err := v.closeCurrentShort()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.logger.Info().
		Str("caller", caller.Hex()).
		Str("released", released.String()).
		Msg("Short closed")
	return released, nil
}

// closeCurrentShort settles the venue position and clears the locked
// accounting. Caller holds the guard and has checked expiry.
func (v *ThetaVault) closeCurrentShort() (sdkmath.Int, error) {
	v.mu.Lock()
	current := v.currentOption
	v.mu.Unlock()

	released, err := v.adapter.CloseShort(v.address, current)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.mu.Lock()
	v.currentOption = types.ZeroAddress
	v.currentOptionExpiry = time.Time{}
	v.lockedAmount = sdkmath.ZeroInt()
	v.lockedShares = sdkmath.ZeroInt()
	v.mu.Unlock()

	metrics.VaultLockedAmount.WithLabelValues(v.name).Set(0)
	return released, nil
}

// RollToNextOption opens the short on the committed option with 90% of
// the pool's value. Manager only; requires the rollover delay to have
// elapsed and no short to be open.
func (v *ThetaVault) RollToNextOption(caller common.Address) error {
	if caller != v.manager {
		return ErrNotAuthorized
	}
	if err := v.acquire(); err != nil {
		return err
	}
	defer v.release()

	v.mu.Lock()
	if !v.nextOptionSet {
		v.mu.Unlock()
		return ErrNoNextOption
	}
	terms := v.nextOption
	readyAt := v.nextOptionReadyAt
	current := v.currentOption
	v.mu.Unlock()

	now := time.Now()
	if now.Before(readyAt) {
		return fmt.Errorf("%w: ready at %s", ErrRollTooEarly, readyAt.UTC())
	}
	if current != types.ZeroAddress {
		return ErrShortStillOpen
	}

	// Wrap the entire free balance so all capital earns the collateral
	// yield, whether locked or not.
	free := v.asset.BalanceOf(v.address)
	if free.IsPositive() {
		if _, err := v.collateral.Deposit(v.address, free); err != nil {
			return err
		}
	}

	total, err := v.totalBalance()
	if err != nil {
		return err
	}
	lockedAsset := config.LockedRatio.MulInt(total).TruncateInt()
	shortTokens, err := v.assetToCollateral(lockedAsset)
	if err != nil {
		return err
	}
	held := v.collateral.BalanceOf(v.address)
	if shortTokens.GT(held) {
		shortTokens = held
	}
	if !shortTokens.IsPositive() {
		return types.ErrZeroAmount
	}

	optionAddr, minted, err := v.adapter.CreateShort(v.address, terms, shortTokens)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.currentOption = optionAddr
	v.currentOptionExpiry = terms.Expiry
	v.lockedAmount = lockedAsset
	v.lockedShares = shortTokens
	v.nextOptionSet = false
	v.rotations++
	rotation := v.rotations
	supply := v.totalShares
	v.mu.Unlock()

	// Fungible venues mint transferable short tokens; hand them to the
	// settlement counterparty so the premium leg can be filled.
	if deliverer, ok := v.adapter.(adapter.ShortTokenDeliverer); ok && minted.IsPositive() {
		if err := deliverer.DeliverShortTokens(v.address, v.counterparty.Address(), optionAddr, minted); err != nil {
			return err
		}
	}

	metrics.RotationsTotal.WithLabelValues(v.name).Inc()
	metrics.VaultLockedAmount.WithLabelValues(v.name).Set(metrics.IntValue(lockedAsset))
	metrics.VaultShareSupply.WithLabelValues(v.name).Set(metrics.IntValue(supply))

	v.logger.Info().
		Int("rotation", rotation).
		Str("option", optionAddr.Hex()).
		Str("lockedAsset", lockedAsset.String()).
		Str("shortTokens", shortTokens.String()).
		Str("minted", minted.String()).
		Msg("Rolled into next option")
	return nil
}

// EmergencyClose abandons the committed next option and, when the
// current short has expired, settles it. Owner-only recovery hatch used
// when a committed option turns out to be wrong.
func (v *ThetaVault) EmergencyClose(caller common.Address) (sdkmath.Int, error) {
	if caller != v.owner {
		return sdkmath.ZeroInt(), ErrNotAuthorized
	}
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()

	v.mu.Lock()
	v.nextOptionSet = false
	v.nextOptionReadyAt = time.Time{}
	current := v.currentOption
	expiry := v.currentOptionExpiry
	v.mu.Unlock()

	released := sdkmath.ZeroInt()
	if current != types.ZeroAddress && !time.Now().Before(expiry) {
		var err error
		released, err = v.closeCurrentShort()
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	v.logger.Warn().
		Str("caller", caller.Hex()).
		Str("released", released.String()).
		Msg("Emergency close")
	return released, nil
}
