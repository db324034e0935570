/*

This file contains the read-only views of the vault. Every view derives
from the same two primitives, totalBalance and the share supply, so any
two independently computed views of pool value agree exactly given the
same state.

*/

package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/utils"
)

// totalBalance is the total pool value in asset base units: the free
// asset balance plus the asset value of every collateral-wrapper token
// the vault controls, including the ones locked behind the short.
func (v *ThetaVault) totalBalance() (sdkmath.Int, error) {
	free := v.asset.BalanceOf(v.address)

	v.mu.Lock()
	locked := v.lockedShares
	v.mu.Unlock()

	wrapperTokens := v.collateral.BalanceOf(v.address).Add(locked)
	if wrapperTokens.IsZero() {
		return free, nil
	}
	wrapped, err := v.collateralToAsset(wrapperTokens)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return free.Add(wrapped), nil
}

// availableToWithdraw is the pool value not locked behind the current
// short: total minus the locked amount recorded at roll time.
func (v *ThetaVault) availableToWithdraw() (sdkmath.Int, error) {
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mu.Lock()
	locked := v.lockedAmount
	v.mu.Unlock()
	avail := total.Sub(locked)
	if avail.IsNegative() {
		return sdkmath.ZeroInt(), nil
	}
	return avail, nil
}

// collateralToAsset values wrapper tokens in asset base units at the
// current exchange rate, truncating toward zero.
func (v *ThetaVault) collateralToAsset(tokens sdkmath.Int) (sdkmath.Int, error) {
	tokensWad, err := utils.ToWad(tokens, v.collateral.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	wad, err := utils.Pow10(utils.WadDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	assetWad, err := utils.MulDiv(tokensWad, v.collateral.PricePerShare(), wad)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.FromWad(assetWad, v.asset.Decimals())
}

// collateralToAssetUp is collateralToAsset rounding against the pool.
func (v *ThetaVault) collateralToAssetUp(tokens sdkmath.Int) (sdkmath.Int, error) {
	amount, err := v.collateralToAsset(tokens)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsZero() && tokens.IsPositive() {
		return sdkmath.OneInt(), nil
	}
	return amount.Add(sdkmath.OneInt()), nil
}

// assetToCollateral converts an asset amount into wrapper units at the
// current exchange rate, truncating toward zero.
func (v *ThetaVault) assetToCollateral(amount sdkmath.Int) (sdkmath.Int, error) {
	amountWad, err := utils.ToWad(amount, v.asset.Decimals())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	wad, err := utils.Pow10(utils.WadDecimals)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	tokensWad, err := utils.MulDiv(amountWad, wad, v.collateral.PricePerShare())
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.FromWad(tokensWad, v.collateral.Decimals())
}

// assetToCollateralUp is assetToCollateral rounding up so the converted
// wrapper amount always covers the asset amount.
func (v *ThetaVault) assetToCollateralUp(amount sdkmath.Int) (sdkmath.Int, error) {
	tokens, err := v.assetToCollateral(amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return tokens.Add(sdkmath.OneInt()), nil
}

// --- Public views ---

// TotalBalance returns the total pool value in asset base units.
func (v *ThetaVault) TotalBalance() (sdkmath.Int, error) {
	return v.totalBalance()
}

// AssetBalance returns the free (unwrapped, unlocked) asset balance.
func (v *ThetaVault) AssetBalance() sdkmath.Int {
	return v.asset.BalanceOf(v.address)
}

// AvailableToWithdraw returns the pool value withdrawable right now.
func (v *ThetaVault) AvailableToWithdraw() (sdkmath.Int, error) {
	return v.availableToWithdraw()
}

// WithdrawAmountWithShares quotes the gross asset amount and fee for
// burning the given shares.
func (v *ThetaVault) WithdrawAmountWithShares(shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	return v.withdrawAmount(shares)
}

// MaxWithdrawableShares returns the largest share amount the account
// could burn right now, bounded by both its balance and the unlocked
// pool liquidity.
func (v *ThetaVault) MaxWithdrawableShares(account common.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	supply := v.totalShares
	bal := sdkmath.ZeroInt()
	if b, ok := v.shares[account]; ok {
		bal = b
	}
	v.mu.Unlock()
	if supply.IsZero() || bal.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	available, err := v.availableToWithdraw()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liquidityShares, err := utils.MulDiv(available, supply, total)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if bal.LT(liquidityShares) {
		return bal, nil
	}
	return liquidityShares, nil
}

// AccountVaultBalance values the account's shares in asset base units.
func (v *ThetaVault) AccountVaultBalance(account common.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	supply := v.totalShares
	bal := sdkmath.ZeroInt()
	if b, ok := v.shares[account]; ok {
		bal = b
	}
	v.mu.Unlock()
	if supply.IsZero() || bal.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return utils.MulDiv(total, bal, supply)
}

// AssetAmountToShares converts an asset amount into shares at the
// current share price.
func (v *ThetaVault) AssetAmountToShares(amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	v.mu.Lock()
	supply := v.totalShares
	v.mu.Unlock()
	if supply.IsZero() {
		return amount, nil
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return amount, nil
	}
	return utils.MulDiv(amount, supply, total)
}

// ShareBalance returns the account's share balance.
func (v *ThetaVault) ShareBalance(account common.Address) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b, ok := v.shares[account]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

// TotalShares returns the outstanding share supply.
func (v *ThetaVault) TotalShares() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

// LockedAmount returns the asset value recorded when the current short
// was opened. Zero when no short is open.
func (v *ThetaVault) LockedAmount() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lockedAmount
}

// CurrentOption returns the venue identity of the open short, or the
// zero address when none is open.
func (v *ThetaVault) CurrentOption() common.Address {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentOption
}

// NextOptionReadyAt returns the earliest time RollToNextOption may run.
// Zero time when no next option is committed.
func (v *ThetaVault) NextOptionReadyAt() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.nextOptionSet {
		return time.Time{}
	}
	return v.nextOptionReadyAt
}

// WithdrawalFee returns the current instant withdrawal fee fraction.
func (v *ThetaVault) WithdrawalFee() sdkmath.LegacyDec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.withdrawalFee
}

// Cap returns the current pool cap in asset base units.
func (v *ThetaVault) Cap() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cap
}

// Snapshot captures the vault's rotation-relevant state for persistence
// and reporting.
func (v *ThetaVault) Snapshot() (types.RotationSnapshot, error) {
	total, err := v.totalBalance()
	if err != nil {
		return types.RotationSnapshot{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return types.RotationSnapshot{
		RotationNumber: v.rotations,
		Timestamp:      time.Now().UTC(),
		OptionAddress:  v.currentOption,
		LockedAmount:   v.lockedAmount,
		TotalBalance:   total,
		ShareSupply:    v.totalShares,
		ClosedAmount:   sdkmath.ZeroInt(),
	}, nil
}

// capacityRemaining is how much more the pool can take before the cap.
func (v *ThetaVault) capacityRemaining() (sdkmath.Int, error) {
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mu.Lock()
	cap := v.cap
	v.mu.Unlock()
	if total.GTE(cap) {
		return sdkmath.ZeroInt(), nil
	}
	return cap.Sub(total), nil
}
