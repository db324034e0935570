/*

This file contains the core of the theta vault: construction, the
non-reentrant operation guard, role management and the deposit/withdraw
share accounting.

Share math: the first deposit bootstraps at 1:1; afterwards
shares = amount * supply / (balanceAfterDeposit - amount), i.e. priced
against the pool value before the deposit's own contribution so a
depositor can never dilute themselves. Withdrawals burn shares before
any external transfer.

*/

package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/config"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/metrics"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotAuthorized            = errors.New("caller is not authorized")
	ErrReentrantCall            = errors.New("operation already in progress")
	ErrCapExceeded              = errors.New("deposit would exceed vault cap")
	ErrInsufficientPoolBalance  = errors.New("pool balance below minimum floor")
	ErrInsufficientShareSupply  = errors.New("share supply below minimum floor")
	ErrExceedsAvailable         = errors.New("withdrawal exceeds available balance")
	ErrInsufficientShares       = errors.New("insufficient share balance")
	ErrRollTooEarly             = errors.New("rollover delay has not elapsed")
	ErrNoNextOption             = errors.New("no next option committed")
	ErrShortStillOpen           = errors.New("current short is still open")
	ErrNoActiveShort            = errors.New("no active short position")
	ErrOptionNotExpired         = errors.New("current option is not expired")
	ErrFeeTooHigh               = errors.New("withdrawal fee exceeds maximum")
	ErrMismatchedTerms          = errors.New("terms do not match vault configuration")
	ErrExpiryTooClose           = errors.New("option expiry is below minimum time to expiry")
	ErrZeroShares               = errors.New("computed shares are zero")
)

// Config assembles the collaborators and initial parameters of a vault.
type Config struct {
	Name          string
	Asset         token.ERC20
	WrappedNative *token.WrappedNative // nil unless Asset is the wrapped native token
	Collateral    token.YieldWrapper
	Adapter       adapter.Protocol
	Counterparty  swap.Counterparty
	OptionType    types.OptionType // the payoff direction this vault sells
	StrikeAsset   common.Address

	Owner         common.Address
	Manager       common.Address
	FeeRecipient  common.Address
	Cap           sdkmath.Int       // asset base units
	WithdrawalFee sdkmath.LegacyDec // fraction, < MaxWithdrawalFee
}

// ThetaVault is the concrete share-accounting and capital-rotation
// engine. One instance per vault; long-lived.
type ThetaVault struct {
	mu   sync.Mutex
	busy bool

	name          string
	address       common.Address
	asset         token.ERC20
	wrappedNative *token.WrappedNative
	collateral    token.YieldWrapper
	adapter       adapter.Protocol
	counterparty  swap.Counterparty
	optionType    types.OptionType
	strikeAsset   common.Address

	owner         common.Address
	manager       common.Address
	feeRecipient  common.Address
	cap           sdkmath.Int
	withdrawalFee sdkmath.LegacyDec

	totalShares sdkmath.Int
	shares      map[common.Address]sdkmath.Int

	currentOption       common.Address
	currentOptionExpiry time.Time
	lockedAmount        sdkmath.Int // asset units at time of locking
	lockedShares        sdkmath.Int // collateral-wrapper units backing the short
	nextOption          types.OptionTerms
	nextOptionSet       bool
	nextOptionReadyAt   time.Time

	rotations int
	logger    zerolog.Logger
}

// NewThetaVault creates a vault with comprehensive validation.
func NewThetaVault(cfg Config) (*ThetaVault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}

	v := &ThetaVault{
		name:          cfg.Name,
		address:       common.BytesToAddress(crypto.Keccak256([]byte("vault:" + cfg.Name))[12:]),
		asset:         cfg.Asset,
		wrappedNative: cfg.WrappedNative,
		collateral:    cfg.Collateral,
		adapter:       cfg.Adapter,
		counterparty:  cfg.Counterparty,
		optionType:    cfg.OptionType,
		strikeAsset:   cfg.StrikeAsset,
		owner:         cfg.Owner,
		manager:       cfg.Manager,
		feeRecipient:  cfg.FeeRecipient,
		cap:           cfg.Cap,
		withdrawalFee: cfg.WithdrawalFee,
		totalShares:   sdkmath.ZeroInt(),
		shares:        make(map[common.Address]sdkmath.Int),
		lockedAmount:  sdkmath.ZeroInt(),
		lockedShares:  sdkmath.ZeroInt(),
		logger:        logger.GetForComponent("theta_vault"),
	}

	v.logger.Info().
		Str("name", cfg.Name).
		Str("address", v.address.Hex()).
		Str("asset", cfg.Asset.Symbol()).
		Str("optionType", cfg.OptionType.String()).
		Msg("ThetaVault initialized")
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return errors.New("vault name cannot be empty")
	}
	if cfg.Asset == nil {
		return errors.New("asset cannot be nil")
	}
	if cfg.Collateral == nil {
		return errors.New("collateral wrapper cannot be nil")
	}
	if cfg.Adapter == nil {
		return errors.New("adapter cannot be nil")
	}
	if cfg.Counterparty == nil {
		return errors.New("settlement counterparty cannot be nil")
	}
	if !cfg.OptionType.Valid() {
		return types.ErrInvalidOptionType
	}
	if cfg.Owner == types.ZeroAddress || cfg.Manager == types.ZeroAddress || cfg.FeeRecipient == types.ZeroAddress {
		return types.ErrZeroAddress
	}
	if cfg.StrikeAsset == types.ZeroAddress {
		return types.ErrZeroAddress
	}
	if cfg.Cap.IsNil() || !cfg.Cap.IsPositive() {
		return errors.New("cap must be positive")
	}
	if cfg.WithdrawalFee.IsNil() || cfg.WithdrawalFee.IsNegative() {
		return errors.New("withdrawal fee cannot be negative")
	}
	if cfg.WithdrawalFee.GTE(config.MaxWithdrawalFee) {
		return ErrFeeTooHigh
	}
	return nil
}

// Address returns the vault's own account identity.
func (v *ThetaVault) Address() common.Address { return v.address }

// Name returns the vault's name.
func (v *ThetaVault) Name() string { return v.name }

// acquire takes the operation guard. A second operation arriving while
// one is in progress fails immediately instead of waiting, which is the
// non-reentrant semantics every state-mutating entry point needs.
func (v *ThetaVault) acquire() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.busy {
		return ErrReentrantCall
	}
	v.busy = true
	return nil
}

// release drops the operation guard. Deferred on every exit path.
func (v *ThetaVault) release() {
	v.mu.Lock()
	v.busy = false
	v.mu.Unlock()
}

// --- Role management ---

// SetManager changes the manager. Owner only.
func (v *ThetaVault) SetManager(caller, newManager common.Address) error {
	if caller != v.owner {
		return ErrNotAuthorized
	}
	if newManager == types.ZeroAddress {
		return types.ErrZeroAddress
	}
	v.mu.Lock()
	v.manager = newManager
	v.mu.Unlock()
	v.logger.Info().Str("manager", newManager.Hex()).Msg("Manager updated")
	return nil
}

// SetFeeRecipient changes the fee recipient. Owner only.
func (v *ThetaVault) SetFeeRecipient(caller, newRecipient common.Address) error {
	if caller != v.owner {
		return ErrNotAuthorized
	}
	if newRecipient == types.ZeroAddress {
		return types.ErrZeroAddress
	}
	v.mu.Lock()
	v.feeRecipient = newRecipient
	v.mu.Unlock()
	return nil
}

// SetCap changes the pool cap. Manager only.
func (v *ThetaVault) SetCap(caller common.Address, newCap sdkmath.Int) error {
	if caller != v.manager {
		return ErrNotAuthorized
	}
	if newCap.IsNil() || !newCap.IsPositive() {
		return types.ErrZeroAmount
	}
	v.mu.Lock()
	v.cap = newCap
	v.mu.Unlock()
	v.logger.Info().Str("cap", newCap.String()).Msg("Cap updated")
	return nil
}

// SetWithdrawalFee changes the instant withdrawal fee. Manager only,
// bounded by MaxWithdrawalFee.
func (v *ThetaVault) SetWithdrawalFee(caller common.Address, newFee sdkmath.LegacyDec) error {
	if caller != v.manager {
		return ErrNotAuthorized
	}
	if newFee.IsNil() || newFee.IsNegative() || newFee.GTE(config.MaxWithdrawalFee) {
		return ErrFeeTooHigh
	}
	v.mu.Lock()
	v.withdrawalFee = newFee
	v.mu.Unlock()
	v.logger.Info().Str("fee", newFee.String()).Msg("Withdrawal fee updated")
	return nil
}

// --- Deposits ---

func (v *ThetaVault) Deposit(from common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()
	return v.depositAsset(from, amount)
}

func (v *ThetaVault) DepositETH(from common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if v.wrappedNative == nil {
		return sdkmath.ZeroInt(), token.ErrNotWrappedNative
	}
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()
	if err := v.wrappedNative.Wrap(from, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.depositAsset(from, amount)
}

// depositAsset runs the share math against the pool value measured
// before this deposit's contribution is counted. Caller holds the guard.
func (v *ThetaVault) depositAsset(from common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}

	balanceBefore, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	balanceAfter := balanceBefore.Add(amount)

	shares, err := v.sharesFor(amount, balanceAfter)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.checkDepositLimits(balanceAfter, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := v.asset.Transfer(from, v.address, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mintShares(from, shares)

	metrics.DepositsTotal.WithLabelValues(v.name).Inc()
	v.logger.Info().
		Str("account", from.Hex()).
		Str("amount", amount.String()).
		Str("shares", shares.String()).
		Msg("Deposit")
	return shares, nil
}

func (v *ThetaVault) DepositYieldToken(from common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()

	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}

	// Value the wrapper tokens at the current exchange rate, in asset units.
	assetValue, err := v.collateralToAsset(amount)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !assetValue.IsPositive() {
		return sdkmath.ZeroInt(), types.ErrZeroAmount
	}

	balanceBefore, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	balanceAfter := balanceBefore.Add(assetValue)

	shares, err := v.sharesFor(assetValue, balanceAfter)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.checkDepositLimits(balanceAfter, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := v.collateral.Transfer(from, v.address, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.mintShares(from, shares)

	metrics.DepositsTotal.WithLabelValues(v.name).Inc()
	v.logger.Info().
		Str("account", from.Hex()).
		Str("yieldTokens", amount.String()).
		Str("assetValue", assetValue.String()).
		Str("shares", shares.String()).
		Msg("Yield-token deposit")
	return shares, nil
}

// sharesFor computes minted shares for a deposit of amount, where
// balanceAfter already includes the deposit.
func (v *ThetaVault) sharesFor(amount, balanceAfter sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	supply := v.totalShares
	v.mu.Unlock()

	// Bootstrap path: zero supply prices 1:1 rather than dividing by zero.
	if supply.IsZero() {
		return amount, nil
	}
	balanceBefore := balanceAfter.Sub(amount)
	if balanceBefore.IsZero() {
		return amount, nil
	}
	shares, err := utils.MulDiv(amount, supply, balanceBefore)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroShares
	}
	return shares, nil
}

func (v *ThetaVault) checkDepositLimits(balanceAfter, newShares sdkmath.Int) error {
	v.mu.Lock()
	cap := v.cap
	supplyAfter := v.totalShares.Add(newShares)
	v.mu.Unlock()

	if balanceAfter.GT(cap) {
		return fmt.Errorf("%w: balance %s, cap %s", ErrCapExceeded, balanceAfter, cap)
	}
	if balanceAfter.LT(config.MinimumSupply) {
		return fmt.Errorf("%w: balance %s, floor %s", ErrInsufficientPoolBalance, balanceAfter, config.MinimumSupply)
	}
	if supplyAfter.LT(config.MinimumSupply) {
		return fmt.Errorf("%w: supply %s, floor %s", ErrInsufficientShareSupply, supplyAfter, config.MinimumSupply)
	}
	return nil
}

func (v *ThetaVault) mintShares(to common.Address, shares sdkmath.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := sdkmath.ZeroInt()
	if b, ok := v.shares[to]; ok {
		bal = b
	}
	v.shares[to] = bal.Add(shares)
	v.totalShares = v.totalShares.Add(shares)
}

// burnShares removes shares, failing when the balance is short. Caller
// holds the guard.
func (v *ThetaVault) burnShares(from common.Address, shares sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	bal := sdkmath.ZeroInt()
	if b, ok := v.shares[from]; ok {
		bal = b
	}
	if bal.LT(shares) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientShares, bal, shares)
	}
	v.shares[from] = bal.Sub(shares)
	v.totalShares = v.totalShares.Sub(shares)
	return nil
}

// --- Withdrawals ---

func (v *ThetaVault) Withdraw(from common.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()
	return v.withdrawAsset(from, shares, from)
}

func (v *ThetaVault) WithdrawETH(from common.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	if v.wrappedNative == nil {
		return sdkmath.ZeroInt(), token.ErrNotWrappedNative
	}
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()

	// Pay to the vault first, then unwrap to native for the caller.
	net, err := v.withdrawAsset(from, shares, v.address)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.wrappedNative.Unwrap(v.address, net, from); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return net, nil
}

// withdrawAsset burns shares before any transfer, deducts the instant
// withdrawal fee and pays recipient the net amount, unwrapping
// collateral-wrapper tokens when the free asset balance is short.
// Caller holds the guard.
func (v *ThetaVault) withdrawAsset(from common.Address, shares sdkmath.Int, recipient common.Address) (sdkmath.Int, error) {
	gross, fee, err := v.withdrawAmount(shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	available, err := v.availableToWithdraw()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if gross.GT(available) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: gross %s, available %s", ErrExceedsAvailable, gross, available)
	}

	// Effects before interactions: the share burn happens before any
	// token movement; a failed transfer restores the burn to keep the
	// operation atomic.
	if err := v.burnShares(from, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := v.ensureFreeAsset(gross); err != nil {
		v.mintShares(from, shares)
		return sdkmath.ZeroInt(), err
	}
	if fee.IsPositive() {
		if err := v.asset.Transfer(v.address, v.feeRecipient, fee); err != nil {
			v.mintShares(from, shares)
			return sdkmath.ZeroInt(), err
		}
	}
	net := gross.Sub(fee)
	if err := v.asset.Transfer(v.address, recipient, net); err != nil {
		// The fee leg cannot be unwound here without touching the
		// recipient's balance; restore shares and surface the fault.
		v.mintShares(from, shares)
		return sdkmath.ZeroInt(), err
	}

	metrics.WithdrawalsTotal.WithLabelValues(v.name).Inc()
	v.logger.Info().
		Str("account", from.Hex()).
		Str("shares", shares.String()).
		Str("gross", gross.String()).
		Str("fee", fee.String()).
		Msg("Withdrawal")
	return net, nil
}

func (v *ThetaVault) WithdrawYieldToken(from common.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	if err := v.acquire(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.release()

	gross, fee, err := v.withdrawAmount(shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	available, err := v.availableToWithdraw()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if gross.GT(available) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: gross %s, available %s", ErrExceedsAvailable, gross, available)
	}

	// Convert asset amounts into wrapper units at the current rate.
	grossTokens, err := v.assetToCollateral(gross)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	feeTokens, err := v.assetToCollateral(fee)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := v.burnShares(from, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := v.ensureCollateralTokens(grossTokens); err != nil {
		v.mintShares(from, shares)
		return sdkmath.ZeroInt(), err
	}
	if feeTokens.IsPositive() {
		if err := v.collateral.Transfer(v.address, v.feeRecipient, feeTokens); err != nil {
			v.mintShares(from, shares)
			return sdkmath.ZeroInt(), err
		}
	}
	net := grossTokens.Sub(feeTokens)
	if err := v.collateral.Transfer(v.address, from, net); err != nil {
		v.mintShares(from, shares)
		return sdkmath.ZeroInt(), err
	}

	metrics.WithdrawalsTotal.WithLabelValues(v.name).Inc()
	v.logger.Info().
		Str("account", from.Hex()).
		Str("shares", shares.String()).
		Str("yieldTokens", net.String()).
		Msg("Yield-token withdrawal")
	return net, nil
}

// withdrawAmount computes the gross asset amount and fee for burning
// shares at the current share price.
func (v *ThetaVault) withdrawAmount(shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrZeroAmount
	}
	v.mu.Lock()
	supply := v.totalShares
	fee := v.withdrawalFee
	v.mu.Unlock()
	if supply.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrInsufficientShareSupply
	}
	total, err := v.totalBalance()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	gross, err := utils.MulDiv(total, shares, supply)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	feeAmount := fee.MulInt(gross).TruncateInt()
	return gross, feeAmount, nil
}

// ensureFreeAsset unwraps just enough collateral-wrapper tokens so the
// vault's free asset balance covers needed.
func (v *ThetaVault) ensureFreeAsset(needed sdkmath.Int) error {
	free := v.asset.BalanceOf(v.address)
	if free.GTE(needed) {
		return nil
	}
	shortfall := needed.Sub(free)
	tokens, err := v.assetToCollateralUp(shortfall)
	if err != nil {
		return err
	}
	held := v.collateral.BalanceOf(v.address)
	if tokens.GT(held) {
		tokens = held
	}
	if _, err := v.collateral.Withdraw(v.address, tokens, v.address, config.WithdrawSlippageBps); err != nil {
		return err
	}
	if v.asset.BalanceOf(v.address).LT(needed) {
		return fmt.Errorf("%w: unwrap did not cover shortfall", ErrExceedsAvailable)
	}
	return nil
}

// ensureCollateralTokens wraps free asset into the collateral wrapper
// until the vault holds at least needed wrapper units.
func (v *ThetaVault) ensureCollateralTokens(needed sdkmath.Int) error {
	held := v.collateral.BalanceOf(v.address)
	if held.GTE(needed) {
		return nil
	}
	shortfallTokens := needed.Sub(held)
	assetAmount, err := v.collateralToAssetUp(shortfallTokens)
	if err != nil {
		return err
	}
	free := v.asset.BalanceOf(v.address)
	if assetAmount.GT(free) {
		assetAmount = free
	}
	if _, err := v.collateral.Deposit(v.address, assetAmount); err != nil {
		return err
	}
	if v.collateral.BalanceOf(v.address).LT(needed) {
		return fmt.Errorf("%w: wrap did not cover shortfall", ErrExceedsAvailable)
	}
	return nil
}
