package vault

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/config"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

var (
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000101")
	manager      = common.HexToAddress("0x0000000000000000000000000000000000000102")
	feeRecipient = common.HexToAddress("0x0000000000000000000000000000000000000103")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000201")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000202")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000999")
)

type vaultFixture struct {
	native     *token.Ledger
	weth       *token.WrappedNative
	usdc       *token.Ledger
	yweth      *token.MemYieldWrapper
	settlement *swap.MemSwap
	proto      *venue.MemGamma
	vault      *ThetaVault
}

func newVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()
	native := token.NewLedger("ETH", 18)
	weth := token.NewWrappedNative(native)
	usdc := token.NewLedger("USDC", 6)
	yweth := token.NewMemYieldWrapper("yWETH", 18, weth)
	tokens := venue.NewTokenRegistry(weth.Ledger, usdc, yweth.Ledger)

	px := oracle.NewStaticOracle(24 * time.Hour)
	require.NoError(t, px.SetPrice(weth.Address(), sdkmath.NewIntWithDecimal(2500, 18)))
	require.NoError(t, px.SetPrice(usdc.Address(), sdkmath.NewIntWithDecimal(1, 18)))
	require.NoError(t, px.SetPrice(yweth.Address(), sdkmath.NewIntWithDecimal(2500, 18)))

	iv := sdkmath.NewIntWithDecimal(8, 17)
	proto := venue.NewMemGamma(tokens, px, iv)
	settlement := swap.NewMemSwap(tokens)
	converter := swap.NewMemConverter(tokens, px, settlement)
	gammaAdapter, err := adapter.NewGammaAdapter(proto, px, converter, tokens)
	require.NoError(t, err)

	v, err := NewThetaVault(Config{
		Name:          "ETH-THETA-TEST",
		Asset:         weth,
		WrappedNative: weth,
		Collateral:    yweth,
		Adapter:       gammaAdapter,
		Counterparty:  settlement,
		OptionType:    types.Call,
		StrikeAsset:   usdc.Address(),
		Owner:         owner,
		Manager:       manager,
		FeeRecipient:  feeRecipient,
		Cap:           sdkmath.NewIntWithDecimal(1000, 18),
		WithdrawalFee: sdkmath.LegacyNewDecWithPrec(5, 3), // 0.5%
	})
	require.NoError(t, err)

	return &vaultFixture{
		native:     native,
		weth:       weth,
		usdc:       usdc,
		yweth:      yweth,
		settlement: settlement,
		proto:      proto,
		vault:      v,
	}
}

func (f *vaultFixture) fund(t *testing.T, account common.Address, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.weth.Mint(account, amount))
}

func (f *vaultFixture) callTerms(strike int64) types.OptionTerms {
	return types.OptionTerms{
		Underlying:      f.weth.Address(),
		StrikeAsset:     f.usdc.Address(),
		CollateralAsset: f.yweth.Address(),
		Expiry:          time.Now().Add(48 * time.Hour),
		StrikePrice:     sdkmath.NewIntWithDecimal(strike, 18),
		OptionType:      types.Call,
		PaymentToken:    f.weth.Address(),
	}
}

func TestNewThetaVault_RejectsBadConfig(t *testing.T) {
	f := newVaultFixture(t)

	cfg := Config{
		Name:          "BAD",
		Asset:         f.weth,
		Collateral:    f.yweth,
		Counterparty:  f.settlement,
		OptionType:    types.Call,
		StrikeAsset:   f.usdc.Address(),
		Owner:         owner,
		Manager:       manager,
		FeeRecipient:  feeRecipient,
		Cap:           sdkmath.NewIntWithDecimal(1000, 18),
		WithdrawalFee: sdkmath.LegacyZeroDec(),
	}
	_, err := NewThetaVault(cfg)
	assert.Error(t, err, "nil adapter must be rejected")

	cfg.Adapter = f.vault.adapter
	cfg.WithdrawalFee = config.MaxWithdrawalFee
	_, err = NewThetaVault(cfg)
	assert.ErrorIs(t, err, ErrFeeTooHigh)
}

func TestDeposit_BootstrapsOneToOne(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)

	shares, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)
	assert.True(t, shares.Equal(amount))
	assert.True(t, f.vault.ShareBalance(alice).Equal(amount))
	assert.True(t, f.vault.TotalShares().Equal(amount))

	total, err := f.vault.TotalBalance()
	require.NoError(t, err)
	assert.True(t, total.Equal(amount))
}

func TestDeposit_SecondDepositorPricedAgainstPool(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	_, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	// A donation doubles pool value without minting shares, so bob's
	// deposit buys shares at twice the bootstrap price.
	f.fund(t, f.vault.Address(), amount)
	f.fund(t, bob, amount)
	shares, err := f.vault.Deposit(bob, amount)
	require.NoError(t, err)
	assert.True(t, shares.Equal(sdkmath.NewIntWithDecimal(5, 18)))
}

func TestDeposit_EnforcesCapAndFloors(t *testing.T) {
	f := newVaultFixture(t)

	below := sdkmath.NewInt(10_000_000) // below the 10^8 floor
	f.fund(t, alice, below)
	_, err := f.vault.Deposit(alice, below)
	assert.ErrorIs(t, err, ErrInsufficientPoolBalance)

	over := sdkmath.NewIntWithDecimal(1001, 18)
	f.fund(t, alice, over)
	_, err = f.vault.Deposit(alice, over)
	assert.ErrorIs(t, err, ErrCapExceeded)

	_, err = f.vault.Deposit(alice, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestDepositETH_WrapsBeforeDepositing(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(5, 18)
	require.NoError(t, f.native.Mint(alice, amount))

	shares, err := f.vault.DepositETH(alice, amount)
	require.NoError(t, err)
	assert.True(t, shares.Equal(amount))
	assert.True(t, f.native.BalanceOf(alice).IsZero())
	assert.True(t, f.weth.BalanceOf(f.vault.Address()).Equal(amount))
}

func TestWithdraw_TakesFeeAndPaysNet(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	shares, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	gross, fee, err := f.vault.WithdrawAmountWithShares(shares)
	require.NoError(t, err)
	assert.True(t, gross.Equal(amount))
	// 0.5% of 10 WETH
	assert.True(t, fee.Equal(sdkmath.NewIntWithDecimal(5, 16)))

	net, err := f.vault.Withdraw(alice, shares)
	require.NoError(t, err)
	assert.True(t, net.Equal(gross.Sub(fee)))
	assert.True(t, f.weth.BalanceOf(alice).Equal(net))
	assert.True(t, f.weth.BalanceOf(feeRecipient).Equal(fee))
	assert.True(t, f.vault.TotalShares().IsZero())
}

func TestWithdraw_RejectsOverdraw(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	shares, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	_, err = f.vault.Withdraw(alice, shares.Add(sdkmath.OneInt()))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = f.vault.Withdraw(bob, shares)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestWithdrawETH_UnwrapsForCaller(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	require.NoError(t, f.native.Mint(alice, amount))
	shares, err := f.vault.DepositETH(alice, amount)
	require.NoError(t, err)

	net, err := f.vault.WithdrawETH(alice, shares)
	require.NoError(t, err)
	assert.True(t, f.native.BalanceOf(alice).Equal(net))
	assert.True(t, f.weth.BalanceOf(alice).IsZero())
}

func TestYieldTokenDepositAndWithdraw(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	wrapped, err := f.yweth.Deposit(alice, amount)
	require.NoError(t, err)

	shares, err := f.vault.DepositYieldToken(alice, wrapped)
	require.NoError(t, err)
	// Rate 1.0: wrapper units equal asset value equal shares.
	assert.True(t, shares.Equal(amount))

	// Withdraw back in wrapper units; the fee leg is paid in wrapper
	// units too.
	net, err := f.vault.WithdrawYieldToken(alice, shares)
	require.NoError(t, err)
	assert.True(t, f.yweth.BalanceOf(alice).Equal(net))
	assert.True(t, f.yweth.BalanceOf(feeRecipient).IsPositive())
}

func TestWithdraw_UnwrapsCollateralWhenFreeAssetShort(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	wrapped, err := f.yweth.Deposit(alice, amount)
	require.NoError(t, err)
	shares, err := f.vault.DepositYieldToken(alice, wrapped)
	require.NoError(t, err)

	// The vault holds only wrapper tokens; a plain withdrawal must
	// unwrap on demand.
	net, err := f.vault.Withdraw(alice, shares)
	require.NoError(t, err)
	assert.True(t, f.weth.BalanceOf(alice).Equal(net))
}

func TestRoleManagement(t *testing.T) {
	f := newVaultFixture(t)

	assert.ErrorIs(t, f.vault.SetManager(stranger, bob), ErrNotAuthorized)
	require.NoError(t, f.vault.SetManager(owner, bob))

	assert.ErrorIs(t, f.vault.SetCap(manager, sdkmath.OneInt()), ErrNotAuthorized)
	require.NoError(t, f.vault.SetCap(bob, sdkmath.NewIntWithDecimal(2000, 18)))
	assert.True(t, f.vault.Cap().Equal(sdkmath.NewIntWithDecimal(2000, 18)))

	assert.ErrorIs(t, f.vault.SetWithdrawalFee(bob, config.MaxWithdrawalFee), ErrFeeTooHigh)
	require.NoError(t, f.vault.SetWithdrawalFee(bob, sdkmath.LegacyNewDecWithPrec(1, 2)))

	assert.ErrorIs(t, f.vault.SetFeeRecipient(stranger, bob), ErrNotAuthorized)
	require.NoError(t, f.vault.SetFeeRecipient(owner, bob))
}

func TestOperationGuard_FailsFast(t *testing.T) {
	f := newVaultFixture(t)
	f.fund(t, alice, sdkmath.NewIntWithDecimal(10, 18))

	require.NoError(t, f.vault.acquire())
	_, err := f.vault.Deposit(alice, sdkmath.NewIntWithDecimal(10, 18))
	assert.ErrorIs(t, err, ErrReentrantCall)
	f.vault.release()

	_, err = f.vault.Deposit(alice, sdkmath.NewIntWithDecimal(10, 18))
	require.NoError(t, err)
}

func TestCommitAndClose_ValidatesTerms(t *testing.T) {
	f := newVaultFixture(t)

	terms := f.callTerms(3000)
	assert.ErrorIs(t, f.vault.CommitAndClose(stranger, terms), ErrNotAuthorized)

	put := f.callTerms(3000)
	put.OptionType = types.Put
	assert.ErrorIs(t, f.vault.CommitAndClose(manager, put), ErrMismatchedTerms)

	wrongCollateral := f.callTerms(3000)
	wrongCollateral.CollateralAsset = f.weth.Address()
	assert.ErrorIs(t, f.vault.CommitAndClose(manager, wrongCollateral), ErrMismatchedTerms)

	tooClose := f.callTerms(3000)
	tooClose.Expiry = time.Now().Add(12 * time.Hour)
	assert.ErrorIs(t, f.vault.CommitAndClose(manager, tooClose), ErrExpiryTooClose)

	require.NoError(t, f.vault.CommitAndClose(manager, terms))
	assert.False(t, f.vault.NextOptionReadyAt().IsZero())
}

func TestRollToNextOption_LocksNinetyPercent(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(100, 18)
	f.fund(t, alice, amount)
	_, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	assert.ErrorIs(t, f.vault.RollToNextOption(manager), ErrNoNextOption)

	require.NoError(t, f.vault.CommitAndClose(manager, f.callTerms(3000)))
	assert.ErrorIs(t, f.vault.RollToNextOption(stranger), ErrNotAuthorized)
	assert.ErrorIs(t, f.vault.RollToNextOption(manager), ErrRollTooEarly)

	f.vault.mu.Lock()
	f.vault.nextOptionReadyAt = time.Now().Add(-time.Second)
	f.vault.mu.Unlock()
	require.NoError(t, f.vault.RollToNextOption(manager))

	assert.NotEqual(t, types.ZeroAddress, f.vault.CurrentOption())
	locked := f.vault.LockedAmount()
	assert.True(t, locked.Equal(sdkmath.NewIntWithDecimal(90, 18)))

	// Minted short tokens were handed to the settlement counterparty.
	minted := f.proto.Balance(f.settlement.Address(), f.vault.CurrentOption())
	assert.Equal(t, "9000000000", minted.String()) // 90 options, 8 decimals

	// Pool value is unchanged by the roll; only its liquidity split moved.
	total, err := f.vault.TotalBalance()
	require.NoError(t, err)
	assert.True(t, total.Equal(amount))
	available, err := f.vault.AvailableToWithdraw()
	require.NoError(t, err)
	assert.True(t, available.Equal(sdkmath.NewIntWithDecimal(10, 18)))

	// A second roll needs a fresh commitment and a settled short.
	assert.ErrorIs(t, f.vault.RollToNextOption(manager), ErrNoNextOption)
}

func TestWithdraw_BoundedByUnlockedLiquidity(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(100, 18)
	f.fund(t, alice, amount)
	shares, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	require.NoError(t, f.vault.CommitAndClose(manager, f.callTerms(3000)))
	f.vault.mu.Lock()
	f.vault.nextOptionReadyAt = time.Now().Add(-time.Second)
	f.vault.mu.Unlock()
	require.NoError(t, f.vault.RollToNextOption(manager))

	_, err = f.vault.Withdraw(alice, shares)
	assert.ErrorIs(t, err, ErrExceedsAvailable)

	maxShares, err := f.vault.MaxWithdrawableShares(alice)
	require.NoError(t, err)
	assert.True(t, maxShares.Equal(sdkmath.NewIntWithDecimal(10, 18)))

	net, err := f.vault.Withdraw(alice, maxShares)
	require.NoError(t, err)
	assert.True(t, net.IsPositive())
}

func TestCommitAndClose_RejectsWhileShortUnexpired(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(100, 18)
	f.fund(t, alice, amount)
	_, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	require.NoError(t, f.vault.CommitAndClose(manager, f.callTerms(3000)))
	f.vault.mu.Lock()
	f.vault.nextOptionReadyAt = time.Now().Add(-time.Second)
	f.vault.mu.Unlock()
	require.NoError(t, f.vault.RollToNextOption(manager))

	assert.ErrorIs(t, f.vault.CommitAndClose(manager, f.callTerms(3200)), ErrOptionNotExpired)

	_, err = f.vault.CloseShort(stranger)
	assert.ErrorIs(t, err, ErrOptionNotExpired)
}

func TestCloseShort_RequiresActiveShort(t *testing.T) {
	f := newVaultFixture(t)
	_, err := f.vault.CloseShort(alice)
	assert.ErrorIs(t, err, ErrNoActiveShort)
}

func TestEmergencyClose_AbandonsStagedOption(t *testing.T) {
	f := newVaultFixture(t)
	require.NoError(t, f.vault.CommitAndClose(manager, f.callTerms(3000)))

	_, err := f.vault.EmergencyClose(manager)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	released, err := f.vault.EmergencyClose(owner)
	require.NoError(t, err)
	assert.True(t, released.IsZero())
	assert.True(t, f.vault.NextOptionReadyAt().IsZero())
	assert.ErrorIs(t, f.vault.RollToNextOption(manager), ErrNoNextOption)
}

func TestAccountViews(t *testing.T) {
	f := newVaultFixture(t)
	amount := sdkmath.NewIntWithDecimal(10, 18)
	f.fund(t, alice, amount)
	_, err := f.vault.Deposit(alice, amount)
	require.NoError(t, err)

	bal, err := f.vault.AccountVaultBalance(alice)
	require.NoError(t, err)
	assert.True(t, bal.Equal(amount))

	toShares, err := f.vault.AssetAmountToShares(sdkmath.NewIntWithDecimal(2, 18))
	require.NoError(t, err)
	assert.True(t, toShares.Equal(sdkmath.NewIntWithDecimal(2, 18)))

	snap, err := f.vault.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.RotationNumber)
	assert.True(t, snap.TotalBalance.Equal(amount))
	assert.True(t, snap.ShareSupply.Equal(amount))
}
