package adapter

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

var (
	buyer  = common.HexToAddress("0x0000000000000000000000000000000000000AbC")
	vaultA = common.HexToAddress("0x0000000000000000000000000000000000000Def")
)

type fixture struct {
	weth   *token.Ledger
	usdc   *token.Ledger
	oracle *oracle.StaticOracle
	hegic  *HegicAdapter
	gamma  *GammaAdapter
	proto  *venue.MemGamma
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	weth := token.NewLedger("WETH", 18)
	usdc := token.NewLedger("USDC", 6)
	tokens := venue.NewTokenRegistry(weth, usdc)

	px := oracle.NewStaticOracle(24 * time.Hour)
	require.NoError(t, px.SetPrice(weth.Address(), sdkmath.NewIntWithDecimal(2500, 18)))
	require.NoError(t, px.SetPrice(usdc.Address(), sdkmath.NewIntWithDecimal(1, 18)))

	iv := sdkmath.NewIntWithDecimal(8, 17)
	market := venue.NewMemHegic(tokens, px, iv, weth.Address())
	proto := venue.NewMemGamma(tokens, px, iv)
	settlement := swap.NewMemSwap(tokens)
	converter := swap.NewMemConverter(tokens, px, settlement)

	hegic, err := NewHegicAdapter(market)
	require.NoError(t, err)
	gamma, err := NewGammaAdapter(proto, px, converter, tokens)
	require.NoError(t, err)

	return &fixture{weth: weth, usdc: usdc, oracle: px, hegic: hegic, gamma: gamma, proto: proto}
}

func (f *fixture) terms(optionType types.OptionType, strike int64) types.OptionTerms {
	collateral := f.weth.Address()
	if optionType == types.Put {
		collateral = f.usdc.Address()
	}
	return types.OptionTerms{
		Underlying:      f.weth.Address(),
		StrikeAsset:     f.usdc.Address(),
		CollateralAsset: collateral,
		Expiry:          time.Now().Add(48 * time.Hour),
		StrikePrice:     sdkmath.NewIntWithDecimal(strike, 18),
		OptionType:      optionType,
		PaymentToken:    f.weth.Address(),
	}
}

func TestHegicAdapter_Identity(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "HEGIC", f.hegic.ProtocolName())
	assert.True(t, f.hegic.NonFungible())
}

func TestHegicAdapter_OptionsExist(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.hegic.OptionsExist(f.terms(types.Call, 2600)))

	unsupported := f.terms(types.Call, 2600)
	unsupported.Underlying = f.usdc.Address()
	assert.False(t, f.hegic.OptionsExist(unsupported))

	expired := f.terms(types.Call, 2600)
	expired.Expiry = time.Now().Add(-time.Hour)
	assert.False(t, f.hegic.OptionsExist(expired))
}

func TestHegicAdapter_PurchaseAndExercise(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2000) // ITM, spot 2500
	amount := sdkmath.NewIntWithDecimal(1, 18)

	premium, err := f.hegic.Premium(terms, amount)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, premium))

	id, err := f.hegic.Purchase(buyer, terms, amount, premium)
	require.NoError(t, err)
	assert.NotZero(t, id, "non-fungible venue returns a real position ID")

	options, err := f.hegic.GetOptionsAddress(terms)
	require.NoError(t, err)

	ok, err := f.hegic.CanExercise(buyer, options, id, amount)
	require.NoError(t, err)
	assert.True(t, ok)

	payout, err := f.hegic.Exercise(buyer, options, id, amount, buyer)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2, 17).String(), payout.String())

	_, err = f.hegic.Exercise(buyer, options, id, amount, buyer)
	assert.ErrorIs(t, err, ErrAlreadyExercised)
}

func TestHegicAdapter_PurchaseUnderpaymentMapsToSentinel(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	amount := sdkmath.NewIntWithDecimal(1, 18)

	premium, err := f.hegic.Premium(terms, amount)
	require.NoError(t, err)

	_, err = f.hegic.Purchase(buyer, terms, amount, premium.Sub(sdkmath.OneInt()))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestHegicAdapter_PurchaseKeepsExcessPayment(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	amount := sdkmath.NewIntWithDecimal(1, 18)

	premium, err := f.hegic.Premium(terms, amount)
	require.NoError(t, err)
	excess := sdkmath.NewIntWithDecimal(1, 17)
	require.NoError(t, f.weth.Mint(buyer, premium.Add(excess)))

	_, err = f.hegic.Purchase(buyer, terms, amount, premium.Add(excess))
	require.NoError(t, err)
	assert.Equal(t, excess.String(), f.weth.BalanceOf(buyer).String(),
		"only the quoted premium is debited")
}

func TestHegicAdapter_NoWritingSide(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.hegic.CreateShort(vaultA, f.terms(types.Call, 2600), sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = f.hegic.CloseShort(vaultA, common.Address{})
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestGammaAdapter_Identity(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "GAMMA", f.gamma.ProtocolName())
	assert.False(t, f.gamma.NonFungible())
}

func TestGammaAdapter_PurchaseReturnsZeroID(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	_, err := f.proto.Deploy(terms)
	require.NoError(t, err)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	premium, err := f.gamma.Premium(terms, amount)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, premium))

	id, err := f.gamma.Purchase(buyer, terms, amount, premium)
	require.NoError(t, err)
	assert.Zero(t, id, "fungible venue tracks ownership by token balance")

	options, err := f.gamma.GetOptionsAddress(terms)
	require.NoError(t, err)
	assert.True(t, f.proto.Balance(buyer, options).IsPositive())
}

func TestGammaAdapter_ExerciseProfitInUnderlyingUnits(t *testing.T) {
	f := newFixture(t)
	// ITM put collateralized in USDC: the adapter must convert the
	// settlement value into underlying-equivalent wads.
	terms := f.terms(types.Put, 3000)
	collateral := sdkmath.NewInt(3_000_000_000) // 3000 USDC
	require.NoError(t, f.usdc.Mint(vaultA, collateral))
	options, minted, err := f.gamma.CreateShort(vaultA, terms, collateral)
	require.NoError(t, err)
	assert.Equal(t, "100000000", minted.String())

	amount := sdkmath.NewIntWithDecimal(1, 18)
	profit, err := f.gamma.ExerciseProfit(vaultA, options, 0, amount)
	require.NoError(t, err)
	// 500 USDC of settlement value at spot 2500 = 0.2 underlying
	assert.Equal(t, sdkmath.NewIntWithDecimal(2, 17).String(), profit.String())

	ok, err := f.gamma.CanExercise(vaultA, options, 0, amount)
	require.NoError(t, err)
	assert.True(t, ok)

	// Exercise converts the USDC payout to underlying for the recipient.
	payout, err := f.gamma.Exercise(vaultA, options, 0, amount, buyer)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2, 17).String(), payout.String())
	assert.Equal(t, sdkmath.NewIntWithDecimal(2, 17).String(), f.weth.BalanceOf(buyer).String())
}

func TestGammaAdapter_ExerciseWithNoTokensFails(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	_, err := f.proto.Deploy(terms)
	require.NoError(t, err)
	options, err := f.gamma.GetOptionsAddress(terms)
	require.NoError(t, err)

	_, err = f.gamma.Exercise(buyer, options, 0, sdkmath.NewIntWithDecimal(1, 18), buyer)
	assert.ErrorIs(t, err, ErrAlreadyExercised)
}

func TestGammaAdapter_ShortLifecycle(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	terms.Expiry = time.Now().Add(-time.Minute) // settles immediately

	collateral := sdkmath.NewIntWithDecimal(2, 18)
	require.NoError(t, f.weth.Mint(vaultA, collateral))

	options, minted, err := f.gamma.CreateShort(vaultA, terms, collateral)
	require.NoError(t, err)
	assert.Equal(t, "200000000", minted.String())

	// OTM at settlement: the full collateral comes back.
	released, err := f.gamma.CloseShort(vaultA, options)
	require.NoError(t, err)
	assert.True(t, released.Equal(collateral))

	_, err = f.gamma.CloseShort(vaultA, options)
	assert.ErrorIs(t, err, ErrAlreadyExercised)
}

func TestGammaAdapter_DeliverShortTokens(t *testing.T) {
	f := newFixture(t)
	terms := f.terms(types.Call, 2600)
	collateral := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, f.weth.Mint(vaultA, collateral))

	options, minted, err := f.gamma.CreateShort(vaultA, terms, collateral)
	require.NoError(t, err)

	var deliverer ShortTokenDeliverer = f.gamma
	require.NoError(t, deliverer.DeliverShortTokens(vaultA, buyer, options, minted))
	assert.True(t, f.proto.Balance(buyer, options).Equal(minted))
}
