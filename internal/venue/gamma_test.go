package venue

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
)

var writer = common.HexToAddress("0x000000000000000000000000000000000001337")

type gammaFixture struct {
	weth   *token.Ledger
	usdc   *token.Ledger
	oracle *oracle.StaticOracle
	proto  *MemGamma
}

func newGammaFixture(t *testing.T) *gammaFixture {
	t.Helper()
	weth := token.NewLedger("WETH", 18)
	usdc := token.NewLedger("USDC", 6)
	tokens := NewTokenRegistry(weth, usdc)

	px := oracle.NewStaticOracle(24 * time.Hour)
	require.NoError(t, px.SetPrice(weth.Address(), sdkmath.NewIntWithDecimal(2500, 18)))
	require.NoError(t, px.SetPrice(usdc.Address(), sdkmath.NewIntWithDecimal(1, 18)))

	return &gammaFixture{
		weth:   weth,
		usdc:   usdc,
		oracle: px,
		proto:  NewMemGamma(tokens, px, sdkmath.NewIntWithDecimal(8, 17)),
	}
}

func (f *gammaFixture) terms(optionType types.OptionType, strike int64, expiry time.Time) types.OptionTerms {
	collateral := f.weth.Address()
	if optionType == types.Put {
		collateral = f.usdc.Address()
	}
	return types.OptionTerms{
		Underlying:      f.weth.Address(),
		StrikeAsset:     f.usdc.Address(),
		CollateralAsset: collateral,
		Expiry:          expiry,
		StrikePrice:     sdkmath.NewIntWithDecimal(strike, 18),
		OptionType:      optionType,
		PaymentToken:    f.weth.Address(),
	}
}

func TestMemGamma_OptionTokenDeterministic(t *testing.T) {
	f := newGammaFixture(t)
	expiry := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	terms := f.terms(types.Call, 2600, expiry)

	a, err := f.proto.OptionToken(terms)
	require.NoError(t, err)
	b, err := f.proto.OptionToken(terms)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// A different strike yields a different series identity.
	other, err := f.proto.OptionToken(f.terms(types.Call, 2700, expiry))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestMemGamma_DeployIdempotent(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))

	assert.False(t, f.proto.Exists(terms))
	a, err := f.proto.Deploy(terms)
	require.NoError(t, err)
	assert.True(t, f.proto.Exists(terms))

	b, err := f.proto.Deploy(terms)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := f.proto.Terms(a)
	require.NoError(t, err)
	assert.Equal(t, terms.StrikePrice.String(), got.StrikePrice.String())
}

func TestMemGamma_BuyMintsOptionTokens(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))
	addr, err := f.proto.Deploy(terms)
	require.NoError(t, err)

	amount := sdkmath.NewIntWithDecimal(2, 18)
	cost, err := f.proto.Quote(terms, amount)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, cost))

	paid, err := f.proto.Buy(buyer, terms, amount, cost)
	require.NoError(t, err)
	assert.True(t, paid.Equal(cost))

	// 2.0 wad notional at 8 token decimals
	assert.Equal(t, "200000000", f.proto.Balance(buyer, addr).String())
}

func TestMemGamma_BuyRejectsUnderpayment(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))
	_, err := f.proto.Deploy(terms)
	require.NoError(t, err)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	cost, err := f.proto.Quote(terms, amount)
	require.NoError(t, err)

	_, err = f.proto.Buy(buyer, terms, amount, cost.Sub(sdkmath.OneInt()))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
}

func TestMemGamma_MintShortCallCollateralization(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))

	collateral := sdkmath.NewIntWithDecimal(5, 18)
	require.NoError(t, f.weth.Mint(writer, collateral))

	addr, minted, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)
	// Calls are collateralized 1:1 in the underlying.
	assert.Equal(t, "500000000", minted.String())
	assert.True(t, f.proto.Balance(writer, addr).Equal(minted))
	assert.Equal(t, "0", f.weth.BalanceOf(writer).String())
}

func TestMemGamma_MintShortPutCollateralization(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Put, 2000, time.Now().Add(48*time.Hour))

	// 10,000 USDC backs 5 puts at strike 2000.
	collateral := sdkmath.NewInt(10_000_000_000)
	require.NoError(t, f.usdc.Mint(writer, collateral))

	_, minted, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)
	assert.Equal(t, "500000000", minted.String())
}

func TestMemGamma_SettleShortAfterExpiry(t *testing.T) {
	f := newGammaFixture(t)
	// Expiry already in the past: the short settles immediately at the
	// current spot.
	terms := f.terms(types.Call, 2000, time.Now().Add(-time.Hour))

	collateral := sdkmath.NewIntWithDecimal(5, 18)
	require.NoError(t, f.weth.Mint(writer, collateral))
	addr, _, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)

	// owed = minted * (2500-2000)/2500 = 1.0 WETH; writer gets 4.0 back.
	returned, err := f.proto.SettleShort(writer, addr)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(4, 18).String(), returned.String())
	assert.True(t, f.weth.BalanceOf(writer).Equal(returned))

	_, err = f.proto.SettleShort(writer, addr)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestMemGamma_SettleShortBeforeExpiryFails(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))

	collateral := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, f.weth.Mint(writer, collateral))
	addr, _, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)

	_, err = f.proto.SettleShort(writer, addr)
	assert.ErrorIs(t, err, ErrOptionNotExpired)
}

func TestMemGamma_RedeemPaysCollateralAsset(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Put, 3000, time.Now().Add(48*time.Hour)) // ITM put, spot 2500

	collateral := sdkmath.NewInt(3_000_000_000) // 3000 USDC backs 1 put
	require.NoError(t, f.usdc.Mint(writer, collateral))
	addr, minted, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)

	payoutWad, err := f.proto.Redeem(writer, addr, minted, recipient)
	require.NoError(t, err)
	// (3000-2500) * 1.0 = 500 in strike-asset wads
	assert.Equal(t, sdkmath.NewIntWithDecimal(500, 18).String(), payoutWad.String())
	// paid out in 6-decimal USDC units
	assert.Equal(t, "500000000", f.usdc.BalanceOf(recipient).String())
	assert.Equal(t, "0", f.proto.Balance(writer, addr).String())
}

func TestMemGamma_ProfitZeroAfterExpiry(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2000, time.Now().Add(-time.Hour))

	collateral := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, f.weth.Mint(writer, collateral))
	addr, minted, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)

	profit, err := f.proto.Profit(addr, minted)
	require.NoError(t, err)
	assert.True(t, profit.IsZero())
}

func TestMemGamma_TransferOption(t *testing.T) {
	f := newGammaFixture(t)
	terms := f.terms(types.Call, 2600, time.Now().Add(48*time.Hour))

	collateral := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, f.weth.Mint(writer, collateral))
	addr, minted, err := f.proto.MintShort(writer, terms, collateral)
	require.NoError(t, err)

	require.NoError(t, f.proto.TransferOption(writer, buyer, addr, minted))
	assert.True(t, f.proto.Balance(buyer, addr).Equal(minted))
	assert.Equal(t, "0", f.proto.Balance(writer, addr).String())
}
