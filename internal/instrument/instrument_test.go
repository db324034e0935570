package instrument

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

var buyer = common.HexToAddress("0x0000000000000000000000000000000000000AbC")

// mapResolver is a static AdapterResolver for tests.
type mapResolver map[string]adapter.Protocol

func (m mapResolver) GetAdapter(name string) adapter.Protocol { return m[name] }

type instrumentFixture struct {
	weth   *token.Ledger
	usdc   *token.Ledger
	oracle *oracle.StaticOracle
	proto  *venue.MemGamma
	inst   *Instrument
}

func newInstrumentFixture(t *testing.T) *instrumentFixture {
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

	hegicAdapter, err := adapter.NewHegicAdapter(market)
	require.NoError(t, err)
	gammaAdapter, err := adapter.NewGammaAdapter(proto, px, converter, tokens)
	require.NoError(t, err)

	inst, err := NewInstrument(Config{
		Name:            "ETH Straddle",
		Symbol:          "ETH-STRDL",
		Underlying:      weth.Address(),
		StrikeAsset:     usdc.Address(),
		CollateralAsset: weth.Address(),
		PaymentToken:    weth.Address(),
		Expiry:          time.Now().Add(48 * time.Hour),
		Resolver: mapResolver{
			"HEGIC": hegicAdapter,
			"GAMMA": gammaAdapter,
		},
		Payments: weth,
	})
	require.NoError(t, err)

	return &instrumentFixture{weth: weth, usdc: usdc, oracle: px, proto: proto, inst: inst}
}

// straddleLegs is a call on the fungible venue plus a put on the
// non-fungible one, both one unit of notional.
func (f *instrumentFixture) straddleLegs(t *testing.T, callStrike, putStrike int64) []Leg {
	t.Helper()
	amount := sdkmath.NewIntWithDecimal(1, 18)
	legs := []Leg{
		{Venue: "GAMMA", OptionType: types.Call, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(callStrike, 18)},
		{Venue: "HEGIC", OptionType: types.Put, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(putStrike, 18)},
	}
	// The fungible venue only quotes listed series.
	_, err := f.proto.Deploy(f.inst.termsFor(legs[0]))
	require.NoError(t, err)
	return legs
}

func (f *instrumentFixture) fundAndBuy(t *testing.T, legs []Leg) int {
	t.Helper()
	total, err := f.inst.CostOfPosition(legs)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, total))
	id, err := f.inst.BuyInstrument(buyer, legs, total)
	require.NoError(t, err)
	return id
}

func TestNewInstrument_Validation(t *testing.T) {
	f := newInstrumentFixture(t)

	cfg := Config{
		Symbol:          "X",
		Underlying:      f.weth.Address(),
		StrikeAsset:     f.usdc.Address(),
		CollateralAsset: f.weth.Address(),
		PaymentToken:    f.weth.Address(),
		Expiry:          time.Now().Add(time.Hour),
		Resolver:        mapResolver{},
		Payments:        f.weth,
	}
	_, err := NewInstrument(cfg)
	assert.Error(t, err, "empty name must be rejected")

	cfg.Name = "X"
	cfg.Underlying = types.ZeroAddress
	_, err = NewInstrument(cfg)
	assert.ErrorIs(t, err, types.ErrZeroAddress)

	cfg.Underlying = f.weth.Address()
	cfg.Payments = nil
	_, err = NewInstrument(cfg)
	assert.Error(t, err, "missing payment balance reader must be rejected")
}

func TestBuyInstrument_Straddle(t *testing.T) {
	f := newInstrumentFixture(t)
	legs := f.straddleLegs(t, 2600, 2400)

	id := f.fundAndBuy(t, legs)
	assert.Equal(t, 0, id)
	assert.Equal(t, 1, f.inst.NumPositions(buyer))
	assert.True(t, f.weth.BalanceOf(buyer).IsZero(), "the whole premium was spent")

	p, err := f.inst.GetPosition(buyer, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"GAMMA", "HEGIC"}, p.Venues)
	assert.False(t, p.Exercised)
	assert.Zero(t, p.OptionIDs[0], "fungible venue positions carry no ID")
	assert.NotZero(t, p.OptionIDs[1])
}

func TestBuyInstrument_ValidatesCompositionBeforeSpending(t *testing.T) {
	f := newInstrumentFixture(t)
	amount := sdkmath.NewIntWithDecimal(1, 18)
	payment := sdkmath.NewIntWithDecimal(100, 18)
	require.NoError(t, f.weth.Mint(buyer, payment))

	_, err := f.inst.BuyInstrument(buyer, []Leg{
		{Venue: "HEGIC", OptionType: types.Put, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(2400, 18)},
	}, payment)
	assert.ErrorIs(t, err, types.ErrTooFewLegs)

	_, err = f.inst.BuyInstrument(buyer, []Leg{
		{Venue: "HEGIC", OptionType: types.Put, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(2400, 18)},
		{Venue: "HEGIC", OptionType: types.Put, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(2300, 18)},
	}, payment)
	assert.ErrorIs(t, err, types.ErrMissingCallOrPut)

	_, err = f.inst.BuyInstrument(buyer, []Leg{
		{Venue: "UNKNOWN", OptionType: types.Call, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(2600, 18)},
		{Venue: "HEGIC", OptionType: types.Put, Amount: amount, StrikePrice: sdkmath.NewIntWithDecimal(2400, 18)},
	}, payment)
	assert.ErrorIs(t, err, ErrAdapterNotFound)

	assert.True(t, f.weth.BalanceOf(buyer).Equal(payment), "no leg was purchased")
}

func TestBuyInstrument_RejectsUnderpayment(t *testing.T) {
	f := newInstrumentFixture(t)
	legs := f.straddleLegs(t, 2600, 2400)

	total, err := f.inst.CostOfPosition(legs)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, total))

	_, err = f.inst.BuyInstrument(buyer, legs, total.Sub(sdkmath.OneInt()))
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.True(t, f.weth.BalanceOf(buyer).Equal(total))
}

func TestBuyInstrument_RejectsUnderfundedBuyer(t *testing.T) {
	f := newInstrumentFixture(t)
	legs := f.straddleLegs(t, 2600, 2400)

	total, err := f.inst.CostOfPosition(legs)
	require.NoError(t, err)

	// Fund only the first leg's premium but claim the full payment.
	// Without an up-front funding check the first leg would execute and
	// its premium would be unrecoverable when the second leg fails.
	callPremium, err := f.inst.cfg.Resolver.GetAdapter("GAMMA").Premium(f.inst.termsFor(legs[0]), legs[0].Amount)
	require.NoError(t, err)
	require.NoError(t, f.weth.Mint(buyer, callPremium))

	_, err = f.inst.BuyInstrument(buyer, legs, total)
	assert.ErrorIs(t, err, ErrInsufficientPayment)
	assert.Equal(t, 0, f.inst.NumPositions(buyer))
	assert.True(t, f.weth.BalanceOf(buyer).Equal(callPremium), "no leg was purchased")
}

func TestBuyInstrument_RejectsExpired(t *testing.T) {
	f := newInstrumentFixture(t)
	expired, err := NewInstrument(Config{
		Name:            "Dead",
		Symbol:          "DEAD",
		Underlying:      f.weth.Address(),
		StrikeAsset:     f.usdc.Address(),
		CollateralAsset: f.weth.Address(),
		PaymentToken:    f.weth.Address(),
		Expiry:          time.Now().Add(-time.Hour),
		Resolver:        mapResolver{},
		Payments:        f.weth,
	})
	require.NoError(t, err)

	_, err = expired.BuyInstrument(buyer, nil, sdkmath.OneInt())
	assert.ErrorIs(t, err, ErrInstrumentExpired)
}

func TestExercisePosition_SettlesProfitableLegsOnce(t *testing.T) {
	f := newInstrumentFixture(t)
	legs := f.straddleLegs(t, 2600, 2400)
	id := f.fundAndBuy(t, legs)

	// Rally past the call strike: the call leg pays, the put stays
	// worthless.
	require.NoError(t, f.oracle.SetPrice(f.weth.Address(), sdkmath.NewIntWithDecimal(3000, 18)))

	profit, err := f.inst.ExerciseProfit(buyer, id)
	require.NoError(t, err)
	assert.True(t, profit.IsPositive())

	ok, err := f.inst.CanExercise(buyer, id)
	require.NoError(t, err)
	assert.True(t, ok)

	total, exercised, err := f.inst.ExercisePosition(buyer, id)
	require.NoError(t, err)
	assert.True(t, total.IsPositive())
	assert.Equal(t, []bool{true, false}, exercised)
	assert.True(t, f.weth.BalanceOf(buyer).Equal(total))

	_, _, err = f.inst.ExercisePosition(buyer, id)
	assert.ErrorIs(t, err, ErrAlreadyExercised)

	// The flag also zeroes the profit view.
	profit, err = f.inst.ExerciseProfit(buyer, id)
	require.NoError(t, err)
	assert.True(t, profit.IsZero())
}

func TestExercisePosition_ExpiredLeavesPositionIntact(t *testing.T) {
	f := newInstrumentFixture(t)
	legs := f.straddleLegs(t, 2600, 2400)
	id := f.fundAndBuy(t, legs)

	f.inst.cfg.Expiry = time.Now().Add(-time.Minute)

	_, _, err := f.inst.ExercisePosition(buyer, id)
	assert.ErrorIs(t, err, ErrInstrumentExpired)

	p, err := f.inst.GetPosition(buyer, id)
	require.NoError(t, err)
	assert.False(t, p.Exercised, "a rejected exercise must not consume the position")

	// The same error again, not ErrAlreadyExercised.
	_, _, err = f.inst.ExercisePosition(buyer, id)
	assert.ErrorIs(t, err, ErrInstrumentExpired)
}

func TestExercisePosition_UnknownPosition(t *testing.T) {
	f := newInstrumentFixture(t)
	_, _, err := f.inst.ExercisePosition(buyer, 0)
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = f.inst.GetPosition(buyer, 3)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}
