package factory

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/instrument"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/venue"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000101")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000999")
)

func newTestAdapter(t *testing.T) adapter.Protocol {
	t.Helper()
	weth := token.NewLedger("WETH", 18)
	tokens := venue.NewTokenRegistry(weth)
	px := oracle.NewStaticOracle(24 * time.Hour)
	iv := sdkmath.NewIntWithDecimal(8, 17)
	market := venue.NewMemHegic(tokens, px, iv, weth.Address())
	a, err := adapter.NewHegicAdapter(market)
	require.NoError(t, err)
	return a
}

func instrumentConfig(name string) instrument.Config {
	asset := common.HexToAddress("0x0000000000000000000000000000000000000001")
	strike := common.HexToAddress("0x0000000000000000000000000000000000000002")
	return instrument.Config{
		Name:            name,
		Symbol:          name,
		Underlying:      asset,
		StrikeAsset:     strike,
		CollateralAsset: asset,
		PaymentToken:    asset,
		Payments:        token.NewLedger("WETH", 18),
		Expiry:          time.Now().Add(48 * time.Hour),
	}
}

func TestNewFactory_RejectsZeroOwner(t *testing.T) {
	_, err := NewFactory(types.ZeroAddress)
	assert.ErrorIs(t, err, types.ErrZeroAddress)
}

func TestSetAdapter_OwnerGatedWithReplacement(t *testing.T) {
	f, err := NewFactory(owner)
	require.NoError(t, err)
	proto := newTestAdapter(t)

	assert.ErrorIs(t, f.SetAdapter(stranger, "HEGIC", proto), ErrNotAuthorized)
	assert.ErrorIs(t, f.SetAdapter(owner, "", proto), ErrEmptyName)
	assert.Error(t, f.SetAdapter(owner, "HEGIC", nil))

	require.NoError(t, f.SetAdapter(owner, "HEGIC", proto))
	assert.NotNil(t, f.GetAdapter("HEGIC"))
	assert.Nil(t, f.GetAdapter("GAMMA"))

	// Replacing an adapter in place is allowed.
	replacement := newTestAdapter(t)
	require.NoError(t, f.SetAdapter(owner, "HEGIC", replacement))
	assert.Equal(t, []string{"HEGIC"}, f.Adapters())
}

func TestNewInstrument_ListsOnce(t *testing.T) {
	f, err := NewFactory(owner)
	require.NoError(t, err)

	_, err = f.NewInstrument(stranger, instrumentConfig("ETH-STRDL"))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	inst, err := f.NewInstrument(owner, instrumentConfig("ETH-STRDL"))
	require.NoError(t, err)
	assert.Equal(t, "ETH-STRDL", inst.Name())

	_, err = f.NewInstrument(owner, instrumentConfig("ETH-STRDL"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	got, err := f.GetInstrument("ETH-STRDL")
	require.NoError(t, err)
	assert.Same(t, inst, got)

	_, err = f.GetInstrument("MISSING")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)

	_, err = f.NewInstrument(owner, instrumentConfig("BTC-STRDL"))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-STRDL", "ETH-STRDL"}, f.Instruments())
}

func TestFactory_IsAdapterResolver(t *testing.T) {
	f, err := NewFactory(owner)
	require.NoError(t, err)
	require.NoError(t, f.SetAdapter(owner, "HEGIC", newTestAdapter(t)))

	var resolver instrument.AdapterResolver = f
	assert.NotNil(t, resolver.GetAdapter("HEGIC"))
}
