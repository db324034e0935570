package oracle

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var weth = common.HexToAddress("0x0000000000000000000000000000000000000001")

func TestStaticOracle_SetAndGet(t *testing.T) {
	o := NewStaticOracle(time.Hour)
	price := sdkmath.NewIntWithDecimal(2500, 18)
	require.NoError(t, o.SetPrice(weth, price))

	got, at, err := o.LatestPrice(weth)
	require.NoError(t, err)
	assert.True(t, got.Equal(price))
	assert.WithinDuration(t, time.Now(), at, time.Second)
}

func TestStaticOracle_MissingAsset(t *testing.T) {
	o := NewStaticOracle(time.Hour)
	_, _, err := o.LatestPrice(weth)
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestStaticOracle_RejectsInvalidPrice(t *testing.T) {
	o := NewStaticOracle(time.Hour)
	assert.ErrorIs(t, o.SetPrice(weth, sdkmath.ZeroInt()), ErrInvalidPrice)
	assert.ErrorIs(t, o.SetPrice(weth, sdkmath.NewInt(-1)), ErrInvalidPrice)
}

func TestStaticOracle_StalePrice(t *testing.T) {
	o := NewStaticOracle(time.Hour)
	price := sdkmath.NewIntWithDecimal(2500, 18)
	require.NoError(t, o.SetPrice(weth, price))

	o.mu.Lock()
	o.prices[weth] = quote{price: price, at: time.Now().Add(-2 * time.Hour)}
	o.mu.Unlock()

	_, _, err := o.LatestPrice(weth)
	assert.ErrorIs(t, err, ErrStalePrice)
}

func TestStaticOracle_ZeroStalenessDisablesCheck(t *testing.T) {
	o := NewStaticOracle(0)
	price := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, o.SetPrice(weth, price))

	o.mu.Lock()
	o.prices[weth] = quote{price: price, at: time.Now().Add(-240 * time.Hour)}
	o.mu.Unlock()

	_, _, err := o.LatestPrice(weth)
	assert.NoError(t, err)
}
