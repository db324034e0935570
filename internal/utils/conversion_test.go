package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPow10(t *testing.T) {
	p, err := Pow10(0)
	require.NoError(t, err)
	assert.Equal(t, "1", p.String())

	p, err = Pow10(18)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", p.String())

	_, err = Pow10(-1)
	assert.ErrorIs(t, err, ErrInvalidDecimals)

	_, err = Pow10(37)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestDecimalShift_UpAndDown(t *testing.T) {
	// 1.5 USDC (6 decimals) up to wad
	out, err := DecimalShift(sdkmath.NewInt(1_500_000), 6, 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", out.String())

	// and back down
	back, err := DecimalShift(out, 18, 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", back.String())

	// 8-decimal option token to wad and back
	out, err = DecimalShift(sdkmath.NewInt(250_000_000), 8, 18)
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", out.String())
	back, err = DecimalShift(out, 18, 8)
	require.NoError(t, err)
	assert.Equal(t, "250000000", back.String())
}

func TestDecimalShift_TruncatesTowardZero(t *testing.T) {
	// 1.0000019 units at 7 decimals down to 6: the trailing 9 is dropped.
	out, err := DecimalShift(sdkmath.NewInt(10_000_019), 7, 6)
	require.NoError(t, err)
	assert.Equal(t, "1000001", out.String())
}

func TestDecimalShift_SameDecimalsIsIdentity(t *testing.T) {
	amount := sdkmath.NewInt(123456789)
	out, err := DecimalShift(amount, 8, 8)
	require.NoError(t, err)
	assert.True(t, out.Equal(amount))
}

func TestDecimalShift_RejectsInvalidInput(t *testing.T) {
	_, err := DecimalShift(sdkmath.Int{}, 6, 18)
	assert.ErrorIs(t, err, ErrAmountNil)

	_, err = DecimalShift(sdkmath.NewInt(-5), 6, 18)
	assert.ErrorIs(t, err, ErrAmountNegative)

	_, err = DecimalShift(sdkmath.NewInt(1), 19, 18)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestMulDiv(t *testing.T) {
	// multiply-before-divide avoids the intermediate truncation:
	// 5 * 3 / 2 = 7 (truncated), not (5/2)*3 = 6
	out, err := MulDiv(sdkmath.NewInt(5), sdkmath.NewInt(3), sdkmath.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, "7", out.String())

	_, err = MulDiv(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.Error(t, err)
}

func TestMulDivUp(t *testing.T) {
	out, err := MulDivUp(sdkmath.NewInt(5), sdkmath.NewInt(3), sdkmath.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, "8", out.String())

	// exact division does not round
	out, err = MulDivUp(sdkmath.NewInt(4), sdkmath.NewInt(3), sdkmath.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, "6", out.String())
}

func TestToWadFromWadRoundTrip(t *testing.T) {
	amount := sdkmath.NewInt(987_654_321) // 9.87654321 at 8 decimals
	wad, err := ToWad(amount, 8)
	require.NoError(t, err)
	back, err := FromWad(wad, 8)
	require.NoError(t, err)
	assert.True(t, back.Equal(amount))
}
