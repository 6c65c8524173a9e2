package dex

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbengine/types"
)

func TestPriceOf(t *testing.T) {
	snap := &types.PoolSnapshot{
		ReserveIn:  big.NewInt(950000000),
		ReserveOut: big.NewInt(930000000),
	}
	price, err := PriceOf(snap)
	require.NoError(t, err)
	assert.InDelta(t, 930.0/950.0, price, 1e-12)
}

func TestPriceOfDegenerate(t *testing.T) {
	_, err := PriceOf(nil)
	assert.ErrorIs(t, err, types.ErrDegenerateInput)

	_, err = PriceOf(&types.PoolSnapshot{ReserveIn: big.NewInt(0), ReserveOut: big.NewInt(1)})
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
}

func TestSpreadSymmetry(t *testing.T) {
	a, err := Spread(1.2, 1.5)
	require.NoError(t, err)
	b, err := Spread(1.5, 1.2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSpreadEqualPricesIsZero(t *testing.T) {
	spread, err := Spread(1.2345, 1.2345)
	require.NoError(t, err)
	assert.Zero(t, spread)
}

func TestSpreadKnownFigures(t *testing.T) {
	p1 := 930.0 / 950.0
	p2 := 950.0 / 990.0
	spread, err := Spread(p1, p2)
	require.NoError(t, err)
	assert.InDelta(t, 2.016620498614967, spread, 1e-9)
}

func TestSpreadRejectsNonPositivePrices(t *testing.T) {
	_, err := Spread(0, 1)
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
	_, err = Spread(1, -2)
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
}
