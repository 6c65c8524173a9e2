package arbitrage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbengine/types"
)

func profitableRoute() *types.Route {
	return &types.Route{
		BuyPool:    snapshot(1, 950000000, 930000000),
		SellPool:   snapshot(2, 990000000, 950000000),
		LoanAmount: big.NewInt(10000),
	}
}

func TestEstimateProfitableRoute(t *testing.T) {
	estimator := NewEstimator(10, 1.0, zaptest.NewLogger(t))

	plan, err := estimator.Estimate(profitableRoute(), 2.0166, big.NewInt(0))
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(9760), plan.ExpectedOutLeg1)
	assert.Equal(t, big.NewInt(10140), plan.ExpectedOutLeg2)
	assert.Equal(t, big.NewInt(10), plan.LoanFee)
	assert.Equal(t, big.NewInt(130), plan.NetProfit)
}

func TestEstimateGasErodesProfit(t *testing.T) {
	estimator := NewEstimator(10, 1.0, zaptest.NewLogger(t))

	plan, err := estimator.Estimate(profitableRoute(), 2.0166, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), plan.NetProfit)

	// Gas at the full margin tips the decision over.
	_, err = estimator.Estimate(profitableRoute(), 2.0166, big.NewInt(130))
	assert.ErrorIs(t, err, types.ErrNotProfitable)
}

func TestEstimateSpreadBelowThresholdShortCircuits(t *testing.T) {
	estimator := NewEstimator(10, 1.0, zaptest.NewLogger(t))

	_, err := estimator.Estimate(profitableRoute(), 0.5, big.NewInt(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotProfitable)
}

func TestEstimateCapsSellLegInput(t *testing.T) {
	// A tiny sell pool forces the cap: leg-2 input must not exceed half
	// its counter reserve.
	route := &types.Route{
		BuyPool:    snapshot(1, 950000000, 930000000),
		SellPool:   snapshot(2, 12000, 10000),
		LoanAmount: big.NewInt(10000),
	}
	estimator := NewEstimator(10, 1.0, zaptest.NewLogger(t))

	_, err := estimator.Estimate(route, 2.0, big.NewInt(0))
	// Capped at 5000 in, the round trip cannot repay a 10000 loan.
	assert.ErrorIs(t, err, types.ErrNotProfitable)
}

func TestEstimateSymmetricPoolsNotProfitable(t *testing.T) {
	route := &types.Route{
		BuyPool:    snapshot(1, 1000000, 1000000),
		SellPool:   snapshot(2, 1000000, 1000000),
		LoanAmount: big.NewInt(10000),
	}
	estimator := NewEstimator(10, 0.0, zaptest.NewLogger(t))

	// Two legs of fees on identical pools always lose money.
	_, err := estimator.Estimate(route, 0.0, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrNotProfitable)
}

func TestEstimateIncompleteRoute(t *testing.T) {
	estimator := NewEstimator(10, 1.0, zaptest.NewLogger(t))

	_, err := estimator.Estimate(nil, 2.0, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrDegenerateInput)

	_, err = estimator.Estimate(&types.Route{}, 2.0, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
}
