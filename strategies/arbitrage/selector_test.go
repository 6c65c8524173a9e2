package arbitrage

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbengine/types"
)

func snapshot(seed byte, reserveIn, reserveOut int64) *types.PoolSnapshot {
	return &types.PoolSnapshot{
		PoolID:         common.BytesToAddress([]byte{seed}),
		ReserveIn:      big.NewInt(reserveIn),
		ReserveOut:     big.NewInt(reserveOut),
		FeeBasisPoints: 30,
	}
}

func TestBestRequiresTwoPools(t *testing.T) {
	selector := NewSelector(zaptest.NewLogger(t))

	_, err := selector.Best(nil)
	assert.ErrorIs(t, err, types.ErrInsufficientPools)

	_, err = selector.Best([]*types.PoolSnapshot{snapshot(1, 1000, 1000)})
	assert.ErrorIs(t, err, types.ErrInsufficientPools)
}

func TestBestPicksWidestSpread(t *testing.T) {
	// Prices: 1.0, 1.1, 0.8. Widest spread is pool1 vs pool2.
	snapshots := []*types.PoolSnapshot{
		snapshot(1, 1000000, 1000000),
		snapshot(2, 1000000, 1100000),
		snapshot(3, 1000000, 800000),
	}
	selector := NewSelector(zaptest.NewLogger(t))

	best, err := selector.Best(snapshots)
	require.NoError(t, err)
	assert.Equal(t, 2, best.PoolLow)
	assert.Equal(t, 1, best.PoolHigh)
	assert.InDelta(t, (1.1-0.8)/0.8*100, best.SpreadPercent, 1e-9)
}

func TestBestExaminesEveryPair(t *testing.T) {
	// Three pools make three pairs; the widest spread sits on the last
	// pair (1, 2), which a selector with a broken inner loop would skip.
	snapshots := []*types.PoolSnapshot{
		snapshot(1, 1000000, 1000000),
		snapshot(2, 1000000, 990000),
		snapshot(3, 1000000, 1200000),
	}
	selector := NewSelector(zaptest.NewLogger(t))

	best, err := selector.Best(snapshots)
	require.NoError(t, err)
	assert.Equal(t, 1, best.PoolLow)
	assert.Equal(t, 2, best.PoolHigh)
}

func TestBestTieBreaksOnFirstPair(t *testing.T) {
	// Pools 1 and 2 are identical, so pairs (0,1) and (0,2) tie.
	snapshots := []*types.PoolSnapshot{
		snapshot(1, 1000000, 1000000),
		snapshot(2, 1000000, 1100000),
		snapshot(3, 1000000, 1100000),
	}
	selector := NewSelector(zaptest.NewLogger(t))

	best, err := selector.Best(snapshots)
	require.NoError(t, err)
	assert.Equal(t, 0, best.PoolLow)
	assert.Equal(t, 1, best.PoolHigh)
}

func TestBuildRouteOrientation(t *testing.T) {
	// The counter asset is cheapest where the counter-per-base price is
	// highest, so the buy leg must run on the high-priced pool.
	snapshots := []*types.PoolSnapshot{
		snapshot(1, 950000000, 930000000),
		snapshot(2, 990000000, 950000000),
	}
	selector := NewSelector(zaptest.NewLogger(t))

	best, err := selector.Best(snapshots)
	require.NoError(t, err)
	assert.Equal(t, 1, best.PoolLow)
	assert.Equal(t, 0, best.PoolHigh)

	route := BuildRoute(snapshots, best, big.NewInt(10000))
	assert.Equal(t, snapshots[0], route.BuyPool)
	assert.Equal(t, snapshots[1], route.SellPool)
	assert.Equal(t, big.NewInt(10000), route.LoanAmount)
}
