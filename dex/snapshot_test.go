package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbengine/types"
)

type fakePool struct {
	address    common.Address
	feeBps     uint16
	reserveIn  *big.Int
	reserveOut *big.Int
	reserveErr error
	readCount  int
}

func (p *fakePool) Address() common.Address { return p.address }
func (p *fakePool) FeeBasisPoints() uint16  { return p.feeBps }

func (p *fakePool) Reserves(ctx context.Context) (*big.Int, *big.Int, error) {
	p.readCount++
	if p.reserveErr != nil {
		return nil, nil, p.reserveErr
	}
	return new(big.Int).Set(p.reserveIn), new(big.Int).Set(p.reserveOut), nil
}

func (p *fakePool) SwapBaseForCounter(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePool) SwapCounterForBase(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error) {
	return nil, errors.New("not implemented")
}

func newFakePool(seed byte, reserveIn, reserveOut int64) *fakePool {
	return &fakePool{
		address:    common.BytesToAddress([]byte{seed}),
		feeBps:     30,
		reserveIn:  big.NewInt(reserveIn),
		reserveOut: big.NewInt(reserveOut),
	}
}

func TestReadAllCapturesEveryPool(t *testing.T) {
	pools := []Pool{
		newFakePool(1, 950000000, 930000000),
		newFakePool(2, 990000000, 950000000),
	}
	reader := NewSnapshotReader(pools, 100, 10, time.Second, zaptest.NewLogger(t))

	snapshots, err := reader.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	assert.Equal(t, pools[0].Address(), snapshots[0].PoolID)
	assert.Equal(t, big.NewInt(950000000), snapshots[0].ReserveIn)
	assert.Equal(t, big.NewInt(930000000), snapshots[0].ReserveOut)
	assert.Equal(t, uint16(30), snapshots[0].FeeBasisPoints)
	assert.False(t, snapshots[0].ObservedAt.IsZero())
}

func TestReadAllPropagatesReadFailure(t *testing.T) {
	failing := newFakePool(1, 1000, 1000)
	failing.reserveErr = errors.New("connection refused")
	pools := []Pool{failing, newFakePool(2, 1000, 1000)}
	reader := NewSnapshotReader(pools, 100, 10, time.Second, zaptest.NewLogger(t))

	_, err := reader.ReadAll(context.Background())
	require.Error(t, err)
}

func TestReadAllRejectsEmptyReserves(t *testing.T) {
	pools := []Pool{newFakePool(1, 0, 1000)}
	reader := NewSnapshotReader(pools, 100, 10, time.Second, zaptest.NewLogger(t))

	_, err := reader.ReadAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDegenerateInput)
}

func TestReadAllRefetchesStaleBatch(t *testing.T) {
	pools := []Pool{
		newFakePool(1, 1000, 1000),
		newFakePool(2, 1000, 1000),
	}
	reader := NewSnapshotReader(pools, 100, 10, 50*time.Millisecond, zaptest.NewLogger(t))

	// First batch spreads its observations over 200ms, the second is
	// instantaneous.
	base := time.Now()
	ticks := []time.Duration{0, 200 * time.Millisecond, time.Second, time.Second}
	reader.now = func() time.Time {
		d := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return base.Add(d)
	}

	snapshots, err := reader.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2, pools[0].(*fakePool).readCount)
}
