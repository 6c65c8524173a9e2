package dex

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/arbengine/types"
	"github.com/michaelpento.lv/arbengine/utils/metrics"
)

// SnapshotReader captures fresh PoolSnapshots for a decision cycle. Reads are
// issued back-to-back per pool and rate-limited against the ledger endpoint.
// Snapshots are never cached across cycles.
type SnapshotReader struct {
	pools        []Pool
	limiter      *rate.Limiter
	maxStaleness time.Duration
	logger       *zap.Logger
	now          func() time.Time
	metrics      *metrics.ReadMetrics
}

// NewSnapshotReader creates a reader over a fixed pool set. maxStaleness
// bounds the age of the oldest snapshot relative to the last one read; a
// batch exceeding it is re-fetched once.
func NewSnapshotReader(pools []Pool, readsPerSecond float64, burst int, maxStaleness time.Duration, logger *zap.Logger) *SnapshotReader {
	return &SnapshotReader{
		pools:        pools,
		limiter:      rate.NewLimiter(rate.Limit(readsPerSecond), burst),
		maxStaleness: maxStaleness,
		logger:       logger,
		now:          time.Now,
	}
}

// WithMetrics attaches read-path metrics. Optional.
func (r *SnapshotReader) WithMetrics(m *metrics.ReadMetrics) *SnapshotReader {
	r.metrics = m
	return r
}

// ReadAll captures one snapshot per pool, in pool order.
func (r *SnapshotReader) ReadAll(ctx context.Context) ([]*types.PoolSnapshot, error) {
	start := r.now()
	snapshots, err := r.readBatch(ctx)
	if err != nil {
		return nil, err
	}

	if r.batchStaleness(snapshots) > r.maxStaleness {
		r.logger.Warn("Snapshot batch exceeded staleness window, re-fetching",
			zap.Duration("staleness", r.batchStaleness(snapshots)),
			zap.Duration("max", r.maxStaleness))
		if r.metrics != nil {
			r.metrics.SnapshotRetries.Inc()
		}
		snapshots, err = r.readBatch(ctx)
		if err != nil {
			return nil, err
		}
		if stale := r.batchStaleness(snapshots); stale > r.maxStaleness {
			if r.metrics != nil {
				r.metrics.StaleSnapshots.Inc()
			}
			return nil, fmt.Errorf("%w: snapshots stale by %s after re-fetch",
				types.ErrNetworkFailure, stale)
		}
	}

	if r.metrics != nil {
		r.metrics.SnapshotReads.Inc()
		r.metrics.ReadLatency.Observe(r.now().Sub(start).Seconds())
		for _, snap := range snapshots {
			pool := snap.PoolID.Hex()
			reserveIn, _ := new(big.Float).SetInt(snap.ReserveIn).Float64()
			reserveOut, _ := new(big.Float).SetInt(snap.ReserveOut).Float64()
			r.metrics.PoolReserve.WithLabelValues(pool, "base").Set(reserveIn)
			r.metrics.PoolReserve.WithLabelValues(pool, "counter").Set(reserveOut)
		}
	}

	return snapshots, nil
}

func (r *SnapshotReader) readBatch(ctx context.Context) ([]*types.PoolSnapshot, error) {
	snapshots := make([]*types.PoolSnapshot, 0, len(r.pools))

	for _, pool := range r.pools {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", types.ErrNetworkFailure, err)
		}

		reserveIn, reserveOut, err := pool.Reserves(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading reserves of %s: %w", pool.Address().Hex(), err)
		}
		if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
			return nil, fmt.Errorf("%w: pool %s reported empty reserve",
				types.ErrDegenerateInput, pool.Address().Hex())
		}

		snapshots = append(snapshots, &types.PoolSnapshot{
			PoolID:         pool.Address(),
			ReserveIn:      reserveIn,
			ReserveOut:     reserveOut,
			FeeBasisPoints: pool.FeeBasisPoints(),
			ObservedAt:     r.now(),
		})
	}

	return snapshots, nil
}

func (r *SnapshotReader) batchStaleness(snapshots []*types.PoolSnapshot) time.Duration {
	if len(snapshots) == 0 {
		return 0
	}
	oldest := snapshots[0].ObservedAt
	newest := snapshots[0].ObservedAt
	for _, s := range snapshots[1:] {
		if s.ObservedAt.Before(oldest) {
			oldest = s.ObservedAt
		}
		if s.ObservedAt.After(newest) {
			newest = s.ObservedAt
		}
	}
	return newest.Sub(oldest)
}
