package arbitrage

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/types"
	"github.com/michaelpento.lv/arbengine/utils/metrics"
)

// Selector scores every unordered pool pair by spread and picks the widest.
type Selector struct {
	logger  *zap.Logger
	metrics *metrics.DecisionMetrics
}

// NewSelector creates a route selector.
func NewSelector(logger *zap.Logger) *Selector {
	return &Selector{logger: logger}
}

// WithMetrics attaches decision metrics. Optional.
func (s *Selector) WithMetrics(m *metrics.DecisionMetrics) *Selector {
	s.metrics = m
	return s
}

// Best enumerates all (n choose 2) pairs of the given snapshots and returns
// the pair with the maximum spread. On equal spreads the first pair in
// ascending (i, j) order wins, so the result is deterministic.
func (s *Selector) Best(snapshots []*types.PoolSnapshot) (*types.SpreadResult, error) {
	if len(snapshots) < 2 {
		return nil, fmt.Errorf("%w: got %d snapshots, need at least 2",
			types.ErrInsufficientPools, len(snapshots))
	}

	prices := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		price, err := dex.PriceOf(snap)
		if err != nil {
			return nil, err
		}
		prices[i] = price
	}

	var best *types.SpreadResult
	for i := 0; i < len(snapshots); i++ {
		for j := i + 1; j < len(snapshots); j++ {
			spread, err := dex.Spread(prices[i], prices[j])
			if err != nil {
				return nil, err
			}

			s.logger.Debug("Scored pool pair",
				zap.String("pool_i", snapshots[i].PoolID.Hex()),
				zap.String("pool_j", snapshots[j].PoolID.Hex()),
				zap.Float64("price_i", prices[i]),
				zap.Float64("price_j", prices[j]),
				zap.Float64("spread_percent", spread))

			if s.metrics != nil {
				s.metrics.PairsEvaluated.Inc()
			}
			if best != nil && spread <= best.SpreadPercent {
				continue
			}
			low, high := i, j
			if prices[j] < prices[i] {
				low, high = j, i
			}
			best = &types.SpreadResult{
				PoolLow:       low,
				PoolHigh:      high,
				SpreadPercent: spread,
			}
		}
	}

	if s.metrics != nil {
		s.metrics.SpreadPercent.Observe(best.SpreadPercent)
	}
	return best, nil
}

// BuildRoute orients a spread result into a trading route. The counter asset
// is cheapest where the counter-per-base price is highest, so the buy leg
// runs on the high-priced pool and the sell leg on the low-priced one.
func BuildRoute(snapshots []*types.PoolSnapshot, spread *types.SpreadResult, loanAmount *big.Int) *types.Route {
	return &types.Route{
		BuyPool:    snapshots[spread.PoolHigh],
		SellPool:   snapshots[spread.PoolLow],
		LoanAmount: loanAmount,
	}
}
