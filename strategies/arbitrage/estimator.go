package arbitrage

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/types"
	"github.com/michaelpento.lv/arbengine/utils/metrics"
)

// Estimator simulates the two-leg swap for a candidate route and decides
// whether the spread covers trading fees, the loan fee and gas.
type Estimator struct {
	loanFeeBps       uint16
	minSpreadPercent float64
	logger           *zap.Logger
	metrics          *metrics.DecisionMetrics
}

// NewEstimator creates a profit estimator. loanFeeBps is the flash-loan fee
// rate; minSpreadPercent is the pre-check threshold below which no external
// call is ever made.
func NewEstimator(loanFeeBps uint16, minSpreadPercent float64, logger *zap.Logger) *Estimator {
	return &Estimator{
		loanFeeBps:       loanFeeBps,
		minSpreadPercent: minSpreadPercent,
		logger:           logger,
	}
}

// WithMetrics attaches decision metrics. Optional.
func (e *Estimator) WithMetrics(m *metrics.DecisionMetrics) *Estimator {
	e.metrics = m
	return e
}

// Estimate simulates the route and returns an ExecutionPlan with strictly
// positive net profit, or ErrNotProfitable. gasCost must already be
// denominated in the base asset.
func (e *Estimator) Estimate(route *types.Route, spreadPercent float64, gasCost *big.Int) (*types.ExecutionPlan, error) {
	if route == nil || route.BuyPool == nil || route.SellPool == nil || route.LoanAmount == nil {
		return nil, fmt.Errorf("%w: incomplete route", types.ErrDegenerateInput)
	}
	if gasCost == nil {
		gasCost = big.NewInt(0)
	}

	if spreadPercent < e.minSpreadPercent {
		if e.metrics != nil {
			e.metrics.BelowThreshold.Inc()
		}
		return nil, fmt.Errorf("%w: spread %.4f%% below threshold %.4f%%",
			types.ErrNotProfitable, spreadPercent, e.minSpreadPercent)
	}

	// Leg 1: base -> counter on the buy pool.
	outLeg1, err := dex.SwapOutput(route.LoanAmount,
		route.BuyPool.ReserveIn, route.BuyPool.ReserveOut, route.BuyPool.FeeBasisPoints)
	if err != nil {
		return nil, err
	}

	// Cap the sell input at half the sell pool's counter-asset reserve to
	// guard against liquidity exhaustion.
	cappedIn := new(big.Int).Set(outLeg1)
	maxIn := new(big.Int).Rsh(route.SellPool.ReserveOut, 1)
	if cappedIn.Cmp(maxIn) > 0 {
		e.logger.Debug("Capping sell leg input at half the sell pool reserve",
			zap.String("acquired", outLeg1.String()),
			zap.String("cap", maxIn.String()))
		cappedIn.Set(maxIn)
	}

	// Leg 2: counter -> base on the sell pool.
	outLeg2, err := dex.SwapOutput(cappedIn,
		route.SellPool.ReserveOut, route.SellPool.ReserveIn, route.SellPool.FeeBasisPoints)
	if err != nil {
		return nil, err
	}

	loanFee := dex.LoanFee(route.LoanAmount, e.loanFeeBps)

	netProfit := new(big.Int).Sub(outLeg2, route.LoanAmount)
	netProfit.Sub(netProfit, loanFee)
	netProfit.Sub(netProfit, gasCost)

	if netProfit.Sign() <= 0 {
		return nil, fmt.Errorf("%w: net %s after loan fee %s and gas %s",
			types.ErrNotProfitable, netProfit, loanFee, gasCost)
	}

	if e.metrics != nil {
		net, _ := new(big.Float).SetInt(netProfit).Float64()
		charged, _ := new(big.Float).SetInt(gasCost).Float64()
		e.metrics.EstimatedProfit.Observe(net)
		e.metrics.GasCost.Observe(charged)
	}

	return &types.ExecutionPlan{
		Route:           route,
		SpreadPercent:   spreadPercent,
		ExpectedOutLeg1: outLeg1,
		ExpectedOutLeg2: outLeg2,
		LoanFee:         loanFee,
		GasCost:         gasCost,
		NetProfit:       netProfit,
	}, nil
}
