package flashloan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/gas"
	"github.com/michaelpento.lv/arbengine/strategies/arbitrage"
	"github.com/michaelpento.lv/arbengine/types"
)

// State is a phase of one execution attempt.
type State int

const (
	StateIdle State = iota
	StatePricesRead
	StateSpreadEvaluated
	StateAborted
	StateFinanced
	StateLeg1Executed
	StateLeg2Executed
	StateRepaid
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePricesRead:
		return "prices_read"
	case StateSpreadEvaluated:
		return "spread_evaluated"
	case StateAborted:
		return "aborted"
	case StateFinanced:
		return "financed"
	case StateLeg1Executed:
		return "leg1_executed"
	case StateLeg2Executed:
		return "leg2_executed"
	case StateRepaid:
		return "repaid"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrRouteBusy rejects a cycle whose selected route already has an attempt
// in flight. Concurrent attempts would double-count the same liquidity.
var ErrRouteBusy = types.ErrRouteBusy

// Config carries the injected identities and limits of the coordinator.
// Contract addresses arrive here at construction, never as package globals.
type Config struct {
	Owner        common.Address
	BaseAsset    common.Address
	CounterAsset common.Address
	LoanAmount   *big.Int
	StepTimeout  time.Duration
}

// Deps are the collaborators the coordinator drives.
type Deps struct {
	Reader       SnapshotSource
	Pools        []dex.Pool
	Selector     *arbitrage.Selector
	Estimator    *arbitrage.Estimator
	Accountant   *gas.Accountant
	Lender       Lender
	Executor     Executor // optional; enables the ledger-atomic path
	BaseToken    dex.TokenLedger
	CounterToken dex.TokenLedger
}

// SnapshotSource yields fresh pool snapshots for one cycle.
type SnapshotSource interface {
	ReadAll(ctx context.Context) ([]*types.PoolSnapshot, error)
}

// Coordinator drives one decision cycle through the state machine
// Idle -> PricesRead -> SpreadEvaluated -> {Aborted | Financed} ->
// Leg1Executed -> Leg2Executed -> Repaid -> Completed, with any state able
// to fall to Failed. No mutating call is issued before the profit decision,
// and step N+1 is never issued before step N's confirmed outcome is parsed.
type Coordinator struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	inflight map[uint64]bool

	attemptSeq uint64
	doneSteps  *lru.Cache

	metrics struct {
		cycles         prometheus.Counter
		aborts         prometheus.Counter
		attempts       prometheus.Counter
		successes      prometheus.Counter
		failures       prometheus.CounterVec
		latency        prometheus.Histogram
		successRate    prometheus.Gauge
		activeAttempts prometheus.Gauge
	}

	logger *zap.Logger
}

// NewCoordinator creates an execution coordinator.
func NewCoordinator(cfg Config, deps Deps, logger *zap.Logger) (*Coordinator, error) {
	if cfg.LoanAmount == nil || cfg.LoanAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: loan amount must be positive", types.ErrDegenerateInput)
	}
	if deps.Reader == nil || deps.Selector == nil || deps.Estimator == nil || deps.Lender == nil {
		return nil, errors.New("coordinator missing required dependencies")
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}

	doneSteps, err := lru.New(256)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		deps:      deps,
		inflight:  make(map[uint64]bool),
		doneSteps: doneSteps,
		logger:    logger,
	}
	c.initMetrics()
	return c, nil
}

func (c *Coordinator) initMetrics() {
	c.metrics.cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_cycles_total",
		Help: "Number of decision cycles run",
	})
	c.metrics.aborts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_aborts_total",
		Help: "Number of cycles aborted before any mutating call",
	})
	c.metrics.attempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_attempts_total",
		Help: "Number of execution attempts started",
	})
	c.metrics.successes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbengine_successes_total",
		Help: "Number of completed execution attempts",
	})
	c.metrics.failures = *prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbengine_failures_total",
		Help: "Number of failed execution attempts by kind",
	}, []string{"kind"})
	c.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbengine_attempt_latency_seconds",
		Help:    "Latency of execution attempts",
		Buckets: prometheus.DefBuckets,
	})
	c.metrics.successRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_success_rate",
		Help: "Ratio of completed to started execution attempts",
	})
	c.metrics.activeAttempts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbengine_active_attempts",
		Help: "Number of attempts currently in flight",
	})
}

// Collectors exposes the coordinator's collectors for registration with a
// metrics registry. The collectors work unregistered too, which keeps
// parallel test instances from colliding.
func (c *Coordinator) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.metrics.cycles,
		c.metrics.aborts,
		c.metrics.attempts,
		c.metrics.successes,
		&c.metrics.failures,
		c.metrics.latency,
		c.metrics.successRate,
		c.metrics.activeAttempts,
	}
}

// RunCycle runs one full decision cycle. A NotProfitable verdict is a clean
// outcome, not an error: the returned result reports Aborted with no
// external mutation performed.
func (c *Coordinator) RunCycle(ctx context.Context) (*types.ExecutionResult, error) {
	c.metrics.cycles.Inc()
	state := StateIdle

	snapshots, err := c.deps.Reader.ReadAll(ctx)
	if err != nil {
		return c.failResult(state, err), err
	}
	state = c.advance(state, StatePricesRead)

	spread, err := c.deps.Selector.Best(snapshots)
	if err != nil {
		return c.failResult(state, err), err
	}

	route := arbitrage.BuildRoute(snapshots, spread, c.cfg.LoanAmount)
	gasCost := c.deps.Accountant.EstimateAttemptCost()

	plan, err := c.deps.Estimator.Estimate(route, spread.SpreadPercent, gasCost)
	state = c.advance(state, StateSpreadEvaluated)
	if err != nil {
		if errors.Is(err, types.ErrNotProfitable) {
			state = c.advance(state, StateAborted)
			c.metrics.aborts.Inc()
			c.logger.Info("Cycle aborted, not profitable",
				zap.Float64("spread_percent", spread.SpreadPercent),
				zap.String("reason", err.Error()))
			return &types.ExecutionResult{
				Succeeded:   false,
				FailureKind: types.FailureNotProfitable,
				StepReached: state.String(),
			}, nil
		}
		return c.failResult(state, err), err
	}

	key := routeKey(plan.Route.BuyPool.PoolID, plan.Route.SellPool.PoolID)
	if !c.acquireRoute(key) {
		return c.failResult(state, ErrRouteBusy), ErrRouteBusy
	}
	defer c.releaseRoute(key)

	return c.execute(ctx, state, key, plan)
}

func (c *Coordinator) execute(ctx context.Context, state State, routeID uint64, plan *types.ExecutionPlan) (*types.ExecutionResult, error) {
	start := time.Now()
	attemptID := atomic.AddUint64(&c.attemptSeq, 1)

	c.metrics.attempts.Inc()
	c.metrics.activeAttempts.Inc()
	defer func() {
		c.metrics.activeAttempts.Dec()
		c.metrics.latency.Observe(time.Since(start).Seconds())
		c.updateSuccessRate()
	}()

	c.logger.Info("Executing route",
		zap.Uint64("attempt", attemptID),
		zap.String("buy_pool", plan.Route.BuyPool.PoolID.Hex()),
		zap.String("sell_pool", plan.Route.SellPool.PoolID.Hex()),
		zap.String("loan_amount", plan.Route.LoanAmount.String()),
		zap.Float64("spread_percent", plan.SpreadPercent),
		zap.String("expected_net_profit", plan.NetProfit.String()))

	var result *types.ExecutionResult
	var err error
	if c.deps.Executor != nil {
		result, err = c.executeAtomic(ctx, state, attemptID, routeID, plan)
	} else {
		result, err = c.executeStepwise(ctx, state, attemptID, routeID, plan)
	}

	if result.Succeeded {
		c.metrics.successes.Inc()
	} else {
		c.metrics.failures.WithLabelValues(string(result.FailureKind)).Inc()
	}
	return result, err
}

// executeAtomic delegates the financed sequence to the executor contract's
// single ledger-atomic transaction: a failed profit check inside the bundle
// reverts every leg, so no compensation logic is needed on this path.
func (c *Coordinator) executeAtomic(ctx context.Context, state State, attemptID, routeID uint64, plan *types.ExecutionPlan) (*types.ExecutionResult, error) {
	repay := new(big.Int).Add(plan.Route.LoanAmount, plan.LoanFee)

	if err := c.ensureAllowance(ctx, c.deps.BaseToken, c.deps.Executor.Address(), repay); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()

	report, err := c.deps.Executor.InitiateFlashLoan(stepCtx,
		c.deps.Lender.Address(), c.cfg.BaseAsset, plan.Route.LoanAmount,
		[]common.Address{plan.Route.BuyPool.PoolID, plan.Route.SellPool.PoolID},
		c.cfg.CounterAsset)
	if err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	// The bundle confirmed as one unit; the intermediate states collapse.
	state = c.advance(state, StateFinanced)
	state = c.advance(state, StateLeg1Executed)
	state = c.advance(state, StateLeg2Executed)
	state = c.advance(state, StateRepaid)
	state = c.advance(state, StateCompleted)

	gasSpent := new(big.Int)
	if report.GasPrice != nil {
		gasSpent.Mul(new(big.Int).SetUint64(report.GasUsed), report.GasPrice)
	}
	gasCost := c.deps.Accountant.NativeToBase(gasSpent)
	net := new(big.Int).Sub(report.Profit, gasCost)

	c.logger.Info("Flash loan attempt completed",
		zap.Uint64("attempt", attemptID),
		zap.String("tx", report.TxHash.Hex()),
		zap.String("amount", report.Amount.String()),
		zap.String("fee", report.Fee.String()),
		zap.String("gas_cost", gasCost.String()),
		zap.String("realized_profit", report.Profit.String()),
		zap.String("net_profit", net.String()))

	return &types.ExecutionResult{
		Succeeded:      true,
		RealizedProfit: report.Profit,
		GasCost:        gasCost,
		NetProfit:      net,
		StepReached:    state.String(),
	}, nil
}

// executeStepwise issues one mutating call per transition. After a leg-1
// confirmation, a later failure leaves the counter asset held by the owner;
// the attempt surfaces the realized amounts for operator recovery instead of
// auto-unwinding through a reverse swap.
func (c *Coordinator) executeStepwise(ctx context.Context, state State, attemptID, routeID uint64, plan *types.ExecutionPlan) (*types.ExecutionResult, error) {
	route := plan.Route
	buyPool := c.poolByID(route.BuyPool.PoolID)
	sellPool := c.poolByID(route.SellPool.PoolID)
	if buyPool == nil || sellPool == nil {
		err := fmt.Errorf("route references unknown pool")
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	initial, err := c.deps.BaseToken.BalanceOf(ctx, c.cfg.Owner)
	if err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	repay := new(big.Int).Add(route.LoanAmount, plan.LoanFee)

	// Allowances are mutable external state; re-check before every attempt.
	if err := c.ensureAllowance(ctx, c.deps.BaseToken, buyPool.Address(), route.LoanAmount); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	if err := c.ensureAllowance(ctx, c.deps.BaseToken, c.deps.Lender.Address(), repay); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	if _, err := c.runStep(ctx, routeID, "borrow", func(stepCtx context.Context) (interface{}, error) {
		return c.deps.Lender.Borrow(stepCtx, c.cfg.BaseAsset, route.LoanAmount)
	}); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	state = c.advance(state, StateFinanced)

	leg1, err := c.runStep(ctx, routeID, "swap_leg1", func(stepCtx context.Context) (interface{}, error) {
		return buyPool.SwapBaseForCounter(stepCtx, route.LoanAmount)
	})
	if err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	acquired := leg1.(*dex.SwapOutcome)
	state = c.advance(state, StateLeg1Executed)

	// The realized amount comes from leg 1's own confirmed event, not the
	// simulation; cap it at half the sell pool's counter reserve.
	sellIn := new(big.Int).Set(acquired.AmountOut)
	maxIn := new(big.Int).Rsh(route.SellPool.ReserveOut, 1)
	if sellIn.Cmp(maxIn) > 0 {
		c.logger.Warn("Realized leg-1 output exceeds sell liquidity cap",
			zap.Uint64("attempt", attemptID),
			zap.String("acquired", sellIn.String()),
			zap.String("cap", maxIn.String()))
		sellIn.Set(maxIn)
	}

	if err := c.ensureAllowance(ctx, c.deps.CounterToken, sellPool.Address(), sellIn); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}

	leg2, err := c.runStep(ctx, routeID, "swap_leg2", func(stepCtx context.Context) (interface{}, error) {
		return sellPool.SwapCounterForBase(stepCtx, sellIn)
	})
	if err != nil {
		c.logger.Error("Sell leg failed with counter asset held",
			zap.Uint64("attempt", attemptID),
			zap.String("held_amount", sellIn.String()),
			zap.String("counter_asset", c.cfg.CounterAsset.Hex()))
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	returned := leg2.(*dex.SwapOutcome)
	state = c.advance(state, StateLeg2Executed)

	if _, err := c.runStep(ctx, routeID, "repay", func(stepCtx context.Context) (interface{}, error) {
		return c.deps.Lender.Repay(stepCtx, c.cfg.BaseAsset, repay)
	}); err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	state = c.advance(state, StateRepaid)

	final, err := c.deps.BaseToken.BalanceOf(ctx, c.cfg.Owner)
	if err != nil {
		return c.failAttempt(state, attemptID, routeID, plan, err)
	}
	realized := new(big.Int).Sub(final, initial)
	state = c.advance(state, StateCompleted)
	c.clearSteps(routeID)

	gasSpent := new(big.Int).Add(legGasCost(acquired), legGasCost(returned))
	gasCost := c.deps.Accountant.NativeToBase(gasSpent)
	net := new(big.Int).Sub(realized, gasCost)

	c.logger.Info("Attempt completed",
		zap.Uint64("attempt", attemptID),
		zap.String("acquired_leg1", acquired.AmountOut.String()),
		zap.String("returned_leg2", returned.AmountOut.String()),
		zap.String("gas_cost", gasCost.String()),
		zap.String("realized_profit", realized.String()),
		zap.String("net_profit", net.String()))

	return &types.ExecutionResult{
		Succeeded:      true,
		RealizedProfit: realized,
		GasCost:        gasCost,
		NetProfit:      net,
		StepReached:    state.String(),
	}, nil
}

// runStep executes one mutating call under the step timeout. A step whose
// receipt already confirmed for this route is never re-issued: the cached
// outcome is authoritative and a re-submit would double-execute it. The
// cache survives a network failure so a retried cycle resumes where the
// previous attempt broke off.
func (c *Coordinator) runStep(ctx context.Context, routeID uint64, name string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	key := stepKey(routeID, name)
	if cached, ok := c.doneSteps.Get(key); ok {
		c.logger.Info("Step already confirmed, skipping re-submit",
			zap.String("step", name),
			zap.Uint64("route", routeID))
		return cached, nil
	}

	stepCtx, cancel := context.WithTimeout(ctx, c.cfg.StepTimeout)
	defer cancel()

	out, err := fn(stepCtx)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}
	c.doneSteps.Add(key, out)
	return out, nil
}

var stepNames = [...]string{"borrow", "swap_leg1", "swap_leg2", "repay"}

func stepKey(routeID uint64, name string) string {
	return fmt.Sprintf("%x/%s", routeID, name)
}

// clearSteps forgets the confirmed steps of a finished route so the next
// cycle on it starts from scratch.
func (c *Coordinator) clearSteps(routeID uint64) {
	for _, name := range stepNames {
		c.doneSteps.Remove(stepKey(routeID, name))
	}
}

func (c *Coordinator) ensureAllowance(ctx context.Context, token dex.TokenLedger, spender common.Address, amount *big.Int) error {
	if token == nil {
		return fmt.Errorf("%w: token ledger not configured", types.ErrAllowanceInsufficient)
	}
	allowance, err := token.Allowance(ctx, c.cfg.Owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	return token.Approve(ctx, spender, amount)
}

func (c *Coordinator) poolByID(id common.Address) dex.Pool {
	for _, pool := range c.deps.Pools {
		if pool.Address() == id {
			return pool
		}
	}
	return nil
}

func (c *Coordinator) advance(from, to State) State {
	c.logger.Debug("State transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	return to
}

func (c *Coordinator) failResult(state State, err error) *types.ExecutionResult {
	return &types.ExecutionResult{
		Succeeded:   false,
		FailureKind: types.ClassifyFailure(err),
		StepReached: state.String(),
	}
}

func (c *Coordinator) failAttempt(state State, attemptID, routeID uint64, plan *types.ExecutionPlan, err error) (*types.ExecutionResult, error) {
	kind := types.ClassifyFailure(err)
	// Confirmed steps outlive only a network failure, where the next cycle
	// must resume instead of re-submitting them. Every other terminal kind
	// abandons the attempt, so the route starts clean.
	if kind != types.FailureNetwork {
		c.clearSteps(routeID)
	}
	c.logger.Error("Execution attempt failed",
		zap.Uint64("attempt", attemptID),
		zap.String("step_reached", state.String()),
		zap.String("failure_kind", string(kind)),
		zap.String("buy_pool", plan.Route.BuyPool.PoolID.Hex()),
		zap.String("sell_pool", plan.Route.SellPool.PoolID.Hex()),
		zap.String("loan_amount", plan.Route.LoanAmount.String()),
		zap.Error(err))

	return &types.ExecutionResult{
		Succeeded:   false,
		FailureKind: kind,
		StepReached: StateFailed.String(),
	}, err
}

func (c *Coordinator) acquireRoute(key uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] {
		return false
	}
	c.inflight[key] = true
	return true
}

func (c *Coordinator) releaseRoute(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// legGasCost is the native-asset gas spend of one confirmed swap.
func legGasCost(outcome *dex.SwapOutcome) *big.Int {
	if outcome == nil || outcome.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(outcome.GasUsed), outcome.GasPrice)
}

// routeKey hashes an unordered pool pair to a single-flight key.
func routeKey(a, b common.Address) uint64 {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	h := xxhash.New()
	_, _ = h.Write(a.Bytes())
	_, _ = h.Write(b.Bytes())
	return h.Sum64()
}

// updateSuccessRate recomputes the success ratio from the counters.
func (c *Coordinator) updateSuccessRate() {
	successes := counterValue(c.metrics.successes)
	attempts := counterValue(c.metrics.attempts)
	if attempts > 0 {
		c.metrics.successRate.Set(successes / attempts)
	}
}

func counterValue(counter prometheus.Counter) float64 {
	ch := make(chan prometheus.Metric, 1)
	counter.Collect(ch)
	metric := <-ch

	var m dto.Metric
	if err := metric.Write(&m); err != nil || m.Counter == nil {
		return 0
	}
	return m.Counter.GetValue()
}
