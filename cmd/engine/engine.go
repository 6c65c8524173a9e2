package engine

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/config"
	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/flashloan"
	"github.com/michaelpento.lv/arbengine/gas"
	"github.com/michaelpento.lv/arbengine/strategies/arbitrage"
	"github.com/michaelpento.lv/arbengine/utils/metrics"
	"github.com/michaelpento.lv/arbengine/utils/monitor"
)

// Engine wires the read, decision and execution layers together and runs
// decision cycles on an interval.
type Engine struct {
	cfg          *config.Config
	client       *ethclient.Client
	coordinator  *flashloan.Coordinator
	accountant   *gas.Accountant
	lender       *flashloan.FlashLender
	executor     flashloan.Executor
	baseToken    dex.TokenLedger
	monitor      *monitor.SystemMonitor
	metricsSrv   *http.Server
	baseDecimals uint8
	logger       *zap.Logger
	wg           sync.WaitGroup
}

// New connects to the ledger and builds the full pipeline from config.
func New(cfg *config.Config, secrets *config.SecureConfig, logger *zap.Logger) (*Engine, error) {
	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(secrets.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}

	pools := make([]dex.Pool, 0, len(cfg.Pools))
	for _, pc := range cfg.Pools {
		pool, err := dex.NewSimpleDEX(common.HexToAddress(pc.Address), client, opts, pc.FeeBasisPoints)
		if err != nil {
			return nil, fmt.Errorf("failed to bind pool %s: %w", pc.Address, err)
		}
		pools = append(pools, pool)
	}

	baseToken, err := dex.NewERC20(cfg.BaseAssetAddress(), client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to bind base asset: %w", err)
	}
	counterToken, err := dex.NewERC20(cfg.CounterAssetAddress(), client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to bind counter asset: %w", err)
	}

	baseDecimals, err := baseToken.Decimals(context.Background())
	if err != nil {
		logger.Warn("Failed to read base asset decimals, assuming 18", zap.Error(err))
		baseDecimals = 18
	}

	lender, err := flashloan.NewFlashLender(cfg.LenderContractAddress(), client, opts, cfg.FlashLoanFeeBasisPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to bind lender: %w", err)
	}

	var executor flashloan.Executor
	if addr, ok := cfg.ExecutorContractAddress(); ok {
		bound, err := flashloan.NewFlashExecutor(addr, client, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to bind executor: %w", err)
		}
		executor = bound
	}

	metrics.Initialize(logger)
	readMetrics := metrics.NewReadMetrics("arbengine")
	decisionMetrics := metrics.NewDecisionMetrics("arbengine")

	reader := dex.NewSnapshotReader(pools,
		cfg.ReadRateLimit.RequestsPerSecond, cfg.ReadRateLimit.BurstSize,
		cfg.MaxSnapshotStaleness, logger).WithMetrics(readMetrics)
	accountant := gas.NewAccountant(cfg.EstimatedGasUnits, cfg.BaseConversionRate(), logger)

	coordinator, err := flashloan.NewCoordinator(
		flashloan.Config{
			Owner:        cfg.OwnerAddress(),
			BaseAsset:    cfg.BaseAssetAddress(),
			CounterAsset: cfg.CounterAssetAddress(),
			LoanAmount:   cfg.LoanAmountUnits(),
			StepTimeout:  cfg.StepTimeout,
		},
		flashloan.Deps{
			Reader:       reader,
			Pools:        pools,
			Selector:     arbitrage.NewSelector(logger).WithMetrics(decisionMetrics),
			Estimator:    arbitrage.NewEstimator(cfg.FlashLoanFeeBasisPoints, cfg.MinSpreadPercent, logger).WithMetrics(decisionMetrics),
			Accountant:   accountant,
			Lender:       lender,
			Executor:     executor,
			BaseToken:    baseToken,
			CounterToken: counterToken,
		},
		logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	metrics.Register(coordinator.Collectors()...)

	sysMonitor := monitor.NewSystemMonitor(10*time.Second, logger)
	metrics.Register(sysMonitor.Collectors()...)

	e := &Engine{
		cfg:          cfg,
		client:       client,
		coordinator:  coordinator,
		accountant:   accountant,
		lender:       lender,
		executor:     executor,
		baseToken:    baseToken,
		monitor:      sysMonitor,
		baseDecimals: baseDecimals,
		logger:       logger,
	}
	if cfg.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		e.metricsSrv = &http.Server{Addr: cfg.PrometheusEndpoint, Handler: mux}
	}
	return e, nil
}

// Start launches the cycle loop and the metrics endpoint.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Starting arbitrage engine",
		zap.Int("pools", len(e.cfg.Pools)),
		zap.Duration("cycle_interval", e.cfg.CycleInterval))

	if e.metricsSrv != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	e.monitor.Start(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runLoop(ctx)
	}()
	return nil
}

// RunOnce executes a single decision cycle.
func (e *Engine) RunOnce(ctx context.Context) error {
	if err := e.accountant.Refresh(ctx, e.client); err != nil {
		e.logger.Warn("Gas price refresh failed, using last known price", zap.Error(err))
	}
	result, err := e.coordinator.RunCycle(ctx)
	if err != nil {
		return err
	}
	if result.Succeeded {
		e.logger.Info("Cycle completed",
			zap.String("realized_profit", dex.FromUnits(result.RealizedProfit, e.baseDecimals)))
	}
	return nil
}

// FundLender approves and deposits amount whole tokens of the base asset
// with the flash lender. Operator setup, not part of a decision cycle.
func (e *Engine) FundLender(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive")
	}
	units := dex.ToUnits(amount, e.baseDecimals)

	if err := e.baseToken.Approve(ctx, e.lender.Address(), units); err != nil {
		return fmt.Errorf("approving lender deposit: %w", err)
	}
	outcome, err := e.lender.Deposit(ctx, e.cfg.BaseAssetAddress(), units)
	if err != nil {
		return err
	}

	e.logger.Info("Lender funded",
		zap.String("amount", dex.FromUnits(units, e.baseDecimals)),
		zap.String("tx", outcome.TxHash.Hex()))
	return nil
}

// WithdrawProfits sweeps the executor's accumulated base-asset profit to the
// contract owner.
func (e *Engine) WithdrawProfits(ctx context.Context) error {
	if e.executor == nil {
		return fmt.Errorf("no executor contract configured")
	}
	balance, err := e.executor.WithdrawProfits(ctx, e.cfg.BaseAssetAddress())
	if err != nil {
		return err
	}

	e.logger.Info("Profits withdrawn",
		zap.String("balance", dex.FromUnits(balance, e.baseDecimals)))
	return nil
}

func (e *Engine) runLoop(ctx context.Context) {
	interval := e.cfg.CycleInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.logger.Error("Cycle failed", zap.Error(err))
			}
		}
	}
}

// Stop shuts the engine down and waits for in-flight work.
func (e *Engine) Stop() {
	e.logger.Info("Stopping arbitrage engine...")
	if e.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.metricsSrv.Shutdown(shutdownCtx)
	}
	e.monitor.Stop()
	e.wg.Wait()
	e.client.Close()
}
