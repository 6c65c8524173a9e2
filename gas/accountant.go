package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/types"
)

// FeeSource is the ledger's fee-estimation surface. *ethclient.Client
// satisfies it.
type FeeSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Accountant converts consumed gas units into a cost denominated in the
// base asset. The native-to-base conversion rate is an external price
// oracle input, not derived here.
type Accountant struct {
	mu             sync.RWMutex
	gasPrice       *big.Int
	basePerNative  *big.Rat
	estimatedUnits uint64
	logger         *zap.Logger
}

// NewAccountant creates a gas accountant. estimatedUnits is the gas budget
// assumed for one full execution attempt; basePerNative converts native fee
// units into base-asset units.
func NewAccountant(estimatedUnits uint64, basePerNative *big.Rat, logger *zap.Logger) *Accountant {
	if basePerNative == nil {
		basePerNative = new(big.Rat).SetInt64(1)
	}
	return &Accountant{
		gasPrice:       big.NewInt(0),
		basePerNative:  basePerNative,
		estimatedUnits: estimatedUnits,
		logger:         logger,
	}
}

// Refresh pulls the current gas price from the ledger's fee estimator.
func (a *Accountant) Refresh(ctx context.Context, source FeeSource) error {
	price, err := source.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("%w: suggest gas price: %v", types.ErrNetworkFailure, err)
	}

	a.mu.Lock()
	a.gasPrice = price
	a.mu.Unlock()

	a.logger.Debug("Refreshed gas price", zap.String("gas_price", price.String()))
	return nil
}

// GasPrice returns the last observed gas price per unit.
func (a *Accountant) GasPrice() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.gasPrice)
}

// EstimatedUnits returns the per-attempt gas budget.
func (a *Accountant) EstimatedUnits() uint64 {
	return a.estimatedUnits
}

// CostNative is gasUnits * gasPricePerUnit in native fee units.
func (a *Accountant) CostNative(gasUnits uint64, gasPricePerUnit *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(gasUnits), gasPricePerUnit)
}

// CostInBaseAsset converts a native gas cost into base-asset units using the
// injected oracle rate, rounding up so the decision never understates cost.
func (a *Accountant) CostInBaseAsset(gasUnits uint64, gasPricePerUnit *big.Int) *big.Int {
	return a.NativeToBase(a.CostNative(gasUnits, gasPricePerUnit))
}

// NativeToBase converts a native-denominated amount into base-asset units
// using the injected oracle rate, rounding up.
func (a *Accountant) NativeToBase(native *big.Int) *big.Int {
	a.mu.RLock()
	rate := a.basePerNative
	a.mu.RUnlock()

	cost := new(big.Rat).SetInt(native)
	cost.Mul(cost, rate)

	out := new(big.Int).Quo(cost.Num(), cost.Denom())
	if new(big.Int).Rem(cost.Num(), cost.Denom()).Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// EstimateAttemptCost is the base-asset cost of one full attempt at the
// last observed gas price.
func (a *Accountant) EstimateAttemptCost() *big.Int {
	return a.CostInBaseAsset(a.estimatedUnits, a.GasPrice())
}
