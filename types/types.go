package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies a token and its fixed-point precision. All settlement
// amounts are integers scaled by 10^Decimals; floats are display-only.
type Asset struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// PoolSnapshot is an immutable read of a pool's two reserves at a point in
// time. ReserveIn is the base-asset side, ReserveOut the counter-asset side.
type PoolSnapshot struct {
	PoolID         common.Address
	ReserveIn      *big.Int
	ReserveOut     *big.Int
	FeeBasisPoints uint16
	ObservedAt     time.Time
}

// PriceQuote is the display price of one pool: ReserveOut / ReserveIn.
type PriceQuote struct {
	PoolID common.Address
	Price  float64
}

// SpreadResult identifies a pair of pools and their symmetric percentage
// spread. PoolLow and PoolHigh are indices into the snapshot sequence the
// selector was given, ordered by price.
type SpreadResult struct {
	PoolLow       int
	PoolHigh      int
	SpreadPercent float64
}

// Route is a single-use trading route: acquire the counter asset on BuyPool,
// sell it back on SellPool, financed by LoanAmount of the base asset.
type Route struct {
	BuyPool    *PoolSnapshot
	SellPool   *PoolSnapshot
	LoanAmount *big.Int
}

// ExecutionPlan is the simulated outcome of a route. It is only constructed
// when NetProfit is strictly positive.
type ExecutionPlan struct {
	Route           *Route
	SpreadPercent   float64
	ExpectedOutLeg1 *big.Int
	ExpectedOutLeg2 *big.Int
	LoanFee         *big.Int
	GasCost         *big.Int
	NetProfit       *big.Int
}

// FailureKind classifies the terminal outcome of an execution attempt.
type FailureKind string

const (
	FailureNone                  FailureKind = ""
	FailureNotProfitable         FailureKind = "not_profitable"
	FailureDegenerateInput       FailureKind = "degenerate_input"
	FailureInsufficientPools     FailureKind = "insufficient_pools"
	FailureSwapEventNotFound     FailureKind = "swap_event_not_found"
	FailureAllowanceInsufficient FailureKind = "allowance_insufficient"
	FailureLedgerRejected        FailureKind = "ledger_rejected"
	FailureNetwork               FailureKind = "network_failure"
	FailureRouteBusy             FailureKind = "route_busy"
)

// ExecutionResult is the terminal record of one attempted cycle. It is the
// only entity that outlives the cycle that produced it. RealizedProfit is the
// balance delta of the attempt; NetProfit subtracts GasCost, the realized gas
// spend converted into base-asset units.
type ExecutionResult struct {
	Succeeded      bool
	RealizedProfit *big.Int
	GasCost        *big.Int
	NetProfit      *big.Int
	FailureKind    FailureKind
	StepReached    string
}
