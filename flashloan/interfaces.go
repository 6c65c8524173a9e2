package flashloan

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StepOutcome is the confirmed result of one mutating lender call.
type StepOutcome struct {
	TxHash   common.Hash
	GasUsed  uint64
	GasPrice *big.Int
}

// Lender accepts liquidity deposits and lends it out uncollateralized within
// a single execution attempt, for a fixed fee rate.
type Lender interface {
	// Address is the lender's on-ledger identity, used as approval spender.
	Address() common.Address

	// FeeBasisPoints is the flash-loan fee rate.
	FeeBasisPoints() uint16

	// Borrow transfers amount of asset to the borrower.
	Borrow(ctx context.Context, asset common.Address, amount *big.Int) (*StepOutcome, error)

	// Repay pulls back amount (principal plus fee) from the borrower.
	Repay(ctx context.Context, asset common.Address, amount *big.Int) (*StepOutcome, error)
}

// Executor bundles borrow, both swap legs and repayment into one
// ledger-atomic transaction. When configured, a failed profit check inside
// the bundle reverts every leg.
type Executor interface {
	// Address is the executor's on-ledger identity, used as approval spender.
	Address() common.Address

	// InitiateFlashLoan runs the whole financed route atomically and
	// reports the amounts from its FlashLoanExecuted event.
	InitiateFlashLoan(ctx context.Context, lender, asset common.Address, amount *big.Int,
		poolRoute []common.Address, counterAsset common.Address) (*FlashLoanReport, error)

	// WithdrawProfits sweeps accumulated profit for asset to the contract
	// owner and reports the swept balance.
	WithdrawProfits(ctx context.Context, asset common.Address) (*big.Int, error)
}

// FlashLoanReport carries the FlashLoanExecuted event amounts of a confirmed
// atomic attempt, plus the realized gas spend from its receipt.
type FlashLoanReport struct {
	TxHash   common.Hash
	Asset    common.Address
	Amount   *big.Int
	Fee      *big.Int
	Profit   *big.Int
	GasUsed  uint64
	GasPrice *big.Int
}
