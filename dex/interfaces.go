package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is a two-asset constant-product venue. Reads and swaps are remote,
// potentially-blocking calls against the ledger service.
type Pool interface {
	// Address returns the venue's on-ledger identity.
	Address() common.Address

	// FeeBasisPoints is the venue's swap fee, taken from the input leg.
	FeeBasisPoints() uint16

	// Reserves reads both reserves back-to-back: base-asset reserve first,
	// counter-asset reserve second.
	Reserves(ctx context.Context) (reserveIn, reserveOut *big.Int, err error)

	// SwapBaseForCounter trades amountIn of the base asset for the counter
	// asset. The returned outcome carries the realized amounts extracted
	// from the swap event this venue emitted.
	SwapBaseForCounter(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error)

	// SwapCounterForBase is the opposite direction.
	SwapCounterForBase(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error)
}

// SwapOutcome is the confirmed result of one swap, parsed from the emitting
// venue's own event. AmountOut is the realized output, which may differ from
// any pre-trade simulation.
type SwapOutcome struct {
	TxHash    common.Hash
	User      common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	GasUsed   uint64
	GasPrice  *big.Int
}

// TokenLedger is the asset-ledger capability set the engine consumes.
type TokenLedger interface {
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
}
