package flashloan

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/types"
)

const lenderABIJson = `[
	{"constant": false, "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"}],
	 "name": "deposit", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"constant": false, "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"}],
	 "name": "borrow", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"constant": false, "inputs": [
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"}],
	 "name": "repay", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"}
]`

// FlashLender is a Lender backed by a deployed lender contract.
type FlashLender struct {
	address  common.Address
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
	feeBps   uint16
}

// NewFlashLender binds a lender contract. feeBps is the loan fee rate the
// contract charges; it is part of deployment configuration, not readable
// from the contract.
func NewFlashLender(address common.Address, client *ethclient.Client, opts *bind.TransactOpts, feeBps uint16) (*FlashLender, error) {
	parsedABI, err := abi.JSON(strings.NewReader(lenderABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lender ABI: %w", err)
	}

	return &FlashLender{
		address:  address,
		client:   client,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		opts:     opts,
		feeBps:   feeBps,
	}, nil
}

func (l *FlashLender) Address() common.Address {
	return l.address
}

func (l *FlashLender) FeeBasisPoints() uint16 {
	return l.feeBps
}

// Deposit seeds the lender with liquidity. Operator setup, not part of an
// execution attempt.
func (l *FlashLender) Deposit(ctx context.Context, asset common.Address, amount *big.Int) (*StepOutcome, error) {
	return l.transact(ctx, "deposit", asset, amount)
}

func (l *FlashLender) Borrow(ctx context.Context, asset common.Address, amount *big.Int) (*StepOutcome, error) {
	return l.transact(ctx, "borrow", asset, amount)
}

func (l *FlashLender) Repay(ctx context.Context, asset common.Address, amount *big.Int) (*StepOutcome, error) {
	return l.transact(ctx, "repay", asset, amount)
}

func (l *FlashLender) transact(ctx context.Context, method string, asset common.Address, amount *big.Int) (*StepOutcome, error) {
	opts := *l.opts
	opts.Context = ctx

	tx, err := l.contract.Transact(&opts, method, asset, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", types.ErrLedgerRejected, method, l.address.Hex(), err)
	}

	receipt, err := dex.AwaitReceipt(ctx, l.client, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("awaiting %s confirmation: %w", method, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted in tx %s", types.ErrLedgerRejected, method, tx.Hash().Hex())
	}

	return &StepOutcome{
		TxHash:   receipt.TxHash,
		GasUsed:  receipt.GasUsed,
		GasPrice: receipt.EffectiveGasPrice,
	}, nil
}
