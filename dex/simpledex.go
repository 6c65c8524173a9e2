package dex

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

	"github.com/michaelpento.lv/arbengine/types"
)

// SimpleDEX contract ABI
const simpleDEXABIJson = `[
	{"constant": true, "inputs": [], "name": "reserveA",
	 "outputs": [{"name": "", "type": "uint256"}],
	 "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "reserveB",
	 "outputs": [{"name": "", "type": "uint256"}],
	 "stateMutability": "view", "type": "function"},
	{"constant": false, "inputs": [{"name": "amount", "type": "uint256"}],
	 "name": "swapAForB", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"constant": false, "inputs": [{"name": "amount", "type": "uint256"}],
	 "name": "swapBForA", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"anonymous": false, "inputs": [
		{"indexed": true, "name": "user", "type": "address"},
		{"indexed": false, "name": "amountA", "type": "uint256"},
		{"indexed": false, "name": "amountB", "type": "uint256"}],
	 "name": "SwapAForB", "type": "event"},
	{"anonymous": false, "inputs": [
		{"indexed": true, "name": "user", "type": "address"},
		{"indexed": false, "name": "amountB", "type": "uint256"},
		{"indexed": false, "name": "amountA", "type": "uint256"}],
	 "name": "SwapBForA", "type": "event"}
]`

// SimpleDEX is a Pool backed by a deployed constant-product venue contract.
// Swap confirmations are parsed against this contract's own ABI and address,
// never against another instance.
type SimpleDEX struct {
	address  common.Address
	client   *ethclient.Client
	contract *bind.BoundContract
	dexABI   abi.ABI
	opts     *bind.TransactOpts
	feeBps   uint16
}

// NewSimpleDEX binds a SimpleDEX venue contract.
func NewSimpleDEX(address common.Address, client *ethclient.Client, opts *bind.TransactOpts, feeBps uint16) (*SimpleDEX, error) {
	parsedABI, err := abi.JSON(strings.NewReader(simpleDEXABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SimpleDEX ABI: %w", err)
	}

	return &SimpleDEX{
		address:  address,
		client:   client,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		dexABI:   parsedABI,
		opts:     opts,
		feeBps:   feeBps,
	}, nil
}

func (d *SimpleDEX) Address() common.Address {
	return d.address
}

func (d *SimpleDEX) FeeBasisPoints() uint16 {
	return d.feeBps
}

// Reserves reads reserveA then reserveB back-to-back to bound staleness
// between the two sides.
func (d *SimpleDEX) Reserves(ctx context.Context) (*big.Int, *big.Int, error) {
	reserveA, err := d.callReserve(ctx, "reserveA")
	if err != nil {
		return nil, nil, err
	}
	reserveB, err := d.callReserve(ctx, "reserveB")
	if err != nil {
		return nil, nil, err
	}
	return reserveA, reserveB, nil
}

func (d *SimpleDEX) callReserve(ctx context.Context, method string) (*big.Int, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", types.ErrNetworkFailure, method, d.address.Hex(), err)
	}
	reserve, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s result", method)
	}
	return reserve, nil
}

func (d *SimpleDEX) SwapBaseForCounter(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error) {
	return d.swap(ctx, "swapAForB", "SwapAForB", amountIn)
}

func (d *SimpleDEX) SwapCounterForBase(ctx context.Context, amountIn *big.Int) (*SwapOutcome, error) {
	return d.swap(ctx, "swapBForA", "SwapBForA", amountIn)
}

func (d *SimpleDEX) swap(ctx context.Context, method, eventName string, amountIn *big.Int) (*SwapOutcome, error) {
	opts := *d.opts
	opts.Context = ctx

	tx, err := d.contract.Transact(&opts, method, amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", types.ErrLedgerRejected, method, d.address.Hex(), err)
	}

	receipt, err := AwaitReceipt(ctx, d.client, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("awaiting %s confirmation: %w", method, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted in tx %s", types.ErrLedgerRejected, method, tx.Hash().Hex())
	}

	outcome, err := d.parseSwapEvent(eventName, receipt)
	if err != nil {
		return nil, err
	}
	outcome.TxHash = receipt.TxHash
	outcome.GasUsed = receipt.GasUsed
	outcome.GasPrice = receipt.EffectiveGasPrice
	return outcome, nil
}

// parseSwapEvent extracts realized amounts from the swap event this venue
// emitted. Logs from other contracts in the same receipt are skipped.
func (d *SimpleDEX) parseSwapEvent(eventName string, receipt *ethtypes.Receipt) (*SwapOutcome, error) {
	event, ok := d.dexABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %s not in SimpleDEX ABI", eventName)
	}

	for _, lg := range receipt.Logs {
		if lg.Address != d.address {
			continue
		}
		if len(lg.Topics) < 2 || lg.Topics[0] != event.ID {
			continue
		}

		values, err := event.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(values) < 2 {
			return nil, fmt.Errorf("%w: malformed %s log in tx %s",
				types.ErrSwapEventNotFound, eventName, receipt.TxHash.Hex())
		}
		amountIn, okIn := values[0].(*big.Int)
		amountOut, okOut := values[1].(*big.Int)
		if !okIn || !okOut {
			return nil, fmt.Errorf("%w: malformed %s amounts in tx %s",
				types.ErrSwapEventNotFound, eventName, receipt.TxHash.Hex())
		}

		return &SwapOutcome{
			User:      common.BytesToAddress(lg.Topics[1].Bytes()),
			AmountIn:  amountIn,
			AmountOut: amountOut,
		}, nil
	}

	return nil, fmt.Errorf("%w: no %s event from %s in tx %s",
		types.ErrSwapEventNotFound, eventName, d.address.Hex(), receipt.TxHash.Hex())
}
