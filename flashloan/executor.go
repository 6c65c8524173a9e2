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
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbengine/dex"
	"github.com/michaelpento.lv/arbengine/types"
)

const executorABIJson = `[
	{"constant": false, "inputs": [
		{"name": "lender", "type": "address"},
		{"name": "token", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "dexes", "type": "address[]"},
		{"name": "tokenB", "type": "address"}],
	 "name": "initiateFlashLoan", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"constant": false, "inputs": [{"name": "token", "type": "address"}],
	 "name": "withdrawProfits", "outputs": [],
	 "stateMutability": "nonpayable", "type": "function"},
	{"anonymous": false, "inputs": [
		{"indexed": false, "name": "token", "type": "address"},
		{"indexed": false, "name": "amount", "type": "uint256"},
		{"indexed": false, "name": "fee", "type": "uint256"},
		{"indexed": false, "name": "profit", "type": "uint256"}],
	 "name": "FlashLoanExecuted", "type": "event"},
	{"anonymous": false, "inputs": [
		{"indexed": false, "name": "owner", "type": "address"},
		{"indexed": false, "name": "token", "type": "address"},
		{"indexed": false, "name": "balance", "type": "uint256"}],
	 "name": "ProfitsWithdrawn", "type": "event"}
]`

// FlashExecutor is an Executor backed by a deployed executor contract. The
// contract runs borrow, both swap legs and repayment inside one transaction
// and reverts the whole bundle when the route turns unprofitable mid-flight.
type FlashExecutor struct {
	address     common.Address
	client      *ethclient.Client
	contract    *bind.BoundContract
	executorABI abi.ABI
	opts        *bind.TransactOpts
	logger      *zap.Logger
}

// NewFlashExecutor binds an executor contract.
func NewFlashExecutor(address common.Address, client *ethclient.Client, opts *bind.TransactOpts, logger *zap.Logger) (*FlashExecutor, error) {
	parsedABI, err := abi.JSON(strings.NewReader(executorABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse executor ABI: %w", err)
	}

	return &FlashExecutor{
		address:     address,
		client:      client,
		contract:    bind.NewBoundContract(address, parsedABI, client, client, client),
		executorABI: parsedABI,
		opts:        opts,
		logger:      logger,
	}, nil
}

func (e *FlashExecutor) Address() common.Address {
	return e.address
}

// InitiateFlashLoan submits the atomic bundle and reports the amounts from
// the confirmed FlashLoanExecuted event.
func (e *FlashExecutor) InitiateFlashLoan(ctx context.Context, lender, asset common.Address, amount *big.Int,
	poolRoute []common.Address, counterAsset common.Address) (*FlashLoanReport, error) {

	opts := *e.opts
	opts.Context = ctx

	tx, err := e.contract.Transact(&opts, "initiateFlashLoan", lender, asset, amount, poolRoute, counterAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: initiateFlashLoan on %s: %v", types.ErrLedgerRejected, e.address.Hex(), err)
	}

	receipt, err := dex.AwaitReceipt(ctx, e.client, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("awaiting flash loan confirmation: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: flash loan bundle reverted in tx %s", types.ErrLedgerRejected, tx.Hash().Hex())
	}

	report, err := e.parseExecutedEvent(receipt)
	if err != nil {
		return nil, err
	}
	report.TxHash = receipt.TxHash
	report.GasUsed = receipt.GasUsed
	report.GasPrice = receipt.EffectiveGasPrice
	return report, nil
}

// WithdrawProfits sweeps accumulated profit for asset to the contract owner
// and reports the swept balance from the ProfitsWithdrawn event.
func (e *FlashExecutor) WithdrawProfits(ctx context.Context, asset common.Address) (*big.Int, error) {
	opts := *e.opts
	opts.Context = ctx

	tx, err := e.contract.Transact(&opts, "withdrawProfits", asset)
	if err != nil {
		return nil, fmt.Errorf("%w: withdrawProfits on %s: %v", types.ErrLedgerRejected, e.address.Hex(), err)
	}

	receipt, err := dex.AwaitReceipt(ctx, e.client, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("awaiting withdraw confirmation: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: withdrawProfits reverted in tx %s", types.ErrLedgerRejected, tx.Hash().Hex())
	}

	event := e.executorABI.Events["ProfitsWithdrawn"]
	for _, lg := range receipt.Logs {
		if lg.Address != e.address || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(lg.Data)
		if err != nil || len(values) < 3 {
			continue
		}
		balance, ok := values[2].(*big.Int)
		if !ok {
			continue
		}
		e.logger.Info("Profits withdrawn",
			zap.String("asset", asset.Hex()),
			zap.String("balance", balance.String()))
		return balance, nil
	}

	return nil, fmt.Errorf("%w: no ProfitsWithdrawn event from %s in tx %s",
		types.ErrSwapEventNotFound, e.address.Hex(), receipt.TxHash.Hex())
}

// parseExecutedEvent extracts loan amounts from the FlashLoanExecuted event
// this executor emitted. Logs from the venues in the same receipt are
// skipped.
func (e *FlashExecutor) parseExecutedEvent(receipt *ethtypes.Receipt) (*FlashLoanReport, error) {
	event, ok := e.executorABI.Events["FlashLoanExecuted"]
	if !ok {
		return nil, fmt.Errorf("event FlashLoanExecuted not in executor ABI")
	}

	for _, lg := range receipt.Logs {
		if lg.Address != e.address || len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
			continue
		}

		values, err := event.Inputs.Unpack(lg.Data)
		if err != nil || len(values) < 4 {
			return nil, fmt.Errorf("%w: malformed FlashLoanExecuted log in tx %s",
				types.ErrSwapEventNotFound, receipt.TxHash.Hex())
		}
		asset, okAsset := values[0].(common.Address)
		amount, okAmount := values[1].(*big.Int)
		fee, okFee := values[2].(*big.Int)
		profit, okProfit := values[3].(*big.Int)
		if !okAsset || !okAmount || !okFee || !okProfit {
			return nil, fmt.Errorf("%w: malformed FlashLoanExecuted amounts in tx %s",
				types.ErrSwapEventNotFound, receipt.TxHash.Hex())
		}

		return &FlashLoanReport{
			Asset:  asset,
			Amount: amount,
			Fee:    fee,
			Profit: profit,
		}, nil
	}

	return nil, fmt.Errorf("%w: no FlashLoanExecuted event from %s in tx %s",
		types.ErrSwapEventNotFound, e.address.Hex(), receipt.TxHash.Hex())
}
