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

const erc20ABIJson = `[
	{"constant": false, "inputs": [
		{"name": "spender", "type": "address"},
		{"name": "amount", "type": "uint256"}],
	 "name": "approve", "outputs": [{"name": "", "type": "bool"}],
	 "stateMutability": "nonpayable", "type": "function"},
	{"constant": true, "inputs": [{"name": "account", "type": "address"}],
	 "name": "balanceOf", "outputs": [{"name": "", "type": "uint256"}],
	 "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [], "name": "decimals",
	 "outputs": [{"name": "", "type": "uint8"}],
	 "stateMutability": "view", "type": "function"},
	{"constant": true, "inputs": [
		{"name": "owner", "type": "address"},
		{"name": "spender", "type": "address"}],
	 "name": "allowance", "outputs": [{"name": "", "type": "uint256"}],
	 "stateMutability": "view", "type": "function"}
]`

// ERC20 is a TokenLedger backed by a deployed token contract.
type ERC20 struct {
	address  common.Address
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
}

// NewERC20 binds a token contract.
func NewERC20(address common.Address, client *ethclient.Client, opts *bind.TransactOpts) (*ERC20, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &ERC20{
		address:  address,
		client:   client,
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		opts:     opts,
	}, nil
}

func (t *ERC20) Address() common.Address {
	return t.address
}

func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	opts := *t.opts
	opts.Context = ctx

	tx, err := t.contract.Transact(&opts, "approve", spender, amount)
	if err != nil {
		return fmt.Errorf("%w: approve %s for %s: %v",
			types.ErrAllowanceInsufficient, amount, spender.Hex(), err)
	}

	receipt, err := AwaitReceipt(ctx, t.client, tx.Hash())
	if err != nil {
		return fmt.Errorf("awaiting approve confirmation: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: approve reverted in tx %s",
			types.ErrAllowanceInsufficient, tx.Hash().Hex())
	}
	return nil
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("%w: allowance on %s: %v", types.ErrNetworkFailure, t.address.Hex(), err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse allowance result")
	}
	return allowance, nil
}

func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("%w: balanceOf on %s: %v", types.ErrNetworkFailure, t.address.Hex(), err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("failed to parse balanceOf result")
	}
	return balance, nil
}

func (t *ERC20) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("%w: decimals on %s: %v", types.ErrNetworkFailure, t.address.Hex(), err)
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("failed to parse decimals result")
	}
	return decimals, nil
}

// ToUnits scales a human-readable amount into integer token units.
func ToUnits(amount int64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, big.NewInt(amount))
}

// FromUnits renders integer token units as a human-readable decimal string.
func FromUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	sign := ""
	if amount.Sign() < 0 && whole.Sign() == 0 {
		sign = "-"
	}
	fracStr := new(big.Int).Abs(frac).String()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	return fmt.Sprintf("%s%s.%s", sign, whole.String(), fracStr)
}
