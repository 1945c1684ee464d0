// Package ierc20 is a trimmed abigen-style binding of the ERC-20 surface the
// service uses: metadata, balanceOf, allowance and approve.
package ierc20

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var Ierc20MetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`,
}

type Ierc20 struct {
	contract *bind.BoundContract
}

func NewIerc20(address common.Address, backend bind.ContractBackend) (*Ierc20, error) {
	parsed, err := Ierc20MetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return &Ierc20{contract: bind.NewBoundContract(address, *parsed, backend, backend, backend)}, nil
}

func (c *Ierc20) Name(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "name"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *Ierc20) Symbol(opts *bind.CallOpts) (string, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "symbol"); err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *Ierc20) Decimals(opts *bind.CallOpts) (uint8, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "decimals"); err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (c *Ierc20) BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "balanceOf", account); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Ierc20) Allowance(opts *bind.CallOpts, owner common.Address, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "allowance", owner, spender); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Ierc20) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "approve", spender, amount)
}

func (c *Ierc20) Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "transfer", to, amount)
}
