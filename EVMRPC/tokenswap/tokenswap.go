// Package tokenswap is an abigen-style binding of the escrow contract.
//
// The contract overloads createOperation; the ABI lists the four-argument
// form first, so the duration form resolves to "createOperation0".
package tokenswap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TokenSwapOperation mirrors the Operation tuple; field order and names
// must match the ABI components.
type TokenSwapOperation struct {
	Id          *big.Int
	Maker       common.Address
	Taker       common.Address
	TokenA      common.Address
	TokenB      common.Address
	AmountA     *big.Int
	AmountB     *big.Int
	Status      uint8
	CreatedAt   *big.Int
	CompletedAt *big.Int
	CancelledAt *big.Int
	ExpiresAt   *big.Int
}

const operationTuple = `{"name":"","type":"tuple","internalType":"struct TokenSwap.Operation","components":[
	{"name":"id","type":"uint256"},
	{"name":"maker","type":"address"},
	{"name":"taker","type":"address"},
	{"name":"tokenA","type":"address"},
	{"name":"tokenB","type":"address"},
	{"name":"amountA","type":"uint256"},
	{"name":"amountB","type":"uint256"},
	{"name":"status","type":"uint8"},
	{"name":"createdAt","type":"uint256"},
	{"name":"completedAt","type":"uint256"},
	{"name":"cancelledAt","type":"uint256"},
	{"name":"expiresAt","type":"uint256"}]}`

const operationTupleArray = `{"name":"","type":"tuple[]","internalType":"struct TokenSwap.Operation[]","components":[
	{"name":"id","type":"uint256"},
	{"name":"maker","type":"address"},
	{"name":"taker","type":"address"},
	{"name":"tokenA","type":"address"},
	{"name":"tokenB","type":"address"},
	{"name":"amountA","type":"uint256"},
	{"name":"amountB","type":"uint256"},
	{"name":"status","type":"uint8"},
	{"name":"createdAt","type":"uint256"},
	{"name":"completedAt","type":"uint256"},
	{"name":"cancelledAt","type":"uint256"},
	{"name":"expiresAt","type":"uint256"}]}`

var TokenSwapMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getAllowedTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"allowedToken","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getOperation","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[` + operationTuple + `]},
	{"type":"function","name":"getAllOperations","stateMutability":"view","inputs":[],"outputs":[` + operationTupleArray + `]},
	{"type":"function","name":"getUserBalances","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"tokens","type":"address[]"},{"name":"balances","type":"uint256[]"}]},
	{"type":"function","name":"addToken","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
	{"type":"function","name":"createOperation","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"createOperation","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},{"name":"duration","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"completeOperation","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"cancelOperation","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]}
]`,
}

type TokenSwap struct {
	contract *bind.BoundContract
}

func NewTokenSwap(address common.Address, backend bind.ContractBackend) (*TokenSwap, error) {
	parsed, err := TokenSwapMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return &TokenSwap{contract: bind.NewBoundContract(address, *parsed, backend, backend, backend)}, nil
}

func (c *TokenSwap) Owner(opts *bind.CallOpts) (common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "owner"); err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *TokenSwap) GetAllowedTokens(opts *bind.CallOpts) ([]common.Address, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getAllowedTokens"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (c *TokenSwap) AllowedToken(opts *bind.CallOpts, token common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "allowedToken", token); err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *TokenSwap) GetOperation(opts *bind.CallOpts, id *big.Int) (TokenSwapOperation, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getOperation", id); err != nil {
		return TokenSwapOperation{}, err
	}
	return *abi.ConvertType(out[0], new(TokenSwapOperation)).(*TokenSwapOperation), nil
}

func (c *TokenSwap) GetAllOperations(opts *bind.CallOpts) ([]TokenSwapOperation, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getAllOperations"); err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]TokenSwapOperation)).(*[]TokenSwapOperation), nil
}

func (c *TokenSwap) GetUserBalances(opts *bind.CallOpts, user common.Address) ([]common.Address, []*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(opts, &out, "getUserBalances", user); err != nil {
		return nil, nil, err
	}
	tokens := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	balances := *abi.ConvertType(out[1], new([]*big.Int)).(*[]*big.Int)
	return tokens, balances, nil
}

func (c *TokenSwap) AddToken(opts *bind.TransactOpts, token common.Address) (*types.Transaction, error) {
	return c.contract.Transact(opts, "addToken", token)
}

func (c *TokenSwap) CreateOperation(opts *bind.TransactOpts, tokenA, tokenB common.Address, amountA, amountB *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "createOperation", tokenA, tokenB, amountA, amountB)
}

func (c *TokenSwap) CreateOperation0(opts *bind.TransactOpts, tokenA, tokenB common.Address, amountA, amountB, duration *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "createOperation0", tokenA, tokenB, amountA, amountB, duration)
}

func (c *TokenSwap) CompleteOperation(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "completeOperation", id)
}

func (c *TokenSwap) CancelOperation(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "cancelOperation", id)
}
