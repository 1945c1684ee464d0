package EVMRPC

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"goscrow/EVMRPC/ierc20"
	"goscrow/EVMRPC/tokenswap"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Reader is the read-only ledger binding; it needs no signing identity.
type Reader interface {
	EscrowAddress() common.Address
	Owner(ctx context.Context) (common.Address, error)
	AllowedTokens(ctx context.Context) ([]common.Address, error)
	IsTokenAllowed(ctx context.Context, token common.Address) (bool, error)
	Operation(ctx context.Context, id *big.Int) (types.Operation, error)
	AllOperations(ctx context.Context) ([]types.Operation, error)
	UserBalances(ctx context.Context, user common.Address) ([]common.Address, []*big.Int, error)
	TokenName(ctx context.Context, token common.Address) (string, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, holder, spender common.Address) (*big.Int, error)
}

// PendingTx is a submitted write. The action is durable only after Wait
// returns without error.
type PendingTx interface {
	Hash() common.Hash
	Wait(ctx context.Context) (*ethtypes.Receipt, error)
}

// Writer is the signing ledger binding.
type Writer interface {
	Account() common.Address
	AddToken(ctx context.Context, token common.Address) (PendingTx, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (PendingTx, error)
	CreateOperation(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB *big.Int) (PendingTx, error)
	CreateOperationWithDuration(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB, duration *big.Int) (PendingTx, error)
	CompleteOperation(ctx context.Context, id *big.Int) (PendingTx, error)
	CancelOperation(ctx context.Context, id *big.Int) (PendingTx, error)
}

var _ Reader = (*Client)(nil)

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (c *Client) withSwap(ctx context.Context, f func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) error) error {
	_, err := WithClient(c, func(client *ethclient.Client) (struct{}, error) {
		swap, err := tokenswap.NewTokenSwap(c.escrow, client)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, f(swap, callOpts(ctx))
	})
	return err
}

func (c *Client) withToken(ctx context.Context, token common.Address, f func(erc *ierc20.Ierc20, opts *bind.CallOpts) error) error {
	_, err := WithClient(c, func(client *ethclient.Client) (struct{}, error) {
		erc, err := ierc20.NewIerc20(token, client)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, f(erc, callOpts(ctx))
	})
	return err
}

func (c *Client) Owner(ctx context.Context) (owner common.Address, err error) {
	err = c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		owner, err = swap.Owner(opts)
		return
	})
	return
}

func (c *Client) AllowedTokens(ctx context.Context) (tokens []common.Address, err error) {
	err = c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		tokens, err = swap.GetAllowedTokens(opts)
		return
	})
	return
}

func (c *Client) IsTokenAllowed(ctx context.Context, token common.Address) (ok bool, err error) {
	err = c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		ok, err = swap.AllowedToken(opts, token)
		return
	})
	return
}

func (c *Client) Operation(ctx context.Context, id *big.Int) (types.Operation, error) {
	var rec tokenswap.TokenSwapOperation
	err := c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		rec, err = swap.GetOperation(opts, id)
		return
	})
	if err != nil {
		return types.Operation{}, fmt.Errorf("getOperation(%s): %w", id, err)
	}
	// unknown ids come back as a zeroed record
	if rec.Maker == (common.Address{}) {
		return types.Operation{}, fmt.Errorf("%w: %s", types.ErrOperationNotFound, id)
	}
	return toOperation(rec), nil
}

func (c *Client) AllOperations(ctx context.Context) ([]types.Operation, error) {
	var recs []tokenswap.TokenSwapOperation
	err := c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		recs, err = swap.GetAllOperations(opts)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("getAllOperations: %w", err)
	}
	ops := make([]types.Operation, 0, len(recs))
	for _, rec := range recs {
		ops = append(ops, toOperation(rec))
	}
	return ops, nil
}

func (c *Client) UserBalances(ctx context.Context, user common.Address) (tokens []common.Address, balances []*big.Int, err error) {
	err = c.withSwap(ctx, func(swap *tokenswap.TokenSwap, opts *bind.CallOpts) (err error) {
		tokens, balances, err = swap.GetUserBalances(opts, user)
		return
	})
	if err == nil && len(tokens) != len(balances) {
		err = fmt.Errorf("%w: getUserBalances returned %d tokens and %d balances", types.ErrTransactionReverted, len(tokens), len(balances))
	}
	return
}

func (c *Client) TokenName(ctx context.Context, token common.Address) (name string, err error) {
	err = c.withToken(ctx, token, func(erc *ierc20.Ierc20, opts *bind.CallOpts) (err error) {
		name, err = erc.Name(opts)
		return
	})
	return
}

func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (symbol string, err error) {
	err = c.withToken(ctx, token, func(erc *ierc20.Ierc20, opts *bind.CallOpts) (err error) {
		symbol, err = erc.Symbol(opts)
		return
	})
	return
}

func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (decimals uint8, err error) {
	err = c.withToken(ctx, token, func(erc *ierc20.Ierc20, opts *bind.CallOpts) (err error) {
		decimals, err = erc.Decimals(opts)
		return
	})
	return
}

func (c *Client) BalanceOf(ctx context.Context, token, holder common.Address) (balance *big.Int, err error) {
	err = c.withToken(ctx, token, func(erc *ierc20.Ierc20, opts *bind.CallOpts) (err error) {
		balance, err = erc.BalanceOf(opts, holder)
		return
	})
	return
}

func (c *Client) Allowance(ctx context.Context, token, holder, spender common.Address) (allowance *big.Int, err error) {
	err = c.withToken(ctx, token, func(erc *ierc20.Ierc20, opts *bind.CallOpts) (err error) {
		allowance, err = erc.Allowance(opts, holder, spender)
		return
	})
	return
}

func toOperation(rec tokenswap.TokenSwapOperation) types.Operation {
	return types.Operation{
		ID:          rec.Id,
		Maker:       rec.Maker,
		Taker:       rec.Taker,
		TokenA:      rec.TokenA,
		TokenB:      rec.TokenB,
		AmountA:     rec.AmountA,
		AmountB:     rec.AmountB,
		Status:      types.OperationStatus(rec.Status),
		CreatedAt:   unixSeconds(rec.CreatedAt),
		CompletedAt: unixSeconds(rec.CompletedAt),
		CancelledAt: unixSeconds(rec.CancelledAt),
		ExpiresAt:   unixSeconds(rec.ExpiresAt),
	}
}

func unixSeconds(v *big.Int) int64 {
	if v == nil || !v.IsInt64() {
		return 0
	}
	return v.Int64()
}

// ParseAddress accepts any case, the stored form is lower-cased.
func ParseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}
