package EVMRPC

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"goscrow/EVMRPC/ierc20"
	"goscrow/EVMRPC/tokenswap"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the write binding backed by a local private key. Writes are sent
// to the primary endpoint only and are never retried.
type Signer struct {
	client     *Client
	privateKey *ecdsa.PrivateKey
	account    common.Address
	gasLimit   uint64 // 0 lets the node estimate
}

var _ Writer = (*Signer)(nil)

func NewSigner(client *Client, privateKeyHex string, gasLimit uint64) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, types.ErrNoSigningIdentity
	}
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: error instantiating private key: %s", types.ErrNoSigningIdentity, err)
	}
	return &Signer{
		client:     client,
		privateKey: privateKey,
		account:    crypto.PubkeyToAddress(privateKey.PublicKey),
		gasLimit:   gasLimit,
	}, nil
}

func (s *Signer) Account() common.Address {
	return s.account
}

func (s *Signer) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.privateKey, s.client.chainID)
	if err != nil {
		return nil, signerError(fmt.Errorf("error instantiating contract call: %w", err))
	}
	sign := auth.Signer
	auth.Signer = func(from common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
		signed, err := sign(from, tx)
		if err != nil {
			return nil, signerError(err)
		}
		return signed, nil
	}
	auth.Context = ctx
	auth.Value = big.NewInt(0)
	auth.GasLimit = s.gasLimit
	return auth, nil
}

func (s *Signer) send(ctx context.Context, what string, f func(auth *bind.TransactOpts) (*ethtypes.Transaction, error)) (PendingTx, error) {
	auth, err := s.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := f(auth)
	if err != nil {
		return nil, fmt.Errorf("error calling %s: %w", what, classifyCall(err))
	}
	return &pendingTx{tx: tx, backend: s.client.primary()}, nil
}

func (s *Signer) swap() (*tokenswap.TokenSwap, error) {
	return tokenswap.NewTokenSwap(s.client.escrow, s.client.primary())
}

func (s *Signer) AddToken(ctx context.Context, token common.Address) (PendingTx, error) {
	return s.send(ctx, "addToken", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		swap, err := s.swap()
		if err != nil {
			return nil, err
		}
		return swap.AddToken(auth, token)
	})
}

func (s *Signer) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (PendingTx, error) {
	return s.send(ctx, "approve", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		erc, err := ierc20.NewIerc20(token, s.client.primary())
		if err != nil {
			return nil, err
		}
		return erc.Approve(auth, spender, amount)
	})
}

func (s *Signer) CreateOperation(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB *big.Int) (PendingTx, error) {
	return s.send(ctx, "createOperation", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		swap, err := s.swap()
		if err != nil {
			return nil, err
		}
		return swap.CreateOperation(auth, tokenA, tokenB, amountA, amountB)
	})
}

func (s *Signer) CreateOperationWithDuration(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB, duration *big.Int) (PendingTx, error) {
	return s.send(ctx, "createOperation(duration)", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		swap, err := s.swap()
		if err != nil {
			return nil, err
		}
		return swap.CreateOperation0(auth, tokenA, tokenB, amountA, amountB, duration)
	})
}

func (s *Signer) CompleteOperation(ctx context.Context, id *big.Int) (PendingTx, error) {
	return s.send(ctx, "completeOperation", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		swap, err := s.swap()
		if err != nil {
			return nil, err
		}
		return swap.CompleteOperation(auth, id)
	})
}

func (s *Signer) CancelOperation(ctx context.Context, id *big.Int) (PendingTx, error) {
	return s.send(ctx, "cancelOperation", func(auth *bind.TransactOpts) (*ethtypes.Transaction, error) {
		swap, err := s.swap()
		if err != nil {
			return nil, err
		}
		return swap.CancelOperation(auth, id)
	})
}

type pendingTx struct {
	tx      *ethtypes.Transaction
	backend bind.DeployBackend
}

func (p *pendingTx) Hash() common.Hash {
	return p.tx.Hash()
}

func (p *pendingTx) Wait(ctx context.Context) (*ethtypes.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", p.tx.Hash().Hex(), classifyCall(err))
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %s", types.ErrTransactionReverted, p.tx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}
