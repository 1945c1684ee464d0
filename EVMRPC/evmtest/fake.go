// Package evmtest provides an in-memory ledger implementing EVMRPC.Reader
// and EVMRPC.Writer for tests.
package evmtest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"goscrow/EVMRPC"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type Token struct {
	Name        string
	Symbol      string
	Decimals    uint8
	NameErr     error
	SymbolErr   error
	DecimalsErr error
	BalanceErr  error
	Balances    map[common.Address]*big.Int
	Allowances  map[[2]common.Address]*big.Int
}

// Ledger records every call as "<method>" or "<method>:<arg>".
type Ledger struct {
	mu sync.Mutex

	Escrow    common.Address
	OwnerAddr common.Address
	Whitelist []common.Address
	Active    map[common.Address]bool
	Ops       []types.Operation
	Tokens    map[common.Address]*Token
	UserBals  map[common.Address]map[common.Address]*big.Int

	// signing identity of the writer side
	Caller common.Address

	// optional overrides
	AllOperationsFunc func(ctx context.Context) ([]types.Operation, error)
	SubmitErr         map[string]error // by method, returned at submission
	WaitErr           map[string]error // by method, returned by PendingTx.Wait

	calls []string
	txSeq uint64
	Clock int64
}

func NewLedger(escrow, caller common.Address) *Ledger {
	return &Ledger{
		Escrow:    escrow,
		OwnerAddr: caller,
		Active:    make(map[common.Address]bool),
		Tokens:    make(map[common.Address]*Token),
		UserBals:  make(map[common.Address]map[common.Address]*big.Int),
		Caller:    caller,
		SubmitErr: make(map[string]error),
		WaitErr:   make(map[string]error),
		Clock:     1700000000,
	}
}

var (
	_ EVMRPC.Reader = (*Ledger)(nil)
	_ EVMRPC.Writer = (*Ledger)(nil)
)

// Addr derives a deterministic address from a label.
func Addr(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}

// RegisterToken deploys a token and whitelists it.
func (l *Ledger) RegisterToken(addr common.Address, name, symbol string, decimals uint8, active bool) *Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := &Token{
		Name:       name,
		Symbol:     symbol,
		Decimals:   decimals,
		Balances:   make(map[common.Address]*big.Int),
		Allowances: make(map[[2]common.Address]*big.Int),
	}
	l.Tokens[addr] = t
	l.Whitelist = append(l.Whitelist, addr)
	l.Active[addr] = active
	return t
}

func (l *Ledger) SetAllowance(token, holder, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Tokens[token].Allowances[[2]common.Address{holder, spender}] = new(big.Int).Set(amount)
}

func (l *Ledger) AllowanceOf(token, holder, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.Tokens[token].Allowances[[2]common.Address{holder, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (l *Ledger) record(call string) {
	l.calls = append(l.calls, call)
}

func (l *Ledger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// CallCount counts calls whose name starts with prefix.
func (l *Ledger) CallCount(prefix string) int {
	n := 0
	for _, c := range l.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (l *Ledger) ResetCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *Ledger) token(addr common.Address) (*Token, error) {
	t, ok := l.Tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: no contract code at %s", types.ErrTransactionReverted, addr.Hex())
	}
	return t, nil
}

// Reader

func (l *Ledger) EscrowAddress() common.Address {
	return l.Escrow
}

func (l *Ledger) Owner(ctx context.Context) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("owner")
	return l.OwnerAddr, nil
}

func (l *Ledger) AllowedTokens(ctx context.Context) ([]common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("getAllowedTokens")
	return append([]common.Address(nil), l.Whitelist...), nil
}

func (l *Ledger) IsTokenAllowed(ctx context.Context, token common.Address) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("allowedToken:" + types.LowerHex(token))
	return l.Active[token], nil
}

func (l *Ledger) Operation(ctx context.Context, id *big.Int) (types.Operation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("getOperation:" + id.String())
	for _, op := range l.Ops {
		if op.ID.Cmp(id) == 0 {
			return op, nil
		}
	}
	return types.Operation{}, fmt.Errorf("%w: %s", types.ErrOperationNotFound, id)
}

func (l *Ledger) AllOperations(ctx context.Context) ([]types.Operation, error) {
	l.mu.Lock()
	l.record("getAllOperations")
	f := l.AllOperationsFunc
	ops := append([]types.Operation(nil), l.Ops...)
	l.mu.Unlock()
	if f != nil {
		return f(ctx)
	}
	return ops, nil
}

func (l *Ledger) UserBalances(ctx context.Context, user common.Address) ([]common.Address, []*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("getUserBalances:" + types.LowerHex(user))
	var tokens []common.Address
	var amounts []*big.Int
	for _, t := range l.Whitelist {
		if b, ok := l.UserBals[user][t]; ok {
			tokens = append(tokens, t)
			amounts = append(amounts, new(big.Int).Set(b))
		}
	}
	return tokens, amounts, nil
}

func (l *Ledger) TokenName(ctx context.Context, token common.Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("name:" + types.LowerHex(token))
	t, err := l.token(token)
	if err != nil {
		return "", err
	}
	return t.Name, t.NameErr
}

func (l *Ledger) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("symbol:" + types.LowerHex(token))
	t, err := l.token(token)
	if err != nil {
		return "", err
	}
	return t.Symbol, t.SymbolErr
}

func (l *Ledger) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("decimals:" + types.LowerHex(token))
	t, err := l.token(token)
	if err != nil {
		return 0, err
	}
	return t.Decimals, t.DecimalsErr
}

func (l *Ledger) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("balanceOf:" + types.LowerHex(token))
	t, err := l.token(token)
	if err != nil {
		return nil, err
	}
	if t.BalanceErr != nil {
		return nil, t.BalanceErr
	}
	if b, ok := t.Balances[holder]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (l *Ledger) Allowance(ctx context.Context, token, holder, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("allowance:" + types.LowerHex(token))
	t, err := l.token(token)
	if err != nil {
		return nil, err
	}
	if a, ok := t.Allowances[[2]common.Address{holder, spender}]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

// Writer

func (l *Ledger) Account() common.Address {
	return l.Caller
}

// submit records the call and returns a tx whose effect is applied on a
// successful Wait, the way a real ledger only changes state once mined.
func (l *Ledger) submit(method, arg string, effect func()) (EVMRPC.PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(method + ":" + arg)
	if err := l.SubmitErr[method]; err != nil {
		return nil, err
	}
	l.txSeq++
	return &PendingTx{
		ledger: l,
		method: method,
		hash:   crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d", method, l.txSeq))),
		effect: effect,
	}, nil
}

func (l *Ledger) AddToken(ctx context.Context, token common.Address) (EVMRPC.PendingTx, error) {
	return l.submit("addToken", types.LowerHex(token), func() {
		l.Whitelist = append(l.Whitelist, token)
		l.Active[token] = true
	})
}

func (l *Ledger) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (EVMRPC.PendingTx, error) {
	return l.submit("approve", types.LowerHex(token)+":"+amount.String(), func() {
		if t, ok := l.Tokens[token]; ok {
			t.Allowances[[2]common.Address{l.Caller, spender}] = new(big.Int).Set(amount)
		}
	})
}

func (l *Ledger) nextID() *big.Int {
	id := big.NewInt(0)
	for _, op := range l.Ops {
		if op.ID.Cmp(id) > 0 {
			id = new(big.Int).Set(op.ID)
		}
	}
	return id.Add(id, big.NewInt(1))
}

func (l *Ledger) create(tokenA, tokenB common.Address, amountA, amountB *big.Int, duration int64) {
	l.Ops = append(l.Ops, types.Operation{
		ID:        l.nextID(),
		Maker:     l.Caller,
		TokenA:    tokenA,
		TokenB:    tokenB,
		AmountA:   new(big.Int).Set(amountA),
		AmountB:   new(big.Int).Set(amountB),
		Status:    types.StatusOpen,
		CreatedAt: l.Clock,
		ExpiresAt: l.Clock + duration,
	})
}

func (l *Ledger) CreateOperation(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB *big.Int) (EVMRPC.PendingTx, error) {
	arg := fmt.Sprintf("%s:%s:%s:%s", types.LowerHex(tokenA), types.LowerHex(tokenB), amountA, amountB)
	return l.submit("createOperation", arg, func() {
		l.create(tokenA, tokenB, amountA, amountB, 86400)
	})
}

func (l *Ledger) CreateOperationWithDuration(ctx context.Context, tokenA, tokenB common.Address, amountA, amountB, duration *big.Int) (EVMRPC.PendingTx, error) {
	arg := fmt.Sprintf("%s:%s:%s:%s:%s", types.LowerHex(tokenA), types.LowerHex(tokenB), amountA, amountB, duration)
	return l.submit("createOperationWithDuration", arg, func() {
		l.create(tokenA, tokenB, amountA, amountB, duration.Int64())
	})
}

func (l *Ledger) setStatus(id *big.Int, status types.OperationStatus) {
	for i := range l.Ops {
		if l.Ops[i].ID.Cmp(id) != 0 {
			continue
		}
		l.Ops[i].Status = status
		if status == types.StatusCompleted {
			l.Ops[i].Taker = l.Caller
			l.Ops[i].CompletedAt = l.Clock
		} else {
			l.Ops[i].CancelledAt = l.Clock
		}
	}
}

func (l *Ledger) CompleteOperation(ctx context.Context, id *big.Int) (EVMRPC.PendingTx, error) {
	return l.submit("completeOperation", id.String(), func() {
		l.setStatus(id, types.StatusCompleted)
	})
}

func (l *Ledger) CancelOperation(ctx context.Context, id *big.Int) (EVMRPC.PendingTx, error) {
	return l.submit("cancelOperation", id.String(), func() {
		l.setStatus(id, types.StatusCancelled)
	})
}

type PendingTx struct {
	ledger *Ledger
	method string
	hash   common.Hash
	effect func()
}

func (p *PendingTx) Hash() common.Hash {
	return p.hash
}

func (p *PendingTx) Wait(ctx context.Context) (*ethtypes.Receipt, error) {
	l := p.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("wait:" + p.method)
	if err := l.WaitErr[p.method]; err != nil {
		return &ethtypes.Receipt{TxHash: p.hash, Status: ethtypes.ReceiptStatusFailed}, err
	}
	p.effect()
	return &ethtypes.Receipt{TxHash: p.hash, Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}
