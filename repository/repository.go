// Package repository is the read-side projection of the ledger: operations,
// the whitelist of active tokens, and token balances, kept as point-in-time
// snapshots that are replaced wholesale.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"goscrow/EVMRPC"
	"goscrow/logger"
	"goscrow/metrics"
	"goscrow/tokens"
	"goscrow/types"
)

type OperationsSnapshot struct {
	Operations []types.Operation `json:"operations"`
	FetchedAt  time.Time         `json:"fetchedAt"`
}

type TokensSnapshot struct {
	Tokens    []types.AllowedToken `json:"tokens"`
	FetchedAt time.Time            `json:"fetchedAt"`
}

// Mirror receives every snapshot the repository keeps. Errors are logged.
type Mirror interface {
	StoreOperations(snap OperationsSnapshot) error
	StoreTokens(snap TokensSnapshot) error
}

type Repository struct {
	ledger   EVMRPC.Reader
	metadata *tokens.MetadataCache
	metrics  *metrics.Metrics
	mirror   Mirror

	mu       sync.RWMutex
	ops      OperationsSnapshot
	tokens   TokensSnapshot
	balances BalancesSnapshot
}

func New(ledger EVMRPC.Reader, metadata *tokens.MetadataCache, m *metrics.Metrics) *Repository {
	return &Repository{ledger: ledger, metadata: metadata, metrics: m}
}

func (r *Repository) SetMirror(m Mirror) {
	r.mirror = m
}

// FetchOperations reads the complete operation set, newest id first. It does
// not touch the snapshot; see Apply.
func (r *Repository) FetchOperations(ctx context.Context) ([]types.Operation, error) {
	ops, err := r.ledger.AllOperations(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].ID.Cmp(ops[j].ID) > 0
	})
	for i := range ops {
		if err := ops[i].Validate(); err != nil {
			logger.Logger.Warnf("Ledger returned inconsistent operation: %s", err.Error())
		}
	}
	return ops, nil
}

// ApplyOperations installs a fetched set as the new snapshot. An empty set
// never replaces a non-empty snapshot: it is treated as a transient read
// anomaly. The retained snapshot is returned.
func (r *Repository) ApplyOperations(ops []types.Operation) []types.Operation {
	r.mu.Lock()
	if len(ops) == 0 && len(r.ops.Operations) > 0 {
		kept := r.ops.Operations
		r.mu.Unlock()
		logger.Logger.Warnf("Ignoring empty operations result, keeping %d operations", len(kept))
		return kept
	}
	r.checkTransitions(ops)
	snap := OperationsSnapshot{Operations: ops, FetchedAt: time.Now()}
	r.ops = snap
	r.mu.Unlock()

	r.metrics.OperationCount.Set(float64(len(ops)))
	if r.mirror != nil {
		if err := r.mirror.StoreOperations(snap); err != nil {
			logger.Logger.Warnf("Error mirroring operations snapshot: %s", err.Error())
		}
	}
	return ops
}

// checkTransitions logs status regressions against the previous snapshot;
// must be called with r.mu held.
func (r *Repository) checkTransitions(next []types.Operation) {
	prev := make(map[string]types.Operation, len(r.ops.Operations))
	for _, op := range r.ops.Operations {
		prev[op.ID.String()] = op
	}
	for _, op := range next {
		if old, ok := prev[op.ID.String()]; ok && !old.CanTransition(op.Status) {
			logger.Logger.Errorf("Operation %s went from %s to %s", op.ID, old.Status, op.Status)
		}
	}
}

// Refresh is FetchOperations followed by ApplyOperations.
func (r *Repository) Refresh(ctx context.Context) ([]types.Operation, error) {
	ops, err := r.FetchOperations(ctx)
	if err != nil {
		return nil, err
	}
	return r.ApplyOperations(ops), nil
}

func (r *Repository) Snapshot() OperationsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return OperationsSnapshot{
		Operations: append([]types.Operation(nil), r.ops.Operations...),
		FetchedAt:  r.ops.FetchedAt,
	}
}

// Find looks an operation up in the current snapshot.
func (r *Repository) Find(id string) (types.Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, op := range r.ops.Operations {
		if op.ID.String() == id {
			return op, true
		}
	}
	return types.Operation{}, false
}

// FetchTokens reads the ordered whitelist and the activity flag of every
// entry. Membership is never inferred locally.
func (r *Repository) FetchTokens(ctx context.Context) ([]types.AllowedToken, error) {
	list, err := r.ledger.AllowedTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("getAllowedTokens: %w", err)
	}
	res := make([]types.AllowedToken, 0, len(list))
	for _, addr := range list {
		active, err := r.ledger.IsTokenAllowed(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("allowedToken(%s): %w", types.LowerHex(addr), err)
		}
		res = append(res, types.AllowedToken{Address: addr, Active: active})
	}
	return res, nil
}

func (r *Repository) ApplyTokens(list []types.AllowedToken) {
	snap := TokensSnapshot{Tokens: list, FetchedAt: time.Now()}
	r.mu.Lock()
	r.tokens = snap
	r.mu.Unlock()

	if r.mirror != nil {
		if err := r.mirror.StoreTokens(snap); err != nil {
			logger.Logger.Warnf("Error mirroring tokens snapshot: %s", err.Error())
		}
	}
}

func (r *Repository) RefreshTokens(ctx context.Context) ([]types.AllowedToken, error) {
	list, err := r.FetchTokens(ctx)
	if err != nil {
		return nil, err
	}
	r.ApplyTokens(list)
	return list, nil
}

func (r *Repository) TokensSnapshot() TokensSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return TokensSnapshot{
		Tokens:    append([]types.AllowedToken(nil), r.tokens.Tokens...),
		FetchedAt: r.tokens.FetchedAt,
	}
}

// ActiveTokens filters the whitelist snapshot to active entries, in ledger order.
func (r *Repository) ActiveTokens() []types.AllowedToken {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res []types.AllowedToken
	for _, t := range r.tokens.Tokens {
		if t.Active {
			res = append(res, t)
		}
	}
	return res
}
