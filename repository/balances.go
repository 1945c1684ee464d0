package repository

import (
	"context"
	"fmt"
	"time"

	"goscrow/config"
	"goscrow/logger"
	"goscrow/types"
	"goscrow/units"

	"github.com/ethereum/go-ethereum/common"
)

// UserBalances returns what the escrow holds on behalf of user, formatted
// with each token's decimals. Tokens without metadata are formatted raw.
func (r *Repository) UserBalances(ctx context.Context, user common.Address) ([]types.TokenBalance, error) {
	addrs, amounts, err := r.ledger.UserBalances(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("getUserBalances(%s): %w", types.LowerHex(user), err)
	}
	r.metadata.Prefetch(ctx, addrs)

	res := make([]types.TokenBalance, 0, len(addrs))
	for i, addr := range addrs {
		md := r.metadata.Get(ctx, addr)
		b := types.TokenBalance{Token: addr, Raw: amounts[i], Metadata: md}
		if md.Available {
			b.Formatted = units.Format(amounts[i], md.Metadata.Decimals)
		} else {
			b.Formatted = amounts[i].String()
		}
		res = append(res, b)
	}
	return res, nil
}

// EscrowBalances reads balanceOf(escrow) for every active whitelisted token.
// A token whose balance cannot be read is skipped; unknown decimals fall
// back to 18.
func (r *Repository) EscrowBalances(ctx context.Context) ([]types.TokenBalance, error) {
	list, err := r.FetchTokens(ctx)
	if err != nil {
		return nil, err
	}
	escrow := r.ledger.EscrowAddress()

	var res []types.TokenBalance
	for _, t := range list {
		if !t.Active {
			continue
		}
		raw, err := r.ledger.BalanceOf(ctx, t.Address, escrow)
		if err != nil {
			logger.Logger.WithField("token", types.LowerHex(t.Address)).Warnf("Skipping escrow balance: %s", err.Error())
			continue
		}
		md := r.metadata.Get(ctx, t.Address)
		decimals := uint8(config.FallbackDecimals)
		if md.Available {
			decimals = md.Metadata.Decimals
		}
		res = append(res, types.TokenBalance{
			Token:     t.Address,
			Raw:       raw,
			Formatted: units.Format(raw, decimals),
			Metadata:  md,
		})
	}
	return res, nil
}

type BalancesSnapshot struct {
	Account   common.Address       `json:"-"`
	User      []types.TokenBalance `json:"user"`
	Escrow    []types.TokenBalance `json:"escrow"`
	FetchedAt time.Time            `json:"fetchedAt"`
}

// FetchBalances reads the escrow-held balances of account and the escrow's
// own token balances. A zero account only reads the escrow side.
func (r *Repository) FetchBalances(ctx context.Context, account common.Address) (BalancesSnapshot, error) {
	snap := BalancesSnapshot{Account: account}
	if account != (common.Address{}) {
		user, err := r.UserBalances(ctx, account)
		if err != nil {
			return snap, err
		}
		snap.User = user
	}
	escrow, err := r.EscrowBalances(ctx)
	if err != nil {
		return snap, err
	}
	snap.Escrow = escrow
	return snap, nil
}

func (r *Repository) ApplyBalances(snap BalancesSnapshot) {
	snap.FetchedAt = time.Now()
	r.mu.Lock()
	r.balances = snap
	r.mu.Unlock()
}

func (r *Repository) BalancesSnapshot() BalancesSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return BalancesSnapshot{
		Account:   r.balances.Account,
		User:      append([]types.TokenBalance(nil), r.balances.User...),
		Escrow:    append([]types.TokenBalance(nil), r.balances.Escrow...),
		FetchedAt: r.balances.FetchedAt,
	}
}
