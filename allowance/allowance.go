// Package allowance makes sure a spender holds enough delegated transfer
// rights before a dependent escrow action is submitted.
package allowance

import (
	"context"
	"fmt"
	"math/big"

	"goscrow/EVMRPC"
	"goscrow/logger"
	"goscrow/metrics"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/common"
)

// Grant describes what EnsureAllowance did. Needed is false when the
// existing allowance already covered the requirement and nothing was sent.
// TxHash is set as soon as a grant was submitted, even if it later failed.
type Grant struct {
	Needed   bool
	Previous *big.Int
	Amount   *big.Int
	TxHash   common.Hash
}

type Coordinator struct {
	reader  EVMRPC.Reader
	writer  EVMRPC.Writer
	metrics *metrics.Metrics
}

// NewCoordinator accepts a nil writer; every call then fails with
// ErrNoSigningIdentity.
func NewCoordinator(reader EVMRPC.Reader, writer EVMRPC.Writer, m *metrics.Metrics) *Coordinator {
	return &Coordinator{reader: reader, writer: writer, metrics: m}
}

// EnsureAllowance grants exactly required to spender when the current
// allowance from holder is lower, and waits for the grant to be mined.
// A larger existing allowance is left untouched.
func (c *Coordinator) EnsureAllowance(ctx context.Context, token, holder, spender common.Address, required *big.Int) (Grant, error) {
	if c.writer == nil {
		return Grant{}, types.ErrNoSigningIdentity
	}

	current, err := c.reader.Allowance(ctx, token, holder, spender)
	if err != nil {
		c.metrics.Grants.WithLabelValues("failed").Inc()
		return Grant{}, fmt.Errorf("reading allowance of %s: %w", types.LowerHex(token), err)
	}
	grant := Grant{Previous: current, Amount: current}
	if current.Cmp(required) >= 0 {
		c.metrics.Grants.WithLabelValues("sufficient").Inc()
		return grant, nil
	}

	log := logger.Logger.WithField("token", types.LowerHex(token)).WithField("spender", types.LowerHex(spender))
	log.Infof("%s: have %s, need %s, approving", types.ErrAllowanceInsufficient, current, required)

	grant.Needed = true
	grant.Amount = new(big.Int).Set(required)

	tx, err := c.writer.Approve(ctx, token, spender, required)
	if err != nil {
		c.metrics.Grants.WithLabelValues("failed").Inc()
		return grant, fmt.Errorf("approve %s: %w", types.LowerHex(token), err)
	}
	grant.TxHash = tx.Hash()
	log.Infof("Approving %s for %s, tx=%s", types.LowerHex(token), required, tx.Hash().Hex())

	if _, err := tx.Wait(ctx); err != nil {
		c.metrics.Grants.WithLabelValues("failed").Inc()
		return grant, fmt.Errorf("approve %s: %w", types.LowerHex(token), err)
	}
	c.metrics.Grants.WithLabelValues("granted").Inc()
	log.Infof("Approval confirmed, tx=%s", tx.Hash().Hex())
	return grant, nil
}
