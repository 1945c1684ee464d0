package allowance

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"goscrow/EVMRPC/evmtest"
	"goscrow/metrics"
	"goscrow/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	escrow = evmtest.Addr("escrow")
	alice  = evmtest.Addr("alice")
	tokenX = evmtest.Addr("tokenX")
)

func setup() (*evmtest.Ledger, *Coordinator) {
	ledger := evmtest.NewLedger(escrow, alice)
	ledger.RegisterToken(tokenX, "Token X", "TKX", 18, true)
	return ledger, NewCoordinator(ledger, ledger, metrics.New())
}

func TestEnsureAllowance_SufficientSkipsGrant(t *testing.T) {
	ledger, c := setup()
	ledger.SetAllowance(tokenX, alice, escrow, big.NewInt(1000))

	for _, required := range []int64{999, 1000} {
		grant, err := c.EnsureAllowance(context.Background(), tokenX, alice, escrow, big.NewInt(required))
		require.NoError(t, err)
		assert.False(t, grant.Needed)
	}
	assert.Zero(t, ledger.CallCount("approve"))
}

func TestEnsureAllowance_GrantsExactAmount(t *testing.T) {
	ledger, c := setup()
	ledger.SetAllowance(tokenX, alice, escrow, big.NewInt(5))

	grant, err := c.EnsureAllowance(context.Background(), tokenX, alice, escrow, big.NewInt(700))
	require.NoError(t, err)
	assert.True(t, grant.Needed)
	assert.Equal(t, "5", grant.Previous.String())
	assert.Equal(t, "700", grant.Amount.String())
	assert.NotEqual(t, [32]byte{}, [32]byte(grant.TxHash))

	assert.Equal(t, []string{
		"allowance:" + types.LowerHex(tokenX),
		"approve:" + types.LowerHex(tokenX) + ":700",
		"wait:approve",
	}, ledger.Calls())
	assert.Equal(t, "700", ledger.AllowanceOf(tokenX, alice, escrow).String())
}

func TestEnsureAllowance_NoSigner(t *testing.T) {
	ledger := evmtest.NewLedger(escrow, alice)
	c := NewCoordinator(ledger, nil, metrics.New())

	_, err := c.EnsureAllowance(context.Background(), tokenX, alice, escrow, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrNoSigningIdentity)
	assert.Empty(t, ledger.Calls())
}

func TestEnsureAllowance_RejectedBySigner(t *testing.T) {
	ledger, c := setup()
	ledger.SubmitErr["approve"] = types.ErrTransactionRejected

	grant, err := c.EnsureAllowance(context.Background(), tokenX, alice, escrow, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrTransactionRejected)
	assert.True(t, grant.Needed)
	assert.Zero(t, ledger.CallCount("wait:"))
}

func TestEnsureAllowance_Reverted(t *testing.T) {
	ledger, c := setup()
	ledger.WaitErr["approve"] = types.ErrTransactionReverted

	grant, err := c.EnsureAllowance(context.Background(), tokenX, alice, escrow, big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrTransactionReverted)
	assert.NotEqual(t, [32]byte{}, [32]byte(grant.TxHash))
	assert.Zero(t, ledger.AllowanceOf(tokenX, alice, escrow).Sign())
}

func TestEnsureAllowance_ReadFailure(t *testing.T) {
	_, c := setup()

	_, err := c.EnsureAllowance(context.Background(), evmtest.Addr("missing"), alice, escrow, big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTransactionReverted))
}
