package EVMRPC

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"goscrow/EVMRPC/tokenswap"
	"goscrow/types"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonError struct {
	code int
	msg  string
}

func (e jsonError) Error() string  { return e.msg }
func (e jsonError) ErrorCode() int { return e.code }

func TestClassifyCall(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"node error", jsonError{-32000, "invalid opcode"}, types.ErrTransactionReverted},
		{"revert text", errors.New("execution reverted: not open"), types.ErrTransactionReverted},
		{"no code", bind.ErrNoCode, types.ErrTransactionReverted},
		{"abi", errors.New("abi: cannot unmarshal"), types.ErrTransactionReverted},
		{"dial", errors.New("dial tcp 127.0.0.1:8545: connect: connection refused"), types.ErrTransport},
		{"deadline", context.DeadlineExceeded, types.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyCall(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classifyCall(nil))

	already := signerError(errors.New("nonce too low"))
	assert.Same(t, already, classifyCall(already))
	assert.ErrorIs(t, already, types.ErrTransactionRejected)
}

func TestTokenSwapABI_DurationOverload(t *testing.T) {
	parsed, err := tokenswap.TokenSwapMetaData.GetAbi()
	require.NoError(t, err)

	create, ok := parsed.Methods["createOperation"]
	require.True(t, ok)
	assert.Len(t, create.Inputs, 4)

	withDuration, ok := parsed.Methods["createOperation0"]
	require.True(t, ok)
	assert.Len(t, withDuration.Inputs, 5)
	assert.Equal(t, "createOperation", withDuration.RawName)

	for _, name := range []string{"getAllOperations", "getOperation", "getUserBalances", "getAllowedTokens", "allowedToken", "addToken", "completeOperation", "cancelOperation", "owner"} {
		_, ok := parsed.Methods[name]
		assert.True(t, ok, name)
	}
}

func TestToOperation(t *testing.T) {
	maker := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	op := toOperation(tokenswap.TokenSwapOperation{
		Id:          big.NewInt(3),
		Maker:       maker,
		TokenA:      common.HexToAddress("0x01"),
		TokenB:      common.HexToAddress("0x02"),
		AmountA:     big.NewInt(10),
		AmountB:     big.NewInt(20),
		Status:      2,
		CreatedAt:   big.NewInt(1700000000),
		CancelledAt: big.NewInt(1700000500),
		ExpiresAt:   big.NewInt(1700086400),
	})

	assert.Equal(t, "3", op.ID.String())
	assert.Equal(t, maker, op.Maker)
	assert.Equal(t, types.StatusCancelled, op.Status)
	assert.Equal(t, int64(1700000000), op.CreatedAt)
	assert.Equal(t, int64(0), op.CompletedAt)
	assert.Equal(t, int64(1700000500), op.CancelledAt)
	assert.NoError(t, op.Validate())
}

func TestUnixSeconds(t *testing.T) {
	assert.Equal(t, int64(0), unixSeconds(nil))
	assert.Equal(t, int64(42), unixSeconds(big.NewInt(42)))
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	assert.Equal(t, int64(0), unixSeconds(huge))
}

func TestParseAddress(t *testing.T) {
	addr, ok := ParseAddress("  0xAbCDEF0123456789abcdef0123456789ABCDEF01 ")
	require.True(t, ok)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", types.LowerHex(addr))

	for _, s := range []string{"", "0x12", "hello", "0xZZCDEF0123456789abcdef0123456789ABCDEF01"} {
		_, ok := ParseAddress(s)
		assert.False(t, ok, s)
	}
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner(nil, "", 0)
	assert.ErrorIs(t, err, types.ErrNoSigningIdentity)

	_, err = NewSigner(nil, "0xnothex", 0)
	assert.ErrorIs(t, err, types.ErrNoSigningIdentity)

	// well-known development key
	s, err := NewSigner(nil, "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcad783d3c4f2ff80", 0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Account())
}

func TestDial_NoEndpoints(t *testing.T) {
	_, err := Dial(context.Background(), nil, 1, common.Address{})
	assert.Error(t, err)
}
