package EVMRPC

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"goscrow/types"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/rpc"
)

// classifyCall separates ledger-side rejections (the node answered with an
// error, the contract reverted or has no code) from transport failures.
// Already classified errors pass through untouched.
func classifyCall(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		types.ErrTransport,
		types.ErrTransactionReverted,
		types.ErrTransactionRejected,
		types.ErrNoSigningIdentity,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	if errors.Is(err, bind.ErrNoCode) || strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %w", types.ErrTransactionReverted, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %w", types.ErrTransactionReverted, err)
	}
	// abi decoding failures mean the contract answered something unexpected
	if strings.Contains(err.Error(), "abi:") {
		return fmt.Errorf("%w: %w", types.ErrTransactionReverted, err)
	}
	return fmt.Errorf("%w: %w", types.ErrTransport, err)
}

// signerError marks a failure of the local signing identity.
func signerError(err error) error {
	return fmt.Errorf("%w: %w", types.ErrTransactionRejected, err)
}
