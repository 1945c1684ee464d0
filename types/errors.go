package types

import (
	"errors"
	"fmt"
)

var (
	ErrNoSigningIdentity     = errors.New("no signing identity available")
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDuplicateRegistration = errors.New("token already registered")
	// never leaves the allowance coordinator
	ErrAllowanceInsufficient = errors.New("allowance insufficient")
	ErrTransactionRejected   = errors.New("transaction rejected by signer")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrMetadataUnavailable   = errors.New("token metadata unavailable")
	ErrTransport             = errors.New("ledger transport error")
	ErrOperationNotFound     = errors.New("operation not found")
)

// InvalidInput wraps ErrInvalidInput with the offending field.
func InvalidInput(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Err: fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))}
}

type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
