// Package units converts between human token amounts and the integer
// amounts the ledger stores, scaled by the token's decimals.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// digits of 2^256-1
const maxUint256Digits = 78

// Parse converts "1.5" with 6 decimals into 1500000. More fractional digits
// than decimals is an error rather than a silent truncation.
func Parse(human string, decimals uint8) (*big.Int, error) {
	human = strings.TrimSpace(human)
	if human == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(human)
	if err != nil {
		return nil, fmt.Errorf("cannot parse amount %q: %w", human, err)
	}
	// integer digits of the scaled value, checked before anything is expanded
	if int64(d.NumDigits())+int64(d.Exponent())+int64(decimals) > maxUint256Digits {
		return nil, fmt.Errorf("amount %q exceeds uint256", human)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", human, decimals)
	}
	v := scaled.BigInt()
	if v.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("amount %q exceeds uint256", human)
	}
	return v, nil
}

// Format is the inverse of Parse, without trailing zeros.
func Format(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// Positive checks that human is a well-formed amount greater than zero,
// independently of any token's decimals.
func Positive(human string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return fmt.Errorf("cannot parse amount %q", human)
	}
	if !d.IsPositive() {
		return fmt.Errorf("amount %q must be greater than zero", human)
	}
	return nil
}
