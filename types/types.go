package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// status values as the escrow contract encodes them (uint8 enum)
type OperationStatus uint8

const (
	StatusOpen OperationStatus = iota
	StatusCompleted
	StatusCancelled
)

func (s OperationStatus) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Operation is a point-in-time copy of one escrow swap as read from the ledger.
// Taker stays the zero address until the operation is completed.
type Operation struct {
	ID          *big.Int
	Maker       common.Address
	Taker       common.Address
	TokenA      common.Address
	TokenB      common.Address
	AmountA     *big.Int // in tokenA smallest unit
	AmountB     *big.Int // in tokenB smallest unit
	Status      OperationStatus
	CreatedAt   int64
	CompletedAt int64
	CancelledAt int64
	ExpiresAt   int64
}

// Validate checks the record invariants. The ledger is authoritative, so a
// violation is reported to the caller but never corrected locally.
func (o *Operation) Validate() error {
	if o.ID == nil {
		return fmt.Errorf("operation without id")
	}
	if o.TokenA == o.TokenB {
		return fmt.Errorf("operation %s: tokenA equals tokenB", o.ID)
	}
	if (o.CompletedAt != 0) != (o.Status == StatusCompleted) {
		return fmt.Errorf("operation %s: completedAt=%d with status %s", o.ID, o.CompletedAt, o.Status)
	}
	if (o.CancelledAt != 0) != (o.Status == StatusCancelled) {
		return fmt.Errorf("operation %s: cancelledAt=%d with status %s", o.ID, o.CancelledAt, o.Status)
	}
	if o.Status != StatusCompleted && o.Taker != (common.Address{}) {
		return fmt.Errorf("operation %s: taker set while %s", o.ID, o.Status)
	}
	return nil
}

// CanTransition reports whether a later observation with status next is a
// legal successor of this one: Open may move once to a terminal state,
// terminal states never change.
func (o *Operation) CanTransition(next OperationStatus) bool {
	if o.Status == next {
		return true
	}
	return o.Status == StatusOpen && next.Terminal()
}

type operationJSON struct {
	ID          string          `json:"id"`
	Maker       string          `json:"maker"`
	Taker       string          `json:"taker"`
	TokenA      string          `json:"tokenA"`
	TokenB      string          `json:"tokenB"`
	AmountA     string          `json:"amountA"`
	AmountB     string          `json:"amountB"`
	Status      OperationStatus `json:"status"`
	CreatedAt   int64           `json:"createdAt"`
	CompletedAt int64           `json:"completedAt"`
	CancelledAt int64           `json:"cancelledAt"`
	ExpiresAt   int64           `json:"expiresAt"`
}

// addresses go out lower-cased, amounts as decimal strings
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationJSON{
		ID:          bigString(o.ID),
		Maker:       LowerHex(o.Maker),
		Taker:       LowerHex(o.Taker),
		TokenA:      LowerHex(o.TokenA),
		TokenB:      LowerHex(o.TokenB),
		AmountA:     bigString(o.AmountA),
		AmountB:     bigString(o.AmountB),
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
		ExpiresAt:   o.ExpiresAt,
	})
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// LowerHex is the canonical stored form of an address.
func LowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// TokenMetadata is descriptive data for one ERC-20 token address.
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// MetadataResult is either Metadata (Available) or Unavailable with the
// error that caused it. Callers have to look at Available.
type MetadataResult struct {
	Available bool
	Metadata  TokenMetadata
	Err       error
}

func Available(md TokenMetadata) MetadataResult {
	return MetadataResult{Available: true, Metadata: md}
}

func Unavailable(err error) MetadataResult {
	return MetadataResult{Err: err}
}

// Label falls back to the raw address when metadata is unavailable.
func (r MetadataResult) Label(addr string) string {
	if r.Available {
		if s := strings.TrimSpace(r.Metadata.Symbol); s != "" {
			return s
		}
		if n := strings.TrimSpace(r.Metadata.Name); n != "" {
			return n
		}
	}
	return addr
}

func (r MetadataResult) MarshalJSON() ([]byte, error) {
	if !r.Available {
		return json.Marshal(struct {
			Available bool `json:"available"`
		}{false})
	}
	return json.Marshal(struct {
		Available bool `json:"available"`
		TokenMetadata
	}{true, r.Metadata})
}

// one entry of the ordered whitelist, Active as reported by allowedToken()
type AllowedToken struct {
	Address common.Address
	Active  bool
}

func (t AllowedToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Address string `json:"address"`
		Active  bool   `json:"active"`
	}{LowerHex(t.Address), t.Active})
}

type TokenBalance struct {
	Token     common.Address
	Raw       *big.Int
	Formatted string
	Metadata  MetadataResult
}

func (b TokenBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Token     string         `json:"token"`
		Raw       string         `json:"raw"`
		Formatted string         `json:"balance"`
		Metadata  MetadataResult `json:"metadata"`
	}{LowerHex(b.Token), bigString(b.Raw), b.Formatted, b.Metadata})
}

// AuditEntry records one attempted write action. Advisory only.
type AuditEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Subject string    `json:"subject"`
	Phase   string    `json:"phase"`
	TxHash  string    `json:"txHash,omitempty"`
	Message string    `json:"message,omitempty"`
}

// polling stream names, shared by the scheduler and the write workflows
// that ask it for an out-of-band refresh
const (
	StreamOperations = "operations"
	StreamTokens     = "tokens"
	StreamBalances   = "balances"
)
