// Package swap defines the swap record stored by the vault contract and its
// versioned binary codec.
package swap

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
)

var (
	ErrMalformedRecord = errors.New("malformed swap record")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrTerminalStatus  = errors.New("swap status is terminal")
	ErrInvalidStatus   = errors.New("invalid swap status transition")
	ErrInvalidID       = errors.New("invalid swap id")
)

// Status is the lifecycle state of a swap record
type Status uint8

const (
	StatusInit      Status = 0
	StatusCompleted Status = 1
	StatusRefunded  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s <= StatusRefunded
}

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// Transition returns the next status or an error when the move is not allowed.
// Completed and Refunded never change; nothing moves back to Init.
func (s Status) Transition(to Status) (Status, error) {
	if !s.Valid() || !to.Valid() {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, s, to)
	}
	if s.IsTerminal() {
		return s, fmt.Errorf("%w: %s", ErrTerminalStatus, s)
	}
	if to == StatusInit {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, s, to)
	}
	return to, nil
}

// ID is a 256-bit swap identifier, big-endian
type ID [32]byte

// IDFromBig converts a non-negative integer of at most 256 bits to an ID
func IDFromBig(v *big.Int) (ID, error) {
	var id ID
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return id, ErrInvalidID
	}
	v.FillBytes(id[:])
	return id, nil
}

// ParseID parses a hex swap id with or without 0x prefix
func ParseID(s string) (ID, error) {
	var id ID
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) == 0 || len(raw) > 64 {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	copy(id[32-len(b):], b)
	return id, nil
}

// Big returns the id as an unsigned integer
func (id ID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Hex returns the 0x-prefixed, zero padded id
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.Hex()
}

// Deadlines are UNIX timestamps, expected to be strictly increasing in field order
type Deadlines struct {
	Withdrawal         uint32 `json:"withdrawal"`
	PublicWithdrawal   uint32 `json:"publicWithdrawal"`
	Cancellation       uint32 `json:"cancellation"`
	PublicCancellation uint32 `json:"publicCancellation"`
}

// Ordered reports whether the deadlines increase strictly. The codec does not
// call this; callers building new swaps should.
func (d Deadlines) Ordered() bool {
	return d.Withdrawal < d.PublicWithdrawal &&
		d.PublicWithdrawal < d.Cancellation &&
		d.Cancellation < d.PublicCancellation
}

// Record is one swap entry held in the vault's swap dictionary
type Record struct {
	QueryID      uint64
	SwapID       ID
	Counterparty common.Address // EVM side
	Owner        *address.Address
	Amount       *big.Int
	CreatedAt    uint32
	Deadlines    Deadlines
	Status       Status
}

// Equal compares two records field by field. Owner addresses compare by
// workchain and account id, ignoring user-friendly flags.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.QueryID != o.QueryID || r.SwapID != o.SwapID || r.Counterparty != o.Counterparty ||
		r.CreatedAt != o.CreatedAt || r.Deadlines != o.Deadlines || r.Status != o.Status {
		return false
	}
	if (r.Amount == nil) != (o.Amount == nil) || (r.Amount != nil && r.Amount.Cmp(o.Amount) != 0) {
		return false
	}
	return SameAddress(r.Owner, o.Owner)
}

// SameAddress compares two TON addresses by workchain and account id
func SameAddress(a, b *address.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Workchain() == b.Workchain() && bytes.Equal(a.Data(), b.Data())
}
