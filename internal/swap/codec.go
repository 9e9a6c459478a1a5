package swap

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// SchemaVersion is the only record layout this package reads and writes.
//
// Root cell:   query_id:uint64 swap_id:uint256 counterparty:uint160
//              owner:MsgAddress amount:Coins status:uint2 ^timing
// Timing cell: created_at:uint32 withdrawal:uint32 public_withdrawal:uint32
//              cancellation:uint32 public_cancellation:uint32
const SchemaVersion = 1

// DictKeyBits is the key width of the vault's swap dictionary
const DictKeyBits = 64

const (
	statusBits       = 2
	counterpartyBits = 160
	timingBits       = 5 * 32
)

// Serialize encodes a record into its root cell
func Serialize(r *Record) (*cell.Cell, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if r.Owner == nil {
		return nil, fmt.Errorf("%w: owner address is required", ErrMalformedRecord)
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrMalformedRecord, r.Status)
	}

	timing := cell.BeginCell().
		MustStoreUInt(uint64(r.CreatedAt), 32).
		MustStoreUInt(uint64(r.Deadlines.Withdrawal), 32).
		MustStoreUInt(uint64(r.Deadlines.PublicWithdrawal), 32).
		MustStoreUInt(uint64(r.Deadlines.Cancellation), 32).
		MustStoreUInt(uint64(r.Deadlines.PublicCancellation), 32).
		EndCell()

	b := cell.BeginCell().
		MustStoreUInt(r.QueryID, 64).
		MustStoreSlice(r.SwapID[:], 256).
		MustStoreSlice(r.Counterparty.Bytes(), counterpartyBits)
	if err := b.StoreAddr(r.Owner); err != nil {
		return nil, fmt.Errorf("%w: owner: %v", ErrMalformedRecord, err)
	}
	if err := b.StoreBigCoins(r.Amount); err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrMalformedRecord, err)
	}
	if err := b.StoreUInt(uint64(r.Status), statusBits); err != nil {
		return nil, fmt.Errorf("%w: status: %v", ErrMalformedRecord, err)
	}
	if err := b.StoreRef(timing); err != nil {
		return nil, fmt.Errorf("%w: timing: %v", ErrMalformedRecord, err)
	}
	return b.EndCell(), nil
}

// Marshal encodes a record as a bag of cells
func Marshal(r *Record) ([]byte, error) {
	c, err := Serialize(r)
	if err != nil {
		return nil, err
	}
	return c.ToBOC(), nil
}

// Deserialize decodes a record from its root cell
func Deserialize(c *cell.Cell) (*Record, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil cell", ErrMalformedRecord)
	}
	return decodeRecord(c.BeginParse())
}

// Unmarshal decodes a record from a bag of cells
func Unmarshal(data []byte) (*Record, error) {
	c, err := cell.FromBOC(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return Deserialize(c)
}

func decodeRecord(s *cell.Slice) (*Record, error) {
	malformed := func(field string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, field, err)
	}

	r := &Record{}
	var err error

	if r.QueryID, err = s.LoadUInt(64); err != nil {
		return nil, malformed("query_id", err)
	}
	swapID, err := s.LoadSlice(256)
	if err != nil {
		return nil, malformed("swap_id", err)
	}
	copy(r.SwapID[:], swapID)
	counterparty, err := s.LoadSlice(counterpartyBits)
	if err != nil {
		return nil, malformed("counterparty", err)
	}
	r.Counterparty = common.BytesToAddress(counterparty)
	if r.Owner, err = s.LoadAddr(); err != nil {
		return nil, malformed("owner", err)
	}
	if r.Amount, err = s.LoadBigCoins(); err != nil {
		return nil, malformed("amount", err)
	}
	status, err := s.LoadUInt(statusBits)
	if err != nil {
		return nil, malformed("status", err)
	}
	r.Status = Status(status)
	if !r.Status.Valid() {
		return nil, malformed("status", fmt.Errorf("unknown value %d", status))
	}
	if s.BitsLeft() != 0 {
		return nil, malformed("root", fmt.Errorf("%d trailing bits", s.BitsLeft()))
	}

	timing, err := s.LoadRef()
	if err != nil {
		return nil, malformed("timing", err)
	}
	if s.RefsNum() != 0 {
		return nil, malformed("root", fmt.Errorf("%d trailing refs", s.RefsNum()))
	}
	if timing.BitsLeft() != timingBits {
		return nil, malformed("timing", fmt.Errorf("expected %d bits, got %d", timingBits, timing.BitsLeft()))
	}

	fields := []*uint32{
		&r.CreatedAt,
		&r.Deadlines.Withdrawal,
		&r.Deadlines.PublicWithdrawal,
		&r.Deadlines.Cancellation,
		&r.Deadlines.PublicCancellation,
	}
	for _, f := range fields {
		v, err := timing.LoadUInt(32)
		if err != nil {
			return nil, malformed("timing", err)
		}
		*f = uint32(v)
	}

	return r, nil
}

// ==================== Dictionary ====================

// EncodeDict encodes records keyed by query id. The result is a cell whose
// first bit flags dictionary presence, so an empty map encodes to a single
// zero bit.
func EncodeDict(records map[uint64]*Record) (*cell.Cell, error) {
	dict, err := BuildDict(records)
	if err != nil {
		return nil, err
	}
	b := cell.BeginCell()
	if err := b.StoreDict(dict); err != nil {
		return nil, fmt.Errorf("failed to store dictionary: %w", err)
	}
	return b.EndCell(), nil
}

// BuildDict builds the raw 64-bit keyed dictionary used in vault storage and messages
func BuildDict(records map[uint64]*Record) (*cell.Dictionary, error) {
	dict := cell.NewDict(DictKeyBits)

	keys := make([]uint64, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		r := records[k]
		if r == nil {
			return nil, fmt.Errorf("%w: nil record at key %d", ErrMalformedRecord, k)
		}
		if r.QueryID != k {
			return nil, fmt.Errorf("%w: key %d holds record with query id %d", ErrMalformedRecord, k, r.QueryID)
		}
		value, err := Serialize(r)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", k, err)
		}
		key := cell.BeginCell().MustStoreUInt(k, DictKeyBits).EndCell()
		if err := dict.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set key %d: %w", k, err)
		}
	}
	return dict, nil
}

// DecodeDict is the inverse of EncodeDict
func DecodeDict(c *cell.Cell) (map[uint64]*Record, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil dictionary cell", ErrMalformedRecord)
	}
	s := c.BeginParse()
	dict, err := s.LoadDict(DictKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %v", ErrMalformedRecord, err)
	}
	if s.BitsLeft() != 0 || s.RefsNum() != 0 {
		return nil, fmt.Errorf("%w: trailing data after dictionary", ErrMalformedRecord)
	}
	return ReadDict(dict)
}

// ReadDict decodes every entry of a raw swap dictionary. A nil dictionary is empty.
func ReadDict(dict *cell.Dictionary) (map[uint64]*Record, error) {
	out := make(map[uint64]*Record)
	if dict == nil || dict.IsEmpty() {
		return out, nil
	}

	entries, err := dict.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %v", ErrMalformedRecord, err)
	}
	for _, kv := range entries {
		key, err := kv.Key.LoadUInt(DictKeyBits)
		if err != nil {
			return nil, fmt.Errorf("%w: dictionary key: %v", ErrMalformedRecord, err)
		}
		r, err := decodeRecord(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", key, err)
		}
		out[key] = r
	}
	return out, nil
}

// MarshalDict encodes records as a bag of cells
func MarshalDict(records map[uint64]*Record) ([]byte, error) {
	c, err := EncodeDict(records)
	if err != nil {
		return nil, err
	}
	return c.ToBOC(), nil
}

// UnmarshalDict decodes records from a bag of cells
func UnmarshalDict(data []byte) (map[uint64]*Record, error) {
	c, err := cell.FromBOC(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return DecodeDict(c)
}
