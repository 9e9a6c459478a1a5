package swap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	testOwner  = "EQBJjO0MsE60REHkAoKBWts9y_tH0mow08qQ__aX-kXLHKll"
	testOwner2 = "EQD--f_k54qs29OKvLUZywXZYLQkDb6Avvv2Lxr5P4G-giua"

	// sha256 of 32 zero bytes
	zeroSecretSwapID = "0x66687aadf862bd776c8fc18b8e9f8e20089714856ee233b3902a591d0d5f2925"
)

func testRecord(t *testing.T, queryID uint64) *Record {
	t.Helper()
	id, err := ParseID(zeroSecretSwapID)
	require.NoError(t, err)
	return &Record{
		QueryID:      queryID,
		SwapID:       id,
		Counterparty: common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"),
		Owner:        address.MustParseAddr(testOwner),
		Amount:       big.NewInt(2000),
		CreatedAt:    1_750_000_000,
		Deadlines: Deadlines{
			Withdrawal:         1_750_000_600,
			PublicWithdrawal:   1_750_001_200,
			Cancellation:       1_750_001_800,
			PublicCancellation: 1_750_002_400,
		},
		Status: StatusInit,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	maxCoins := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 120), big.NewInt(1))

	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{name: "init record"},
		{name: "completed", mutate: func(r *Record) { r.Status = StatusCompleted }},
		{name: "refunded", mutate: func(r *Record) { r.Status = StatusRefunded }},
		{name: "max query id", mutate: func(r *Record) { r.QueryID = ^uint64(0) }},
		{name: "max coins", mutate: func(r *Record) { r.Amount = maxCoins }},
		{name: "other owner", mutate: func(r *Record) { r.Owner = address.MustParseAddr(testOwner2) }},
		{name: "zero counterparty", mutate: func(r *Record) { r.Counterparty = common.Address{} }},
		{name: "max deadlines", mutate: func(r *Record) {
			r.Deadlines = Deadlines{^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRecord(t, 42)
			if tt.mutate != nil {
				tt.mutate(r)
			}

			data, err := Marshal(r)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, r.Equal(got), "round trip mismatch: %+v != %+v", r, got)
		})
	}
}

func TestSerializeFixedLayoutSize(t *testing.T) {
	id, err := ParseID(zeroSecretSwapID)
	require.NoError(t, err)

	r := &Record{
		QueryID:      1,
		SwapID:       id,
		Counterparty: common.Address{},
		Owner:        address.MustParseAddr(testOwner),
		Amount:       big.NewInt(1_000_000_000),
		Status:       StatusInit,
	}

	c, err := Serialize(r)
	require.NoError(t, err)

	// 64 + 256 + 160 + 267 (std address) + 4+32 (coins, 4 byte value) + 2
	assert.Equal(t, uint(785), c.BitsSize())
	assert.EqualValues(t, 1, c.RefsNum())

	timing, err := c.BeginParse().LoadRef()
	require.NoError(t, err)
	assert.Equal(t, uint(160), timing.BitsLeft())

	got, err := Deserialize(c)
	require.NoError(t, err)
	assert.Equal(t, id, got.SwapID)
	assert.Equal(t, Deadlines{}, got.Deadlines)
	assert.Equal(t, StatusInit, got.Status)
	assert.Equal(t, int64(1_000_000_000), got.Amount.Int64())
}

func TestSerializeRejectsInvalidAmount(t *testing.T) {
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		r := testRecord(t, 1)
		r.Amount = amount
		_, err := Serialize(r)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	good, err := Serialize(testRecord(t, 7))
	require.NoError(t, err)

	tests := []struct {
		name string
		cell *cell.Cell
	}{
		{
			name: "only query id",
			cell: cell.BeginCell().MustStoreUInt(7, 64).EndCell(),
		},
		{
			name: "empty cell",
			cell: cell.BeginCell().EndCell(),
		},
		{
			name: "missing timing ref",
			cell: func() *cell.Cell {
				s := good.BeginParse()
				bits, err := s.LoadSlice(good.BitsSize())
				require.NoError(t, err)
				return cell.BeginCell().MustStoreSlice(bits, good.BitsSize()).EndCell()
			}(),
		},
		{
			name: "trailing bits",
			cell: func() *cell.Cell {
				s := good.BeginParse()
				bits, err := s.LoadSlice(good.BitsSize())
				require.NoError(t, err)
				ref, err := s.LoadRefCell()
				require.NoError(t, err)
				return cell.BeginCell().
					MustStoreSlice(bits, good.BitsSize()).
					MustStoreUInt(1, 1).
					MustStoreRef(ref).
					EndCell()
			}(),
		},
		{
			name: "short timing",
			cell: func() *cell.Cell {
				s := good.BeginParse()
				bits, err := s.LoadSlice(good.BitsSize())
				require.NoError(t, err)
				return cell.BeginCell().
					MustStoreSlice(bits, good.BitsSize()).
					MustStoreRef(cell.BeginCell().MustStoreUInt(0, 64).EndCell()).
					EndCell()
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.cell)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}

	_, err = Unmarshal([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDeserializeUnknownStatus(t *testing.T) {
	r := testRecord(t, 3)
	c, err := Serialize(r)
	require.NoError(t, err)

	// status occupies the last two bits of the root cell
	s := c.BeginParse()
	bits, err := s.LoadSlice(c.BitsSize() - 2)
	require.NoError(t, err)
	ref, err := s.LoadRefCell()
	require.NoError(t, err)

	bad := cell.BeginCell().
		MustStoreSlice(bits, c.BitsSize()-2).
		MustStoreUInt(3, 2).
		MustStoreRef(ref).
		EndCell()

	_, err = Deserialize(bad)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDictRoundTrip(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		c, err := EncodeDict(map[uint64]*Record{})
		require.NoError(t, err)
		assert.Equal(t, uint(1), c.BitsSize(), "empty dictionary must still carry its presence bit")
		assert.EqualValues(t, 0, c.RefsNum())

		got, err := DecodeDict(c)
		require.NoError(t, err)
		assert.Empty(t, got)

		data, err := MarshalDict(nil)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		got, err = UnmarshalDict(data)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("several records", func(t *testing.T) {
		records := map[uint64]*Record{}
		for _, k := range []uint64{0, 1, 42, 1 << 40, ^uint64(0)} {
			r := testRecord(t, k)
			r.Amount = new(big.Int).SetUint64(k%1000 + 1)
			records[k] = r
		}
		records[42].Status = StatusCompleted

		data, err := MarshalDict(records)
		require.NoError(t, err)

		got, err := UnmarshalDict(data)
		require.NoError(t, err)
		require.Len(t, got, len(records))
		for k, want := range records {
			assert.True(t, want.Equal(got[k]), "key %d", k)
		}
	})

	t.Run("key mismatch", func(t *testing.T) {
		_, err := EncodeDict(map[uint64]*Record{5: testRecord(t, 6)})
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})
}

func TestStatusTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		wantErr error
	}{
		{StatusInit, StatusCompleted, nil},
		{StatusInit, StatusRefunded, nil},
		{StatusInit, StatusInit, ErrInvalidStatus},
		{StatusCompleted, StatusRefunded, ErrTerminalStatus},
		{StatusCompleted, StatusCompleted, ErrTerminalStatus},
		{StatusRefunded, StatusCompleted, ErrTerminalStatus},
		{StatusRefunded, StatusInit, ErrTerminalStatus},
		{StatusInit, Status(3), ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("0x01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Big().Int64())
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", id.Hex())

	_, err = ParseID("")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, err = ParseID("0xzz")
	assert.ErrorIs(t, err, ErrInvalidID)

	fromBig, err := IDFromBig(id.Big())
	require.NoError(t, err)
	assert.Equal(t, id, fromBig)

	_, err = IDFromBig(new(big.Int).Lsh(big.NewInt(1), 256))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestDeadlinesOrdered(t *testing.T) {
	assert.True(t, Deadlines{1, 2, 3, 4}.Ordered())
	assert.False(t, Deadlines{1, 1, 3, 4}.Ordered())
	assert.False(t, Deadlines{}.Ordered())
}
