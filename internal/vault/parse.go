package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonvault/internal/swap"
)

// RegisterDepositMessage is a decoded register_deposit body
type RegisterDepositMessage struct {
	QueryID uint64
	Amount  *big.Int
	DepositTerms
}

// TransferNotification is a decoded transfer_notification body
type TransferNotification struct {
	QueryID        uint64
	Amount         *big.Int
	Sender         *address.Address
	ForwardPayload *cell.Cell // nil when the transfer carried none
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, field, err)
}

func expectOp(s *cell.Slice, want uint32) error {
	op, err := s.LoadUInt(32)
	if err != nil {
		return malformed("op", err)
	}
	if uint32(op) != want {
		return fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrUnexpectedOpcode, op, want)
	}
	return nil
}

func loadTerms(s *cell.Slice) (DepositTerms, error) {
	var t DepositTerms

	id, err := s.LoadSlice(256)
	if err != nil {
		return t, malformed("swap_id", err)
	}
	copy(t.SwapID[:], id)

	counterparty, err := s.LoadSlice(160)
	if err != nil {
		return t, malformed("counterparty", err)
	}
	t.Counterparty = common.BytesToAddress(counterparty)

	if t.Owner, err = s.LoadAddr(); err != nil {
		return t, malformed("owner", err)
	}
	return t, nil
}

func loadDeadlines(s *cell.Slice) (swap.Deadlines, error) {
	var d swap.Deadlines
	for _, f := range []*uint32{&d.Withdrawal, &d.PublicWithdrawal, &d.Cancellation, &d.PublicCancellation} {
		v, err := s.LoadUInt(32)
		if err != nil {
			return d, malformed("deadlines", err)
		}
		*f = uint32(v)
	}
	return d, nil
}

// ParseRegisterDeposit decodes a body built by RegisterDeposit
func ParseRegisterDeposit(body *cell.Cell) (*RegisterDepositMessage, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}
	s := body.BeginParse()
	if err := expectOp(s, OpRegisterDeposit); err != nil {
		return nil, err
	}

	m := &RegisterDepositMessage{}
	var err error
	if m.QueryID, err = s.LoadUInt(64); err != nil {
		return nil, malformed("query_id", err)
	}
	if m.DepositTerms, err = loadTerms(s); err != nil {
		return nil, err
	}
	if m.Amount, err = s.LoadBigCoins(); err != nil {
		return nil, malformed("amount", err)
	}
	if m.Deadlines, err = loadDeadlines(s); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseDepositForwardPayload decodes a payload built by DepositForwardPayload
func ParseDepositForwardPayload(payload *cell.Cell) (*DepositTerms, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	s := payload.BeginParse()
	if err := expectOp(s, OpRegisterDeposit); err != nil {
		return nil, err
	}

	t, err := loadTerms(s)
	if err != nil {
		return nil, err
	}
	if t.Deadlines, err = loadDeadlines(s); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseTransferNotification decodes
// transfer_notification#7362d09c query_id:uint64 amount:Coins sender:MsgAddress
// forward_payload:(Either Cell ^Cell)
func ParseTransferNotification(body *cell.Cell) (*TransferNotification, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedMessage)
	}
	s := body.BeginParse()
	if err := expectOp(s, OpTransferNotification); err != nil {
		return nil, err
	}

	n := &TransferNotification{}
	var err error
	if n.QueryID, err = s.LoadUInt(64); err != nil {
		return nil, malformed("query_id", err)
	}
	if n.Amount, err = s.LoadBigCoins(); err != nil {
		return nil, malformed("amount", err)
	}
	if n.Sender, err = s.LoadAddr(); err != nil {
		return nil, malformed("sender", err)
	}

	if s.BitsLeft() == 0 {
		return n, nil
	}
	inRef, err := s.LoadBoolBit()
	if err != nil {
		return nil, malformed("forward_payload", err)
	}
	if inRef {
		if n.ForwardPayload, err = s.LoadRefCell(); err != nil {
			return nil, malformed("forward_payload", err)
		}
		return n, nil
	}
	if s.BitsLeft() == 0 && s.RefsNum() == 0 {
		return n, nil
	}
	if n.ForwardPayload, err = s.ToCell(); err != nil {
		return nil, malformed("forward_payload", err)
	}
	return n, nil
}
