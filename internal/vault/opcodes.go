package vault

import (
	"errors"

	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonvault/internal/swap"
)

// Operation codes understood by the vault and its jetton wallet
const (
	OpTransfer             uint32 = 0x0f8a7ea5
	OpTransferNotification uint32 = 0x7362d09c
	OpExcesses             uint32 = 0xd53276db
	OpRegisterDeposit      uint32 = 0x3a8f7c12
	OpWithdrawJetton       uint32 = 0x1f045490
	OpRefundJetton         uint32 = 0x1f045491
	OpChangeVaultData      uint32 = 0xf1b32984
	OpSendAdminMessage     uint32 = 0x78d5e3af
	OpChangeCodeAndData    uint32 = 0xc4a0912f
	OpChangeAdmin          uint32 = 0x3f9a72c4
	OpChangeContent        uint32 = 0x1d5e8b3f
)

// Send modes used for admin-forwarded messages
const (
	SendModePayFeesSeparately uint8 = 1
	SendModeCarryAllBalance   uint8 = 128
	SendModeDestroyIfZero     uint8 = 32
)

var (
	ErrInvalidAmount    = swap.ErrInvalidAmount
	ErrProtocolMismatch = errors.New("vault protocol mismatch")
	ErrSwapNotFound     = errors.New("swap not found")
	ErrUnexpectedOpcode = errors.New("unexpected opcode")
	ErrMalformedMessage = errors.New("malformed vault message")
	ErrMissingParameter = errors.New("missing message parameter")
)

// OpName returns a readable name for known opcodes
func OpName(op uint32) string {
	switch op {
	case OpTransfer:
		return "transfer"
	case OpTransferNotification:
		return "transfer_notification"
	case OpExcesses:
		return "excesses"
	case OpRegisterDeposit:
		return "register_deposit"
	case OpWithdrawJetton:
		return "withdraw_jetton"
	case OpRefundJetton:
		return "refund_jetton"
	case OpChangeVaultData:
		return "change_vault_data"
	case OpSendAdminMessage:
		return "send_admin_message"
	case OpChangeCodeAndData:
		return "change_code_and_data"
	case OpChangeAdmin:
		return "change_admin"
	case OpChangeContent:
		return "change_content"
	default:
		return "unknown"
	}
}

// Opcode reads the leading 32-bit operation code of a message body
func Opcode(body *cell.Cell) (uint32, bool) {
	if body == nil {
		return 0, false
	}
	s := body.BeginParse()
	if s.BitsLeft() < 32 {
		return 0, false
	}
	op, err := s.LoadUInt(32)
	if err != nil {
		return 0, false
	}
	return uint32(op), true
}
