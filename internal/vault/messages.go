package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonvault/internal/hashlock"
	"tonvault/internal/swap"
)

// Message builders encode bit-exact bodies for vault operations. They check
// only that amounts are positive and required fields are present; business
// rules and authorization are enforced by the contract.

// DepositTerms are the swap terms carried by every deposit registration
type DepositTerms struct {
	SwapID       swap.ID
	Counterparty common.Address
	Owner        *address.Address
	Deadlines    swap.Deadlines
}

// RegisterDepositParams describes a direct register_deposit message
type RegisterDepositParams struct {
	QueryID uint64
	Amount  *big.Int
	DepositTerms
}

// JettonTransferParams describes a jetton transfer sent to the owner's jetton wallet
type JettonTransferParams struct {
	QueryID             uint64
	Amount              *big.Int
	Destination         *address.Address
	ResponseDestination *address.Address
	ForwardTonAmount    *big.Int
	ForwardPayload      *cell.Cell
}

// WithdrawParams describes a withdraw_jetton message
type WithdrawParams struct {
	QueryID   uint64
	Recipient *address.Address
	Amount    *big.Int
	SwapID    *swap.ID // optional
}

// RefundParams describes a refund_jetton message
type RefundParams struct {
	QueryID   uint64
	Recipient *address.Address
	Amount    *big.Int
	Secret    hashlock.Secret
}

// VaultDataParams describes a change_vault_data message
type VaultDataParams struct {
	QueryID      uint64
	Stopped      bool
	JettonMaster *address.Address
	JettonWallet *address.Address
	Swaps        map[uint64]*swap.Record
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func storeTerms(b *cell.Builder, t DepositTerms) error {
	if t.Owner == nil {
		return fmt.Errorf("%w: owner address", ErrMissingParameter)
	}
	if err := b.StoreSlice(t.SwapID[:], 256); err != nil {
		return err
	}
	if err := b.StoreSlice(t.Counterparty.Bytes(), 160); err != nil {
		return err
	}
	if err := b.StoreAddr(t.Owner); err != nil {
		return err
	}
	return nil
}

func storeDeadlines(b *cell.Builder, d swap.Deadlines) error {
	for _, v := range []uint32{d.Withdrawal, d.PublicWithdrawal, d.Cancellation, d.PublicCancellation} {
		if err := b.StoreUInt(uint64(v), 32); err != nil {
			return err
		}
	}
	return nil
}

// RegisterDeposit encodes
// register_deposit#3a8f7c12 query_id:uint64 swap_id:uint256 counterparty:uint160
// owner:MsgAddress amount:Coins withdrawal:uint32 public_withdrawal:uint32
// cancellation:uint32 public_cancellation:uint32
func RegisterDeposit(p RegisterDepositParams) (*cell.Cell, error) {
	if err := checkAmount(p.Amount); err != nil {
		return nil, err
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpRegisterDeposit), 32).
		MustStoreUInt(p.QueryID, 64)
	if err := storeTerms(b, p.DepositTerms); err != nil {
		return nil, fmt.Errorf("failed to encode deposit terms: %w", err)
	}
	if err := b.StoreBigCoins(p.Amount); err != nil {
		return nil, fmt.Errorf("failed to encode amount: %w", err)
	}
	if err := storeDeadlines(b, p.Deadlines); err != nil {
		return nil, fmt.Errorf("failed to encode deadlines: %w", err)
	}
	return b.EndCell(), nil
}

// DepositForwardPayload encodes the payload a jetton transfer forwards to the
// vault: op:uint32 swap_id:uint256 counterparty:uint160 owner:MsgAddress
// followed by the four uint32 deadlines. The amount comes from the transfer.
func DepositForwardPayload(t DepositTerms) (*cell.Cell, error) {
	b := cell.BeginCell().MustStoreUInt(uint64(OpRegisterDeposit), 32)
	if err := storeTerms(b, t); err != nil {
		return nil, fmt.Errorf("failed to encode deposit terms: %w", err)
	}
	if err := storeDeadlines(b, t.Deadlines); err != nil {
		return nil, fmt.Errorf("failed to encode deadlines: %w", err)
	}
	return b.EndCell(), nil
}

// JettonTransfer encodes a TEP-74 transfer with no custom payload
func JettonTransfer(p JettonTransferParams) (*cell.Cell, error) {
	if err := checkAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.Destination == nil {
		return nil, fmt.Errorf("%w: destination address", ErrMissingParameter)
	}

	forwardTon := p.ForwardTonAmount
	if forwardTon == nil {
		forwardTon = big.NewInt(0)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpTransfer), 32).
		MustStoreUInt(p.QueryID, 64)
	if err := b.StoreBigCoins(p.Amount); err != nil {
		return nil, fmt.Errorf("failed to encode amount: %w", err)
	}
	if err := b.StoreAddr(p.Destination); err != nil {
		return nil, fmt.Errorf("failed to encode destination: %w", err)
	}
	if err := b.StoreAddr(p.ResponseDestination); err != nil {
		return nil, fmt.Errorf("failed to encode response destination: %w", err)
	}
	b.MustStoreBoolBit(false) // no custom payload
	if err := b.StoreBigCoins(forwardTon); err != nil {
		return nil, fmt.Errorf("failed to encode forward amount: %w", err)
	}
	if err := b.StoreMaybeRef(p.ForwardPayload); err != nil {
		return nil, fmt.Errorf("failed to encode forward payload: %w", err)
	}
	return b.EndCell(), nil
}

// DepositTransfer builds the jetton transfer that deposits amount into the
// vault and registers the swap in the same step
func DepositTransfer(queryID uint64, amount *big.Int, vault, response *address.Address, forwardTon *big.Int, t DepositTerms) (*cell.Cell, error) {
	payload, err := DepositForwardPayload(t)
	if err != nil {
		return nil, err
	}
	return JettonTransfer(JettonTransferParams{
		QueryID:             queryID,
		Amount:              amount,
		Destination:         vault,
		ResponseDestination: response,
		ForwardTonAmount:    forwardTon,
		ForwardPayload:      payload,
	})
}

// Withdraw encodes
// withdraw_jetton#1f045490 query_id:uint64 recipient:MsgAddress amount:Coins
// swap_id:(Maybe uint256)
func Withdraw(p WithdrawParams) (*cell.Cell, error) {
	if err := checkAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.Recipient == nil {
		return nil, fmt.Errorf("%w: recipient address", ErrMissingParameter)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpWithdrawJetton), 32).
		MustStoreUInt(p.QueryID, 64)
	if err := b.StoreAddr(p.Recipient); err != nil {
		return nil, fmt.Errorf("failed to encode recipient: %w", err)
	}
	if err := b.StoreBigCoins(p.Amount); err != nil {
		return nil, fmt.Errorf("failed to encode amount: %w", err)
	}
	b.MustStoreBoolBit(p.SwapID != nil)
	if p.SwapID != nil {
		b.MustStoreSlice(p.SwapID[:], 256)
	}
	return b.EndCell(), nil
}

// Refund encodes
// refund_jetton#1f045491 query_id:uint64 recipient:MsgAddress amount:Coins ^secret
func Refund(p RefundParams) (*cell.Cell, error) {
	if err := checkAmount(p.Amount); err != nil {
		return nil, err
	}
	if p.Recipient == nil {
		return nil, fmt.Errorf("%w: recipient address", ErrMissingParameter)
	}
	proof, err := hashlock.SecretCell(p.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encode secret proof: %w", err)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpRefundJetton), 32).
		MustStoreUInt(p.QueryID, 64)
	if err := b.StoreAddr(p.Recipient); err != nil {
		return nil, fmt.Errorf("failed to encode recipient: %w", err)
	}
	if err := b.StoreBigCoins(p.Amount); err != nil {
		return nil, fmt.Errorf("failed to encode amount: %w", err)
	}
	return b.MustStoreRef(proof).EndCell(), nil
}

// ==================== Admin ====================

// ChangeAdmin encodes change_admin#3f9a72c4 query_id:uint64 new_admin:MsgAddress
func ChangeAdmin(queryID uint64, newAdmin *address.Address) (*cell.Cell, error) {
	if newAdmin == nil {
		return nil, fmt.Errorf("%w: new admin address", ErrMissingParameter)
	}
	b := cell.BeginCell().
		MustStoreUInt(uint64(OpChangeAdmin), 32).
		MustStoreUInt(queryID, 64)
	if err := b.StoreAddr(newAdmin); err != nil {
		return nil, fmt.Errorf("failed to encode admin: %w", err)
	}
	return b.EndCell(), nil
}

// ChangeContent encodes change_content#1d5e8b3f query_id:uint64 ^content
func ChangeContent(queryID uint64, content *cell.Cell) (*cell.Cell, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: content cell", ErrMissingParameter)
	}
	return cell.BeginCell().
		MustStoreUInt(uint64(OpChangeContent), 32).
		MustStoreUInt(queryID, 64).
		MustStoreRef(content).
		EndCell(), nil
}

// ChangeVaultData encodes
// change_vault_data#f1b32984 query_id:uint64 stopped:Bool jetton_master:MsgAddress
// jetton_wallet:MsgAddress swaps:(HashmapE 64 SwapRecord)
func ChangeVaultData(p VaultDataParams) (*cell.Cell, error) {
	swaps, err := swap.BuildDict(p.Swaps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode swaps: %w", err)
	}

	b := cell.BeginCell().
		MustStoreUInt(uint64(OpChangeVaultData), 32).
		MustStoreUInt(p.QueryID, 64).
		MustStoreBoolBit(p.Stopped)
	if err := b.StoreAddr(p.JettonMaster); err != nil {
		return nil, fmt.Errorf("failed to encode jetton master: %w", err)
	}
	if err := b.StoreAddr(p.JettonWallet); err != nil {
		return nil, fmt.Errorf("failed to encode jetton wallet: %w", err)
	}
	if err := b.StoreDict(swaps); err != nil {
		return nil, fmt.Errorf("failed to store swaps: %w", err)
	}
	return b.EndCell(), nil
}

// ChangeCodeAndData encodes change_code_and_data#c4a0912f query_id:uint64 ^code ^data
func ChangeCodeAndData(queryID uint64, code, data *cell.Cell) (*cell.Cell, error) {
	if code == nil || data == nil {
		return nil, fmt.Errorf("%w: code and data cells", ErrMissingParameter)
	}
	return cell.BeginCell().
		MustStoreUInt(uint64(OpChangeCodeAndData), 32).
		MustStoreUInt(queryID, 64).
		MustStoreRef(code).
		MustStoreRef(data).
		EndCell(), nil
}

// AdminMessage encodes send_admin_message#78d5e3af query_id:uint64 ^msg mode:uint8;
// the vault sends msg on behalf of the admin with the given send mode
func AdminMessage(queryID uint64, msg *cell.Cell, mode uint8) (*cell.Cell, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: forwarded message", ErrMissingParameter)
	}
	return cell.BeginCell().
		MustStoreUInt(uint64(OpSendAdminMessage), 32).
		MustStoreUInt(queryID, 64).
		MustStoreRef(msg).
		MustStoreUInt(uint64(mode), 8).
		EndCell(), nil
}

// internalMessage encodes a bounceable internal message header with the body
// in a reference. Fees, lt and created_at are left for the sender to fill.
func internalMessage(to *address.Address, value *big.Int, body *cell.Cell) (*cell.Cell, error) {
	if to == nil {
		return nil, fmt.Errorf("%w: message destination", ErrMissingParameter)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	if body == nil {
		body = cell.BeginCell().EndCell()
	}

	// int_msg_info$0 ihr_disabled:1 bounce:1 bounced:0 src:addr_none
	b := cell.BeginCell().MustStoreUInt(0x18, 6)
	if err := b.StoreAddr(to); err != nil {
		return nil, err
	}
	if err := b.StoreBigCoins(value); err != nil {
		return nil, err
	}
	// extra currencies, fees, created_lt, created_at, no state init, body as ref
	b.MustStoreBigUInt(big.NewInt(1), 1+4+4+64+32+1+1)
	return b.MustStoreRef(body).EndCell(), nil
}

// Destroy asks the vault to send its whole balance to recipient and delete itself
func Destroy(queryID uint64, recipient *address.Address, value *big.Int) (*cell.Cell, error) {
	msg, err := internalMessage(recipient, value, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode destroy message: %w", err)
	}
	return AdminMessage(queryID, msg, SendModeCarryAllBalance|SendModeDestroyIfZero)
}

// WithdrawVaultJetton asks the vault to move jettons out of its own wallet
func WithdrawVaultJetton(queryID uint64, vaultWallet, to, response *address.Address, amount, gas *big.Int) (*cell.Cell, error) {
	transfer, err := JettonTransfer(JettonTransferParams{
		QueryID:             0,
		Amount:              amount,
		Destination:         to,
		ResponseDestination: response,
	})
	if err != nil {
		return nil, err
	}
	msg, err := internalMessage(vaultWallet, gas, transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallet message: %w", err)
	}
	return AdminMessage(queryID, msg, SendModePayFeesSeparately)
}
