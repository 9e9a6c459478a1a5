package listener

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/xssnick/tonutils-go/tvm/cell"

	"tonvault/internal/models"
	"tonvault/internal/vault"
)

// Transaction is the part of a vault transaction the listener inspects
type Transaction struct {
	Hash []byte
	LT   uint64
	Now  uint32
	Body *cell.Cell // inbound internal message body, nil for external or empty messages
}

// Parse extracts a deposit from a vault transaction. Transactions that carry
// no deposit yield (nil, nil): unknown opcodes, transfer notifications without
// a forward payload and forward payloads for other operations.
func Parse(tx Transaction) (*models.DepositEvent, error) {
	op, ok := vault.Opcode(tx.Body)
	if !ok {
		return nil, nil
	}

	switch op {
	case vault.OpRegisterDeposit:
		msg, err := vault.ParseRegisterDeposit(tx.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse register_deposit: %w", err)
		}
		return newEvent(tx, models.DepositKindRegister, msg.QueryID, msg.Amount, msg.DepositTerms), nil

	case vault.OpTransferNotification:
		n, err := vault.ParseTransferNotification(tx.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transfer_notification: %w", err)
		}
		if n.ForwardPayload == nil {
			return nil, nil
		}
		if fwd, ok := vault.Opcode(n.ForwardPayload); !ok || fwd != vault.OpRegisterDeposit {
			return nil, nil
		}
		terms, err := vault.ParseDepositForwardPayload(n.ForwardPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse deposit forward payload: %w", err)
		}
		return newEvent(tx, models.DepositKindNotification, n.QueryID, n.Amount, *terms), nil
	}

	return nil, nil
}

func newEvent(tx Transaction, kind models.DepositKind, queryID uint64, amount *big.Int, t vault.DepositTerms) *models.DepositEvent {
	ev := &models.DepositEvent{
		TransactionID:              hex.EncodeToString(tx.Hash),
		Kind:                       kind,
		QueryID:                    strconv.FormatUint(queryID, 10),
		SwapID:                     t.SwapID.Hex(),
		CounterpartyAddress:        t.Counterparty.Hex(),
		Amount:                     "0",
		WithdrawalDeadline:         t.Deadlines.Withdrawal,
		PublicWithdrawalDeadline:   t.Deadlines.PublicWithdrawal,
		CancellationDeadline:       t.Deadlines.Cancellation,
		PublicCancellationDeadline: t.Deadlines.PublicCancellation,
		Timestamp:                  tx.Now,
		BlockRef:                   tx.LT,
	}
	if t.Owner != nil {
		ev.OwnerAddress = t.Owner.String()
	}
	if amount != nil {
		ev.Amount = amount.String()
	}
	return ev
}
