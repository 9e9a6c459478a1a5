package models

import "time"

// MonitorResult represents the classification of a transaction monitor session
type MonitorResult string

const (
	MonitorResultPending        MonitorResult = "TX_RESULT_PENDING"
	MonitorResultFullySuccess   MonitorResult = "TX_RESULT_FULLY_SUCCESS"
	MonitorResultPartialSuccess MonitorResult = "TX_RESULT_PARTIAL_SUCCESS"
	MonitorResultFailed         MonitorResult = "TX_RESULT_FAILED"
	MonitorResultError          MonitorResult = "TX_RESULT_ERROR"
)

// IsTerminal reports whether a session with this result stops polling
func (r MonitorResult) IsTerminal() bool {
	return r == MonitorResultFullySuccess
}

// DepositKind identifies which vault message carried a deposit
type DepositKind string

const (
	DepositKindRegister     DepositKind = "register_deposit"
	DepositKindNotification DepositKind = "transfer_notification"
)

// DepositEvent is a deposit observed on the vault contract
type DepositEvent struct {
	TransactionID              string      `json:"transactionId" db:"transaction_id"`
	Kind                       DepositKind `json:"kind" db:"kind"`
	QueryID                    string      `json:"queryId" db:"query_id"`
	SwapID                     string      `json:"swapId" db:"swap_id"`
	CounterpartyAddress        string      `json:"counterpartyAddress" db:"counterparty_address"`
	OwnerAddress               string      `json:"ownerAddress" db:"owner_address"`
	Amount                     string      `json:"amount" db:"amount"` // base units, decimal string
	WithdrawalDeadline         uint32      `json:"withdrawalDeadline" db:"withdrawal_deadline"`
	PublicWithdrawalDeadline   uint32      `json:"publicWithdrawalDeadline" db:"public_withdrawal_deadline"`
	CancellationDeadline       uint32      `json:"cancellationDeadline" db:"cancellation_deadline"`
	PublicCancellationDeadline uint32      `json:"publicCancellationDeadline" db:"public_cancellation_deadline"`
	Timestamp                  uint32      `json:"timestamp" db:"tx_timestamp"`
	BlockRef                   uint64      `json:"blockRef" db:"block_ref"` // logical time of the transaction
}

// MonitorSession is the persisted record of one monitor invocation
type MonitorSession struct {
	ID            int64         `db:"id"`
	SessionID     string        `db:"session_id"`
	UserAddress   string        `db:"user_address"`
	TxHash        string        `db:"tx_hash"`
	QueryID       string        `db:"query_id"`
	RequiredCount int           `db:"required_count"`
	SinceAt       time.Time     `db:"since_at"`
	TotalAmount   *string       `db:"total_amount"`
	Result        MonitorResult `db:"result"`
	MatchedCount  int           `db:"matched_count"`
	ErrorMessage  *string       `db:"error_message"`
	CreatedAt     time.Time     `db:"created_at"`
	FinishedAt    *time.Time    `db:"finished_at"`
}

// ListenerCursor tracks the last processed logical time for a vault
type ListenerCursor struct {
	VaultAddress string    `db:"vault_address"`
	LastLT       int64     `db:"last_lt"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// MonitorMatch is a transaction that counted towards a monitor session
type MonitorMatch struct {
	SessionID string `json:"-" db:"session_id"`
	TxHash    string `json:"txHash" db:"tx_hash"`
	QueryID   string `json:"queryId" db:"query_id"`
	TxTime    int64  `json:"timestamp" db:"tx_time"`
}
