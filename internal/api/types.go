package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"tonvault/internal/models"
	"tonvault/internal/swap"
)

// FlexString accepts a JSON string or number and keeps its text
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// ==================== Transaction Monitor ====================

// TxMonitorRequest represents a request to watch for confirmations
type TxMonitorRequest struct {
	UserAddress               string          `json:"userAddress"`
	TxHashByTonConnect        string          `json:"txHashbyTonConnect"`
	QueryID                   FlexString      `json:"queryId,omitempty"`
	RequiredExcessOpcodeCount int             `json:"requiredExcessOpcodeCount,omitempty"`
	SinceTimestamp            json.RawMessage `json:"sinceTimestamp,omitempty"` // UNIX seconds or RFC 3339
	TotalAmount               FlexString      `json:"totalAmount,omitempty"`
}

// TxMonitorResponse is the monitor endpoint envelope. Data holds the final
// result on success.
type TxMonitorResponse struct {
	Success   bool                 `json:"success"`
	Data      models.MonitorResult `json:"data,omitempty"`
	SessionID string               `json:"sessionId,omitempty"`
	Matched   int                  `json:"matched,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// ==================== Swaps ====================

// DepositMessageRequest represents a request to prepare a deposit transfer
type DepositMessageRequest struct {
	QueryID             FlexString     `json:"queryId"`
	SwapID              string         `json:"swapId"`
	CounterpartyAddress string         `json:"counterpartyAddress"`
	OwnerAddress        string         `json:"ownerAddress"`
	Amount              FlexString     `json:"amount"` // jetton base units
	ResponseDestination string         `json:"responseDestination,omitempty"`
	ForwardTonAmount    FlexString     `json:"forwardTonAmount,omitempty"` // nanotons
	Deadlines           swap.Deadlines `json:"deadlines"`
}

// EventsResponse wraps a list of deposit events
type EventsResponse struct {
	Events []models.DepositEvent `json:"events"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==================== Health Check ====================

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
