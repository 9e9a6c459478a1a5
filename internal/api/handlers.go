package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"tonvault/internal/monitor"
	"tonvault/internal/service"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	monitorService *service.MonitorService
	swapService    *service.SwapService
	eventService   *service.EventService
	evmService     *service.EVMService
	logger         *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	monitorService *service.MonitorService,
	swapService *service.SwapService,
	eventService *service.EventService,
	evmService *service.EVMService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		monitorService: monitorService,
		swapService:    swapService,
		eventService:   eventService,
		evmService:     evmService,
		logger:         logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Transaction Monitor ====================

// HandleTxMonitor handles POST /api/v1/tx-monitor
// Blocks until the confirmations arrive or the tick budget is spent
func (h *Handler) HandleTxMonitor(w http.ResponseWriter, r *http.Request) {
	var req TxMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, TxMonitorResponse{Error: "Invalid request body"})
		return
	}
	if req.UserAddress == "" || req.TxHashByTonConnect == "" {
		respondJSON(w, http.StatusBadRequest, TxMonitorResponse{Error: "Missing required parameters"})
		return
	}

	since, err := parseSinceTimestamp(req.SinceTimestamp, time.Now())
	if err != nil {
		respondJSON(w, http.StatusBadRequest, TxMonitorResponse{Error: err.Error()})
		return
	}

	report, err := h.monitorService.Monitor(r.Context(), service.MonitorRequest{
		TxHash:      req.TxHashByTonConnect,
		TotalAmount: string(req.TotalAmount),
		Request: monitor.Request{
			UserAddress:   req.UserAddress,
			QueryID:       string(req.QueryID),
			RequiredCount: req.RequiredExcessOpcodeCount,
			Since:         since,
		},
	})
	if errors.Is(err, service.ErrTooManySessions) {
		respondJSON(w, http.StatusServiceUnavailable, TxMonitorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Monitoring failed",
			zap.String("user_address", req.UserAddress),
			zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, TxMonitorResponse{Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, TxMonitorResponse{
		Success:   true,
		Data:      report.Result,
		SessionID: report.SessionID,
		Matched:   report.Matched,
	})
}

// parseSinceTimestamp accepts UNIX seconds as a number or numeric string, or
// an RFC 3339 string. Absent values mean now.
func parseSinceTimestamp(raw json.RawMessage, now time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return now, nil
	}

	var text FlexString
	if err := json.Unmarshal(raw, &text); err != nil {
		return time.Time{}, fmt.Errorf("invalid sinceTimestamp: %v", err)
	}
	s := string(text)
	if s == "" {
		return now, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return now, nil
		}
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid sinceTimestamp %q", s)
	}
	return t, nil
}

// ==================== Deposit Events ====================

// HandleGetTransactionEvents handles GET /api/v1/events/{transactionId}
func (h *Handler) HandleGetTransactionEvents(w http.ResponseWriter, r *http.Request) {
	txID := mux.Vars(r)["transactionId"]

	events, err := h.eventService.ByTransaction(r.Context(), txID)
	if err != nil {
		h.respondServiceError(w, "Failed to get events", err)
		return
	}
	respondJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// HandleGetSwapEvents handles GET /api/v1/swaps/{swapId}/events
func (h *Handler) HandleGetSwapEvents(w http.ResponseWriter, r *http.Request) {
	swapID := mux.Vars(r)["swapId"]

	events, err := h.eventService.BySwap(r.Context(), swapID)
	if err != nil {
		h.respondServiceError(w, "Failed to get events", err)
		return
	}
	respondJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// ==================== Swaps ====================

// HandleDepositMessage handles POST /api/v1/swaps/deposit-message
// Returns the unsigned jetton transfer that deposits into the vault
func (h *Handler) HandleDepositMessage(w http.ResponseWriter, r *http.Request) {
	var req DepositMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.swapService.DepositMessage(service.DepositMessageInput{
		QueryID:             string(req.QueryID),
		SwapID:              req.SwapID,
		Counterparty:        req.CounterpartyAddress,
		Owner:               req.OwnerAddress,
		Amount:              string(req.Amount),
		ResponseDestination: req.ResponseDestination,
		ForwardTonAmount:    string(req.ForwardTonAmount),
		Deadlines:           req.Deadlines,
	})
	if err != nil {
		h.respondServiceError(w, "Failed to build deposit message", err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// HandleGetSwap handles GET /api/v1/vault/swaps/{queryId}
func (h *Handler) HandleGetSwap(w http.ResponseWriter, r *http.Request) {
	queryID := mux.Vars(r)["queryId"]

	view, err := h.swapService.GetSwap(r.Context(), queryID)
	if err != nil {
		h.respondServiceError(w, "Failed to get swap", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// HandleGetVaultState handles GET /api/v1/vault/state
func (h *Handler) HandleGetVaultState(w http.ResponseWriter, r *http.Request) {
	view, err := h.swapService.VaultState(r.Context())
	if err != nil {
		h.respondServiceError(w, "Failed to get vault state", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ==================== EVM ====================

// HandleGetEVMTx handles GET /api/v1/evm/tx/{hash}
func (h *Handler) HandleGetEVMTx(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	view, err := h.evmService.TxStatus(r.Context(), hash)
	if err != nil {
		h.respondServiceError(w, "Failed to get transaction status", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// HandleGetEscrowAddress handles GET /api/v1/evm/escrow/{swapId}
func (h *Handler) HandleGetEscrowAddress(w http.ResponseWriter, r *http.Request) {
	swapID := mux.Vars(r)["swapId"]

	view, err := h.evmService.EscrowAddress(swapID)
	if err != nil {
		h.respondServiceError(w, "Failed to compute escrow address", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ==================== Helper Functions ====================

func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	default:
		h.logger.Error(message, zap.Error(err))
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already written
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
