package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"

	"tonvault/internal/config"
	"tonvault/internal/models"
	"tonvault/internal/monitor"
	"tonvault/internal/service"
	"tonvault/internal/vault"
)

const (
	testVault = "EQD--f_k54qs29OKvLUZywXZYLQkDb6Avvv2Lxr5P4G-giua"
	testOwner = "EQBJjO0MsE60REHkAoKBWts9y_tH0mow08qQ__aX-kXLHKll"
)

type staticFetcher struct {
	txs []monitor.Transaction
}

func (f *staticFetcher) RecentTransactions(context.Context, string, int) ([]monitor.Transaction, error) {
	return f.txs, nil
}

type staticEvents struct {
	events []models.DepositEvent
}

func (s *staticEvents) GetDepositEventsByTransaction(context.Context, string) ([]models.DepositEvent, error) {
	return s.events, nil
}

func (s *staticEvents) GetDepositEventsBySwap(context.Context, string) ([]models.DepositEvent, error) {
	return s.events, nil
}

func newTestHandler(txs []monitor.Transaction, events []models.DepositEvent) *Handler {
	logger := zap.NewNop()
	monitorService := service.NewMonitorService(nil, &staticFetcher{txs: txs}, config.MonitorConfig{
		Interval:         time.Millisecond,
		TickBudget:       1,
		ListLimit:        30,
		Window:           120 * time.Second,
		QueryIDTolerance: 2000,
		RequiredCount:    1,
		CallTimeout:      time.Second,
		MaxSessions:      4,
	}, logger)
	swapService := service.NewSwapService(nil, address.MustParseAddr(testVault), logger)
	eventService := service.NewEventService(&staticEvents{events: events}, logger)
	evmService := service.NewEVMService(nil, config.EVMConfig{}, logger)
	return NewHandler(monitorService, swapService, eventService, evmService, logger)
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}

	if response.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", response.Version)
	}
}

func TestHandleTxMonitor(t *testing.T) {
	since := int64(1_700_000_000)
	confirmation := monitor.Transaction{
		Hash:       "abc",
		Timestamp:  since + 30,
		Success:    true,
		OpCode:     vault.OpExcesses,
		HasOpCode:  true,
		QueryID:    "12345",
		HasQueryID: true,
	}

	tests := []struct {
		name           string
		body           string
		txs            []monitor.Transaction
		expectedStatus int
		expectSuccess  bool
		expectedData   models.MonitorResult
		expectedError  string
	}{
		{
			name:           "missing user address",
			body:           `{"txHashbyTonConnect":"te6cc"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing required parameters",
		},
		{
			name:           "missing tx hash",
			body:           `{"userAddress":"` + testOwner + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing required parameters",
		},
		{
			name:           "invalid json",
			body:           `invalid json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request body",
		},
		{
			name:           "invalid since timestamp",
			body:           `{"userAddress":"` + testOwner + `","txHashbyTonConnect":"te6cc","sinceTimestamp":"yesterday"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "confirmed with numeric query id",
			body:           `{"userAddress":"` + testOwner + `","txHashbyTonConnect":"te6cc","queryId":12345,"sinceTimestamp":1700000000}`,
			txs:            []monitor.Transaction{confirmation},
			expectedStatus: http.StatusOK,
			expectSuccess:  true,
			expectedData:   models.MonitorResultFullySuccess,
		},
		{
			name:           "not confirmed",
			body:           `{"userAddress":"` + testOwner + `","txHashbyTonConnect":"te6cc","queryId":"12345","sinceTimestamp":"1700000000","requiredExcessOpcodeCount":1}`,
			expectedStatus: http.StatusOK,
			expectSuccess:  true,
			expectedData:   models.MonitorResultFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(tt.txs, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tx-monitor", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.HandleTxMonitor(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var response TxMonitorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if response.Success != tt.expectSuccess {
				t.Errorf("expected success %v, got %v", tt.expectSuccess, response.Success)
			}
			if tt.expectedData != "" && response.Data != tt.expectedData {
				t.Errorf("expected data '%s', got '%s'", tt.expectedData, response.Data)
			}
			if tt.expectedError != "" && response.Error != tt.expectedError {
				t.Errorf("expected error '%s', got '%s'", tt.expectedError, response.Error)
			}
			if tt.expectSuccess && response.SessionID == "" {
				t.Error("expected a session id")
			}
		})
	}
}

func TestParseSinceTimestamp(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)

	tests := []struct {
		name        string
		raw         string
		expected    time.Time
		expectError bool
	}{
		{name: "absent", raw: ``, expected: now},
		{name: "null", raw: `null`, expected: now},
		{name: "zero", raw: `0`, expected: now},
		{name: "unix seconds", raw: `1700000000`, expected: time.Unix(1_700_000_000, 0)},
		{name: "numeric string", raw: `"1700000000"`, expected: time.Unix(1_700_000_000, 0)},
		{name: "rfc3339", raw: `"2023-11-14T22:13:20Z"`, expected: time.Unix(1_700_000_000, 0)},
		{name: "garbage", raw: `"tomorrow"`, expectError: true},
		{name: "object", raw: `{}`, expectError: true},
		{name: "negative", raw: `-5`, expected: now},
		{name: "exponent", raw: `1e30`, expectError: true},
		{name: "fractional", raw: `1700000000.5`, expectError: true},
		{name: "nan", raw: `"NaN"`, expectError: true},
		{name: "infinity", raw: `"Inf"`, expectError: true},
		{name: "beyond int64", raw: `"99999999999999999999"`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSinceTimestamp(json.RawMessage(tt.raw), now)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestHandleDepositMessage(t *testing.T) {
	handler := newTestHandler(nil, nil)

	valid := `{
		"queryId": 42,
		"swapId": "0x01",
		"counterpartyAddress": "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
		"ownerAddress": "` + testOwner + `",
		"amount": "1000",
		"deadlines": {"withdrawal": 10, "publicWithdrawal": 20, "cancellation": 30, "publicCancellation": 40}
	}`

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"valid", valid, http.StatusOK},
		{"invalid json", "invalid json", http.StatusBadRequest},
		{"missing owner", strings.Replace(valid, testOwner, "", 1), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/swaps/deposit-message", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			handler.HandleDepositMessage(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var msg service.DepositMessage
			if err := json.NewDecoder(w.Body).Decode(&msg); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if msg.Destination != testVault {
				t.Errorf("expected destination %s, got %s", testVault, msg.Destination)
			}
			if msg.Payload == "" {
				t.Error("expected a payload")
			}
		})
	}
}

func TestRouterEvents(t *testing.T) {
	txID := strings.Repeat("ab", 32)
	events := []models.DepositEvent{{TransactionID: txID, Kind: models.DepositKindRegister, Amount: "5"}}
	router := SetupRouter(newTestHandler(nil, events), zap.NewNop())

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"by transaction", "/api/v1/events/" + txID, http.StatusOK},
		{"bad transaction id", "/api/v1/events/xyz", http.StatusBadRequest},
		{"by swap", "/api/v1/swaps/0x01/events", http.StatusOK},
		{"bad swap id", "/api/v1/swaps/zz/events", http.StatusBadRequest},
		{"bad evm hash", "/api/v1/evm/tx/0x12", http.StatusBadRequest},
		{"bad query id", "/api/v1/vault/swaps/abc", http.StatusBadRequest},
		{"bad escrow swap id", "/api/v1/evm/escrow/zz", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp EventsResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(resp.Events) != 1 || resp.Events[0].Amount != "5" {
				t.Errorf("unexpected events %+v", resp.Events)
			}
		})
	}
}

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()

	data := map[string]string{"key": "value"}
	respondJSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got '%s'", ct)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if result["key"] != "value" {
		t.Errorf("expected key 'value', got '%s'", result["key"])
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name            string
		statusCode      int
		message         string
		err             error
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "error without underlying error",
			statusCode:      http.StatusBadRequest,
			message:         "Bad request",
			expectedError:   "Bad request",
			expectedMessage: "Bad request",
		},
		{
			name:            "error with underlying error",
			statusCode:      http.StatusNotFound,
			message:         "Failed to get swap",
			err:             service.ErrNotFound,
			expectedError:   "Failed to get swap",
			expectedMessage: "Failed to get swap: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondError(w, tt.statusCode, tt.message, tt.err)

			if w.Code != tt.statusCode {
				t.Errorf("expected status %d, got %d", tt.statusCode, w.Code)
			}

			var errResp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if errResp.Error != tt.expectedError {
				t.Errorf("expected error '%s', got '%s'", tt.expectedError, errResp.Error)
			}
			if errResp.Message != tt.expectedMessage {
				t.Errorf("expected message '%s', got '%s'", tt.expectedMessage, errResp.Message)
			}
		})
	}
}
