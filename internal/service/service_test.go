package service

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"go.uber.org/zap"

	"tonvault/internal/blockchain/evm"
	"tonvault/internal/config"
	"tonvault/internal/models"
	"tonvault/internal/monitor"
	"tonvault/internal/swap"
	"tonvault/internal/vault"
)

const (
	testVault        = "EQD--f_k54qs29OKvLUZywXZYLQkDb6Avvv2Lxr5P4G-giua"
	testOwner        = "EQBJjO0MsE60REHkAoKBWts9y_tH0mow08qQ__aX-kXLHKll"
	testCounterparty = "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"
	testSwapID       = "0x5f0f6c3e4a9b2d7c8e1f0a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f"
)

// ==================== Monitor Service ====================

type fakeFetcher struct {
	txs     []monitor.Transaction
	calls   int
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) RecentTransactions(_ context.Context, _ string, _ int) ([]monitor.Transaction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.txs, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	created  []*models.MonitorSession
	finished map[string]models.MonitorResult
	matches  map[string][]models.MonitorMatch
	errMsgs  map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		finished: map[string]models.MonitorResult{},
		matches:  map[string][]models.MonitorMatch{},
		errMsgs:  map[string]string{},
	}
}

func (f *fakeSessions) CreateMonitorSession(_ context.Context, s *models.MonitorSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessions) FinishMonitorSession(_ context.Context, id string, result models.MonitorResult, matches []models.MonitorMatch, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[id] = result
	f.matches[id] = matches
	f.errMsgs[id] = errMsg
	return nil
}

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		Interval:         time.Millisecond,
		TickBudget:       2,
		ListLimit:        30,
		Window:           120 * time.Second,
		QueryIDTolerance: 2000,
		RequiredCount:    1,
		CallTimeout:      time.Second,
		MaxSessions:      1,
	}
}

func excess(hash string, at time.Time, queryID string) monitor.Transaction {
	return monitor.Transaction{
		Hash:       hash,
		Timestamp:  at.Unix(),
		Success:    true,
		OpCode:     vault.OpExcesses,
		HasOpCode:  true,
		QueryID:    queryID,
		HasQueryID: true,
	}
}

func TestMonitorService_Monitor(t *testing.T) {
	since := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name          string
		txs           []monitor.Transaction
		queryID       string
		required      int
		expected      models.MonitorResult
		expectMatches int
	}{
		{
			name:          "single confirmation",
			txs:           []monitor.Transaction{excess("a", since.Add(10*time.Second), "5")},
			queryID:       "5",
			expected:      models.MonitorResultFullySuccess,
			expectMatches: 1,
		},
		{
			name: "partial confirmation",
			txs: []monitor.Transaction{
				excess("a", since.Add(10*time.Second), "5"),
			},
			queryID:       "5",
			required:      2,
			expected:      models.MonitorResultPartialSuccess,
			expectMatches: 1,
		},
		{
			name:     "nothing in window",
			txs:      []monitor.Transaction{excess("a", since.Add(-time.Second), "5")},
			queryID:  "5",
			expected: models.MonitorResultFailed,
		},
		{
			name:          "default query id",
			txs:           []monitor.Transaction{excess("a", since, "1500")},
			expected:      models.MonitorResultFullySuccess,
			expectMatches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeSessions()
			fetcher := &fakeFetcher{txs: tt.txs}
			svc := NewMonitorService(store, fetcher, testMonitorConfig(), zap.NewNop())

			report, err := svc.Monitor(context.Background(), MonitorRequest{
				TxHash:      "boc-hash",
				TotalAmount: "1000",
				Request: monitor.Request{
					UserAddress:   testOwner,
					QueryID:       tt.queryID,
					RequiredCount: tt.required,
					Since:         since,
				},
			})
			if err != nil {
				t.Fatalf("Monitor() error = %v", err)
			}
			if report.Result != tt.expected {
				t.Errorf("Result = %s, expected %s", report.Result, tt.expected)
			}
			if report.Matched != tt.expectMatches {
				t.Errorf("Matched = %d, expected %d", report.Matched, tt.expectMatches)
			}

			if len(store.created) != 1 {
				t.Fatalf("created %d sessions, expected 1", len(store.created))
			}
			created := store.created[0]
			if created.SessionID != report.SessionID {
				t.Errorf("session id mismatch: %s vs %s", created.SessionID, report.SessionID)
			}
			if created.Result != models.MonitorResultPending {
				t.Errorf("created with result %s", created.Result)
			}
			if created.TotalAmount == nil || *created.TotalAmount != "1000" {
				t.Errorf("total amount not recorded")
			}
			if tt.queryID == "" && created.QueryID != "0" {
				t.Errorf("QueryID = %q, expected default 0", created.QueryID)
			}
			if store.finished[report.SessionID] != tt.expected {
				t.Errorf("finished with %s, expected %s", store.finished[report.SessionID], tt.expected)
			}
			if len(store.matches[report.SessionID]) != tt.expectMatches {
				t.Errorf("persisted %d matches", len(store.matches[report.SessionID]))
			}
		})
	}
}

func TestMonitorService_SessionLimit(t *testing.T) {
	fetcher := &fakeFetcher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cfg := testMonitorConfig()
	cfg.TickBudget = 1
	svc := NewMonitorService(nil, fetcher, cfg, zap.NewNop())

	req := MonitorRequest{Request: monitor.Request{UserAddress: testOwner, Since: time.Now()}}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Monitor(context.Background(), req)
		done <- err
	}()
	<-fetcher.started

	if _, err := svc.Monitor(context.Background(), req); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("second session error = %v, expected ErrTooManySessions", err)
	}

	close(fetcher.release)
	if err := <-done; err != nil {
		t.Errorf("first session error = %v", err)
	}
}

// ==================== Swap Service ====================

func validDepositInput() DepositMessageInput {
	return DepositMessageInput{
		QueryID:      "42",
		SwapID:       testSwapID,
		Counterparty: testCounterparty,
		Owner:        testOwner,
		Amount:       "1000000000",
		Deadlines: swap.Deadlines{
			Withdrawal:         1_700_000_100,
			PublicWithdrawal:   1_700_000_200,
			Cancellation:       1_700_000_300,
			PublicCancellation: 1_700_000_400,
		},
	}
}

func TestSwapService_DepositMessage(t *testing.T) {
	svc := NewSwapService(nil, address.MustParseAddr(testVault), zap.NewNop())

	msg, err := svc.DepositMessage(validDepositInput())
	if err != nil {
		t.Fatalf("DepositMessage() error = %v", err)
	}
	if msg.Destination != testVault {
		t.Errorf("Destination = %s", msg.Destination)
	}

	raw, err := base64.StdEncoding.DecodeString(msg.Payload)
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	body, err := cell.FromBOC(raw)
	if err != nil {
		t.Fatalf("payload is not a BOC: %v", err)
	}
	if op, ok := vault.Opcode(body); !ok || op != vault.OpTransfer {
		t.Errorf("payload opcode = %#x", op)
	}

	raw, _ = base64.StdEncoding.DecodeString(msg.ForwardPayload)
	fwd, err := cell.FromBOC(raw)
	if err != nil {
		t.Fatalf("forward payload is not a BOC: %v", err)
	}
	terms, err := vault.ParseDepositForwardPayload(fwd)
	if err != nil {
		t.Fatalf("ParseDepositForwardPayload() error = %v", err)
	}
	if terms.SwapID.Hex() != msg.SwapID {
		t.Errorf("swap id = %s, expected %s", terms.SwapID.Hex(), msg.SwapID)
	}
	if terms.Counterparty != common.HexToAddress(testCounterparty) {
		t.Errorf("counterparty = %s", terms.Counterparty.Hex())
	}
}

func TestSwapService_DepositMessageValidation(t *testing.T) {
	svc := NewSwapService(nil, address.MustParseAddr(testVault), zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*DepositMessageInput)
	}{
		{"bad query id", func(in *DepositMessageInput) { in.QueryID = "-1" }},
		{"bad swap id", func(in *DepositMessageInput) { in.SwapID = "xyz" }},
		{"bad counterparty", func(in *DepositMessageInput) { in.Counterparty = "0x1234" }},
		{"bad owner", func(in *DepositMessageInput) { in.Owner = "not-an-address" }},
		{"zero amount", func(in *DepositMessageInput) { in.Amount = "0" }},
		{"unordered deadlines", func(in *DepositMessageInput) { in.Deadlines.Cancellation = 1 }},
		{"bad forward amount", func(in *DepositMessageInput) { in.ForwardTonAmount = "abc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validDepositInput()
			tt.mutate(&in)
			if _, err := svc.DepositMessage(in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, expected ErrInvalidInput", err)
			}
		})
	}
}

type fakeVault struct {
	state *vault.VaultConfig
	err   error
}

func (f *fakeVault) ReadVaultState(context.Context) (*vault.VaultConfig, error) {
	return f.state, f.err
}

func (f *fakeVault) ReadSwapRecord(_ context.Context, queryID uint64) (*swap.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.state.Swaps[queryID]
	if !ok {
		return nil, vault.ErrSwapNotFound
	}
	return r, nil
}

func TestSwapService_GetSwap(t *testing.T) {
	id, _ := swap.ParseID(testSwapID)
	reader := &fakeVault{state: &vault.VaultConfig{
		Swaps: map[uint64]*swap.Record{
			7: {
				QueryID:      7,
				SwapID:       id,
				Counterparty: common.HexToAddress(testCounterparty),
				Owner:        address.MustParseAddr(testOwner),
				Amount:       big.NewInt(500),
				Status:       swap.StatusCompleted,
			},
		},
	}}
	svc := NewSwapService(reader, address.MustParseAddr(testVault), zap.NewNop())

	view, err := svc.GetSwap(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetSwap() error = %v", err)
	}
	if view.Amount != "500" || view.Status != "completed" || view.SwapID != id.Hex() {
		t.Errorf("unexpected view %+v", view)
	}

	if _, err := svc.GetSwap(context.Background(), "8"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing swap error = %v, expected ErrNotFound", err)
	}
	if _, err := svc.GetSwap(context.Background(), "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad query id error = %v, expected ErrInvalidInput", err)
	}
}

// ==================== Event Service ====================

type fakeEvents struct {
	byTx   map[string][]models.DepositEvent
	bySwap map[string][]models.DepositEvent
}

func (f *fakeEvents) GetDepositEventsByTransaction(_ context.Context, id string) ([]models.DepositEvent, error) {
	return f.byTx[id], nil
}

func (f *fakeEvents) GetDepositEventsBySwap(_ context.Context, id string) ([]models.DepositEvent, error) {
	return f.bySwap[id], nil
}

func TestEventService(t *testing.T) {
	txID := "aa00000000000000000000000000000000000000000000000000000000000001"
	ev := models.DepositEvent{TransactionID: txID, SwapID: testSwapID, Amount: "10"}
	svc := NewEventService(&fakeEvents{
		byTx:   map[string][]models.DepositEvent{txID: {ev}},
		bySwap: map[string][]models.DepositEvent{testSwapID: {ev}},
	}, zap.NewNop())

	events, err := svc.ByTransaction(context.Background(), "0x"+txID)
	if err != nil || len(events) != 1 {
		t.Fatalf("ByTransaction() = %v, %v", events, err)
	}
	if _, err := svc.ByTransaction(context.Background(), "abc"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short id error = %v, expected ErrInvalidInput", err)
	}
	other := "bb00000000000000000000000000000000000000000000000000000000000001"
	if _, err := svc.ByTransaction(context.Background(), other); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id error = %v, expected ErrNotFound", err)
	}

	events, err = svc.BySwap(context.Background(), testSwapID[2:])
	if err != nil || len(events) != 1 {
		t.Fatalf("BySwap() = %v, %v", events, err)
	}
	events, err = svc.BySwap(context.Background(), "0x01")
	if err != nil || events == nil || len(events) != 0 {
		t.Errorf("BySwap() for unknown swap = %v, %v", events, err)
	}
}

// ==================== EVM Service ====================

type fakeReceipts struct {
	status *evm.TxStatus
	err    error
}

func (f *fakeReceipts) TransactionStatus(_ context.Context, _ common.Hash) (*evm.TxStatus, error) {
	return f.status, f.err
}

func (f *fakeReceipts) ChainID() string {
	return "11155111"
}

func TestEVMService_TxStatus(t *testing.T) {
	hash := "0x" + "11" + "00000000000000000000000000000000000000000000000000000000000022"
	to := common.HexToAddress(testCounterparty)

	tests := []struct {
		name     string
		hash     string
		client   *fakeReceipts
		expected string
		wantErr  error
	}{
		{"mined", hash, &fakeReceipts{status: &evm.TxStatus{Success: true, BlockNumber: 10, To: &to}}, EVMTxSuccess, nil},
		{"reverted", hash, &fakeReceipts{status: &evm.TxStatus{Success: false}}, EVMTxFailed, nil},
		{"pending", hash, &fakeReceipts{err: evm.ErrReceiptPending}, EVMTxPending, nil},
		{"short hash", "0x1234", &fakeReceipts{}, "", ErrInvalidInput},
		{"not hex", "hello", &fakeReceipts{}, "", ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewEVMService(tt.client, config.EVMConfig{}, zap.NewNop())
			view, err := svc.TxStatus(context.Background(), tt.hash)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TxStatus() error = %v", err)
			}
			if view.Status != tt.expected {
				t.Errorf("Status = %s, expected %s", view.Status, tt.expected)
			}
			if view.ChainID != "11155111" {
				t.Errorf("ChainID = %s, expected 11155111", view.ChainID)
			}
		})
	}
}

func TestEVMService_EscrowAddress(t *testing.T) {
	cfg := config.EVMConfig{
		EscrowFactory:        "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		EscrowImplementation: testCounterparty,
	}
	svc := NewEVMService(nil, cfg, zap.NewNop())

	view, err := svc.EscrowAddress(testSwapID)
	if err != nil {
		t.Fatalf("EscrowAddress() error = %v", err)
	}

	id, _ := swap.ParseID(testSwapID)
	expected, _ := evm.EscrowAddress(common.HexToAddress(cfg.EscrowFactory), common.HexToAddress(cfg.EscrowImplementation), id)
	if view.Address != expected.Hex() {
		t.Errorf("Address = %s, expected %s", view.Address, expected.Hex())
	}

	if _, err := svc.EscrowAddress("nope"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad swap id error = %v, expected ErrInvalidInput", err)
	}

	unconfigured := NewEVMService(nil, config.EVMConfig{}, zap.NewNop())
	if _, err := unconfigured.EscrowAddress(testSwapID); err == nil {
		t.Error("expected error without a factory")
	}
}
