package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"

	"tonvault/internal/swap"
	"tonvault/internal/vault"
)

var (
	// ErrInvalidInput marks a request that failed validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a lookup with no result
	ErrNotFound = errors.New("not found")
)

// DefaultForwardTonAmount is attached to deposit transfers so the vault
// receives the transfer notification (0.05 TON)
var DefaultForwardTonAmount = big.NewInt(50_000_000)

// VaultReader reads on-chain vault state
type VaultReader interface {
	ReadVaultState(ctx context.Context) (*vault.VaultConfig, error)
	ReadSwapRecord(ctx context.Context, queryID uint64) (*swap.Record, error)
}

// DepositMessageInput describes a deposit the caller wants to sign
type DepositMessageInput struct {
	QueryID             string
	SwapID              string
	Counterparty        string
	Owner               string
	Amount              string
	ResponseDestination string // defaults to the owner
	ForwardTonAmount    string // nanotons, defaults to DefaultForwardTonAmount
	Deadlines           swap.Deadlines
}

// DepositMessage is an unsigned jetton transfer that deposits into the vault
type DepositMessage struct {
	Destination    string `json:"destination"` // vault address, the transfer recipient
	Payload        string `json:"payload"`     // base64 BOC of the jetton transfer body
	ForwardPayload string `json:"forwardPayload"`
	QueryID        string `json:"queryId"`
	SwapID         string `json:"swapId"`
}

// SwapView is the API representation of a swap record
type SwapView struct {
	QueryID      string         `json:"queryId"`
	SwapID       string         `json:"swapId"`
	Counterparty string         `json:"counterpartyAddress"`
	Owner        string         `json:"ownerAddress"`
	Amount       string         `json:"amount"`
	CreatedAt    uint32         `json:"createdAt"`
	Deadlines    swap.Deadlines `json:"deadlines"`
	Status       string         `json:"status"`
}

// VaultStateView summarises the vault contract state
type VaultStateView struct {
	Address      string `json:"address"`
	Admin        string `json:"admin"`
	JettonMaster string `json:"jettonMaster"`
	JettonWallet string `json:"jettonWallet"`
	TotalSupply  string `json:"totalSupply"`
	Stopped      bool   `json:"stopped"`
	SwapCount    int    `json:"swapCount"`
}

// SwapService prepares vault messages and exposes vault state
type SwapService struct {
	reader    VaultReader
	vaultAddr *address.Address
	logger    *zap.Logger
}

// NewSwapService creates a new swap service. reader may be nil when no lite
// client is available; state reads then fail.
func NewSwapService(reader VaultReader, vaultAddr *address.Address, logger *zap.Logger) *SwapService {
	return &SwapService{
		reader:    reader,
		vaultAddr: vaultAddr,
		logger:    logger,
	}
}

func invalid(field string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, field)
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidInput, field, err)
}

// DepositMessage builds the jetton transfer that registers a deposit
func (s *SwapService) DepositMessage(in DepositMessageInput) (*DepositMessage, error) {
	if s.vaultAddr == nil {
		return nil, errors.New("vault address is not configured")
	}

	queryID, err := strconv.ParseUint(in.QueryID, 10, 64)
	if err != nil {
		return nil, invalid("queryId", err)
	}
	swapID, err := swap.ParseID(in.SwapID)
	if err != nil {
		return nil, invalid("swapId", err)
	}
	if !common.IsHexAddress(in.Counterparty) {
		return nil, invalid("counterpartyAddress", nil)
	}
	owner, err := address.ParseAddr(in.Owner)
	if err != nil {
		return nil, invalid("ownerAddress", err)
	}
	amount, ok := new(big.Int).SetString(in.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, invalid("amount", nil)
	}
	if !in.Deadlines.Ordered() {
		return nil, invalid("deadlines", errors.New("must be strictly increasing"))
	}

	response := owner
	if in.ResponseDestination != "" {
		if response, err = address.ParseAddr(in.ResponseDestination); err != nil {
			return nil, invalid("responseDestination", err)
		}
	}
	forwardTon := DefaultForwardTonAmount
	if in.ForwardTonAmount != "" {
		v, ok := new(big.Int).SetString(in.ForwardTonAmount, 10)
		if !ok || v.Sign() <= 0 {
			return nil, invalid("forwardTonAmount", nil)
		}
		forwardTon = v
	}

	terms := vault.DepositTerms{
		SwapID:       swapID,
		Counterparty: common.HexToAddress(in.Counterparty),
		Owner:        owner,
		Deadlines:    in.Deadlines,
	}
	body, err := vault.DepositTransfer(queryID, amount, s.vaultAddr, response, forwardTon, terms)
	if err != nil {
		return nil, fmt.Errorf("failed to build deposit transfer: %w", err)
	}
	payload, err := vault.DepositForwardPayload(terms)
	if err != nil {
		return nil, fmt.Errorf("failed to build forward payload: %w", err)
	}

	s.logger.Info("Deposit message prepared",
		zap.Uint64("query_id", queryID),
		zap.String("swap_id", swapID.Hex()),
		zap.String("owner", owner.String()),
		zap.String("amount", amount.String()))

	return &DepositMessage{
		Destination:    s.vaultAddr.String(),
		Payload:        base64.StdEncoding.EncodeToString(body.ToBOC()),
		ForwardPayload: base64.StdEncoding.EncodeToString(payload.ToBOC()),
		QueryID:        strconv.FormatUint(queryID, 10),
		SwapID:         swapID.Hex(),
	}, nil
}

// GetSwap reads one swap record from the vault
func (s *SwapService) GetSwap(ctx context.Context, rawQueryID string) (*SwapView, error) {
	queryID, err := strconv.ParseUint(rawQueryID, 10, 64)
	if err != nil {
		return nil, invalid("queryId", err)
	}
	if s.reader == nil {
		return nil, errors.New("vault reader is not configured")
	}

	r, err := s.reader.ReadSwapRecord(ctx, queryID)
	if errors.Is(err, vault.ErrSwapNotFound) {
		return nil, fmt.Errorf("%w: swap %d", ErrNotFound, queryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read swap record: %w", err)
	}
	return newSwapView(r), nil
}

// VaultState reads the vault configuration
func (s *SwapService) VaultState(ctx context.Context) (*VaultStateView, error) {
	if s.reader == nil {
		return nil, errors.New("vault reader is not configured")
	}
	st, err := s.reader.ReadVaultState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault state: %w", err)
	}

	view := &VaultStateView{
		Stopped:     st.Stopped,
		SwapCount:   len(st.Swaps),
		TotalSupply: "0",
	}
	if s.vaultAddr != nil {
		view.Address = s.vaultAddr.String()
	}
	if st.Admin != nil {
		view.Admin = st.Admin.String()
	}
	if st.JettonMaster != nil {
		view.JettonMaster = st.JettonMaster.String()
	}
	if st.JettonWallet != nil {
		view.JettonWallet = st.JettonWallet.String()
	}
	if st.TotalSupply != nil {
		view.TotalSupply = st.TotalSupply.String()
	}
	return view, nil
}

func newSwapView(r *swap.Record) *SwapView {
	v := &SwapView{
		QueryID:      strconv.FormatUint(r.QueryID, 10),
		SwapID:       r.SwapID.Hex(),
		Counterparty: r.Counterparty.Hex(),
		Amount:       "0",
		CreatedAt:    r.CreatedAt,
		Deadlines:    r.Deadlines,
		Status:       r.Status.String(),
	}
	if r.Owner != nil {
		v.Owner = r.Owner.String()
	}
	if r.Amount != nil {
		v.Amount = r.Amount.String()
	}
	return v
}
