package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"tonvault/internal/blockchain/evm"
	"tonvault/internal/config"
	"tonvault/internal/swap"
)

// EVM transaction states reported by the API
const (
	EVMTxPending = "pending"
	EVMTxSuccess = "success"
	EVMTxFailed  = "failed"
)

// TxStatusReader reads EVM transaction receipts
type TxStatusReader interface {
	TransactionStatus(ctx context.Context, txHash common.Hash) (*evm.TxStatus, error)
	ChainID() string
}

// EVMTxView is the API representation of the EVM leg of a swap
type EVMTxView struct {
	ChainID     string `json:"chainId"`
	Hash        string `json:"hash"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	To          string `json:"to,omitempty"`
	Logs        int    `json:"logs"`
}

// EscrowView is the predicted EVM escrow of a swap
type EscrowView struct {
	SwapID         string `json:"swapId"`
	Address        string `json:"address"`
	Factory        string `json:"factory"`
	Implementation string `json:"implementation"`
}

// EVMService reports on EVM-side escrow transactions
type EVMService struct {
	client TxStatusReader
	cfg    config.EVMConfig
	logger *zap.Logger
}

// NewEVMService creates a new EVM service. client may be nil when no RPC
// endpoint is configured.
func NewEVMService(client TxStatusReader, cfg config.EVMConfig, logger *zap.Logger) *EVMService {
	return &EVMService{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// EscrowAddress predicts the escrow the factory deploys for a swap id
func (s *EVMService) EscrowAddress(rawSwapID string) (*EscrowView, error) {
	id, err := swap.ParseID(rawSwapID)
	if err != nil {
		return nil, invalid("swapId", err)
	}
	if s.cfg.EscrowFactory == "" || s.cfg.EscrowImplementation == "" {
		return nil, errors.New("escrow factory is not configured")
	}

	factory := common.HexToAddress(s.cfg.EscrowFactory)
	impl := common.HexToAddress(s.cfg.EscrowImplementation)
	addr, err := evm.EscrowAddress(factory, impl, id)
	if err != nil {
		return nil, err
	}
	return &EscrowView{
		SwapID:         id.Hex(),
		Address:        addr.Hex(),
		Factory:        factory.Hex(),
		Implementation: impl.Hex(),
	}, nil
}

// TxStatus returns the receipt status of a transaction
func (s *EVMService) TxStatus(ctx context.Context, rawHash string) (*EVMTxView, error) {
	b, err := hexutil.Decode(rawHash)
	if err != nil || len(b) != common.HashLength {
		return nil, invalid("hash", err)
	}
	hash := common.BytesToHash(b)

	if s.client == nil {
		return nil, errors.New("EVM client is not configured")
	}

	st, err := s.client.TransactionStatus(ctx, hash)
	if errors.Is(err, evm.ErrReceiptPending) {
		return &EVMTxView{ChainID: s.client.ChainID(), Hash: hash.Hex(), Status: EVMTxPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction status: %w", err)
	}

	view := &EVMTxView{
		ChainID:     s.client.ChainID(),
		Hash:        hash.Hex(),
		Status:      EVMTxFailed,
		BlockNumber: st.BlockNumber,
		GasUsed:     st.GasUsed,
		Logs:        st.Logs,
	}
	if st.Success {
		view.Status = EVMTxSuccess
	}
	if st.To != nil {
		view.To = st.To.Hex()
	}
	return view, nil
}
