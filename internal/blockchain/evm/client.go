package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"tonvault/internal/config"
)

// ErrReceiptPending is returned while a transaction is not yet mined
var ErrReceiptPending = errors.New("transaction receipt not available")

// erc20BalanceOf is the balanceOf(address) selector
var erc20BalanceOf = common.Hex2Bytes("70a08231")

// Client is a read-only view of the EVM leg of a swap
type Client struct {
	ethClient *ethclient.Client
	cfg       config.EVMConfig
	logger    *zap.Logger
}

// TxStatus summarises a mined transaction
type TxStatus struct {
	Hash        common.Hash
	BlockNumber uint64
	Success     bool
	GasUsed     uint64
	To          *common.Address
	Logs        int
}

// NewClient dials the configured RPC endpoint
func NewClient(cfg config.EVMConfig, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", cfg.RPCEndpoint, err)
	}

	logger.Info("EVM client initialized",
		zap.String("chain_id", cfg.ChainID),
		zap.String("token_address", cfg.TokenAddress))

	return &Client{
		ethClient: ethClient,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.ethClient.Close()
}

// ChainID returns the configured chain ID
func (c *Client) ChainID() string {
	return c.cfg.ChainID
}

// GetTokenBalance returns the escrow token balance of an address
func (c *Client) GetTokenBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	token := common.HexToAddress(c.cfg.TokenAddress)
	data := append(append([]byte{}, erc20BalanceOf...), common.LeftPadBytes(holder.Bytes(), 32)...)

	result, err := c.ethClient.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("invalid balance response length: %d", len(result))
	}
	return new(big.Int).SetBytes(result), nil
}

// GetETHBalance returns the native balance of an address
func (c *Client) GetETHBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	return c.ethClient.BalanceAt(ctx, holder, nil)
}

// GetTransactionReceipt gets the receipt for a transaction
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptPending
	}
	return receipt, err
}

// TransactionStatus reports the outcome of a mined transaction
func (c *Client) TransactionStatus(ctx context.Context, txHash common.Hash) (*TxStatus, error) {
	receipt, err := c.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	status := &TxStatus{
		Hash:    txHash,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed: receipt.GasUsed,
		Logs:    len(receipt.Logs),
	}
	if receipt.BlockNumber != nil {
		status.BlockNumber = receipt.BlockNumber.Uint64()
	}

	tx, _, err := c.ethClient.TransactionByHash(ctx, txHash)
	if err == nil {
		status.To = tx.To()
	} else {
		c.logger.Debug("Transaction body unavailable",
			zap.String("tx_hash", txHash.Hex()),
			zap.Error(err))
	}
	return status, nil
}

// WaitForTransaction waits for a transaction to be mined
func (c *Client) WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction %s", txHash.Hex())
		case <-ticker.C:
			receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
			if err == nil && receipt != nil {
				if receipt.Status == types.ReceiptStatusFailed {
					return receipt, fmt.Errorf("transaction failed: %s", txHash.Hex())
				}
				return receipt, nil
			}
		}
	}
}

// IsContractDeployed checks if a contract exists at the given address
func (c *Client) IsContractDeployed(ctx context.Context, addr common.Address) (bool, error) {
	code, err := c.ethClient.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get code at address: %w", err)
	}
	return len(code) > 0, nil
}
