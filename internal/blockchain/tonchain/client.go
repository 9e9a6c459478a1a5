package tonchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

// Default global config URLs for the public lite servers
const (
	MainnetConfigURL = "https://ton.org/global.config.json"
	TestnetConfigURL = "https://ton.org/testnet-global.config.json"
)

const (
	retries       = 5
	dialAttempts  = 3
	dialRetryWait = 2 * time.Second
)

// Client is a lite client connection with the account helpers the vault
// tooling needs
type Client struct {
	api    ton.APIClientWrapped
	logger *zap.Logger
}

// Dial connects to the lite servers listed in the global config at configURL
func Dial(ctx context.Context, configURL string, logger *zap.Logger) (*Client, error) {
	pool := liteclient.NewConnectionPool()
	err := retry.Do(
		func() error {
			return pool.AddConnectionsFromConfigUrl(ctx, configURL)
		},
		retry.Context(ctx),
		retry.Attempts(dialAttempts),
		retry.Delay(dialRetryWait),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warn("Lite server connection failed, retrying",
				zap.Uint("attempt", attempt+1),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load lite servers from %s: %w", configURL, err)
	}

	logger.Info("TON lite client connected", zap.String("config_url", configURL))

	return &Client{
		api:    ton.NewAPIClient(pool).WithRetry(retries),
		logger: logger,
	}, nil
}

// API exposes the wrapped client for readers that take it directly
func (c *Client) API() ton.APIClientWrapped {
	return c.api
}

// LatestLT returns the logical time of the account's last transaction
func (c *Client) LatestLT(ctx context.Context, addr *address.Address) (uint64, error) {
	acc, err := c.account(ctx, addr)
	if err != nil {
		return 0, err
	}
	return acc.LastTxLT, nil
}

// ListTransactions returns up to limit transactions that precede (lt, hash),
// the one at (lt, hash) included. An exhausted history yields an empty slice.
func (c *Client) ListTransactions(ctx context.Context, addr *address.Address, limit uint32, lt uint64, hash []byte) ([]*tlb.Transaction, error) {
	txs, err := c.api.ListTransactions(ctx, addr, limit, lt, hash)
	if err != nil {
		if errors.Is(err, ton.ErrNoTransactionsWereFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// LastTransaction returns the (lt, hash) pair of the newest transaction, or a
// zero lt when the account has none
func (c *Client) LastTransaction(ctx context.Context, addr *address.Address) (uint64, []byte, error) {
	acc, err := c.account(ctx, addr)
	if err != nil {
		return 0, nil, err
	}
	return acc.LastTxLT, acc.LastTxHash, nil
}

func (c *Client) account(ctx context.Context, addr *address.Address) (*tlb.Account, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	acc, err := c.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", addr.String(), err)
	}
	return acc, nil
}
