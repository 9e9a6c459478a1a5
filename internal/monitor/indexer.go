package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// IndexerClient reads account transactions from the tonapi HTTP indexer
type IndexerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewIndexerClient creates a client for baseURL, e.g. https://tonapi.io
func NewIndexerClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *IndexerClient {
	return &IndexerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("indexer"),
	}
}

// RecentTransactions implements TransactionFetcher
func (c *IndexerClient) RecentTransactions(ctx context.Context, account string, limit int) ([]Transaction, error) {
	endpoint := fmt.Sprintf("%s/v2/blockchain/accounts/%s/transactions?limit=%d",
		c.baseURL, url.PathEscape(account), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode, string(body))
	}

	txs, err := ParseTransactions(body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Fetched transactions",
		zap.String("account", account),
		zap.Int("count", len(txs)))

	return txs, nil
}

// ParseTransactions decodes a tonapi transactions response
func ParseTransactions(body []byte) ([]Transaction, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid indexer response: not JSON")
	}
	list := gjson.GetBytes(body, "transactions")
	if !list.IsArray() {
		return nil, fmt.Errorf("invalid indexer response: missing transactions array")
	}

	items := list.Array()
	txs := make([]Transaction, 0, len(items))
	for _, item := range items {
		tx := Transaction{
			Hash:      item.Get("hash").String(),
			Timestamp: item.Get("utime").Int(),
			Success:   item.Get("success").Bool(),
		}

		if op := item.Get("in_msg.op_code"); op.Exists() {
			if v, err := strconv.ParseUint(op.String(), 0, 32); err == nil {
				tx.OpCode = uint32(v)
				tx.HasOpCode = true
			}
		}

		if qid := item.Get("in_msg.decoded_body.query_id"); qid.Exists() && qid.Type != gjson.Null {
			tx.HasQueryID = true
			if qid.Type == gjson.Number {
				tx.QueryID = qid.Raw
			} else {
				tx.QueryID = qid.String()
			}
		}

		txs = append(txs, tx)
	}
	return txs, nil
}
