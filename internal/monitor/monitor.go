package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tonvault/internal/models"
	"tonvault/internal/vault"
)

// Config tunes the polling loop. All values are per session.
type Config struct {
	Interval         time.Duration // delay between ticks
	TickBudget       int           // maximum number of ticks
	ListLimit        int           // transactions fetched per tick
	Window           time.Duration // accepted span after Request.Since
	QueryIDTolerance uint64        // accepted absolute query id drift
	ExpectedOpcode   uint32
	CallTimeout      time.Duration // bound on each fetch
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Second,
		TickBudget:       24,
		ListLimit:        30,
		Window:           120 * time.Second,
		QueryIDTolerance: 2000,
		ExpectedOpcode:   vault.OpExcesses,
		CallTimeout:      30 * time.Second,
	}
}

// Request identifies the confirmations a session waits for
type Request struct {
	UserAddress   string
	QueryID       string // decimal, 0x-hex or opaque text
	RequiredCount int
	Since         time.Time
}

// Transaction is the indexer view of one account transaction
type Transaction struct {
	Hash       string
	Timestamp  int64 // unix seconds
	Success    bool
	OpCode     uint32
	HasOpCode  bool
	QueryID    string // decoded query id of the inbound message
	HasQueryID bool
}

// TransactionFetcher returns the most recent transactions of an account
type TransactionFetcher interface {
	RecentTransactions(ctx context.Context, account string, limit int) ([]Transaction, error)
}

// Update describes one reported tick
type Update struct {
	Tick    int // zero based
	Result  models.MonitorResult
	Matched int
	Err     error
}

// Outcome is the final state of a session
type Outcome struct {
	Result  models.MonitorResult
	Matches []Transaction
	Ticks   int
	LastErr error
}

// Monitor polls an account until the required confirmations appear or the
// tick budget runs out
type Monitor struct {
	fetcher TransactionFetcher
	cfg     Config
	logger  *zap.Logger

	after func(time.Duration) <-chan time.Time
}

// New creates a monitor
func New(fetcher TransactionFetcher, cfg Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.Named("monitor"),
		after:   time.After,
	}
}

// Config returns the monitor settings
func (m *Monitor) Config() Config {
	return m.cfg
}

// Run polls until full success, cancellation or budget exhaustion. onUpdate
// may be nil; it is called on the first tick and whenever the tick result
// changes. Errors never abort the session: an error tick is reported as
// TX_RESULT_ERROR but the final result is the last classification that was
// computed from data, or TX_RESULT_ERROR if no tick produced one.
func (m *Monitor) Run(ctx context.Context, req Request, onUpdate func(Update)) *Outcome {
	if req.RequiredCount < 1 {
		req.RequiredCount = 1
	}

	logger := m.logger.With(
		zap.String("user_address", req.UserAddress),
		zap.String("query_id", req.QueryID),
		zap.Int("required_count", req.RequiredCount))

	activeSessions.Inc()
	defer activeSessions.Dec()

	out := &Outcome{Result: models.MonitorResultError}
	classified := false
	var prev models.MonitorResult

	for i := 0; i < m.cfg.TickBudget; i++ {
		if ctx.Err() != nil {
			logger.Info("Monitor stopped", zap.Int("ticks", out.Ticks))
			break
		}

		result, matches, err := m.tick(ctx, req)
		out.Ticks++
		ticksTotal.WithLabelValues(string(result)).Inc()

		if err != nil {
			out.LastErr = err
		} else {
			out.Result = result
			out.Matches = matches
			classified = true
		}

		if i == 0 || result != prev {
			if err != nil {
				logger.Warn("Monitor tick failed", zap.Int("tick", i), zap.Error(err))
			} else {
				logger.Info("Monitor status",
					zap.Int("tick", i),
					zap.String("result", string(result)),
					zap.Int("matched", len(matches)))
			}
			if onUpdate != nil {
				onUpdate(Update{Tick: i, Result: result, Matched: len(matches), Err: err})
			}
		}
		prev = result

		if result == models.MonitorResultFullySuccess {
			break
		}
		if i == m.cfg.TickBudget-1 {
			break
		}

		select {
		case <-ctx.Done():
		case <-m.after(m.cfg.Interval):
		}
	}

	if !classified {
		out.Result = models.MonitorResultError
	}
	sessionsTotal.WithLabelValues(string(out.Result)).Inc()
	return out
}

// tick fetches once and classifies. The fetch runs on a context detached from
// ctx cancellation so an in-flight call completes; only CallTimeout bounds it.
func (m *Monitor) tick(ctx context.Context, req Request) (models.MonitorResult, []Transaction, error) {
	callCtx := context.WithoutCancel(ctx)
	if m.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.cfg.CallTimeout)
		defer cancel()
	}

	txs, err := m.fetcher.RecentTransactions(callCtx, req.UserAddress, m.cfg.ListLimit)
	if err != nil {
		return models.MonitorResultError, nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	matches := Match(m.cfg, req, txs)
	return Classify(len(matches), req.RequiredCount), matches, nil
}
