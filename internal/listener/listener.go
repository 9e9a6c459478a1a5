package listener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"tonvault/internal/models"
)

var (
	// ErrFetch marks a failed transaction fetch; the next cycle waits twice as long
	ErrFetch = errors.New("transaction fetch failed")
	// ErrDelivery marks a sink failure; the cursor stays before the failed transaction
	ErrDelivery = errors.New("event delivery failed")
	// ErrRejected marks an event a sink refuses for good; the listener skips it
	ErrRejected = errors.New("event rejected")
)

// TransactionSource reads the vault's transaction history
type TransactionSource interface {
	// LatestLT returns the logical time of the newest transaction, 0 if none
	LatestLT(ctx context.Context) (uint64, error)
	// TransactionsAfter returns every transaction with LT greater than lt
	TransactionsAfter(ctx context.Context, lt uint64, pageSize int) ([]Transaction, error)
}

// CursorStore persists the last processed logical time per vault
type CursorStore interface {
	LoadCursor(ctx context.Context, vaultAddress string) (uint64, bool, error)
	SaveCursor(ctx context.Context, vaultAddress string, lt uint64) error
}

// Sink receives deposit events. Delivery is at-least-once, so sinks must
// tolerate duplicates. Errors wrapping ErrRejected are not retried.
type Sink interface {
	Deliver(ctx context.Context, ev *models.DepositEvent) error
}

// Config holds listener settings
type Config struct {
	VaultAddress string
	StartLT      uint64 // 0 resumes from the store, then from the latest transaction
	PollInterval time.Duration
	PageSize     int

	FetchTimeout    time.Duration // bound on each source call
	DeliveryTimeout time.Duration // bound on each sink call, retries included
}

// Listener polls the vault for deposits and forwards them to a sink
type Listener struct {
	source  TransactionSource
	cursors CursorStore
	sink    Sink
	cfg     Config
	logger  *zap.Logger

	mu      sync.RWMutex
	cursor  uint64
	started bool

	after func(time.Duration) <-chan time.Time
}

// New creates a listener. cursors may be nil, in which case progress is kept
// in memory only.
func New(source TransactionSource, cursors CursorStore, sink Sink, cfg Config, logger *zap.Logger) *Listener {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 3 * time.Minute
	}
	return &Listener{
		source:  source,
		cursors: cursors,
		sink:    sink,
		cfg:     cfg,
		logger:  logger.Named("listener"),
		after:   time.After,
	}
}

// Cursor returns the logical time of the last processed transaction
func (l *Listener) Cursor() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

// Run polls until ctx is cancelled
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("Event listener started",
		zap.String("vault", l.cfg.VaultAddress),
		zap.Duration("poll_interval", l.cfg.PollInterval))

	for {
		wait := l.cfg.PollInterval

		if _, err := l.Poll(ctx); err != nil {
			if errors.Is(err, ErrFetch) {
				wait *= 2
				l.logger.Warn("Poll failed, backing off", zap.Error(err), zap.Duration("wait", wait))
			} else if ctx.Err() == nil {
				l.logger.Error("Poll failed", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			l.logger.Info("Event listener stopped", zap.Uint64("cursor_lt", l.Cursor()))
			return ctx.Err()
		case <-l.after(wait):
		}
	}
}

// Poll runs one cycle and returns the number of delivered events.
// Cancellation is observed between calls; a call already in flight runs to
// completion on a detached context bounded by its own timeout.
func (l *Listener) Poll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := l.resolveStart(ctx); err != nil {
		return 0, err
	}

	cursor := l.Cursor()
	fetchCtx, cancel := l.detached(ctx, l.cfg.FetchTimeout)
	txs, err := l.source.TransactionsAfter(fetchCtx, cursor, l.cfg.PageSize)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	sort.Slice(txs, func(i, j int) bool { return txs[i].LT < txs[j].LT })

	delivered := 0
	for _, tx := range txs {
		if tx.LT <= cursor {
			continue
		}
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		ev, err := Parse(tx)
		if err != nil {
			parseFailures.Inc()
			l.logger.Warn("Skipping unparseable transaction",
				zap.Uint64("lt", tx.LT),
				zap.Binary("tx_hash", tx.Hash),
				zap.Error(err))
		} else if ev != nil {
			ok, err := l.deliver(ctx, ev, tx.LT)
			if err != nil {
				return delivered, err
			}
			if ok {
				delivered++
			}
		}

		cursor = tx.LT
		l.advance(ctx, cursor)
	}

	return delivered, nil
}

// deliver hands ev to the sink. It reports false without an error when every
// failure was a permanent rejection, so the caller moves past the event.
func (l *Listener) deliver(ctx context.Context, ev *models.DepositEvent, lt uint64) (bool, error) {
	deliverCtx, cancel := l.detached(ctx, l.cfg.DeliveryTimeout)
	defer cancel()

	err := l.sink.Deliver(deliverCtx, ev)
	switch {
	case err == nil:
		eventsTotal.WithLabelValues(string(ev.Kind)).Inc()
		l.logger.Info("Deposit event delivered",
			zap.String("kind", string(ev.Kind)),
			zap.String("swap_id", ev.SwapID),
			zap.String("query_id", ev.QueryID),
			zap.String("amount", ev.Amount),
			zap.Uint64("lt", lt))
		return true, nil
	case rejectedOnly(err):
		rejectedEvents.Inc()
		l.logger.Error("Deposit event rejected, skipping",
			zap.String("swap_id", ev.SwapID),
			zap.String("query_id", ev.QueryID),
			zap.Uint64("lt", lt),
			zap.Error(err))
		return false, nil
	default:
		return false, fmt.Errorf("%w: lt %d: %v", ErrDelivery, lt, err)
	}
}

// rejectedOnly reports whether err, and every error joined into it, is a
// permanent rejection
func rejectedOnly(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		if len(errs) == 0 {
			return false
		}
		for _, e := range errs {
			if !rejectedOnly(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrRejected)
}

func (l *Listener) detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (l *Listener) advance(ctx context.Context, lt uint64) {
	l.mu.Lock()
	l.cursor = lt
	l.mu.Unlock()
	cursorLT.Set(float64(lt))

	if l.cursors == nil {
		return
	}
	saveCtx, cancel := l.detached(ctx, l.cfg.FetchTimeout)
	defer cancel()
	if err := l.cursors.SaveCursor(saveCtx, l.cfg.VaultAddress, lt); err != nil {
		l.logger.Error("Failed to persist cursor", zap.Uint64("lt", lt), zap.Error(err))
	}
}

// resolveStart picks the first cursor: configured value, stored value, then
// the latest transaction so that only new deposits are reported
func (l *Listener) resolveStart(ctx context.Context) error {
	l.mu.RLock()
	started := l.started
	l.mu.RUnlock()
	if started {
		return nil
	}

	start, source := l.cfg.StartLT, "config"
	if start == 0 && l.cursors != nil {
		loadCtx, cancel := l.detached(ctx, l.cfg.FetchTimeout)
		stored, ok, err := l.cursors.LoadCursor(loadCtx, l.cfg.VaultAddress)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to load cursor: %w", err)
		}
		if ok {
			start, source = stored, "store"
		}
	}
	if start == 0 {
		latestCtx, cancel := l.detached(ctx, l.cfg.FetchTimeout)
		latest, err := l.source.LatestLT(latestCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%w: latest lt: %v", ErrFetch, err)
		}
		start, source = latest, "latest"
	}

	l.mu.Lock()
	l.cursor = start
	l.started = true
	l.mu.Unlock()
	cursorLT.Set(float64(start))

	l.logger.Info("Listener cursor resolved",
		zap.Uint64("cursor_lt", start),
		zap.String("source", source))
	return nil
}
