package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tonvault/internal/config"
	"tonvault/internal/listener"
)

// SweepTimeout bounds one session sweep
const SweepTimeout = 30 * time.Second

// WorkerManager runs the background workers: the vault event listener and the
// monitor session sweeper
type WorkerManager struct {
	cfg    *config.Config
	logger *zap.Logger

	listener *listener.Listener // nil when the listener is disabled
	sweeper  *Sweeper           // nil without a session store
	cron     *cron.Cron

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerManager creates a new worker manager. Either worker may be nil.
func NewWorkerManager(
	cfg *config.Config,
	l *listener.Listener,
	sweeper *Sweeper,
	logger *zap.Logger,
) (*WorkerManager, error) {
	logger = logger.Named("worker")

	ctx, cancel := context.WithCancel(context.Background())

	wm := &WorkerManager{
		cfg:      cfg,
		logger:   logger,
		listener: l,
		sweeper:  sweeper,
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
	}

	if sweeper != nil {
		_, err := wm.cron.AddFunc(cfg.Monitor.SweepSchedule, wm.sweep)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Monitor.SweepSchedule, err)
		}
	}

	return wm, nil
}

// Start starts all worker goroutines
func (wm *WorkerManager) Start() {
	wm.logger.Info("Starting worker manager",
		zap.Bool("listener", wm.listener != nil),
		zap.Bool("sweeper", wm.sweeper != nil))

	if wm.listener != nil {
		wm.wg.Add(1)
		go func() {
			defer wm.wg.Done()
			if err := wm.listener.Run(wm.ctx); err != nil && !errors.Is(err, context.Canceled) {
				wm.logger.Error("Listener exited", zap.Error(err))
			}
		}()
	}

	if wm.sweeper != nil {
		wm.cron.Start()
	}

	wm.logger.Info("Worker manager started")
}

func (wm *WorkerManager) sweep() {
	ctx, cancel := context.WithTimeout(wm.ctx, SweepTimeout)
	defer cancel()

	if _, err := wm.sweeper.Sweep(ctx); err != nil {
		wm.logger.Error("Session sweep failed", zap.Error(err))
	}
}

// Shutdown gracefully stops all workers
func (wm *WorkerManager) Shutdown(timeout time.Duration) error {
	wm.logger.Info("Shutting down worker manager")

	wm.cancel()
	cronDone := wm.cron.Stop()

	done := make(chan struct{})
	go func() {
		wm.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		wm.logger.Info("Workers stopped gracefully")
	case <-time.After(timeout):
		wm.logger.Warn("Worker shutdown timed out")
		return fmt.Errorf("worker shutdown timed out after %s", timeout)
	}

	wm.logger.Info("Worker manager shutdown complete")
	return nil
}
