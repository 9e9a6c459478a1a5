package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SessionPruner deletes finished monitor sessions
type SessionPruner interface {
	DeleteMonitorSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper removes monitor session records older than the retention period
type Sweeper struct {
	pruner    SessionPruner
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewSweeper creates a session sweeper
func NewSweeper(pruner SessionPruner, retention time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		pruner:    pruner,
		retention: retention,
		logger:    logger.Named("sweeper"),
		now:       time.Now,
	}
}

// Sweep runs one pass and returns the number of deleted sessions
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.pruner.DeleteMonitorSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		s.logger.Info("Monitor sessions swept",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
