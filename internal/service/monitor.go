package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tonvault/internal/config"
	"tonvault/internal/models"
	"tonvault/internal/monitor"
)

// ErrTooManySessions is returned when every monitor slot is busy
var ErrTooManySessions = errors.New("too many concurrent monitor sessions")

// SessionStore persists monitor sessions
type SessionStore interface {
	CreateMonitorSession(ctx context.Context, session *models.MonitorSession) error
	FinishMonitorSession(ctx context.Context, sessionID string, result models.MonitorResult, matches []models.MonitorMatch, errMsg string) error
}

// MonitorRequest is one confirmation check requested through the API
type MonitorRequest struct {
	TxHash      string // hash reported by the wallet connector, recorded for audit only
	TotalAmount string
	monitor.Request
}

// MonitorReport is the final state of a monitor session
type MonitorReport struct {
	SessionID string                `json:"sessionId"`
	Result    models.MonitorResult  `json:"result"`
	Matched   int                   `json:"matched"`
	Required  int                   `json:"required"`
	Ticks     int                   `json:"ticks"`
	Matches   []models.MonitorMatch `json:"matches"`
}

// MonitorService runs monitor sessions on behalf of API callers
type MonitorService struct {
	store   SessionStore
	monitor *monitor.Monitor
	sem     *semaphore.Weighted
	logger  *zap.Logger

	defaultRequired int
}

// MonitorSettings converts the configured monitor defaults
func MonitorSettings(cfg config.MonitorConfig) monitor.Config {
	mc := monitor.DefaultConfig()
	mc.Interval = cfg.Interval
	mc.TickBudget = cfg.TickBudget
	mc.ListLimit = cfg.ListLimit
	mc.Window = cfg.Window
	mc.QueryIDTolerance = cfg.QueryIDTolerance
	if cfg.CallTimeout > 0 {
		mc.CallTimeout = cfg.CallTimeout
	}
	return mc
}

// NewMonitorService creates a new monitor service. store may be nil.
func NewMonitorService(store SessionStore, fetcher monitor.TransactionFetcher, cfg config.MonitorConfig, logger *zap.Logger) *MonitorService {
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &MonitorService{
		store:   store,
		monitor: monitor.New(fetcher, MonitorSettings(cfg), logger),
		sem:     semaphore.NewWeighted(maxSessions),
		logger:  logger,

		defaultRequired: max(cfg.RequiredCount, 1),
	}
}

// Monitor runs a session to completion
func (s *MonitorService) Monitor(ctx context.Context, req MonitorRequest) (*MonitorReport, error) {
	if !s.sem.TryAcquire(1) {
		return nil, ErrTooManySessions
	}
	defer s.sem.Release(1)

	if req.RequiredCount < 1 {
		req.RequiredCount = s.defaultRequired
	}
	if req.QueryID == "" {
		req.QueryID = "0"
	}
	if req.Since.IsZero() {
		req.Since = time.Now()
	}

	sessionID := uuid.NewString()
	if s.store != nil {
		session := &models.MonitorSession{
			SessionID:     sessionID,
			UserAddress:   req.UserAddress,
			TxHash:        req.TxHash,
			QueryID:       req.QueryID,
			RequiredCount: req.RequiredCount,
			SinceAt:       req.Since,
			Result:        models.MonitorResultPending,
		}
		if req.TotalAmount != "" {
			session.TotalAmount = &req.TotalAmount
		}
		if err := s.store.CreateMonitorSession(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to create monitor session: %w", err)
		}
	}

	s.logger.Info("Monitor session started",
		zap.String("session_id", sessionID),
		zap.String("user_address", req.UserAddress),
		zap.String("query_id", req.QueryID),
		zap.Int("required_count", req.RequiredCount))

	outcome := s.monitor.Run(ctx, req.Request, func(u monitor.Update) {
		fields := []zap.Field{
			zap.String("session_id", sessionID),
			zap.Int("tick", u.Tick),
			zap.String("result", string(u.Result)),
			zap.Int("matched", u.Matched),
		}
		if u.Err != nil {
			fields = append(fields, zap.Error(u.Err))
		}
		s.logger.Info("Monitor session update", fields...)
	})

	report := &MonitorReport{
		SessionID: sessionID,
		Result:    outcome.Result,
		Matched:   len(outcome.Matches),
		Required:  req.RequiredCount,
		Ticks:     outcome.Ticks,
		Matches:   make([]models.MonitorMatch, 0, len(outcome.Matches)),
	}
	for _, tx := range outcome.Matches {
		report.Matches = append(report.Matches, models.MonitorMatch{
			SessionID: sessionID,
			TxHash:    tx.Hash,
			QueryID:   tx.QueryID,
			TxTime:    tx.Timestamp,
		})
	}

	if s.store != nil {
		errMsg := ""
		if outcome.LastErr != nil {
			errMsg = outcome.LastErr.Error()
		}
		// the caller may have gone away; the audit record is still written
		if err := s.store.FinishMonitorSession(context.WithoutCancel(ctx), sessionID, outcome.Result, report.Matches, errMsg); err != nil {
			s.logger.Error("Failed to finish monitor session",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	s.logger.Info("Monitor session finished",
		zap.String("session_id", sessionID),
		zap.String("result", string(outcome.Result)),
		zap.Int("matched", report.Matched),
		zap.Int("ticks", outcome.Ticks))

	return report, nil
}
