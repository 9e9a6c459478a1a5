package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tonvault/internal/models"
	"tonvault/internal/swap"
)

// EventStore reads persisted deposit events
type EventStore interface {
	GetDepositEventsByTransaction(ctx context.Context, transactionID string) ([]models.DepositEvent, error)
	GetDepositEventsBySwap(ctx context.Context, swapID string) ([]models.DepositEvent, error)
}

// EventService serves deposit events recorded by the listener
type EventService struct {
	store  EventStore
	logger *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(store EventStore, logger *zap.Logger) *EventService {
	return &EventService{
		store:  store,
		logger: logger,
	}
}

// ByTransaction returns the deposits carried by one vault transaction. The id
// is the hex transaction hash, with or without 0x prefix.
func (s *EventService) ByTransaction(ctx context.Context, transactionID string) ([]models.DepositEvent, error) {
	id := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(transactionID, "0x"), "0X"))
	if b, err := hex.DecodeString(id); err != nil || len(b) != 32 {
		return nil, invalid("transactionId", err)
	}

	events, err := s.store.GetDepositEventsByTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return events, nil
}

// BySwap returns every deposit registered for a swap id
func (s *EventService) BySwap(ctx context.Context, rawSwapID string) ([]models.DepositEvent, error) {
	id, err := swap.ParseID(rawSwapID)
	if err != nil {
		return nil, invalid("swapId", err)
	}

	events, err := s.store.GetDepositEventsBySwap(ctx, id.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit events: %w", err)
	}
	if events == nil {
		events = []models.DepositEvent{}
	}
	return events, nil
}
