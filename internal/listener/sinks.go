package listener

import (
	"context"
	"errors"

	"tonvault/internal/models"
)

// DepositStore persists deposit events, ignoring ones already stored
type DepositStore interface {
	SaveDepositEvent(ctx context.Context, ev *models.DepositEvent) error
}

// StoreSink writes events to a DepositStore
type StoreSink struct {
	store DepositStore
}

// NewStoreSink creates a store-backed sink
func NewStoreSink(store DepositStore) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver implements Sink
func (s *StoreSink) Deliver(ctx context.Context, ev *models.DepositEvent) error {
	return s.store.SaveDepositEvent(ctx, ev)
}

// MultiSink delivers to every sink in order and fails if any of them fails
type MultiSink []Sink

// Deliver implements Sink
func (m MultiSink) Deliver(ctx context.Context, ev *models.DepositEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
