package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tonvault/internal/models"
)

// EventTypeDeposit is the only event type the listener emits
const EventTypeDeposit = "deposit"

// WebhookPayload is the JSON body POSTed for each event
type WebhookPayload struct {
	EventType    string               `json:"eventType"`
	Network      string               `json:"network"`
	VaultAddress string               `json:"vaultAddress"`
	Event        *models.DepositEvent `json:"event"`
}

// WebhookConfig holds webhook delivery settings
type WebhookConfig struct {
	URL             string
	Network         string
	VaultAddress    string
	Timeout         time.Duration // per request
	InitialInterval time.Duration // first retry delay, doubled on each retry
	MaxElapsed      time.Duration // give up after this long
}

// WebhookSink delivers events over HTTP with exponential backoff. 4xx
// responses other than 408 and 429 are not retried.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSink creates a webhook sink
func NewWebhookSink(cfg WebhookConfig, logger *zap.Logger) *WebhookSink {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	return &WebhookSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("webhook"),
	}
}

// DeliveryID is stable for a given vault and transaction so receivers can
// drop duplicates
func DeliveryID(vaultAddress string, ev *models.DepositEvent) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(vaultAddress+"/"+ev.TransactionID+"/"+ev.QueryID)).String()
}

// Deliver implements Sink
func (s *WebhookSink) Deliver(ctx context.Context, ev *models.DepositEvent) error {
	body, err := json.Marshal(WebhookPayload{
		EventType:    EventTypeDeposit,
		Network:      s.cfg.Network,
		VaultAddress: s.cfg.VaultAddress,
		Event:        ev,
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	deliveryID := DeliveryID(s.cfg.VaultAddress, ev)

	attempt := 0
	op := func() error {
		attempt++
		return s.post(ctx, body, deliveryID)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.Multiplier = 2
	b.MaxElapsedTime = s.cfg.MaxElapsed

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Webhook delivery failed, retrying",
			zap.String("delivery_id", deliveryID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, ErrRejected) {
			webhookDeliveries.WithLabelValues("rejected").Inc()
			return fmt.Errorf("webhook %s: %w", deliveryID, err)
		}
		webhookDeliveries.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to deliver webhook %s after %d attempts: %w", deliveryID, attempt, err)
	}

	webhookDeliveries.WithLabelValues("delivered").Inc()
	s.logger.Debug("Webhook delivered",
		zap.String("delivery_id", deliveryID),
		zap.Int("attempts", attempt))
	return nil
}

func (s *WebhookSink) post(ctx context.Context, body []byte, deliveryID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", deliveryID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("%w: webhook returned status %d", ErrRejected, resp.StatusCode))
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}
