package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"event-ticketing/internal/services/gateway"
	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/monitoring"
)

type WebhookOptions struct {
	Secret     string
	Tolerance  time.Duration
	Production bool
}

// WebhookResult describes how a delivered event was handled. Handle returns
// one for every authenticated, parseable payload.
type WebhookResult struct {
	EventID   string
	Type      string
	PaymentID string
	Outcome   models.WebhookOutcome
	Err       error
}

type WebhookService struct {
	opts        WebhookOptions
	gateway     gateway.Gateway
	deduper     EventDeduper
	fulfillment *FulfillmentService
	events      EventLog
	now         func() time.Time
}

func NewWebhookService(opts WebhookOptions, gw gateway.Gateway, deduper EventDeduper, fulfillment *FulfillmentService, events EventLog) *WebhookService {
	if opts.Tolerance <= 0 {
		opts.Tolerance = gateway.DefaultTolerance
	}
	return &WebhookService{
		opts:        opts,
		gateway:     gw,
		deduper:     deduper,
		fulfillment: fulfillment,
		events:      events,
		now:         time.Now,
	}
}

// Handle authenticates, parses and dispatches a raw webhook payload.
// Authentication and parse failures are returned as errors
// (status.ErrWebhookUnsigned, status.ErrInvalidSignature,
// status.ErrInvalidPayload); handler failures are reported in the result.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if err := s.authenticate(payload, signature); err != nil {
		return nil, err
	}

	event, err := s.gateway.ParseEvent(payload)
	if err != nil {
		slog.Warn("webhook payload rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidPayload, err)
	}

	// fulfillment must finish even if the gateway hangs up
	ctx = context.WithoutCancel(ctx)

	result := &WebhookResult{EventID: event.ID, Type: event.Type}
	if event.PaymentIntent != nil {
		result.PaymentID = event.PaymentIntent.ID
	}

	if event.ID != "" && s.deduper != nil {
		first, err := s.deduper.MarkProcessed(ctx, event.ID)
		if err != nil {
			slog.Error("s.deduper.MarkProcessed()", "eventId", event.ID, "error", err)
		} else if !first {
			slog.Info("webhook event already processed", "eventId", event.ID, "type", event.Type)
			result.Outcome = models.OutcomeDuplicate
			s.record(ctx, result)
			return result, nil
		}
	}

	result.Outcome, result.Err = s.dispatch(ctx, event)
	if result.Err != nil {
		slog.Error("s.dispatch()", "eventId", event.ID, "type", event.Type, "paymentId", result.PaymentID, "error", result.Err)
	}
	s.record(ctx, result)
	return result, nil
}

func (s *WebhookService) authenticate(payload []byte, signature string) error {
	if signature == "" || s.opts.Secret == "" {
		if s.opts.Production {
			slog.Warn("webhook rejected: missing signature or secret", "hasSignature", signature != "", "hasSecret", s.opts.Secret != "")
			return status.ErrWebhookUnsigned
		}
		slog.Warn("webhook accepted without signature verification")
		return nil
	}

	if err := gateway.VerifySignature(payload, signature, s.opts.Secret, s.opts.Tolerance, s.now()); err != nil {
		slog.Warn("webhook signature rejected", "error", err)
		return fmt.Errorf("%w: %v", status.ErrInvalidSignature, err)
	}
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *models.PaymentEvent) (models.WebhookOutcome, error) {
	var err error
	switch event.Type {
	case models.EventPaymentSucceeded:
		err = s.fulfillment.HandlePaymentSucceeded(ctx, event.PaymentIntent)
	case models.EventPaymentFailed:
		err = s.fulfillment.HandlePaymentFailed(ctx, event.PaymentIntent)
	default:
		slog.Info("webhook event ignored", "eventId", event.ID, "type", event.Type)
		return models.OutcomeIgnored, nil
	}
	if err != nil {
		return models.OutcomeFailed, err
	}
	return models.OutcomeHandled, nil
}

func (s *WebhookService) record(ctx context.Context, result *WebhookResult) {
	monitoring.TrackWebhookEvent(result.Type, result.Outcome)

	if s.events == nil {
		return
	}
	entry := &models.WebhookLogEntry{
		EventID:   result.EventID,
		Type:      result.Type,
		PaymentID: result.PaymentID,
		Outcome:   result.Outcome,
		Created:   s.now().UTC(),
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	if err := s.events.Record(ctx, entry); err != nil {
		slog.Error("s.events.Record()", "eventId", result.EventID, "error", err)
	}
}

// IsAuthError reports whether err came from webhook authentication or
// parsing rather than from handling.
func IsAuthError(err error) bool {
	return errors.Is(err, status.ErrWebhookUnsigned) ||
		errors.Is(err, status.ErrInvalidSignature) ||
		errors.Is(err, status.ErrInvalidPayload)
}
