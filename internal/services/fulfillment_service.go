package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/monitoring"
)

// Realtime event names published on the per-payment channel.
const (
	NotifyTicketIssued  = "ticket_issued"
	NotifyPaymentFailed = "payment_failed"
)

func PaymentChannel(paymentID string) string {
	return "ticket-" + paymentID
}

type FulfillmentService struct {
	store    Store
	renderer Renderer
	mailer   Mailer
	notifier Notifier
	now      func() time.Time
}

func NewFulfillmentService(store Store, renderer Renderer, mailer Mailer, notifier Notifier) *FulfillmentService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &FulfillmentService{
		store:    store,
		renderer: renderer,
		mailer:   mailer,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandlePaymentSucceeded issues the ticket for a confirmed payment. It returns
// an error only when the ticket could not be created; rendering and email
// failures are recorded on the ticket and logged.
func (s *FulfillmentService) HandlePaymentSucceeded(ctx context.Context, pi *models.PaymentIntent) error {
	if pi == nil || pi.ID == "" {
		return status.ErrMissingPaymentObj
	}

	exists, err := s.store.TicketExists(ctx, pi.ID)
	if err != nil {
		return fmt.Errorf("check ticket: %w", err)
	}
	if exists {
		slog.Info("ticket already issued, skipping", "paymentId", pi.ID)
		return nil
	}

	user, err := s.resolveUser(ctx, pi)
	if err != nil {
		return err
	}

	count, err := s.store.CountTickets(ctx)
	if err != nil {
		return fmt.Errorf("count tickets: %w", err)
	}
	category := models.CategoryForCount(count)

	// a concurrent delivery may have inserted while we were resolving
	if exists, err = s.store.TicketExists(ctx, pi.ID); err != nil {
		return fmt.Errorf("check ticket: %w", err)
	} else if exists {
		slog.Info("ticket issued concurrently, skipping", "paymentId", pi.ID)
		return nil
	}

	ticket := &models.Ticket{
		PaymentID:    pi.ID,
		Email:        user.Email,
		Name:         user.Name,
		FirstName:    user.FirstName,
		Category:     category,
		ImageConsent: user.ImageConsent,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
		CreatedAt:    s.now(),
	}
	if err := s.store.InsertTicket(ctx, ticket); err != nil {
		if errors.Is(err, status.ErrDuplicateTicket) {
			slog.Info("ticket already issued (unique index), skipping", "paymentId", pi.ID)
			return nil
		}
		return fmt.Errorf("insert ticket: %w", err)
	}

	monitoring.TrackTicketIssued(category)
	slog.Info("ticket issued", "paymentId", pi.ID, "category", category, "position", count+1)

	s.notify(ctx, pi.ID, NotifyTicketIssued, map[string]any{
		"category": string(category),
	})

	if err := s.deliver(ctx, ticket); err != nil {
		slog.Warn("ticket issued but not delivered", "paymentId", pi.ID, "error", err)
	}
	return nil
}

// HandlePaymentFailed logs the decline and tells the storefront.
func (s *FulfillmentService) HandlePaymentFailed(ctx context.Context, pi *models.PaymentIntent) error {
	if pi == nil || pi.ID == "" {
		return status.ErrMissingPaymentObj
	}

	reason := pi.FailureMsg
	if reason == "" {
		reason = "unknown"
	}

	user, err := s.store.FindUserByPaymentID(ctx, pi.ID)
	switch {
	case errors.Is(err, status.ErrUserNotFound):
		slog.Warn("payment failed for unknown user", "paymentId", pi.ID, "reason", reason, "code", pi.FailureCode)
	case err != nil:
		slog.Error("s.store.FindUserByPaymentID()", "paymentId", pi.ID, "error", err)
	default:
		slog.Warn("payment failed", "paymentId", pi.ID, "email", user.Email, "reason", reason, "code", pi.FailureCode)
	}

	s.notify(ctx, pi.ID, NotifyPaymentFailed, map[string]any{
		"reason": reason,
	})
	return nil
}

// Redeliver re-sends the ticket email, rendering the ticket again when its
// PDF is gone.
func (s *FulfillmentService) Redeliver(ctx context.Context, paymentID string) (*models.Ticket, error) {
	ticket, err := s.store.FindTicketByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if !fileExists(ticket.PDFPath) {
		if err := s.render(ctx, ticket); err != nil {
			return ticket, err
		}
	}
	if err := s.send(ctx, ticket); err != nil {
		return ticket, err
	}
	return ticket, nil
}

func (s *FulfillmentService) resolveUser(ctx context.Context, pi *models.PaymentIntent) (*models.User, error) {
	user, err := s.store.FindUserByPaymentID(ctx, pi.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, status.ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	user = UserFromIntent(pi)
	slog.Warn("user not found, rebuilt from payment", "paymentId", pi.ID, "email", user.Email)

	if err := s.store.InsertUser(ctx, user); err != nil && !errors.Is(err, status.ErrDuplicateUser) {
		slog.Error("s.store.InsertUser()", "paymentId", pi.ID, "error", err)
	}
	return user, nil
}

// UserFromIntent rebuilds a buyer from intent metadata, then receipt_email,
// then placeholders.
func UserFromIntent(pi *models.PaymentIntent) *models.User {
	user := &models.User{
		Name:      pi.Metadata[models.MetadataName],
		FirstName: pi.Metadata[models.MetadataFirstName],
		Email:     pi.Metadata[models.MetadataEmail],
		PaymentID: pi.ID,
	}
	if user.Email == "" {
		user.Email = pi.ReceiptEmail
	}
	if user.Email == "" {
		user.Email = models.PlaceholderEmail
	}
	if user.Name == "" {
		user.Name = models.PlaceholderName
	}
	if user.FirstName == "" {
		user.FirstName = models.PlaceholderFirstName
	}
	return user
}

func (s *FulfillmentService) deliver(ctx context.Context, ticket *models.Ticket) error {
	if err := s.render(ctx, ticket); err != nil {
		s.recordDelivery(ctx, ticket, models.DeliveryUpdate{Error: "render: " + err.Error()})
		monitoring.TrackEmailDelivery(monitoring.OutcomeSkipped)
		return err
	}
	return s.send(ctx, ticket)
}

func (s *FulfillmentService) render(ctx context.Context, ticket *models.Ticket) error {
	start := time.Now()
	rendered, err := s.renderer.Render(ctx, ticket)
	if err != nil {
		slog.Error("s.renderer.Render()", "paymentId", ticket.PaymentID, "error", err)
		return fmt.Errorf("render ticket: %w", err)
	}
	monitoring.ObserveRender(time.Since(start))

	ticket.PDFPath = rendered.PDFPath
	ticket.QRCodePath = rendered.QRCodePath
	if err := s.store.UpdateTicketRendering(ctx, ticket.PaymentID, rendered); err != nil {
		slog.Error("s.store.UpdateTicketRendering()", "paymentId", ticket.PaymentID, "error", err)
	}
	return nil
}

func (s *FulfillmentService) send(ctx context.Context, ticket *models.Ticket) error {
	delivery, err := s.mailer.SendTicket(ctx, ticket, ticket.PDFPath)
	if err != nil {
		update := models.DeliveryUpdate{Error: err.Error()}
		var de *status.DeliveryError
		if errors.As(err, &de) {
			update.Attempts = de.Attempts
		}
		s.recordDelivery(ctx, ticket, update)
		monitoring.TrackEmailDelivery(monitoring.OutcomeFailed)
		return err
	}

	sentAt := delivery.SentAt
	s.recordDelivery(ctx, ticket, models.DeliveryUpdate{
		Sent:      true,
		SentAt:    &sentAt,
		Attempts:  delivery.Attempts,
		MessageID: delivery.MessageID,
	})
	monitoring.TrackEmailDelivery(monitoring.OutcomeSent)
	return nil
}

func (s *FulfillmentService) recordDelivery(ctx context.Context, ticket *models.Ticket, update models.DeliveryUpdate) {
	ticket.EmailSent = update.Sent
	ticket.EmailAttempts = update.Attempts
	if update.Sent {
		ticket.EmailSentAt = update.SentAt
		ticket.EmailMessageID = update.MessageID
		ticket.EmailError = ""
	} else {
		ticket.EmailError = update.Error
	}

	if err := s.store.UpdateTicketDelivery(ctx, ticket.PaymentID, update); err != nil {
		slog.Error("s.store.UpdateTicketDelivery()", "paymentId", ticket.PaymentID, "error", err)
	}
}

func (s *FulfillmentService) notify(ctx context.Context, paymentID, event string, data map[string]any) {
	message := map[string]any{
		"type":      event,
		"paymentId": paymentID,
	}
	for k, v := range data {
		message[k] = v
	}
	if err := s.notifier.Publish(ctx, PaymentChannel(paymentID), message); err != nil {
		slog.Error("s.notifier.Publish()", "paymentId", paymentID, "event", event, "error", err)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
