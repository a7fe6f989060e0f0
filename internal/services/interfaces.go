package services

import (
	"context"
	"time"

	"event-ticketing/internal/services/mail"
	"event-ticketing/models"
)

// Store persists users and tickets. *store.Store implements it.
type Store interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByPaymentID(ctx context.Context, paymentID string) (*models.User, error)

	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	FindTicketByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error)
	TicketExists(ctx context.Context, paymentID string) (bool, error)
	CountTickets(ctx context.Context) (int64, error)
	CountTicketsByCategory(ctx context.Context) (map[models.Category]int64, error)
	UpdateTicketRendering(ctx context.Context, paymentID string, rendered *models.RenderedTicket) error
	UpdateTicketDelivery(ctx context.Context, paymentID string, update models.DeliveryUpdate) error
	MarkTicketScanned(ctx context.Context, paymentID string, at time.Time) (*models.Ticket, error)
	ListUndeliveredTickets(ctx context.Context, limit int64) ([]models.Ticket, error)
}

type Renderer interface {
	Render(ctx context.Context, ticket *models.Ticket) (*models.RenderedTicket, error)
}

type Mailer interface {
	SendTicket(ctx context.Context, ticket *models.Ticket, pdfPath string) (*mail.Delivery, error)
}

// Notifier pushes realtime updates to the storefront.
type Notifier interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

// EventLog is the audit trail of webhook deliveries.
type EventLog interface {
	Record(ctx context.Context, entry *models.WebhookLogEntry) error
	Recent(ctx context.Context, paymentID string, limit int) ([]models.WebhookLogEntry, error)
}

// EventDeduper remembers processed webhook event ids. MarkProcessed reports
// true only for the first caller with a given id.
type EventDeduper interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// AvailabilityCache is a single global slot holding the last computed
// availability.
type AvailabilityCache interface {
	Get(ctx context.Context) (models.Availability, bool)
	Set(ctx context.Context, a models.Availability)
}
