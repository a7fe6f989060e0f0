package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/monitoring"
)

type TicketService struct {
	store Store
	now   func() time.Time
}

func NewTicketService(store Store) *TicketService {
	return &TicketService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *TicketService) Get(ctx context.Context, paymentID string) (*models.Ticket, error) {
	return s.store.FindTicketByPaymentID(ctx, paymentID)
}

// Scan validates a ticket at the entrance. A second scan returns
// status.ErrAlreadyScanned.
func (s *TicketService) Scan(ctx context.Context, paymentID string) (*models.Ticket, error) {
	ticket, err := s.store.MarkTicketScanned(ctx, paymentID, s.now())
	switch {
	case err == nil:
		monitoring.TrackScan(monitoring.OutcomeScanned)
		slog.Info("ticket validated", "paymentId", paymentID, "category", ticket.Category)
		return ticket, nil
	case errors.Is(err, status.ErrAlreadyScanned):
		monitoring.TrackScan(monitoring.OutcomeRescan)
		slog.Warn("ticket already scanned", "paymentId", paymentID)
	case errors.Is(err, status.ErrTicketNotFound):
		monitoring.TrackScan(monitoring.OutcomeNotFound)
	default:
		slog.Error("s.store.MarkTicketScanned()", "paymentId", paymentID, "error", err)
	}
	return nil, err
}

func (s *TicketService) ListUndelivered(ctx context.Context, limit int64) ([]models.Ticket, error) {
	return s.store.ListUndeliveredTickets(ctx, limit)
}
