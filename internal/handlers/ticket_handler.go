package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"event-ticketing/internal/services"
	"event-ticketing/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	ticketService       *services.TicketService
	availabilityService *services.AvailabilityService
}

func NewTicketHandler(ticketService *services.TicketService, availabilityService *services.AvailabilityService) *TicketHandler {
	return &TicketHandler{
		ticketService:       ticketService,
		availabilityService: availabilityService,
	}
}

// GetAvailability - GET /ticket/places-restantes
func (h *TicketHandler) GetAvailability(e *core.RequestEvent) error {
	a, err := h.availabilityService.Availability(e.Request.Context())
	if err != nil {
		slog.Error("h.availabilityService.Availability()", "error", err)
		return apis.NewInternalServerError("Failed to load availability", nil)
	}
	return e.JSON(http.StatusOK, a)
}

// GetTicket - GET /ticket/{paymentId}
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	paymentID := e.Request.PathValue("paymentId")

	ticket, err := h.ticketService.Get(e.Request.Context(), paymentID)
	if errors.Is(err, status.ErrTicketNotFound) {
		return e.JSON(http.StatusNotFound, map[string]any{"error": "Ticket not found"})
	}
	if err != nil {
		slog.Error("h.ticketService.Get()", "paymentId", paymentID, "error", err)
		return apis.NewInternalServerError("Failed to load ticket", nil)
	}
	return e.JSON(http.StatusOK, ticket.Status())
}

// ScanTicket - POST /ticket/scan/{paymentId}
func (h *TicketHandler) ScanTicket(e *core.RequestEvent) error {
	paymentID := e.Request.PathValue("paymentId")

	ticket, err := h.ticketService.Scan(e.Request.Context(), paymentID)
	switch {
	case err == nil:
		return e.JSON(http.StatusOK, map[string]any{
			"message": "validated",
			"ticket":  ticket.Status(),
		})
	case errors.Is(err, status.ErrAlreadyScanned):
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "already scanned"})
	case errors.Is(err, status.ErrTicketNotFound):
		return e.JSON(http.StatusNotFound, map[string]any{"error": "Ticket not found"})
	default:
		return apis.NewInternalServerError("Failed to scan ticket", nil)
	}
}
