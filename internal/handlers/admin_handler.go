package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"event-ticketing/internal/services"
	"event-ticketing/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	ticketService *services.TicketService
	fulfillment   *services.FulfillmentService
	events        services.EventLog
}

func NewAdminHandler(ticketService *services.TicketService, fulfillment *services.FulfillmentService, events services.EventLog) *AdminHandler {
	return &AdminHandler{
		ticketService: ticketService,
		fulfillment:   fulfillment,
		events:        events,
	}
}

// ListUndelivered - GET /admin/tickets/undelivered?limit=
func (h *AdminHandler) ListUndelivered(e *core.RequestEvent) error {
	limit := queryInt(e, "limit", 100)

	tickets, err := h.ticketService.ListUndelivered(e.Request.Context(), int64(limit))
	if err != nil {
		slog.Error("h.ticketService.ListUndelivered()", "error", err)
		return apis.NewInternalServerError("Failed to list tickets", nil)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"count":   len(tickets),
		"tickets": tickets,
	})
}

// Resend - POST /admin/tickets/{paymentId}/resend
func (h *AdminHandler) Resend(e *core.RequestEvent) error {
	paymentID := e.Request.PathValue("paymentId")

	ticket, err := h.fulfillment.Redeliver(e.Request.Context(), paymentID)
	if errors.Is(err, status.ErrTicketNotFound) {
		return e.JSON(http.StatusNotFound, map[string]any{"error": "Ticket not found"})
	}
	if err != nil {
		slog.Error("h.fulfillment.Redeliver()", "paymentId", paymentID, "error", err)
		return e.JSON(http.StatusBadGateway, map[string]any{
			"error":  "Redelivery failed",
			"detail": err.Error(),
		})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"message": "ticket sent",
		"ticket":  ticket,
	})
}

// WebhookEvents - GET /admin/webhook-events?paymentId=&limit=
func (h *AdminHandler) WebhookEvents(e *core.RequestEvent) error {
	paymentID := e.Request.URL.Query().Get("paymentId")
	limit := queryInt(e, "limit", 50)

	entries, err := h.events.Recent(e.Request.Context(), paymentID, limit)
	if err != nil {
		slog.Error("h.events.Recent()", "paymentId", paymentID, "error", err)
		return apis.NewInternalServerError("Failed to list webhook events", nil)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"count":  len(entries),
		"events": entries,
	})
}

func queryInt(e *core.RequestEvent, key string, fallback int) int {
	v, err := strconv.Atoi(e.Request.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
