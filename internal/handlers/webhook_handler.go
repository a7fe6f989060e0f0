package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"event-ticketing/internal/services"
	"event-ticketing/internal/services/gateway"
	"event-ticketing/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// HandleWebhook - POST /webhook
//
// The signature covers the exact bytes sent, so the body is read raw here and
// never goes through BindBody.
func (h *WebhookHandler) HandleWebhook(e *core.RequestEvent) error {
	payload, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "Webhook Error: unreadable body"})
	}

	signature := e.Request.Header.Get(gateway.SignatureHeader)
	result, err := h.webhookService.Handle(e.Request.Context(), payload, signature)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrWebhookUnsigned):
		return e.JSON(http.StatusForbidden, map[string]any{"error": "Webhook signature required"})
	case errors.Is(err, status.ErrInvalidSignature):
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "Webhook Error: invalid signature"})
	case errors.Is(err, status.ErrInvalidPayload):
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "Webhook Error: invalid payload"})
	default:
		slog.Error("h.webhookService.Handle()", "error", err)
		return e.JSON(http.StatusBadRequest, map[string]any{"error": "Webhook Error"})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"received": true,
		"outcome":  result.Outcome,
	})
}
