package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"event-ticketing/internal/services"
	"event-ticketing/internal/services/gateway"
	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	production     bool
}

func NewPaymentHandler(paymentService *services.PaymentService, production bool) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		production:     production,
	}
}

// CreatePayment - POST /payment/create-payment
func (h *PaymentHandler) CreatePayment(e *core.RequestEvent) error {
	var req models.CreatePaymentRequest
	if err := e.BindBody(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Invalid request body",
			"details": map[string]string{"body": err.Error()},
		})
	}

	resp, err := h.paymentService.CreatePayment(e.Request.Context(), req)
	if err == nil {
		return e.JSON(http.StatusOK, resp)
	}

	if errors.Is(err, status.ErrInvalidRequest) {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Validation failed",
			"details": models.ValidationDetails(err),
		})
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		message := gwErr.PublicMessage()
		if !h.production {
			message = gwErr.Error()
		}
		return e.JSON(gwErr.HTTPStatus(), map[string]any{
			"error": message,
			"code":  string(gwErr.Kind),
		})
	}

	slog.Error("h.paymentService.CreatePayment()", "error", err)
	body := map[string]any{"error": "Failed to create payment"}
	if !h.production {
		body["details"] = err.Error()
	}
	return e.JSON(http.StatusInternalServerError, body)
}
