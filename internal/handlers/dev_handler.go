package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"event-ticketing/internal/services"
	"event-ticketing/internal/services/gateway"
	"event-ticketing/models"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type DevHandler struct {
	webhookService *services.WebhookService
	webhookSecret  string
	currency       string
}

func NewDevHandler(webhookService *services.WebhookService, webhookSecret, currency string) *DevHandler {
	return &DevHandler{
		webhookService: webhookService,
		webhookSecret:  webhookSecret,
		currency:       currency,
	}
}

type SimulatePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	Failed    bool   `json:"failed"`
	Amount    int64  `json:"amount"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	Reason    string `json:"reason"`
}

// SimulatePayment - POST /dev/simulate-payment
//
// Builds a payment_intent event and feeds it through the webhook pipeline,
// signed when a webhook secret is configured.
func (h *DevHandler) SimulatePayment(e *core.RequestEvent) error {
	var req SimulatePaymentRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	payload, err := h.buildEvent(req)
	if err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	signature := ""
	if h.webhookSecret != "" {
		signature = gateway.SignPayload(payload, h.webhookSecret, time.Now())
	}

	result, err := h.webhookService.Handle(e.Request.Context(), payload, signature)
	if err != nil {
		slog.Error("h.webhookService.Handle()", "error", err)
		return apis.NewBadRequestError("Simulation rejected", err)
	}

	body := map[string]any{
		"eventId":   result.EventID,
		"type":      result.Type,
		"paymentId": result.PaymentID,
		"outcome":   result.Outcome,
	}
	if result.Err != nil {
		body["error"] = result.Err.Error()
	}
	return e.JSON(http.StatusOK, body)
}

func (h *DevHandler) buildEvent(req SimulatePaymentRequest) ([]byte, error) {
	if req.PaymentID == "" {
		req.PaymentID = "pi_sim_" + uuid.NewString()[:8]
	}
	if req.Amount <= 0 {
		req.Amount = 2500
	}

	eventType := models.EventPaymentSucceeded
	intentStatus := "succeeded"
	intent := map[string]any{
		"id":            req.PaymentID,
		"object":        "payment_intent",
		"amount":        req.Amount,
		"currency":      h.currency,
		"receipt_email": req.Email,
		"metadata": map[string]string{
			models.MetadataName:      req.Name,
			models.MetadataFirstName: req.FirstName,
			models.MetadataEmail:     req.Email,
		},
	}
	if req.Failed {
		eventType = models.EventPaymentFailed
		intentStatus = "requires_payment_method"
		reason := req.Reason
		if reason == "" {
			reason = "Your card was declined."
		}
		intent["last_payment_error"] = map[string]any{
			"type":    "card_error",
			"code":    "card_declined",
			"message": reason,
		}
	}
	intent["status"] = intentStatus

	return json.Marshal(map[string]any{
		"id":       "evt_sim_" + uuid.NewString(),
		"object":   "event",
		"type":     eventType,
		"created":  time.Now().Unix(),
		"livemode": false,
		"data":     map[string]any{"object": intent},
	})
}
