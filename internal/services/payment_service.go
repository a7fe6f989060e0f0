package services

import (
	"context"
	"fmt"
	"log/slog"

	"event-ticketing/internal/services/gateway"
	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/monitoring"

	"github.com/google/uuid"
)

type PaymentService struct {
	store       Store
	gateway     gateway.Gateway
	currency    string
	methodTypes []string
}

func NewPaymentService(store Store, gw gateway.Gateway, currency string, methodTypes []string) *PaymentService {
	if currency == "" {
		currency = "chf"
	}
	if len(methodTypes) == 0 {
		methodTypes = []string{"card"}
	}
	return &PaymentService{
		store:       store,
		gateway:     gw,
		currency:    currency,
		methodTypes: methodTypes,
	}
}

// CreatePayment validates the buyer, opens a payment intent and persists the
// buyer keyed by the intent id. Validation failures wrap
// status.ErrInvalidRequest together with the ozzo errors.
func (s *PaymentService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		monitoring.TrackPaymentIntent(monitoring.OutcomeInvalid)
		return nil, fmt.Errorf("%w: %w", status.ErrInvalidRequest, err)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, &gateway.IntentParams{
		Amount:             req.Amount,
		Currency:           s.currency,
		ReceiptEmail:       req.Email,
		PaymentMethodTypes: s.methodTypes,
		Metadata:           req.Metadata(),
		IdempotencyKey:     uuid.NewString(),
	})
	if err != nil {
		monitoring.TrackPaymentIntent(monitoring.OutcomeError)
		slog.Error("s.gateway.CreatePaymentIntent()", "email", req.Email, "amount", req.Amount, "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		FirstName:    req.FirstName,
		PaymentID:    intent.ID,
		ImageConsent: req.ImageConsent,
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		slog.Error("s.store.InsertUser()", "paymentId", intent.ID, "error", err)
		return nil, fmt.Errorf("save user: %w", err)
	}

	monitoring.TrackPaymentIntent(monitoring.OutcomeCreated)
	slog.Info("payment intent created", "paymentId", intent.ID, "amount", models.FormatAmount(intent.Amount, intent.Currency))

	return &models.CreatePaymentResponse{
		ClientSecret: intent.ClientSecret,
		ID:           intent.ID,
	}, nil
}
