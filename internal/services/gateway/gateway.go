package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"event-ticketing/models"
)

// IntentParams describes a payment intent to create.
type IntentParams struct {
	Amount             int64
	Currency           string
	ReceiptEmail       string
	PaymentMethodTypes []string
	Metadata           map[string]string
	IdempotencyKey     string
}

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// Gateway is the payment provider seen by the services.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params *IntentParams) (*Intent, error)
	// ParseEvent decodes a webhook payload that has already been
	// authenticated (or deliberately left unsigned in development).
	ParseEvent(payload []byte) (*models.PaymentEvent, error)
}

type ErrorKind string

const (
	KindCard           ErrorKind = "card"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindAuthentication ErrorKind = "authentication"
	KindUnavailable    ErrorKind = "unavailable"
	KindAPI            ErrorKind = "api"
)

// Error is a provider failure classified for the HTTP layer.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s error (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status returned to API callers.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindCard:
		return http.StatusPaymentRequired
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// PublicMessage is safe to show to buyers.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindCard:
		return "Your payment method was declined"
	case KindRateLimited:
		return "Too many payment attempts, please retry shortly"
	case KindInvalidRequest:
		return "The payment request was rejected"
	case KindUnavailable:
		return "Payment provider temporarily unavailable"
	default:
		return "Payment could not be created"
	}
}

// IsClientError reports failures caused by the request rather than the
// provider. They do not count against the circuit breaker.
func IsClientError(err error) bool {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Kind == KindCard || gerr.Kind == KindInvalidRequest
}
