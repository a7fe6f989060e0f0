package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"event-ticketing/internal/services/gateway"
	"event-ticketing/models"
	"event-ticketing/utils"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Config struct {
	SecretKey string
	// Backends overrides the API endpoints, mainly for tests.
	Backends *stripego.Backends
	Breaker  *utils.CircuitBreaker
}

// Stripe implements gateway.Gateway on top of the Stripe API.
type Stripe struct {
	api     *client.API
	breaker *utils.CircuitBreaker
}

func New(cfg Config) *Stripe {
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = utils.NewCircuitBreaker("stripe",
			utils.WithMinRequests(10),
			utils.WithTimeout(30*time.Second),
			utils.WithIsSuccessful(func(err error) bool {
				return err == nil || gateway.IsClientError(err)
			}),
		)
	}

	return &Stripe{
		api:     client.New(cfg.SecretKey, cfg.Backends),
		breaker: breaker,
	}
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, p *gateway.IntentParams) (*gateway.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:             stripego.Int64(p.Amount),
		Currency:           stripego.String(p.Currency),
		PaymentMethodTypes: stripego.StringSlice(p.PaymentMethodTypes),
	}
	if p.ReceiptEmail != "" {
		params.ReceiptEmail = stripego.String(p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx

	res, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		pi, err := s.api.PaymentIntents.New(params)
		if err != nil {
			return nil, classify(err)
		}
		return pi, nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests) {
			slog.Warn("stripe circuit breaker rejected call", "state", s.breaker.State().String())
			return nil, &gateway.Error{Kind: gateway.KindUnavailable, Message: err.Error(), Err: err}
		}
		return nil, err
	}

	pi := res.(*stripego.PaymentIntent)
	return &gateway.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}, nil
}

func (s *Stripe) ParseEvent(payload []byte) (*models.PaymentEvent, error) {
	return ParseEvent(payload)
}

// ParseEvent decodes a Stripe event envelope. For payment_intent.* events the
// embedded object is decoded into a models.PaymentIntent.
func ParseEvent(payload []byte) (*models.PaymentEvent, error) {
	var evt stripego.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, errors.New("decode event: id and type are required")
	}

	out := &models.PaymentEvent{
		ID:       evt.ID,
		Type:     string(evt.Type),
		Created:  time.Unix(evt.Created, 0),
		Livemode: evt.Livemode,
	}

	if strings.HasPrefix(out.Type, "payment_intent.") && evt.Data != nil && len(evt.Data.Raw) > 0 {
		var pi stripego.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.PaymentIntent = toPaymentIntent(&pi)
	}
	return out, nil
}

func toPaymentIntent(pi *stripego.PaymentIntent) *models.PaymentIntent {
	out := &models.PaymentIntent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		ReceiptEmail: pi.ReceiptEmail,
		Metadata:     pi.Metadata,
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	if pi.LastPaymentError != nil {
		out.FailureCode = string(pi.LastPaymentError.Code)
		out.FailureMsg = pi.LastPaymentError.Msg
	}
	return out
}

func classify(err error) error {
	var serr *stripego.Error
	if !errors.As(err, &serr) {
		return &gateway.Error{Kind: gateway.KindUnavailable, Message: err.Error(), Err: err}
	}

	gerr := &gateway.Error{Code: string(serr.Code), Message: serr.Msg, Err: err}
	switch {
	case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.Code == "rate_limit":
		gerr.Kind = gateway.KindRateLimited
	case serr.Type == stripego.ErrorTypeCard:
		gerr.Kind = gateway.KindCard
	case serr.HTTPStatusCode == http.StatusUnauthorized:
		gerr.Kind = gateway.KindAuthentication
	case serr.Type == stripego.ErrorTypeInvalidRequest:
		gerr.Kind = gateway.KindInvalidRequest
	default:
		gerr.Kind = gateway.KindAPI
	}
	return gerr
}
