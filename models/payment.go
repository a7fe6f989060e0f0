package models

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// Metadata keys attached to every payment intent.
const (
	MetadataName      = "customer_name"
	MetadataFirstName = "customer_firstName"
	MetadataEmail     = "customer_email"
)

type CreatePaymentRequest struct {
	Amount       int64  `json:"amount"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	FirstName    string `json:"firstName"`
	ImageConsent bool   `json:"imageConsent"`
}

func (r *CreatePaymentRequest) Normalize() {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	r.FirstName = strings.TrimSpace(r.FirstName)
}

func (r CreatePaymentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.ImageConsent, validation.Required.Error("must be accepted")),
	)
}

// ValidationDetails flattens ozzo errors into a field -> message map.
func ValidationDetails(err error) map[string]string {
	details := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			details[field] = ferr.Error()
		}
		return details
	}
	if err != nil {
		details["request"] = err.Error()
	}
	return details
}

func (r CreatePaymentRequest) Metadata() map[string]string {
	return map[string]string{
		MetadataName:      r.Name,
		MetadataFirstName: r.FirstName,
		MetadataEmail:     r.Email,
	}
}

type CreatePaymentResponse struct {
	ClientSecret string `json:"clientSecret"`
	ID           string `json:"id"`
}

// PaymentIntent is the gateway-neutral view of a payment intent carried by
// webhook events.
type PaymentIntent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
	FailureCode  string            `json:"failure_code,omitempty"`
	FailureMsg   string            `json:"failure_message,omitempty"`
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

type PaymentEvent struct {
	ID            string
	Type          string
	Created       time.Time
	Livemode      bool
	PaymentIntent *PaymentIntent
}

// FormatAmount renders an amount in the smallest currency unit as a
// two-decimal string, e.g. 1000 "chf" -> "10.00 CHF".
func FormatAmount(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
