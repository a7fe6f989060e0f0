package models

import "time"

type WebhookOutcome string

const (
	OutcomeHandled   WebhookOutcome = "handled"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeFailed    WebhookOutcome = "failed"
	OutcomeDuplicate WebhookOutcome = "duplicate"
)

type WebhookLogEntry struct {
	ID        string         `json:"id,omitempty"`
	EventID   string         `json:"eventId"`
	Type      string         `json:"type"`
	PaymentID string         `json:"paymentId,omitempty"`
	Outcome   WebhookOutcome `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Created   time.Time      `json:"created"`
}
