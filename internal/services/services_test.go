package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"event-ticketing/internal/services/gateway/stripe"
	"event-ticketing/internal/testutil"
	"event-ticketing/models"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *testutil.MemoryStore
	gateway  *testutil.FakeGateway
	renderer *testutil.FakeRenderer
	mailer   *testutil.FakeMailer
	notifier *testutil.FakeNotifier
	events   *testutil.MemoryEventLog

	fulfillment *FulfillmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    testutil.NewMemoryStore(),
		gateway:  &testutil.FakeGateway{Parse: stripe.ParseEvent},
		renderer: &testutil.FakeRenderer{Dir: t.TempDir()},
		mailer:   &testutil.FakeMailer{},
		notifier: &testutil.FakeNotifier{},
		events:   &testutil.MemoryEventLog{},
	}
	f.fulfillment = NewFulfillmentService(f.store, f.renderer, f.mailer, f.notifier)
	return f
}

func (f *fixture) webhook(opts WebhookOptions) *WebhookService {
	return NewWebhookService(opts, f.gateway, NewMemoryDeduper(1000, 24*time.Hour), f.fulfillment, f.events)
}

func paymentIntent(id string) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:       id,
		Amount:   2500,
		Currency: "chf",
		Status:   "succeeded",
		Metadata: map[string]string{
			models.MetadataName:      "Doe",
			models.MetadataFirstName: "Jane",
			models.MetadataEmail:     "jane@example.com",
		},
	}
}

// eventPayload builds a Stripe event envelope around a payment intent.
func eventPayload(t *testing.T, eventID, eventType string, pi map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":       eventID,
		"object":   "event",
		"type":     eventType,
		"created":  time.Now().Unix(),
		"livemode": false,
		"data":     map[string]any{"object": pi},
	})
	require.NoError(t, err)
	return body
}

func intentObject(id string) map[string]any {
	return map[string]any{
		"id":            id,
		"object":        "payment_intent",
		"amount":        2500,
		"currency":      "chf",
		"status":        "succeeded",
		"receipt_email": "jane@example.com",
		"metadata": map[string]string{
			models.MetadataName:      "Doe",
			models.MetadataFirstName: "Jane",
			models.MetadataEmail:     "jane@example.com",
		},
	}
}

func seedTickets(t *testing.T, f *fixture, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ticket := &models.Ticket{
			PaymentID: fmt.Sprintf("pi_seed_%d", i),
			Email:     "seed@example.com",
			Category:  models.CategoryForCount(int64(i)),
		}
		require.NoError(t, f.store.InsertTicket(t.Context(), ticket))
	}
}
