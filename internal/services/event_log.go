package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"event-ticketing/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

const (
	WebhookEventsCollection = "webhook_events"
	maxErrorLength          = 1000
)

// PocketBaseEventLog stores the webhook audit trail in the PocketBase
// webhook_events collection.
type PocketBaseEventLog struct {
	app core.App
}

func NewPocketBaseEventLog(app core.App) *PocketBaseEventLog {
	return &PocketBaseEventLog{app: app}
}

func (l *PocketBaseEventLog) Record(ctx context.Context, entry *models.WebhookLogEntry) error {
	collection, err := l.app.FindCachedCollectionByNameOrId(WebhookEventsCollection)
	if err != nil {
		return fmt.Errorf("find collection %s: %w", WebhookEventsCollection, err)
	}

	record := core.NewRecord(collection)
	record.Set("event_id", entry.EventID)
	record.Set("type", entry.Type)
	record.Set("payment_id", entry.PaymentID)
	record.Set("outcome", string(entry.Outcome))
	record.Set("error", truncate(entry.Error, maxErrorLength))

	if err := l.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save webhook event: %w", err)
	}
	entry.ID = record.Id
	return nil
}

// Recent lists the newest entries, optionally for a single payment.
func (l *PocketBaseEventLog) Recent(ctx context.Context, paymentID string, limit int) ([]models.WebhookLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	filter := "id != ''"
	params := dbx.Params{}
	if paymentID != "" {
		filter = "payment_id = {:paymentId}"
		params["paymentId"] = paymentID
	}

	records, err := l.app.FindRecordsByFilter(WebhookEventsCollection, filter, "-created", limit, 0, params)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}

	entries := make([]models.WebhookLogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, models.WebhookLogEntry{
			ID:        r.Id,
			EventID:   r.GetString("event_id"),
			Type:      r.GetString("type"),
			PaymentID: r.GetString("payment_id"),
			Outcome:   models.WebhookOutcome(r.GetString("outcome")),
			Error:     r.GetString("error"),
			Created:   r.GetDateTime("created").Time(),
		})
	}
	return entries, nil
}

// truncate keeps at most n characters, matching how TextField.Max counts.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
