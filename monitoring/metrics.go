package monitoring

import (
	"context"
	"log/slog"
	"time"

	"event-ticketing/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_payment_intents_total",
			Help: "Payment intent creation requests by outcome",
		},
		[]string{"outcome"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_webhook_events_total",
			Help: "Webhook events received by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets created per category",
		},
		[]string{"category"},
	)

	emailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_email_deliveries_total",
			Help: "Ticket email deliveries by outcome",
		},
		[]string{"outcome"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_ticket_render_duration_seconds",
			Help:    "Duration of QR code and PDF generation",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	ticketsRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketing_tickets_remaining",
			Help: "Remaining places per category",
		},
		[]string{"category"},
	)

	ticketScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_ticket_scans_total",
			Help: "Ticket scans at the entrance by outcome",
		},
		[]string{"outcome"},
	)
)

// Outcome labels shared by the counters above.
const (
	OutcomeCreated  = "created"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeScanned  = "validated"
	OutcomeRescan   = "already_scanned"
	OutcomeNotFound = "not_found"
)

func TrackPaymentIntent(outcome string) {
	paymentIntents.WithLabelValues(outcome).Inc()
}

func TrackWebhookEvent(eventType string, outcome models.WebhookOutcome) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEvents.WithLabelValues(eventType, string(outcome)).Inc()
}

func TrackTicketIssued(category models.Category) {
	ticketsIssued.WithLabelValues(string(category)).Inc()
}

func TrackEmailDelivery(outcome string) {
	emailDeliveries.WithLabelValues(outcome).Inc()
}

func ObserveRender(d time.Duration) {
	renderDuration.Observe(d.Seconds())
}

func TrackScan(outcome string) {
	ticketScans.WithLabelValues(outcome).Inc()
}

func SetRemaining(a models.Availability) {
	for _, c := range models.Categories {
		ticketsRemaining.WithLabelValues(string(c)).Set(float64(a.Remaining(c)))
	}
}

// AvailabilitySource reports remaining places per category.
type AvailabilitySource interface {
	Availability(ctx context.Context) (models.Availability, error)
}

type Monitor struct {
	source   AvailabilitySource
	interval time.Duration
}

// NewMonitor starts a background loop refreshing the remaining-places gauge
// until ctx is cancelled.
func NewMonitor(ctx context.Context, source AvailabilitySource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	monitor := &Monitor{source: source, interval: interval}

	go monitor.collectMetrics(ctx)

	return monitor
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx)
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	a, err := m.source.Availability(ctx)
	if err != nil {
		slog.Error("m.source.Availability()", "error", err)
		return
	}
	SetRemaining(a)
}
