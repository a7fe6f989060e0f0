// Package testutil holds in-memory fakes for the service interfaces.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"event-ticketing/internal/services/gateway"
	"event-ticketing/internal/services/mail"
	"event-ticketing/internal/status"
	"event-ticketing/models"
)

// MemoryStore mirrors the Mongo store, including the unique paymentId index.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	tickets map[string]*models.Ticket
	order   []string

	// Err, when set, is returned by every method.
	Err error
	// BeforeInsertTicket runs inside InsertTicket before the uniqueness check.
	BeforeInsertTicket func(t *models.Ticket)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   map[string]*models.User{},
		tickets: map[string]*models.Ticket{},
	}
}

func (s *MemoryStore) InsertUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[user.PaymentID]; ok {
		return status.ErrDuplicateUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	s.users[user.PaymentID] = &cp
	return nil
}

func (s *MemoryStore) FindUserByPaymentID(ctx context.Context, paymentID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[paymentID]
	if !ok {
		return nil, status.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	if s.BeforeInsertTicket != nil {
		s.BeforeInsertTicket(ticket)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.tickets[ticket.PaymentID]; ok {
		return status.ErrDuplicateTicket
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	cp := *ticket
	s.tickets[ticket.PaymentID] = &cp
	s.order = append(s.order, ticket.PaymentID)
	return nil
}

func (s *MemoryStore) FindTicketByPaymentID(ctx context.Context, paymentID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.tickets[paymentID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) TicketExists(ctx context.Context, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.tickets[paymentID]
	return ok, nil
}

func (s *MemoryStore) CountTickets(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return int64(len(s.tickets)), nil
}

func (s *MemoryStore) CountTicketsByCategory(ctx context.Context) (map[models.Category]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[models.Category]int64{}
	for _, t := range s.tickets {
		counts[t.Category]++
	}
	return counts, nil
}

func (s *MemoryStore) UpdateTicketRendering(ctx context.Context, paymentID string, rendered *models.RenderedTicket) error {
	return s.update(paymentID, func(t *models.Ticket) {
		t.PDFPath = rendered.PDFPath
		t.QRCodePath = rendered.QRCodePath
	})
}

func (s *MemoryStore) UpdateTicketDelivery(ctx context.Context, paymentID string, update models.DeliveryUpdate) error {
	return s.update(paymentID, func(t *models.Ticket) {
		t.EmailSent = update.Sent
		t.EmailAttempts = update.Attempts
		if update.Sent {
			t.EmailSentAt = update.SentAt
			t.EmailMessageID = update.MessageID
			t.EmailError = ""
		} else {
			t.EmailError = update.Error
		}
	})
}

func (s *MemoryStore) MarkTicketScanned(ctx context.Context, paymentID string, at time.Time) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	t, ok := s.tickets[paymentID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	if t.QRCodeScanned {
		return nil, status.ErrAlreadyScanned
	}
	t.QRCodeScanned = true
	t.ScannedAt = &at
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListUndeliveredTickets(ctx context.Context, limit int64) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Ticket{}
	for _, id := range s.order {
		if t := s.tickets[id]; !t.EmailSent {
			out = append(out, *t)
		}
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

// Tickets returns every stored ticket in insertion order.
func (s *MemoryStore) Tickets() []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tickets[id])
	}
	return out
}

func (s *MemoryStore) update(paymentID string, fn func(t *models.Ticket)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	t, ok := s.tickets[paymentID]
	if !ok {
		return status.ErrTicketNotFound
	}
	fn(t)
	return nil
}

// FakeGateway records created intents and parses events as the Stripe
// adapter would see them.
type FakeGateway struct {
	mu      sync.Mutex
	seq     int
	Created []gateway.IntentParams
	Err     error
	Parse   func(payload []byte) (*models.PaymentEvent, error)
}

func (g *FakeGateway) CreatePaymentIntent(ctx context.Context, params *gateway.IntentParams) (*gateway.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.seq++
	g.Created = append(g.Created, *params)
	id := fmt.Sprintf("pi_test_%d", g.seq)
	return &gateway.Intent{
		ID:           id,
		ClientSecret: id + "_secret_test",
		Amount:       params.Amount,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
	}, nil
}

func (g *FakeGateway) ParseEvent(payload []byte) (*models.PaymentEvent, error) {
	if g.Parse == nil {
		return nil, errors.New("fake gateway: no parser")
	}
	return g.Parse(payload)
}

// FakeRenderer writes a small placeholder PDF so the mailer precondition on
// the file holds.
type FakeRenderer struct {
	mu    sync.Mutex
	Dir   string
	Err   error
	Calls int
}

func (r *FakeRenderer) Render(ctx context.Context, t *models.Ticket) (*models.RenderedTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	pdf := filepath.Join(r.Dir, "ticket_"+t.PaymentID+".pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.3 fake"), 0o644); err != nil {
		return nil, err
	}
	return &models.RenderedTicket{
		PDFPath:    pdf,
		QRCodePath: filepath.Join(r.Dir, "qrcode_"+t.PaymentID+".png"),
		QRPayload:  "https://tropitech.ch/ticket/" + t.PaymentID,
	}, nil
}

type SentTicket struct {
	PaymentID string
	Email     string
	PDFPath   string
}

type FakeMailer struct {
	mu   sync.Mutex
	Err  error
	Sent []SentTicket
}

func (m *FakeMailer) SendTicket(ctx context.Context, t *models.Ticket, pdfPath string) (*mail.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, SentTicket{PaymentID: t.PaymentID, Email: t.Email, PDFPath: pdfPath})
	return &mail.Delivery{
		MessageID: fmt.Sprintf("<%d@test>", len(m.Sent)),
		Attempts:  1,
		SentAt:    time.Now().UTC(),
	}, nil
}

type Published struct {
	Channel string
	Message map[string]any
}

type FakeNotifier struct {
	mu        sync.Mutex
	Err       error
	Published []Published
}

func (n *FakeNotifier) Publish(ctx context.Context, channel string, message map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Published = append(n.Published, Published{Channel: channel, Message: message})
	return n.Err
}

type MemoryEventLog struct {
	mu      sync.Mutex
	Entries []models.WebhookLogEntry
}

func (l *MemoryEventLog) Record(ctx context.Context, entry *models.WebhookLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = fmt.Sprintf("log%d", len(l.Entries)+1)
	l.Entries = append(l.Entries, *entry)
	return nil
}

func (l *MemoryEventLog) Recent(ctx context.Context, paymentID string, limit int) ([]models.WebhookLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []models.WebhookLogEntry{}
	for _, e := range l.Entries {
		if paymentID == "" || e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Outcomes lists recorded outcomes in order.
func (l *MemoryEventLog) Outcomes() []models.WebhookOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.WebhookOutcome, 0, len(l.Entries))
	for _, e := range l.Entries {
		out = append(out, e.Outcome)
	}
	return out
}
