package mail

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/pocketbase/pocketbase/tools/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	msg         *mailer.Message
	attachments map[string][]byte
}

type fakeMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []sentMessage
}

func (m *fakeMailer) Send(msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return errors.New("421 service not available")
	}
	attachments := map[string][]byte{}
	for name, r := range msg.Attachments {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		attachments[name] = data
	}
	m.sent = append(m.sent, sentMessage{msg: msg, attachments: attachments})
	return nil
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(ctx context.Context) error {
	v.calls++
	return v.err
}

func testOptions() Options {
	return Options{
		Username:    "billets@tropitech.ch",
		Password:    "secret",
		FromName:    "Tropitech Event",
		MaxAttempts: 3,
		Verify:      true,
		EventName:   "TROPITECH",
		Organizer:   "Tropitech",
		EventDate:   "19 Avril 2025",
		EventHours:  "20h00 - 04h00",
		EventVenue:  "Caves du Château, Coppet",
		Transport:   "3 min à pied de la gare de Coppet",
	}
}

func newTestSender(opts Options, m mailer.Mailer, v Verifier) *Sender {
	s := NewWithClient(opts, m, v)
	s.wait = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func writeTicketPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticket.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644))
	return path
}

func testTicket() *models.Ticket {
	return &models.Ticket{
		PaymentID: "pi_123",
		Email:     "jane@example.com",
		FirstName: "Jane",
		Name:      "Doe",
		Category:  models.CategoryEarlyBird,
		Amount:    2500,
		Currency:  "chf",
	}
}

func TestSendTicket_Success(t *testing.T) {
	m := &fakeMailer{}
	v := &fakeVerifier{}
	s := newTestSender(testOptions(), m, v)
	pdf := writeTicketPDF(t)

	delivery, err := s.SendTicket(context.Background(), testTicket(), pdf)
	require.NoError(t, err)
	assert.Equal(t, 1, delivery.Attempts)
	assert.True(t, strings.HasSuffix(delivery.MessageID, "@tropitech.ch>"))
	assert.Equal(t, 1, v.calls)

	require.Len(t, m.sent, 1)
	sent := m.sent[0]
	assert.Equal(t, "Votre billet pour Tropitech", sent.msg.Subject)
	assert.Equal(t, "Tropitech Event", sent.msg.From.Name)
	assert.Equal(t, "billets@tropitech.ch", sent.msg.From.Address)
	require.Len(t, sent.msg.To, 1)
	assert.Equal(t, "jane@example.com", sent.msg.To[0].Address)
	assert.Equal(t, delivery.MessageID, sent.msg.Headers["Message-ID"])

	assert.Contains(t, sent.msg.HTML, "Bonjour <strong>Jane Doe</strong>")
	assert.Contains(t, sent.msg.HTML, "19 Avril 2025")
	assert.Contains(t, sent.msg.HTML, "20h00 - 04h00")
	assert.Contains(t, sent.msg.HTML, "Early Bird")
	assert.Contains(t, sent.msg.Text, "Bonjour Jane Doe")

	assert.Equal(t, []byte("%PDF-1.3 test"), sent.attachments["ticket_Jane_Doe.pdf"])
}

func TestSendTicket_RetriesThenSucceeds(t *testing.T) {
	m := &fakeMailer{failures: 2}
	s := newTestSender(testOptions(), m, &fakeVerifier{})

	delivery, err := s.SendTicket(context.Background(), testTicket(), writeTicketPDF(t))
	require.NoError(t, err)
	assert.Equal(t, 3, delivery.Attempts)
	assert.Equal(t, 3, m.calls)
	require.Len(t, m.sent, 1)
	// the attachment is reopened for each attempt
	assert.NotEmpty(t, m.sent[0].attachments["ticket_Jane_Doe.pdf"])
}

func TestSendTicket_ExhaustsAttempts(t *testing.T) {
	m := &fakeMailer{failures: 10}
	s := newTestSender(testOptions(), m, &fakeVerifier{})

	_, err := s.SendTicket(context.Background(), testTicket(), writeTicketPDF(t))
	require.Error(t, err)

	var de *status.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Attempts)
	assert.Contains(t, de.Error(), "421 service not available")
	assert.Equal(t, 3, m.calls)
}

func TestSendTicket_VerifyFailureCountsAsAttempt(t *testing.T) {
	m := &fakeMailer{}
	v := &fakeVerifier{err: errors.New("535 authentication failed")}
	s := newTestSender(testOptions(), m, v)

	_, err := s.SendTicket(context.Background(), testTicket(), writeTicketPDF(t))

	var de *status.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Attempts)
	assert.Equal(t, 3, v.calls)
	assert.Equal(t, 0, m.calls)
}

func TestSendTicket_SkipsVerifyWhenDisabled(t *testing.T) {
	opts := testOptions()
	opts.Verify = false
	v := &fakeVerifier{err: errors.New("unreachable")}
	s := newTestSender(opts, &fakeMailer{}, v)

	_, err := s.SendTicket(context.Background(), testTicket(), writeTicketPDF(t))
	require.NoError(t, err)
	assert.Equal(t, 0, v.calls)
}

func TestSendTicket_Preconditions(t *testing.T) {
	pdf := writeTicketPDF(t)

	t.Run("missing credentials", func(t *testing.T) {
		opts := testOptions()
		opts.Password = ""
		m := &fakeMailer{}
		_, err := newTestSender(opts, m, nil).SendTicket(context.Background(), testTicket(), pdf)
		assert.ErrorIs(t, err, status.ErrMailerNotConfigured)
		assert.Equal(t, 0, m.calls)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		ticket := testTicket()
		ticket.Email = "not-an-email"
		m := &fakeMailer{}
		_, err := newTestSender(testOptions(), m, nil).SendTicket(context.Background(), ticket, pdf)
		assert.ErrorIs(t, err, status.ErrInvalidRecipient)
		assert.Equal(t, 0, m.calls)
	})

	t.Run("missing pdf", func(t *testing.T) {
		m := &fakeMailer{}
		_, err := newTestSender(testOptions(), m, nil).SendTicket(context.Background(), testTicket(), filepath.Join(t.TempDir(), "nope.pdf"))
		assert.ErrorIs(t, err, status.ErrTicketFileMissing)
		assert.Equal(t, 0, m.calls)
	})
}

func TestSendTicket_ContextCancelled(t *testing.T) {
	m := &fakeMailer{failures: 10}
	s := NewWithClient(testOptions(), m, nil)
	s.opts.RetryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := s.SendTicket(ctx, testTicket(), writeTicketPDF(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)

	var de *status.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Attempts)
}

func TestNewWithClient_Defaults(t *testing.T) {
	s := NewWithClient(Options{EventName: "TROPITECH"}, &fakeMailer{}, nil)
	assert.Equal(t, 3, s.opts.MaxAttempts)
	assert.Equal(t, "Tropitech Event", s.opts.FromName)
	assert.Equal(t, "TROPITECH", s.opts.Organizer)
	assert.False(t, s.Configured())
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "ticket_Jane_Doe.pdf", AttachmentName("Jane", "Doe"))
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "tropitech.ch", senderDomain("billets@tropitech.ch"))
	assert.Equal(t, "", senderDomain("nobody"))
}
