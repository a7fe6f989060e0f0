package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"strings"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"
	"event-ticketing/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pocketbase/pocketbase/tools/mailer"
)

type Options struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	FromName string

	MaxAttempts int
	RetryDelay  time.Duration
	// Verify runs an SMTP handshake before every attempt.
	Verify bool

	EventName  string
	Organizer  string
	EventDate  string
	EventHours string
	EventVenue string
	Transport  string
	Contact    string
}

// Delivery describes a successfully sent ticket email.
type Delivery struct {
	MessageID string
	Attempts  int
	SentAt    time.Time
}

// Sender delivers ticket PDFs by email with a bounded retry loop.
type Sender struct {
	opts     Options
	client   mailer.Mailer
	verifier Verifier
	wait     func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Sender {
	client := &mailer.SMTPClient{
		Host:     opts.Host,
		Port:     opts.Port,
		TLS:      opts.TLS,
		Username: opts.Username,
		Password: opts.Password,
	}
	verifier := &SMTPVerifier{
		Host:     opts.Host,
		Port:     opts.Port,
		TLS:      opts.TLS,
		Username: opts.Username,
		Password: opts.Password,
	}
	return NewWithClient(opts, client, verifier)
}

// NewWithClient builds a Sender over an arbitrary mailer; verifier may be nil.
func NewWithClient(opts Options, client mailer.Mailer, verifier Verifier) *Sender {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.FromName == "" {
		opts.FromName = "Tropitech Event"
	}
	if opts.Organizer == "" {
		opts.Organizer = opts.EventName
	}
	return &Sender{
		opts:     opts,
		client:   client,
		verifier: verifier,
		wait:     sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Configured reports whether SMTP credentials were supplied.
func (s *Sender) Configured() bool {
	return s.opts.Username != "" && s.opts.Password != ""
}

// SendTicket emails the PDF at pdfPath to the ticket holder. Precondition
// failures are returned as is; exhausted retries yield *status.DeliveryError.
func (s *Sender) SendTicket(ctx context.Context, t *models.Ticket, pdfPath string) (*Delivery, error) {
	if !s.Configured() {
		return nil, status.ErrMailerNotConfigured
	}
	if err := validation.Validate(t.Email, validation.Required, is.EmailFormat); err != nil {
		return nil, fmt.Errorf("%w: %q", status.ErrInvalidRecipient, t.Email)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("%w: %s", status.ErrTicketFileMissing, pdfPath)
	}

	messageID, err := utils.GenerateMessageID(senderDomain(s.opts.Username))
	if err != nil {
		return nil, err
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		attempts = attempt
		lastErr = s.attempt(ctx, t, pdfPath, messageID)
		if lastErr == nil {
			slog.Info("ticket email sent", "paymentId", t.PaymentID, "to", t.Email, "attempt", attempt, "messageId", messageID)
			return &Delivery{MessageID: messageID, Attempts: attempt, SentAt: time.Now().UTC()}, nil
		}
		slog.Warn("ticket email attempt failed", "paymentId", t.PaymentID, "attempt", attempt, "maxAttempts", s.opts.MaxAttempts, "error", lastErr)

		if attempt < s.opts.MaxAttempts {
			if err := s.wait(ctx, s.opts.RetryDelay); err != nil {
				lastErr = errors.Join(lastErr, err)
				break
			}
		}
	}

	slog.Error("SendTicket()", "paymentId", t.PaymentID, "attempts", attempts, "error", lastErr)
	return nil, &status.DeliveryError{Attempts: attempts, Err: lastErr}
}

func (s *Sender) attempt(ctx context.Context, t *models.Ticket, pdfPath, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.opts.Verify && s.verifier != nil {
		if err := s.verifier.Verify(ctx); err != nil {
			return fmt.Errorf("verify transport: %w", err)
		}
	}

	f, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrTicketFileMissing, err)
	}
	defer f.Close()

	msg, err := s.buildMessage(t, messageID)
	if err != nil {
		return err
	}
	msg.Attachments = map[string]io.Reader{
		AttachmentName(t.FirstName, t.Name): f,
	}
	return s.client.Send(msg)
}

func (s *Sender) buildMessage(t *models.Ticket, messageID string) (*mailer.Message, error) {
	data := ticketEmailData{
		FirstName: t.FirstName,
		Name:      t.Name,
		EventName: s.opts.EventName,
		Organizer: s.opts.Organizer,
		Date:      s.opts.EventDate,
		Hours:     s.opts.EventHours,
		Venue:     s.opts.EventVenue,
		Transport: s.opts.Transport,
		Category:  t.Category.Label(),
		Contact:   s.opts.Contact,
	}
	if t.Amount > 0 {
		data.Amount = models.FormatAmount(t.Amount, t.Currency)
	}

	html, err := renderHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	return &mailer.Message{
		From:    mail.Address{Name: s.opts.FromName, Address: s.opts.Username},
		To:      []mail.Address{{Name: strings.TrimSpace(t.FirstName + " " + t.Name), Address: t.Email}},
		Subject: Subject(s.opts.Organizer),
		HTML:    html,
		Text:    renderText(data),
		Headers: map[string]string{"Message-ID": messageID},
	}, nil
}

func Subject(organizer string) string {
	return "Votre billet pour " + organizer
}

func AttachmentName(firstName, name string) string {
	return fmt.Sprintf("ticket_%s_%s.pdf", firstName, name)
}

func senderDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return address[i+1:]
	}
	return ""
}
