package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"event-ticketing/models"

	"github.com/disintegration/imaging"
	"github.com/gosimple/slug"
	"golang.org/x/image/font"
)

type Options struct {
	Domain     string
	TicketsDir string
	QRCodesDir string
	AssetsDir  string
	EventName  string
	Organizer  string
	EventDate  string
	EventVenue string
}

// Renderer produces the QR card image and the PDF ticket for a sale.
type Renderer struct {
	opts Options

	once     sync.Once
	loadErr  error
	nameFace font.Face
	markFace font.Face
	logo     image.Image
}

func New(opts Options) *Renderer {
	if opts.TicketsDir == "" {
		opts.TicketsDir = "tickets"
	}
	if opts.QRCodesDir == "" {
		opts.QRCodesDir = "qrcodes"
	}
	if opts.AssetsDir == "" {
		opts.AssetsDir = "assets"
	}
	if opts.Organizer == "" {
		opts.Organizer = titleCase(opts.EventName)
	}
	return &Renderer{opts: opts}
}

// QRPayload is the canonical URL encoded in every ticket.
func (r *Renderer) QRPayload(paymentID string) string {
	return fmt.Sprintf("https://%s/ticket/%s", r.opts.Domain, paymentID)
}

func (r *Renderer) Organizer() string {
	return r.opts.Organizer
}

func (r *Renderer) fontPath() string {
	return filepath.Join(r.opts.AssetsDir, "font.ttf")
}

func (r *Renderer) loadAssets() error {
	r.once.Do(func() {
		if r.nameFace, r.loadErr = loadFace(r.fontPath(), 60); r.loadErr != nil {
			return
		}
		if r.markFace, r.loadErr = loadFace(r.fontPath(), 80); r.loadErr != nil {
			return
		}
		r.logo = loadLogo(filepath.Join(r.opts.AssetsDir, "logo.png"), r.opts.EventName, r.nameFace)
	})
	return r.loadErr
}

func (r *Renderer) ensureDirs() error {
	for _, dir := range []string{r.opts.TicketsDir, r.opts.QRCodesDir, r.opts.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Render writes qrcodes/qrcode_<paymentId>.png and the PDF ticket.
func (r *Renderer) Render(ctx context.Context, t *models.Ticket) (*models.RenderedTicket, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.ensureDirs(); err != nil {
		return nil, err
	}
	if err := r.loadAssets(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}

	payload := r.QRPayload(t.PaymentID)
	qr, err := qrImage(payload, r.logo)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	card := composeCard(qr, t.FirstName, t.Name, r.opts.EventName, r.nameFace, r.markFace)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, card, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	safeID := sanitizeID(t.PaymentID)
	qrPath := filepath.Join(r.opts.QRCodesDir, "qrcode_"+safeID+".png")
	if err := os.WriteFile(qrPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write qr: %w", err)
	}

	pdfPath := filepath.Join(r.opts.TicketsDir, ticketFileName(t.FirstName, t.Name, safeID))
	if _, err := writePDF(pdfPath, pdfContent{
		Ticket:    t,
		EventName: r.opts.EventName,
		Organizer: r.opts.Organizer,
		EventDate: r.opts.EventDate,
		Venue:     r.opts.EventVenue,
		FontFile:  r.fontPath(),
	}, buf.Bytes()); err != nil {
		return nil, err
	}

	slog.Info("ticket rendered", "paymentId", t.PaymentID, "pdf", pdfPath, "duration", time.Since(start))
	return &models.RenderedTicket{
		PDFPath:    pdfPath,
		QRCodePath: qrPath,
		QRPayload:  payload,
	}, nil
}

func ticketFileName(firstName, name, paymentID string) string {
	token := slug.Make(firstName + " " + name)
	if token == "" {
		token = "billet"
	}
	return fmt.Sprintf("ticket_%s_%s.pdf", token, paymentID)
}

// sanitizeID keeps identifiers safe for use in file names.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, id)
}

func titleCase(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
