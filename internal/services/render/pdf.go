package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"event-ticketing/models"

	"github.com/go-pdf/fpdf"
)

const (
	pageWidth  = 595.28
	pageHeight = 841.89
	infoX      = 100.0
	labelWidth = 120.0
	pdfQRWidth = 260.0
)

type pdfContent struct {
	Ticket    *models.Ticket
	EventName string
	Organizer string
	EventDate string
	Venue     string
	FontFile  string
}

// writePDF renders a single-page A4 ticket. It reports whether the QR image
// could be embedded; on failure the page carries a text notice instead.
func writePDF(path string, c pdfContent, qrPNG []byte) (bool, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	t := c.Ticket
	pdf.SetTitle(fmt.Sprintf("Billet %s - %s %s", c.Organizer, t.FirstName, t.Name), true)
	pdf.SetAuthor(c.Organizer, true)
	pdf.SetSubject("Billet électronique", true)

	family, tr := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if c.FontFile != "" {
		if _, err := os.Stat(c.FontFile); err == nil {
			pdf.AddUTF8Font("ticket", "", c.FontFile)
			pdf.AddUTF8Font("ticket", "B", c.FontFile)
			if pdf.Ok() {
				family, tr = "ticket", func(s string) string { return s }
			} else {
				slog.Warn("render: cannot embed font in pdf, using Helvetica", "path", c.FontFile, "error", pdf.Error())
				pdf.ClearError()
			}
		}
	}

	pdf.AddPage()
	pdf.SetFillColor(17, 17, 17)
	pdf.Rect(0, 0, pageWidth, pageHeight, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(family, "B", 30)
	pdf.SetXY(0, 50)
	pdf.CellFormat(pageWidth, 36, tr(c.EventName), "", 1, "C", false, 0, "")

	y := 120.0
	row := func(label, value string, r, g, b int) {
		pdf.SetFont(family, "B", 12)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetXY(infoX, y)
		pdf.CellFormat(labelWidth, 16, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 12)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(pageWidth-infoX-labelWidth-50, 16, tr(value), "", 0, "L", false, 0, "")
		y += 22
	}
	heading := func(text string) {
		pdf.SetFont(family, "B", 14)
		pdf.SetTextColor(0, 255, 255)
		pdf.SetXY(0, y)
		pdf.CellFormat(pageWidth, 18, tr(text), "", 0, "C", false, 0, "")
		y += 30
	}

	row("NOM:", t.FirstName+" "+t.Name, 255, 255, 255)
	row("EMAIL:", t.Email, 255, 255, 255)
	row("CATÉGORIE:", t.Category.Label(), 255, 215, 0)
	row("ID:", t.PaymentID, 255, 255, 255)
	if t.Amount > 0 {
		row("MONTANT:", models.FormatAmount(t.Amount, t.Currency), 255, 255, 255)
	}

	y += 20
	heading("INFORMATIONS ÉVÉNEMENT")
	row("DATE:", c.EventDate, 255, 255, 255)
	row("LIEU:", c.Venue, 255, 255, 255)

	y += 30
	heading("PRÉSENTEZ CE QR CODE À L'ENTRÉE")

	embedded := false
	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	if len(qrPNG) > 0 {
		info := pdf.RegisterImageOptionsReader("qrcode", opts, bytes.NewReader(qrPNG))
		if pdf.Ok() && info != nil {
			h := pdfQRWidth * info.Height() / info.Width()
			pdf.ImageOptions("qrcode", (pageWidth-pdfQRWidth)/2, y, pdfQRWidth, h, false, opts, 0, "")
			embedded = pdf.Ok()
		}
	}
	if !embedded {
		slog.Warn("render: qr image not embedded in pdf", "paymentId", t.PaymentID, "error", pdf.Error())
		pdf.ClearError()
		pdf.SetFont(family, "", 12)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetXY(0, y+20)
		pdf.CellFormat(pageWidth, 16, tr("QR Code non disponible"), "", 0, "C", false, 0, "")
	}

	year := t.CreatedAt.Year()
	if t.CreatedAt.IsZero() {
		year = time.Now().Year()
	}
	pdf.SetFont(family, "", 10)
	pdf.SetTextColor(170, 170, 170)
	pdf.SetXY(0, pageHeight-50)
	pdf.CellFormat(pageWidth, 12, tr(fmt.Sprintf("%s © %d - Tous droits réservés", c.Organizer, year)), "", 0, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return embedded, fmt.Errorf("write pdf: %w", err)
	}
	return embedded, nil
}
