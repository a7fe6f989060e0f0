package render

import (
	"image"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
)

const (
	cardWidth  = 800
	cardHeight = 1200
	qrSize     = 500
	// Share of the QR width covered by the logo. Highest error correction
	// recovers up to 30% damaged codewords.
	logoRatio = 0.22
)

// qrImage encodes payload as a white-on-black QR code with the logo in its
// centre.
func qrImage(payload string, logo image.Image) (*image.NRGBA, error) {
	q, err := qrcode.New(payload, qrcode.Highest)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = color.White
	q.BackgroundColor = color.Black

	img := imaging.Clone(q.Image(qrSize))
	if logo == nil {
		return img, nil
	}

	side := int(float64(img.Bounds().Dx()) * logoRatio)
	logo = imaging.Fit(logo, side, side, imaging.Lanczos)
	return imaging.OverlayCenter(img, logo, 1.0), nil
}

// composeCard lays out the QR code on a portrait canvas with the buyer's
// names above and below and the event wordmark near the bottom.
func composeCard(qr image.Image, firstName, lastName, wordmark string, nameFace, markFace font.Face) *image.NRGBA {
	canvas := imaging.New(cardWidth, cardHeight, color.Black)

	qrX := (cardWidth - qr.Bounds().Dx()) / 2
	qrY := (cardHeight - qr.Bounds().Dy()) / 2
	canvas = imaging.Paste(canvas, qr, image.Pt(qrX, qrY))

	drawCentered(canvas, nameFace, strings.ToUpper(firstName), cardWidth/2, qrY-40, color.White)
	drawCentered(canvas, nameFace, strings.ToUpper(lastName), cardWidth/2, qrY+qr.Bounds().Dy()+80, color.White)
	if wordmark != "" {
		drawCentered(canvas, markFace, wordmark, cardWidth/2, cardHeight-100, color.White)
	}
	return canvas
}

// loadLogo opens the brand logo, or draws a placeholder monogram when the
// file is absent or unreadable.
func loadLogo(path, wordmark string, face font.Face) image.Image {
	if path != "" {
		img, err := imaging.Open(path)
		if err == nil {
			return img
		}
		if !os.IsNotExist(err) {
			slog.Warn("render: cannot open logo, using placeholder", "path", path, "error", err)
		}
	}
	return placeholderLogo(120, wordmark, face)
}

func placeholderLogo(size int, wordmark string, face font.Face) image.Image {
	const frame = 6
	img := imaging.New(size, size, color.White)
	img = imaging.Paste(img, imaging.New(size-2*frame, size-2*frame, color.Black), image.Pt(frame, frame))

	initial := "T"
	if w := strings.TrimSpace(wordmark); w != "" {
		initial = strings.ToUpper(string([]rune(w)[0]))
	}
	if face != nil {
		ascent := face.Metrics().Ascent.Round()
		drawCentered(img, face, initial, size/2, (size+ascent)/2-4, color.White)
	}
	return img
}
