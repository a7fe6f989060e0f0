package render

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// loadFace parses the TrueType/OpenType file at path, falling back to Go Bold
// when the file is missing or unreadable.
func loadFace(path string, size float64) (font.Face, error) {
	data := gobold.TTF
	if path != "" {
		if custom, err := os.ReadFile(path); err == nil {
			data = custom
		} else if !os.IsNotExist(err) {
			slog.Warn("render: cannot read font, using default", "path", path, "error", err)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		slog.Warn("render: invalid font, using default", "path", path, "error", err)
		if f, err = opentype.Parse(gobold.TTF); err != nil {
			return nil, err
		}
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// drawCentered writes text horizontally centred on centerX with its baseline
// at y.
func drawCentered(dst draw.Image, face font.Face, text string, centerX, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{
		X: fixed.I(centerX) - width/2,
		Y: fixed.I(y),
	}
	d.DrawString(text)
}
