package page

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	white uint8 = 255
	black uint8 = 0
)

func paint(img *image.Gray, c uint8) {
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: c}}, image.Point{}, draw.Src)
}

func fillRect(img *image.Gray, r image.Rectangle, c uint8) {
	draw.Draw(img, r.Intersect(img.Rect), &image.Uniform{color.Gray{Y: c}}, image.Point{}, draw.Src)
}

// rectOutline draws the 1px border just inside r.
func rectOutline(img *image.Gray, r image.Rectangle, c uint8) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1
	hline(img, x0, x1, y0, c)
	hline(img, x0, x1, y1, c)
	vline(img, x0, y0, y1, c)
	vline(img, x1, y0, y1, c)
}

func hline(img *image.Gray, x0, x1, y int, c uint8) {
	for x := x0; x <= x1; x++ {
		if image.Pt(x, y).In(img.Rect) {
			img.SetGray(x, y, color.Gray{Y: c})
		}
	}
}

func vline(img *image.Gray, x, y0, y1 int, c uint8) {
	for y := y0; y <= y1; y++ {
		if image.Pt(x, y).In(img.Rect) {
			img.SetGray(x, y, color.Gray{Y: c})
		}
	}
}

// text draws s with its baseline starting at (x, y).
func text(img *image.Gray, face font.Face, x, y int, s string, c uint8) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: c}),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textCentered draws s centred in r.
func textCentered(img *image.Gray, face font.Face, r image.Rectangle, s string, c uint8) {
	w := font.MeasureString(face, s).Round()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Round()
	x := r.Min.X + (r.Dx()-w)/2
	y := r.Min.Y + (r.Dy()-h)/2 + m.Ascent.Round()
	text(img, face, x, y, s, c)
}

// drawButton draws a labelled box; an active button is filled and its label
// inverted.
func drawButton(img *image.Gray, face font.Face, r image.Rectangle, label string, active bool) {
	fill, ink := white, black
	if active {
		fill, ink = black, white
	}
	fillRect(img, r, fill)
	rectOutline(img, r, black)
	textCentered(img, face, r, label, ink)
}
