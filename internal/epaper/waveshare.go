package epaper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"reflect"
	"unsafe"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
)

// Waveshare drives the Waveshare 2.13" V4 HAT. The glass is portrait
// (122×250); frames arrive in landscape and are rotated before sending.
type Waveshare struct {
	port spi.PortCloser
	dev  *waveshare2in13v4.Dev
	buf  *image1bit.VerticalLSB
}

var _ Device = (*Waveshare)(nil)

// OpenWaveshare opens the HAT on the named SPI port ("" for the default).
// host.Init must have been called.
func OpenWaveshare(spiPort string) (*Waveshare, error) {
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", spiPort, err)
	}
	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("open display: %w", err)
	}
	return &Waveshare{
		port: port,
		dev:  dev,
		buf:  image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

func (w *Waveshare) Init(mode Mode) error {
	if err := w.dev.Init(); err != nil {
		return err
	}
	return setDisplayMode(w.dev, mode)
}

func (w *Waveshare) Clear(c color.Color) error {
	return w.dev.Clear(c)
}

func (w *Waveshare) DisplayPartial(img image.Image) error {
	if err := setDisplayMode(w.dev, Partial); err != nil {
		return err
	}
	return w.dev.Draw(w.dev.Bounds(), w.frame(img), image.Point{})
}

func (w *Waveshare) DisplayFullBase(img image.Image) error {
	if err := setDisplayMode(w.dev, Full); err != nil {
		return err
	}
	if err := w.dev.Draw(w.dev.Bounds(), w.frame(img), image.Point{}); err != nil {
		return err
	}
	return setDisplayMode(w.dev, Partial)
}

func (w *Waveshare) Sleep() error {
	return w.dev.Sleep()
}

func (w *Waveshare) Release() error {
	return w.port.Close()
}

// frame rotates a landscape image into the device's 1-bit portrait buffer.
func (w *Waveshare) frame(img image.Image) *image1bit.VerticalLSB {
	draw.Draw(w.buf, w.buf.Bounds(), ToPortrait(img), image.Point{}, draw.Src)
	return w.buf
}

// ToPortrait rotates a landscape image 90° counter-clockwise so that its
// top-left corner lands on the portrait bottom-left.
func ToPortrait(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.Set(x, y, src.At(b.Min.X+y, b.Min.Y+h-1-x))
		}
	}
	return dst
}

// setDisplayMode flips the driver between full and partial waveforms. The
// driver only chooses its mode at construction, so the unexported field is
// set directly.
func setDisplayMode(display *waveshare2in13v4.Dev, mode Mode) error {
	v := reflect.ValueOf(display).Elem().FieldByName("mode")
	if !v.IsValid() || !v.CanAddr() {
		return errors.New("display mode field unavailable")
	}
	ptr := reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	if mode == Partial {
		ptr.Set(reflect.ValueOf(waveshare2in13v4.Partial))
	} else {
		ptr.Set(reflect.ValueOf(waveshare2in13v4.Full))
	}
	return nil
}
