// Package epaper owns the drawing surface and pushes it to the e-paper
// display.
package epaper

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/timfel/ha-display/internal/metrics"
)

// ErrClosed is returned by pushes after Close.
var ErrClosed = errors.New("epaper: panel closed")

// Mode selects how a frame reaches the glass.
type Mode int

const (
	// Partial updates only changed pixels without flashing.
	Partial Mode = iota
	// Full repaints the whole panel and clears ghosting.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "partial"
}

// Device is the physical display driver.
type Device interface {
	Init(mode Mode) error
	Clear(c color.Color) error
	// DisplayPartial pushes img with a partial update and waits for it.
	DisplayPartial(img image.Image) error
	// DisplayFullBase pushes img with a full update and leaves the device
	// ready for partial updates.
	DisplayFullBase(img image.Image) error
	Sleep() error
	Release() error
}

// Panel owns the landscape surface. Renders happen off-panel; Present swaps
// the result in. All device calls are serialized, so the main loop and
// delayed redraws may push concurrently; the last push wins.
type Panel struct {
	dev       Device
	sleepWait time.Duration
	log       zerolog.Logger
	metrics   *metrics.Collector

	mu      sync.Mutex
	surface *image.Gray
	closed  bool
}

// NewPanel wraps dev with a width×height landscape surface. sleepWait is
// how long Close waits between putting the device to sleep and releasing it.
func NewPanel(dev Device, width, height int, sleepWait time.Duration, log zerolog.Logger, m *metrics.Collector) *Panel {
	surface := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(surface, surface.Bounds(), image.White, image.Point{}, draw.Src)
	return &Panel{
		dev:       dev,
		sleepWait: sleepWait,
		log:       log,
		metrics:   m,
		surface:   surface,
	}
}

// Init wakes the device in full mode and clears it to white.
func (p *Panel) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.dev.Init(Full); err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	if err := p.dev.Clear(color.White); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}
	return nil
}

// Present replaces the surface with img and pushes it.
func (p *Panel) Present(img *image.Gray, mode Mode, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	draw.Draw(p.surface, p.surface.Bounds(), img, img.Bounds().Min, draw.Src)
	return p.push(mode, reason)
}

// Refresh pushes the current surface again.
func (p *Panel) Refresh(mode Mode, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return p.push(mode, reason)
}

// Surface returns a copy of what was last presented.
func (p *Panel) Surface() *image.Gray {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := image.NewGray(p.surface.Rect)
	copy(out.Pix, p.surface.Pix)
	return out
}

func (p *Panel) push(mode Mode, reason string) error {
	start := time.Now()
	var err error
	if mode == Full {
		err = p.dev.DisplayFullBase(p.surface)
	} else {
		err = p.dev.DisplayPartial(p.surface)
	}
	if err != nil {
		return fmt.Errorf("%s refresh: %w", mode, err)
	}
	p.metrics.ObserveRefresh(mode.String(), reason)
	p.log.Debug().Str("mode", mode.String()).Str("reason", reason).Dur("took", time.Since(start)).Msg("refreshed")
	return nil
}

// Close puts the device to sleep, waits, then releases it. Later calls do
// nothing.
func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.dev.Sleep(); err != nil {
		errs = append(errs, fmt.Errorf("sleep display: %w", err))
	}
	time.Sleep(p.sleepWait)
	if err := p.dev.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release display: %w", err))
	}
	return errors.Join(errs...)
}
