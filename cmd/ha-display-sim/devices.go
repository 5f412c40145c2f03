package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/epaper"
	"github.com/timfel/ha-display/internal/hub"
	"github.com/timfel/ha-display/internal/mqtt"
	"github.com/timfel/ha-display/internal/touch"
)

// pressDuration is how long a simulated finger stays on the glass.
const pressDuration = 80 * time.Millisecond

// simTouch is a touch controller driven by mouse clicks.
type simTouch struct {
	mu    sync.Mutex
	raw   touch.Raw
	until time.Time
	now   func() time.Time
}

func newSimTouch() *simTouch {
	return &simTouch{now: time.Now}
}

func (s *simTouch) Init() error  { return nil }
func (s *simTouch) Close() error { return nil }

func (s *simTouch) Touched() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.until), nil
}

func (s *simTouch) Read() (touch.Raw, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw, s.now().Before(s.until), nil
}

// tap presses the landscape point (row, col).
func (s *simTouch) tap(row, col int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = touch.ToRaw(row, col)
	s.until = s.now().Add(pressDuration)
}

type frameMsg struct{ img *image.Gray }

// simDevice forwards every pushed frame to the terminal.
type simDevice struct {
	send func(tea.Msg)
}

var _ epaper.Device = (*simDevice)(nil)

func (d *simDevice) Init(epaper.Mode) error { return nil }
func (d *simDevice) Sleep() error           { return nil }
func (d *simDevice) Release() error         { return nil }

func (d *simDevice) Clear(c color.Color) error {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	d.send(frameMsg{img: img})
	return nil
}

func (d *simDevice) DisplayPartial(img image.Image) error {
	d.send(frameMsg{img: snapshot(img)})
	return nil
}

func (d *simDevice) DisplayFullBase(img image.Image) error {
	d.send(frameMsg{img: snapshot(img)})
	return nil
}

// snapshot copies img; the panel reuses its surface after the push.
func snapshot(img image.Image) *image.Gray {
	out := image.NewGray(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}

// memHub stands in for Home Assistant. Calling the movie or airplay scripts
// turns the media switch on, the movie-off script turns it off.
type memHub struct {
	scenes config.Scenes

	mu      sync.Mutex
	on      bool
	failing bool
}

func newMemHub(scenes config.Scenes) *memHub {
	return &memHub{scenes: scenes}
}

func (h *memHub) CallScript(_ context.Context, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failing {
		return false
	}
	switch name {
	case h.scenes.MovieOn, h.scenes.Airplay:
		h.on = true
	case h.scenes.MovieOff:
		h.on = false
	}
	return true
}

func (h *memHub) SwitchOn(context.Context, string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.on && !h.failing
}

func (h *memHub) PowerStats(context.Context, config.Entities) hub.PowerStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failing {
		return hub.PowerStats{PV: hub.ErrorState, Battery: hub.ErrorState, Consumption: hub.ErrorState}
	}
	return hub.PowerStats{
		PV:          fmt.Sprint(800 + rand.IntN(400)),
		Battery:     fmt.Sprintf("%.1f", 4+rand.Float64()*2),
		Consumption: fmt.Sprint(300 + rand.IntN(200)),
	}
}

func (h *memHub) toggleFailing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failing = !h.failing
	return h.failing
}

type pageMsg struct{ page string }

type actionMsg struct{ event mqtt.Event }

// simEvents shows published events in the status line.
type simEvents struct {
	send func(tea.Msg)
}

func (e simEvents) PublishPage(p string)        { e.send(pageMsg{page: p}) }
func (e simEvents) PublishAction(ev mqtt.Event) { e.send(actionMsg{event: ev}) }
