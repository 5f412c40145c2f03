// Package app runs the panel: it keeps the display fresh, turns touches into
// page changes and hub calls, and tears the hardware down exactly once.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/epaper"
	"github.com/timfel/ha-display/internal/metrics"
	"github.com/timfel/ha-display/internal/mqtt"
	"github.com/timfel/ha-display/internal/page"
	"github.com/timfel/ha-display/internal/refresh"
	"github.com/timfel/ha-display/internal/touch"
)

// Panel is the display surface the loop pushes frames to.
type Panel interface {
	Init() error
	Present(img *image.Gray, mode epaper.Mode, reason string) error
	Refresh(mode epaper.Mode, reason string) error
	Close() error
}

// Touch delivers touch points.
type Touch interface {
	Start(ctx context.Context) error
	Scan() (touch.Point, bool, error)
	Stop()
}

// Hub triggers scenes.
type Hub interface {
	CallScript(ctx context.Context, name string) bool
}

// Pages renders pages and interprets touches on them.
type Pages interface {
	Render(ctx context.Context, p page.Page) *image.Gray
	Interpret(p page.Page, row, col int) page.Action
}

// Events receives page changes and actions for publishing.
type Events interface {
	PublishPage(page string)
	PublishAction(e mqtt.Event)
}

// PowerOffer turns the host off.
type PowerOffer interface {
	PowerOff(ctx context.Context) error
}

// Options wires an App. Events, Metrics, Power, Now and AfterFunc are
// optional.
type Options struct {
	Config config.Config
	Start  page.Page

	Panel   Panel
	Touch   Touch
	Hub     Hub
	Pages   Pages
	Events  Events
	Metrics *metrics.Collector
	Power   PowerOffer
	Log     zerolog.Logger

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func())
}

// errShutdown is returned by step when the user confirmed the shutdown page.
var errShutdown = errors.New("shutdown requested")

// App is the main loop.
type App struct {
	cfg     config.Config
	panel   Panel
	touch   Touch
	hub     Hub
	pages   Pages
	events  Events
	metrics *metrics.Collector
	power   PowerOffer
	log     zerolog.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func())

	current atomic.Int32
	sched   *refresh.Scheduler

	closeOnce sync.Once
	closeErr  error
}

// New builds an App from opts.
func New(opts Options) (*App, error) {
	if opts.Panel == nil || opts.Touch == nil || opts.Hub == nil || opts.Pages == nil {
		return nil, errors.New("app: panel, touch, hub and pages are required")
	}
	if !opts.Start.Valid() {
		return nil, fmt.Errorf("app: invalid start page %d", opts.Start)
	}
	a := &App{
		cfg:       opts.Config,
		panel:     opts.Panel,
		touch:     opts.Touch,
		hub:       opts.Hub,
		pages:     opts.Pages,
		events:    opts.Events,
		metrics:   opts.Metrics,
		power:     opts.Power,
		log:       opts.Log,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
	}
	if a.events == nil {
		a.events = mqtt.Nop{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.afterFunc == nil {
		a.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	a.current.Store(int32(opts.Start))
	return a, nil
}

// Current returns the page on display.
func (a *App) Current() page.Page {
	return page.Page(a.current.Load())
}

// Run drives the panel until ctx is done, a device fails or the user shuts
// the panel down. Hardware is torn down before Run returns; the host is
// powered off only after a confirmed shutdown.
func (a *App) Run(ctx context.Context) (err error) {
	powerOff := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("main loop panic: %v", r)
		}
		if err != nil {
			a.log.Error().Err(err).Msg("main loop stopped")
		}
		err = errors.Join(err, a.close())
		if powerOff && a.power != nil {
			err = errors.Join(err, a.power.PowerOff(ctx))
		}
	}()

	if err := a.start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(a.cfg.TickInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info().Msg("interrupted, shutting down")
			return nil
		case <-ticker.C:
		}
		if err := a.step(ctx); err != nil {
			if errors.Is(err, errShutdown) {
				a.log.Info().Msg("shutdown confirmed")
				powerOff = true
				return nil
			}
			return err
		}
	}
}

func (a *App) start(ctx context.Context) error {
	if err := a.panel.Init(); err != nil {
		return err
	}
	if err := a.touch.Start(ctx); err != nil {
		return err
	}
	a.sched = refresh.New(a.now(), a.cfg.PartialInterval.Duration, a.cfg.FullInterval.Duration)

	cur := a.Current()
	a.metrics.SetPage(cur.String())
	a.events.PublishPage(cur.String())
	if err := a.panel.Present(a.pages.Render(ctx, cur), epaper.Full, "startup"); err != nil {
		return fmt.Errorf("initial draw: %w", err)
	}
	a.log.Info().Stringer("page", cur).Msg("panel ready")
	return nil
}

// step runs one iteration of the loop: scheduled refreshes first, then at
// most one touch.
func (a *App) step(ctx context.Context) error {
	if err := a.scheduled(ctx); err != nil {
		return err
	}

	pt, ok, err := a.touch.Scan()
	if err != nil {
		return fmt.Errorf("scan touch: %w", err)
	}
	if !ok {
		return nil
	}

	cur := a.Current()
	act := a.pages.Interpret(cur, pt.Row, pt.Col)
	a.metrics.ObserveTouch(act.Kind.String())
	a.log.Debug().
		Int("row", pt.Row).
		Int("col", pt.Col).
		Stringer("page", cur).
		Stringer("action", act).
		Msg("touch")

	switch act.Kind {
	case page.NavigateNext, page.NavigatePrev:
		next := cur.Next()
		if act.Kind == page.NavigatePrev {
			next = cur.Prev()
		}
		a.current.Store(int32(next))
		a.metrics.SetPage(next.String())
		a.events.PublishPage(next.String())
		a.publishAction(cur, act, true)
		return a.redraw(ctx, "navigate")
	case page.Activate:
		return a.activate(ctx, cur, act)
	default:
		return nil
	}
}

func (a *App) scheduled(ctx context.Context) error {
	switch a.sched.Tick(a.now()) {
	case refresh.Full:
		if err := a.panel.Refresh(epaper.Full, "scheduled"); err != nil {
			return fmt.Errorf("scheduled full refresh: %w", err)
		}
	case refresh.Partial:
		cur := a.Current()
		if cur.Dynamic() {
			if err := a.panel.Present(a.pages.Render(ctx, cur), epaper.Partial, "scheduled"); err != nil {
				return fmt.Errorf("scheduled partial refresh: %w", err)
			}
			return nil
		}
		if err := a.panel.Refresh(epaper.Partial, "scheduled"); err != nil {
			return fmt.Errorf("scheduled partial refresh: %w", err)
		}
	}
	return nil
}

func (a *App) activate(ctx context.Context, cur page.Page, act page.Action) error {
	switch act.Target.Kind {
	case page.TargetShutdown:
		a.publishAction(cur, act, true)
		return errShutdown
	case page.TargetScene:
		ok := a.hub.CallScript(ctx, act.Target.Scene)
		a.publishAction(cur, act, ok)
		if ok {
			// The hub takes a moment to settle; show the result once it has.
			a.metrics.ObserveDelayedRedraw()
			a.afterFunc(a.cfg.SettleDelay.Duration, func() { a.delayedRedraw(ctx) })
		} else {
			a.log.Warn().Str("scene", act.Target.Scene).Msg("scene call failed")
		}
	case page.TargetRefresh:
		a.publishAction(cur, act, true)
	}
	return a.redraw(ctx, "activate")
}

// redraw renders the current page and presents it partially.
func (a *App) redraw(ctx context.Context, reason string) error {
	if err := a.panel.Present(a.pages.Render(ctx, a.Current()), epaper.Partial, reason); err != nil {
		return fmt.Errorf("redraw: %w", err)
	}
	return nil
}

// delayedRedraw runs off the main loop. It draws whatever page is current
// when it fires, not the page that triggered it.
func (a *App) delayedRedraw(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("delayed redraw panicked")
		}
	}()
	err := a.redraw(ctx, "delayed")
	switch {
	case errors.Is(err, epaper.ErrClosed):
		a.log.Debug().Msg("delayed redraw after shutdown dropped")
	case err != nil:
		a.log.Warn().Err(err).Msg("delayed redraw failed")
	}
}

func (a *App) publishAction(cur page.Page, act page.Action, ok bool) {
	a.events.PublishAction(mqtt.Event{
		Page:      cur.String(),
		Action:    act.String(),
		Scene:     act.Target.Scene,
		Success:   ok,
		Timestamp: a.now(),
	})
}

// close stops touch sampling, then sleeps and releases the display.
func (a *App) close() error {
	a.closeOnce.Do(func() {
		a.log.Info().Msg("releasing hardware")
		a.touch.Stop()
		a.closeErr = a.panel.Close()
	})
	return a.closeErr
}
