package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/epaper"
	"github.com/timfel/ha-display/internal/hub"
	"github.com/timfel/ha-display/internal/mqtt"
	"github.com/timfel/ha-display/internal/page"
	"github.com/timfel/ha-display/internal/touch"
)

// recorder collects calls from every fake in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(s string) int {
	n := 0
	for _, c := range r.all() {
		if c == s {
			n++
		}
	}
	return n
}

type fakePanel struct {
	rec    *recorder
	mu     sync.Mutex
	closed bool
	frames []*image.Gray
}

func (p *fakePanel) Init() error {
	p.rec.add("panel.init")
	return nil
}

func (p *fakePanel) Present(img *image.Gray, mode epaper.Mode, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return epaper.ErrClosed
	}
	p.frames = append(p.frames, img)
	p.rec.add("present " + mode.String() + " " + reason)
	return nil
}

func (p *fakePanel) Refresh(mode epaper.Mode, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return epaper.ErrClosed
	}
	p.rec.add("refresh " + mode.String() + " " + reason)
	return nil
}

func (p *fakePanel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.rec.add("panel.close")
	return nil
}

type fakeTouch struct {
	rec     *recorder
	mu      sync.Mutex
	pending []touch.Point
	err     error
}

func (t *fakeTouch) Start(context.Context) error {
	t.rec.add("touch.start")
	return nil
}

func (t *fakeTouch) Scan() (touch.Point, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return touch.Point{}, false, t.err
	}
	if len(t.pending) == 0 {
		return touch.Point{}, false, nil
	}
	p := t.pending[0]
	t.pending = t.pending[1:]
	return p, true, nil
}

func (t *fakeTouch) Stop() { t.rec.add("touch.stop") }

func (t *fakeTouch) tap(row, col int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, touch.FromRaw(touch.ToRaw(row, col)))
}

type fakeHub struct {
	rec *recorder
	ok  bool
}

func (h *fakeHub) CallScript(_ context.Context, name string) bool {
	h.rec.add("hub " + name)
	return h.ok
}

type fakePages struct {
	rec         *recorder
	scenes      config.Scenes
	panic       bool
	renderPanic bool
}

func (p *fakePages) Render(_ context.Context, pg page.Page) *image.Gray {
	if p.renderPanic {
		panic("render boom")
	}
	p.rec.add("render " + pg.String())
	return image.NewGray(image.Rect(0, 0, page.Width, page.Height))
}

func (p *fakePages) Interpret(pg page.Page, row, col int) page.Action {
	if p.panic {
		panic("boom")
	}
	return page.Interpret(pg, row, col, p.scenes)
}

type fakePower struct{ rec *recorder }

func (p fakePower) PowerOff(context.Context) error {
	p.rec.add("power.off")
	return nil
}

type fakeEvents struct {
	mu      sync.Mutex
	pages   []string
	actions []mqtt.Event
}

func (e *fakeEvents) PublishPage(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages = append(e.pages, p)
}

func (e *fakeEvents) PublishAction(ev mqtt.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, ev)
}

type fixture struct {
	app     *App
	rec     *recorder
	panel   *fakePanel
	touch   *fakeTouch
	hub     *fakeHub
	pages   *fakePages
	events  *fakeEvents
	now     time.Time
	delayed []func()
	delays  []time.Duration
}

func newFixture(t *testing.T, start page.Page) *fixture {
	t.Helper()
	rec := &recorder{}
	cfg := config.Default()
	cfg.TickInterval = config.D(time.Millisecond)

	f := &fixture{
		rec:    rec,
		panel:  &fakePanel{rec: rec},
		touch:  &fakeTouch{rec: rec},
		hub:    &fakeHub{rec: rec, ok: true},
		pages:  &fakePages{rec: rec, scenes: cfg.Scenes},
		events: &fakeEvents{},
		now:    time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC),
	}
	a, err := New(Options{
		Config: cfg,
		Start:  start,
		Panel:  f.panel,
		Touch:  f.touch,
		Hub:    f.hub,
		Pages:  f.pages,
		Events: f.events,
		Power:  fakePower{rec: rec},
		Log:    zerolog.Nop(),
		Now:    func() time.Time { return f.now },
		AfterFunc: func(d time.Duration, fn func()) {
			f.delays = append(f.delays, d)
			f.delayed = append(f.delayed, fn)
		},
	})
	require.NoError(t, err)
	f.app = a
	return f
}

// started runs the startup sequence without the ticker loop.
func (f *fixture) started(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, f.app.start(context.Background()))
	f.rec.calls = nil
	return f
}

func middleRow() int { return (page.ActionTop + page.ActionBottom) / 2 }

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestStartupDrawsFullFrame(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	require.NoError(t, f.app.start(context.Background()))
	assert.Equal(t, []string{
		"panel.init",
		"touch.start",
		"render MOVIE_ON",
		"present full startup",
	}, f.rec.all())
	assert.Equal(t, []string{"MOVIE_ON"}, f.events.pages)
}

func TestMovieOnTouchCallsSceneAndRedraws(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)

	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))

	assert.Equal(t, []string{
		"hub turn_on_movie_system",
		"render MOVIE_ON",
		"present partial activate",
	}, f.rec.all())
	require.Len(t, f.delayed, 1)
	assert.Equal(t, 2*time.Second, f.delays[0])

	f.delayed[0]()
	assert.Equal(t, 1, f.rec.count("present partial delayed"))

	require.Len(t, f.events.actions, 1)
	ev := f.events.actions[0]
	assert.Equal(t, "MOVIE_ON", ev.Page)
	assert.Equal(t, "turn_on_movie_system", ev.Scene)
	assert.True(t, ev.Success)
}

func TestFailedSceneSchedulesNoDelayedRedraw(t *testing.T) {
	f := newFixture(t, page.Airplay).started(t)
	f.hub.ok = false

	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))

	assert.Empty(t, f.delayed)
	assert.Equal(t, 1, f.rec.count("present partial activate"))
	require.Len(t, f.events.actions, 1)
	assert.False(t, f.events.actions[0].Success)
}

func TestButtonPageColumns(t *testing.T) {
	f := newFixture(t, page.ButtonPage).started(t)

	for _, col := range []int{30, 100, 170, 10, 240} {
		f.touch.tap(middleRow(), col)
		require.NoError(t, f.app.step(context.Background()))
	}
	var hubCalls []string
	for _, c := range f.rec.all() {
		if len(c) > 4 && c[:4] == "hub " {
			hubCalls = append(hubCalls, c)
		}
	}
	assert.Equal(t, []string{
		"hub clean_dining_area",
		"hub clean_living_room_kitchen",
		"hub clean_entrance",
	}, hubCalls)
	assert.Len(t, f.delayed, 3)
}

func TestNavigation(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)

	f.touch.tap(5, 200)
	require.NoError(t, f.app.step(context.Background()))
	assert.Equal(t, page.MovieOff, f.app.Current())

	f.touch.tap(110, 20)
	require.NoError(t, f.app.step(context.Background()))
	f.touch.tap(110, 20)
	require.NoError(t, f.app.step(context.Background()))
	assert.Equal(t, page.Shutdown, f.app.Current(), "previous wraps around")

	assert.Equal(t, []string{"MOVIE_ON", "MOVIE_OFF", "MOVIE_ON", "SHUTDOWN"}, f.events.pages)
	assert.Equal(t, 3, f.rec.count("present partial navigate"))
	assert.Zero(t, f.rec.count("hub turn_on_movie_system"))
}

func TestDeadZoneDoesNothing(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)
	f.touch.tap(28, 125)
	require.NoError(t, f.app.step(context.Background()))
	assert.Empty(t, f.rec.all())
	assert.Equal(t, page.MovieOn, f.app.Current())
}

func TestDelayedRedrawDrawsCurrentPage(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)

	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))
	f.touch.tap(5, 125)
	require.NoError(t, f.app.step(context.Background()))
	f.rec.calls = nil

	f.delayed[0]()
	assert.Equal(t, []string{"render MOVIE_OFF", "present partial delayed"}, f.rec.all())
}

func TestDelayedRedrawPanicIsContained(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)
	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))
	require.Len(t, f.delayed, 1)

	f.pages.renderPanic = true
	assert.NotPanics(t, f.delayed[0])
	assert.Zero(t, f.rec.count("present partial delayed"))
}

// mediaHub turns the media switch on when the movie scene is called.
type mediaHub struct {
	mu    sync.Mutex
	scene string
	on    bool
}

func (h *mediaHub) CallScript(_ context.Context, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if name == h.scene {
		h.on = true
	}
	return true
}

func (h *mediaHub) SwitchOn(context.Context, string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.on
}

func (h *mediaHub) PowerStats(context.Context, config.Entities) hub.PowerStats {
	return hub.PowerStats{PV: "0", Battery: "0", Consumption: "0"}
}

func TestMovieOnRedrawsShowSwitchState(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	cfg := config.Default()
	mh := &mediaHub{scene: cfg.Scenes.MovieOn}
	pages, err := page.NewController(mh, cfg.Scenes, cfg.Entities)
	require.NoError(t, err)
	f.app.hub = mh
	f.app.pages = pages
	f.started(t)

	inside := page.ToggleRect().Min.Add(image.Pt(3, 3))
	filled := func(img *image.Gray) bool { return img.GrayAt(inside.X, inside.Y).Y < 128 }

	require.Len(t, f.panel.frames, 1)
	assert.False(t, filled(f.panel.frames[0]), "switch off at startup")

	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))
	require.Len(t, f.panel.frames, 2)
	assert.True(t, filled(f.panel.frames[1]), "immediate redraw")

	require.Len(t, f.delayed, 1)
	f.delayed[0]()
	require.Len(t, f.panel.frames, 3)
	assert.True(t, filled(f.panel.frames[2]), "delayed redraw")
	assert.Equal(t, 1, f.rec.count("present partial delayed"))
}

func TestDelayedRedrawAfterCloseIsDropped(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)
	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))
	require.NoError(t, f.app.close())

	assert.NotPanics(t, f.delayed[0])
	assert.Zero(t, f.rec.count("present partial delayed"))
}

func TestPowerStatsTouchOnlyRedraws(t *testing.T) {
	f := newFixture(t, page.PowerStats).started(t)
	f.touch.tap(middleRow(), 125)
	require.NoError(t, f.app.step(context.Background()))

	assert.Equal(t, []string{"render POWER_STATS", "present partial activate"}, f.rec.all())
	assert.Empty(t, f.delayed)
}

func TestScheduledRefreshes(t *testing.T) {
	f := newFixture(t, page.MovieOn).started(t)
	ctx := context.Background()

	f.now = f.now.Add(179 * time.Second)
	require.NoError(t, f.app.step(ctx))
	assert.Empty(t, f.rec.all())

	f.now = f.now.Add(time.Second)
	require.NoError(t, f.app.step(ctx))
	assert.Equal(t, []string{"refresh partial scheduled"}, f.rec.all(), "static pages are not re-rendered")

	f.rec.calls = nil
	f.app.current.Store(int32(page.PowerStats))
	f.now = f.now.Add(180 * time.Second)
	require.NoError(t, f.app.step(ctx))
	assert.Equal(t, []string{"render POWER_STATS", "present partial scheduled"}, f.rec.all())

	f.rec.calls = nil
	f.now = f.now.Add(900*time.Second - 360*time.Second)
	require.NoError(t, f.app.step(ctx))
	assert.Equal(t, []string{"refresh full scheduled"}, f.rec.all())
}

func runApp(t *testing.T, f *fixture, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- f.app.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestShutdownActionTearsDownThenPowersOff(t *testing.T) {
	f := newFixture(t, page.Shutdown)
	f.touch.tap(middleRow(), 125)

	err := waitRun(t, runApp(t, f, context.Background()))
	require.NoError(t, err)

	calls := f.rec.all()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, []string{"touch.stop", "panel.close", "power.off"}, calls[len(calls)-3:])
	assert.Equal(t, 1, f.rec.count("panel.close"))
}

func TestInterruptDoesNotPowerOff(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	ctx, cancel := context.WithCancel(context.Background())
	done := runApp(t, f, ctx)

	require.Eventually(t, func() bool { return f.rec.count("present full startup") == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, waitRun(t, done))

	assert.Equal(t, 1, f.rec.count("touch.stop"))
	assert.Equal(t, 1, f.rec.count("panel.close"))
	assert.Zero(t, f.rec.count("power.off"))
}

func TestTouchFailureIsFatal(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	f.touch.err = errors.New("i2c gone")

	err := waitRun(t, runApp(t, f, context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i2c gone")
	assert.Equal(t, 1, f.rec.count("panel.close"))
	assert.Zero(t, f.rec.count("power.off"))
}

func TestPanicInLoopStillReleasesHardware(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	f.pages.panic = true
	f.touch.tap(middleRow(), 125)

	err := waitRun(t, runApp(t, f, context.Background()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
	assert.Equal(t, []string{"touch.stop", "panel.close"}, f.rec.all()[len(f.rec.all())-2:])
}

func TestCloseRunsOnce(t *testing.T) {
	f := newFixture(t, page.MovieOn)
	require.NoError(t, f.app.close())
	require.NoError(t, f.app.close())
	assert.Equal(t, []string{"touch.stop", "panel.close"}, f.rec.all())
}
