// Package touch samples the touch controller in the background and hands
// de-duplicated touch points to the main loop.
package touch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Native controller resolution; the panel is mounted rotated, so the long
// side becomes the landscape x axis.
const (
	ShortSide = 122
	LongSide  = 250
)

// maxConsecutiveErrors is how many failed samples in a row turn into a
// device error reported by Scan.
const maxConsecutiveErrors = 50

// ErrDevice wraps a touch controller failure that the sensor gave up on.
var ErrDevice = errors.New("touch: device failure")

// Raw is a sample in controller coordinates.
type Raw struct {
	X, Y int
}

// Point is a touch in landscape surface coordinates.
type Point struct {
	Row int
	Col int
	Raw Raw
}

// FromRaw maps a controller sample onto the landscape surface.
func FromRaw(r Raw) Point {
	return Point{Row: r.X, Col: LongSide - 1 - r.Y, Raw: r}
}

// ToRaw is the inverse of FromRaw.
func ToRaw(row, col int) Raw {
	return Raw{X: row, Y: LongSide - 1 - col}
}

// Controller is the physical touch chip.
type Controller interface {
	Init() error
	// Touched reports the interrupt line state.
	Touched() (bool, error)
	// Read returns the current touch point if one is reported.
	Read() (Raw, bool, error)
	Close() error
}

// Sensor samples a Controller on its own goroutine. Consecutive identical
// points fire only once.
type Sensor struct {
	ctrl     Controller
	interval time.Duration
	log      zerolog.Logger

	touching atomic.Bool

	mu       sync.Mutex
	pending  *Point
	raw      Raw
	last     Raw
	haveLast bool
	fatal    error

	errCount   int
	lastErrLog time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewSensor returns a sensor sampling ctrl every interval.
func NewSensor(ctrl Controller, interval time.Duration, log zerolog.Logger) *Sensor {
	return &Sensor{
		ctrl:     ctrl,
		interval: interval,
		log:      log,
	}
}

// Start initializes the controller and starts background sampling. The
// sampler runs until Stop is called or ctx is done.
func (s *Sensor) Start(ctx context.Context) error {
	if err := s.ctrl.Init(); err != nil {
		return fmt.Errorf("init touch: %w", err)
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

func (s *Sensor) run(ctx context.Context) {
	defer close(s.done)
	s.log.Debug().Dur("interval", s.interval).Msg("touch sampler running")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("touch sampler exit")
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sensor) sample() {
	touched, err := s.ctrl.Touched()
	if err != nil {
		s.failed(err)
		return
	}
	s.touching.Store(touched)
	if !touched {
		s.errCount = 0
		return
	}
	raw, ok, err := s.ctrl.Read()
	if err != nil {
		s.failed(err)
		return
	}
	s.errCount = 0
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
	if s.haveLast && raw == s.last {
		return
	}
	s.last, s.haveLast = raw, true
	p := FromRaw(raw)
	s.pending = &p
}

func (s *Sensor) failed(err error) {
	s.errCount++
	if time.Since(s.lastErrLog) > 3*time.Second {
		s.log.Warn().Err(err).Int("consecutive", s.errCount).Msg("touch poll error")
		s.lastErrLog = time.Now()
	}
	if s.errCount >= maxConsecutiveErrors {
		s.mu.Lock()
		if s.fatal == nil {
			s.fatal = fmt.Errorf("%w: %v", ErrDevice, err)
		}
		s.mu.Unlock()
	}
}

// Scan returns the touch that arrived since the previous Scan, if any. It
// never blocks on the device.
func (s *Sensor) Scan() (Point, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal != nil {
		return Point{}, false, s.fatal
	}
	if s.pending == nil {
		return Point{}, false, nil
	}
	p := *s.pending
	s.pending = nil
	return p, true, nil
}

// Raw returns the most recent raw sample.
func (s *Sensor) Raw() Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Touching reports the interrupt line as of the last sample.
func (s *Sensor) Touching() bool {
	return s.touching.Load()
}

// Stop cancels sampling, waits for the sampler to exit and closes the
// controller. It is safe to call more than once.
func (s *Sensor) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		if err := s.ctrl.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close touch controller")
		}
	})
}
