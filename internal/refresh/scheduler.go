// Package refresh decides when the e-paper panel gets its periodic partial
// and full refreshes.
//
// Partial refreshes are fast but leave residual ink behind; a full refresh
// clears the ghosting at the cost of a visible flash. The scheduler keeps
// two timers so the panel gets a partial refresh every few minutes and a
// full one less often.
package refresh

import "time"

// Decision is the outcome of a scheduler tick.
type Decision int

const (
	None Decision = iota
	Partial
	Full
)

func (d Decision) String() string {
	switch d {
	case Partial:
		return "partial"
	case Full:
		return "full"
	default:
		return "none"
	}
}

// Scheduler tracks the last periodic partial and full refresh. It is not
// safe for concurrent use; the main loop owns it.
type Scheduler struct {
	partialEvery time.Duration
	fullEvery    time.Duration

	lastPartial time.Time
	lastFull    time.Time
}

// New returns a scheduler whose timers both start at now.
func New(now time.Time, partialEvery, fullEvery time.Duration) *Scheduler {
	return &Scheduler{
		partialEvery: partialEvery,
		fullEvery:    fullEvery,
		lastPartial:  now,
		lastFull:     now,
	}
}

// Tick returns the refresh due at now and advances the timers accordingly.
// A full refresh resets both timers, a partial one only the partial timer.
// Timestamps never move backwards, even if now does.
func (s *Scheduler) Tick(now time.Time) Decision {
	switch {
	case now.Sub(s.lastFull) >= s.fullEvery:
		s.lastFull = later(s.lastFull, now)
		s.lastPartial = later(s.lastPartial, now)
		return Full
	case now.Sub(s.lastPartial) >= s.partialEvery:
		s.lastPartial = later(s.lastPartial, now)
		return Partial
	default:
		return None
	}
}

// LastPartial is the time of the last periodic partial (or full) refresh.
func (s *Scheduler) LastPartial() time.Time { return s.lastPartial }

// LastFull is the time of the last periodic full refresh.
func (s *Scheduler) LastFull() time.Time { return s.lastFull }

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
