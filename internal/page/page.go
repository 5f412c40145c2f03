// Package page implements the panel's fixed menu: the cyclic page order, the
// screen layout, touch interpretation and rendering.
package page

import (
	"fmt"
	"strings"
)

// Page is one screen of the fixed menu.
type Page int

const (
	MovieOn Page = iota
	MovieOff
	Airplay
	ButtonPage
	PowerStats
	Shutdown
)

// Count is the number of pages in the cycle.
const Count = 6

var names = [Count]string{"MOVIE_ON", "MOVIE_OFF", "AIRPLAY", "BUTTON_PAGE", "POWER_STATS", "SHUTDOWN"}

var titles = [Count]string{"Movie", "Media", "Airplay", "Cleaning", "Power", "System"}

// All returns the pages in cycle order.
func All() []Page {
	pages := make([]Page, Count)
	for i := range pages {
		pages[i] = Page(i)
	}
	return pages
}

// Next returns the following page, wrapping after the last one.
func (p Page) Next() Page {
	return Page((int(p) + 1) % Count)
}

// Prev returns the preceding page, wrapping before the first one.
func (p Page) Prev() Page {
	return Page((int(p) - 1 + Count) % Count)
}

// Valid reports whether p is part of the cycle.
func (p Page) Valid() bool {
	return p >= 0 && int(p) < Count
}

// Dynamic reports whether the page shows live data that must be re-rendered
// on every scheduled partial refresh.
func (p Page) Dynamic() bool {
	return p == PowerStats
}

func (p Page) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Page(%d)", int(p))
	}
	return names[p]
}

// Title is the short header label of the page.
func (p Page) Title() string {
	if !p.Valid() {
		return ""
	}
	return titles[p]
}

// Parse converts a page name such as "power_stats" into a Page.
func Parse(s string) (Page, error) {
	for i, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return Page(i), nil
		}
	}
	return 0, fmt.Errorf("unknown page %q", s)
}
