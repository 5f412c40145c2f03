package page

import "image"

// Surface size in landscape orientation. Touch points are reported in the
// same space: Row is y (0..Height-1), Col is x (0..Width-1).
const (
	Width  = 250
	Height = 122
)

// Touch bands along the row axis. Render draws the navigation strips and the
// content inside these exact bounds, so hit areas and visuals cannot drift.
//
//	row <  NextBelow                  -> next page (header strip)
//	ActionTop < row < ActionBottom    -> page action (middle band)
//	row >  PrevAbove                  -> previous page (footer strip)
//
// Rows in [NextBelow, ActionTop] and [ActionBottom, PrevAbove] do nothing.
const (
	NextBelow    = 26
	ActionTop    = 30
	ActionBottom = 92
	PrevAbove    = 96
)

// Button page: ButtonCount equal buttons along the column axis, starting at
// ButtonStart, each ButtonWidth wide with ButtonGap between them. Zone i is
// [ButtonStart+i*(ButtonWidth+ButtonGap), ...+ButtonWidth).
const (
	ButtonCount  = 3
	ButtonStart  = 25
	ButtonWidth  = 60
	ButtonGap    = 10
	ButtonTop    = 38
	ButtonBottom = 84
)

// Toggle box used by the scene pages and the shutdown page.
const (
	ToggleLeft   = 60
	ToggleRight  = 190
	ToggleTop    = 36
	ToggleBottom = 86
)

// ButtonZone returns the index of the button whose column range contains col.
func ButtonZone(col int) (int, bool) {
	for i := 0; i < ButtonCount; i++ {
		x0 := ButtonStart + i*(ButtonWidth+ButtonGap)
		if col >= x0 && col < x0+ButtonWidth {
			return i, true
		}
	}
	return 0, false
}

// ButtonRect is the drawn outline of button i; its columns match ButtonZone.
func ButtonRect(i int) image.Rectangle {
	x0 := ButtonStart + i*(ButtonWidth+ButtonGap)
	return image.Rect(x0, ButtonTop, x0+ButtonWidth, ButtonBottom)
}

// ToggleRect is the drawn toggle box.
func ToggleRect() image.Rectangle {
	return image.Rect(ToggleLeft, ToggleTop, ToggleRight, ToggleBottom)
}
