package page

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/hub"
)

// StateSource is the part of the hub the renderer reads from.
type StateSource interface {
	SwitchOn(ctx context.Context, entityID string) bool
	PowerStats(ctx context.Context, e config.Entities) hub.PowerStats
}

// Controller renders pages and interprets touches for them.
type Controller struct {
	src      StateSource
	scenes   config.Scenes
	entities config.Entities

	large  font.Face
	medium font.Face
	small  font.Face
}

// NewController builds a controller reading live state from src.
func NewController(src StateSource, scenes config.Scenes, entities config.Entities) (*Controller, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	large, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 22, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	medium, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 16, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	return &Controller{
		src:      src,
		scenes:   scenes,
		entities: entities,
		large:    large,
		medium:   medium,
		small:    basicfont.Face7x13,
	}, nil
}

// Interpret maps a touch on p to an action using the configured scenes.
func (c *Controller) Interpret(p Page, row, col int) Action {
	return Interpret(p, row, col, c.scenes)
}

// Render draws p from scratch onto a new surface. Toggle pages and the
// power page query the hub while rendering; the hub is the only source of
// truth for what they show.
func (c *Controller) Render(ctx context.Context, p Page) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	paint(img, white)
	c.drawChrome(img, p)

	switch p {
	case MovieOn:
		on := c.src.SwitchOn(ctx, c.entities.MediaSwitch)
		drawButton(img, c.large, ToggleRect(), "Movie On", on)
	case MovieOff:
		on := c.src.SwitchOn(ctx, c.entities.MediaSwitch)
		drawButton(img, c.large, ToggleRect(), "Media Off", !on)
	case Airplay:
		on := c.src.SwitchOn(ctx, c.entities.MediaSwitch)
		drawButton(img, c.large, ToggleRect(), "Airplay On", on)
	case ButtonPage:
		for i, label := range [ButtonCount]string{"D", "K", "E"} {
			drawButton(img, c.large, ButtonRect(i), label, false)
		}
	case PowerStats:
		st := c.src.PowerStats(ctx, c.entities)
		text(img, c.medium, 40, ActionTop+18, fmt.Sprintf("PV: %sW", st.PV), black)
		text(img, c.medium, 40, ActionTop+38, fmt.Sprintf("Battery: %skWh", st.Battery), black)
		text(img, c.medium, 40, ActionTop+58, fmt.Sprintf("Use: %sW", st.Consumption), black)
	case Shutdown:
		drawButton(img, c.large, ToggleRect(), "Shutdown", false)
	}
	return img
}

// drawChrome draws the navigation strips: the header (next) above NextBelow
// and the footer (previous) below PrevAbove.
func (c *Controller) drawChrome(img *image.Gray, p Page) {
	hline(img, 0, Width-1, NextBelow, black)
	hline(img, 0, Width-1, PrevAbove, black)

	header := image.Rect(0, 0, Width, NextBelow)
	footer := image.Rect(0, PrevAbove+1, Width, Height)

	text(img, c.small, 6, header.Min.Y+17, fmt.Sprintf("%d/%d %s", int(p)+1, Count, p.Title()), black)
	textCentered(img, c.small, image.Rect(Width-70, header.Min.Y, Width, header.Max.Y), "NEXT >", black)
	textCentered(img, c.small, image.Rect(0, footer.Min.Y, 70, footer.Max.Y), "< PREV", black)
}
