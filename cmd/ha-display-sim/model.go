package main

import (
	"context"
	"fmt"
	"image"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/timfel/ha-display/internal/page"
)

// doneMsg reports that the panel loop has returned.
type doneMsg struct{ err error }

var (
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// model shows the panel surface with half-block characters: every cell is
// scale pixels wide and 2*scale pixels tall.
type model struct {
	touch  *simTouch
	hub    *memHub
	cancel context.CancelFunc

	frame  *image.Gray
	scale  int
	page   string
	action string
	hubMsg string
	err    error

	// alt alternates clicks between the two pixel rows of a cell so a
	// repeated click on one cell is not de-duplicated as the same sample.
	alt bool
}

func newModel(t *simTouch, h *memHub, cancel context.CancelFunc) model {
	return model{
		touch:  t,
		hub:    h,
		cancel: cancel,
		frame:  image.NewGray(image.Rect(0, 0, page.Width, page.Height)),
		scale:  2,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.scale = 2
		if msg.Width >= page.Width+2 && msg.Height >= page.Height/2+4 {
			m.scale = 1
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
		case "f":
			if m.hub.toggleFailing() {
				m.hubMsg = "hub failing"
			} else {
				m.hubMsg = ""
			}
		}
	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			break
		}
		if row, col, ok := m.toSurface(msg.X, msg.Y); ok {
			m.touch.tap(row, col)
			m.alt = !m.alt
		}
	case frameMsg:
		// Clear sends a 1×1 frame.
		if msg.img.Bounds().Dx() == 1 {
			m.frame = image.NewGray(image.Rect(0, 0, page.Width, page.Height))
			for i := range m.frame.Pix {
				m.frame.Pix[i] = msg.img.Pix[0]
			}
			break
		}
		m.frame = msg.img
	case pageMsg:
		m.page = msg.page
	case actionMsg:
		m.action = msg.event.Action
		if msg.event.Scene != "" && !msg.event.Success {
			m.action += " failed"
		}
	case doneMsg:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// toSurface maps a terminal cell to a landscape surface point. The border
// occupies the first row and column.
func (m model) toSurface(x, y int) (row, col int, ok bool) {
	cx, cy := x-1, y-1
	if cx < 0 || cy < 0 {
		return 0, 0, false
	}
	col = cx * m.scale
	row = cy * 2 * m.scale
	if m.alt {
		row += m.scale
	}
	if col >= page.Width || row >= page.Height {
		return 0, 0, false
	}
	return row, col, true
}

func (m model) View() string {
	status := fmt.Sprintf("%s  last: %s  [click] touch  [f] toggle hub failure  [q] quit", m.page, m.action)
	var b strings.Builder
	b.WriteString(frameStyle.Render(halfBlocks(m.frame, m.scale)))
	b.WriteByte('\n')
	b.WriteString(statusStyle.Render(status))
	if m.hubMsg != "" {
		b.WriteString("  " + errorStyle.Render(m.hubMsg))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}
	return b.String()
}

// halfBlocks renders img sampling every scale-th pixel; each output line
// covers two sampled rows.
func halfBlocks(img *image.Gray, scale int) string {
	b := img.Bounds()
	black := func(x, y int) bool {
		if y >= b.Max.Y {
			return false
		}
		return img.GrayAt(x, y).Y < 128
	}

	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 * scale {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}
		for x := b.Min.X; x < b.Max.X; x += scale {
			top, bottom := black(x, y), black(x, y+scale)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}
