// Command ha-display-sim runs the panel in a terminal, with the mouse as the
// touch screen and an in-memory Home Assistant.
//
//	ha-display-sim [PAGE]
//
// PAGE is the start page, for example POWER_STATS. Logs go to
// $TMPDIR/ha-display-sim.log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sys/unix"

	"github.com/timfel/ha-display/internal/app"
	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/epaper"
	"github.com/timfel/ha-display/internal/logging"
	"github.com/timfel/ha-display/internal/page"
	"github.com/timfel/ha-display/internal/power"
	"github.com/timfel/ha-display/internal/touch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ha-display-sim:", err)
		os.Exit(1)
	}
}

func run() error {
	start := page.MovieOn
	if len(os.Args) > 1 {
		p, err := page.Parse(os.Args[1])
		if err != nil {
			return err
		}
		start = p
	}

	logFile, err := os.Create(filepath.Join(os.TempDir(), "ha-display-sim.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logging.New(config.LogConfig{Level: "debug", Format: "json"}, logFile)

	cfg := config.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer cancel()

	ctrl := newSimTouch()
	ha := newMemHub(cfg.Scenes)
	prog := tea.NewProgram(newModel(ctrl, ha, cancel), tea.WithAltScreen(), tea.WithMouseCellMotion())

	pages, err := page.NewController(ha, cfg.Scenes, cfg.Entities)
	if err != nil {
		return err
	}
	panel := epaper.NewPanel(&simDevice{send: prog.Send}, page.Width, page.Height, 0,
		log.With().Str("component", "epaper").Logger(), nil)
	sensor := touch.NewSensor(ctrl, cfg.Touch.Interval.Duration, log.With().Str("component", "touch").Logger())

	a, err := app.New(app.Options{
		Config: cfg,
		Start:  start,
		Panel:  panel,
		Touch:  sensor,
		Hub:    ha,
		Pages:  pages,
		Events: simEvents{send: prog.Send},
		Power:  power.Command{Log: log.With().Str("component", "power").Logger()},
		Log:    log.With().Str("component", "app").Logger(),
	})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		runErr <- err
		prog.Send(doneMsg{err: err})
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-runErr
		return err
	}
	cancel()
	return <-runErr
}
