// Command ha-display drives a Waveshare 2.13" touch e-paper HAT as a Home
// Assistant scene panel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sanity-io/litter"
	"golang.org/x/sys/unix"
	"periph.io/x/host/v3"

	"github.com/timfel/ha-display/internal/app"
	"github.com/timfel/ha-display/internal/config"
	"github.com/timfel/ha-display/internal/epaper"
	"github.com/timfel/ha-display/internal/hub"
	"github.com/timfel/ha-display/internal/logging"
	"github.com/timfel/ha-display/internal/metrics"
	"github.com/timfel/ha-display/internal/mqtt"
	"github.com/timfel/ha-display/internal/page"
	"github.com/timfel/ha-display/internal/power"
	"github.com/timfel/ha-display/internal/touch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ha-display:", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("HA_DISPLAY_CONFIG"); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "config.yaml")
}

func run() error {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(cfg.Log, os.Stderr)
	log.Info().Str("config", path).Str("hub", cfg.HubURL).Msg("starting")
	if log.GetLevel() <= zerolog.DebugLevel {
		log.Debug().Msg(litter.Sdump(cfg.Redacted()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init host: %w", err)
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Path, collector, log.With().Str("component", "metrics").Logger()); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	var events app.Events = mqtt.Nop{}
	if cfg.MQTT.Broker != "" {
		client := mqtt.NewClient(cfg.MQTT, log.With().Str("component", "mqtt").Logger())
		if err := client.Connect(); err != nil {
			log.Warn().Err(err).Msg("mqtt unavailable, events will not be published")
		} else {
			client.Start(ctx)
			events = client
		}
	}

	ha := hub.New(cfg.HubURL, cfg.HubToken, cfg.Hub.Timeout.Duration,
		hub.WithLogger(log.With().Str("component", "hub").Logger()),
		hub.WithMetrics(collector),
	)
	pages, err := page.NewController(ha, cfg.Scenes, cfg.Entities)
	if err != nil {
		return err
	}

	display, err := epaper.OpenWaveshare(cfg.Display.SPIPort)
	if err != nil {
		return err
	}
	panel := epaper.NewPanel(display, page.Width, page.Height, cfg.Display.SleepWait.Duration,
		log.With().Str("component", "epaper").Logger(), collector)

	gt, err := touch.OpenGT1151(cfg.Touch.I2CBus, cfg.Touch.IntPin, cfg.Touch.RstPin)
	if err != nil {
		if cerr := panel.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("release display")
		}
		return err
	}
	sensor := touch.NewSensor(gt, cfg.Touch.Interval.Duration, log.With().Str("component", "touch").Logger())

	a, err := app.New(app.Options{
		Config:  cfg,
		Start:   page.MovieOn,
		Panel:   panel,
		Touch:   sensor,
		Hub:     ha,
		Pages:   pages,
		Events:  events,
		Metrics: collector,
		Power:   power.Command{Argv: cfg.Shutdown.Command, Log: log.With().Str("component", "power").Logger()},
		Log:     log.With().Str("component", "app").Logger(),
	})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
