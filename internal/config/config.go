// Package config holds the startup-time configuration of the panel.
//
// A Config is built once by Load and then passed by value to every
// component; nothing in it changes while the process runs.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete panel configuration.
type Config struct {
	HubURL          string   `yaml:"hub_url" toml:"hub_url"`
	HubTokenFile    string   `yaml:"hub_token_file" toml:"hub_token_file"`
	PartialInterval Duration `yaml:"partial_interval" toml:"partial_interval"`
	FullInterval    Duration `yaml:"full_interval" toml:"full_interval"`
	TickInterval    Duration `yaml:"tick_interval" toml:"tick_interval"`
	SettleDelay     Duration `yaml:"settle_delay" toml:"settle_delay"`

	Hub      HubConfig      `yaml:"hub" toml:"hub"`
	Touch    TouchConfig    `yaml:"touch" toml:"touch"`
	Display  DisplayConfig  `yaml:"display" toml:"display"`
	Entities Entities       `yaml:"entities" toml:"entities"`
	Scenes   Scenes         `yaml:"scenes" toml:"scenes"`
	Shutdown ShutdownConfig `yaml:"shutdown" toml:"shutdown"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	MQTT     MQTTConfig     `yaml:"mqtt" toml:"mqtt"`
	Log      LogConfig      `yaml:"log" toml:"log"`

	// HubToken is read from HubTokenFile; it is never part of the file.
	HubToken string `yaml:"-" toml:"-"`
}

// HubConfig tunes the Home Assistant HTTP client.
type HubConfig struct {
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// TouchConfig describes the GT1151 wiring and sampling cadence.
type TouchConfig struct {
	Interval Duration `yaml:"interval" toml:"interval"`
	I2CBus   string   `yaml:"i2c_bus" toml:"i2c_bus"`
	IntPin   string   `yaml:"int_pin" toml:"int_pin"`
	RstPin   string   `yaml:"rst_pin" toml:"rst_pin"`
}

// DisplayConfig describes the e-paper HAT.
type DisplayConfig struct {
	SPIPort   string   `yaml:"spi_port" toml:"spi_port"`
	SleepWait Duration `yaml:"sleep_wait" toml:"sleep_wait"`
}

// Entities are the Home Assistant entity ids read by the panel.
type Entities struct {
	MediaSwitch string `yaml:"media_switch" toml:"media_switch"`
	PVPower     string `yaml:"pv_power" toml:"pv_power"`
	Battery     string `yaml:"battery" toml:"battery"`
	Consumption string `yaml:"consumption" toml:"consumption"`
}

// Scenes are the script names (without the "script." prefix) each page triggers.
type Scenes struct {
	MovieOn       string `yaml:"movie_on" toml:"movie_on"`
	MovieOff      string `yaml:"movie_off" toml:"movie_off"`
	Airplay       string `yaml:"airplay" toml:"airplay"`
	CleanDining   string `yaml:"clean_dining" toml:"clean_dining"`
	CleanKitchen  string `yaml:"clean_kitchen" toml:"clean_kitchen"`
	CleanEntrance string `yaml:"clean_entrance" toml:"clean_entrance"`
}

// ShutdownConfig is the host power-off command. An empty command disables it.
type ShutdownConfig struct {
	Command []string `yaml:"command" toml:"command"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" toml:"listen"`
	Path   string `yaml:"path" toml:"path"`
}

// MQTTConfig enables event publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker" toml:"broker"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	ClientID string `yaml:"client_id" toml:"client_id"`
	Topic    string `yaml:"topic" toml:"topic"`
}

// LogConfig selects the zerolog level and output format ("console", "json"
// or empty for auto-detection).
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration the panel shipped with.
func Default() Config {
	return Config{
		HubURL:          "http://homeassistant.local:8123",
		HubTokenFile:    "token",
		PartialInterval: D(180 * time.Second),
		FullInterval:    D(900 * time.Second),
		TickInterval:    D(time.Second / 30),
		SettleDelay:     D(2 * time.Second),
		Hub: HubConfig{
			Timeout: D(10 * time.Second),
		},
		Touch: TouchConfig{
			Interval: D(10 * time.Millisecond),
			I2CBus:   "1",
			IntPin:   "GPIO27",
			RstPin:   "GPIO22",
		},
		Display: DisplayConfig{
			SleepWait: D(time.Second),
		},
		Entities: Entities{
			MediaSwitch: "switch.media_rpi_plug",
			PVPower:     "sensor.my_reasonable_pv_production",
			Battery:     "sensor.battery_power_available",
			Consumption: "sensor.my_power_consumption",
		},
		Scenes: Scenes{
			MovieOn:       "turn_on_movie_system",
			MovieOff:      "turn_off_movie_system",
			Airplay:       "turn_on_airplay_2",
			CleanDining:   "clean_dining_area",
			CleanKitchen:  "clean_living_room_kitchen",
			CleanEntrance: "clean_entrance",
		},
		Shutdown: ShutdownConfig{
			Command: []string{"shutdown", "-h", "now"},
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		MQTT: MQTTConfig{
			Port:  1883,
			Topic: "ha-display",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if c.HubURL == "" {
		return errors.New("hub_url must be set")
	}
	for name, d := range map[string]Duration{
		"partial_interval": c.PartialInterval,
		"full_interval":    c.FullInterval,
		"tick_interval":    c.TickInterval,
		"touch.interval":   c.Touch.Interval,
		"hub.timeout":      c.Hub.Timeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.FullInterval.Duration < c.PartialInterval.Duration {
		return fmt.Errorf("full_interval (%s) must not be shorter than partial_interval (%s)",
			c.FullInterval, c.PartialInterval)
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.HubToken != "" {
		c.HubToken = "<redacted>"
	}
	if c.MQTT.Password != "" {
		c.MQTT.Password = "<redacted>"
	}
	return c
}
