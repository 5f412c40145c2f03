package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the decoder from a file extension; anything that is not
// ".toml" is treated as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads the configuration at path, applies environment overrides,
// loads the hub token and validates the result. A missing file yields the
// defaults; a missing token file is an error.
//
// Relative token paths are resolved against the directory of path.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		cfg, err = LoadFromReader(f, FormatFor(path))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	tokenPath := cfg.HubTokenFile
	if !filepath.IsAbs(tokenPath) {
		tokenPath = filepath.Join(filepath.Dir(path), tokenPath)
	}
	if cfg.HubToken, err = ReadToken(tokenPath); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader decodes r on top of Default(). It does not read the token.
func LoadFromReader(r io.Reader, format Format) (Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	}
	return cfg, nil
}

// ReadToken returns the trimmed bearer token stored at path.
func ReadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read hub token: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("hub token file %s is empty", path)
	}
	return token, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HA_DISPLAY_HUB_URL"); v != "" {
		cfg.HubURL = v
	}
	if v := os.Getenv("HA_DISPLAY_TOKEN_FILE"); v != "" {
		cfg.HubTokenFile = v
	}
	if v := os.Getenv("HA_DISPLAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HA_DISPLAY_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
}
