// Package config loads the client configuration from a YAML file, applying
// defaults for anything unset. A missing file is not an error; the defaults
// target a local backend.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Sound   SoundConfig   `yaml:"sound"`
	Storage StorageConfig `yaml:"storage"`
}

type ServerConfig struct {
	// URL is the backend's HTTP base; the websocket endpoint is derived
	// from it.
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives logs while the TUI owns the terminal. Empty means
	// stderr.
	File string `yaml:"file"`
}

type SoundConfig struct {
	Enabled bool `yaml:"enabled"`
}

type StorageConfig struct {
	// Path of the local SQLite database. Empty means the default under
	// the user config dir.
	Path string `yaml:"path"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "dsasheet.yaml"
	}
	return filepath.Join(dir, "dsasheet", "config.yaml")
}

// Load reads the config at path. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{URL: "http://127.0.0.1:5000"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Sound:  SoundConfig{Enabled: true},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = "http://127.0.0.1:5000"
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Storage.Path == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			c.Storage.Path = filepath.Join(dir, "dsasheet", "dsasheet.db")
		} else {
			c.Storage.Path = "dsasheet.db"
		}
	}
}

// WebsocketURL derives the channel endpoint from the HTTP base
// (http://host → ws://host/ws).
func (c *Config) WebsocketURL() string {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "ws://127.0.0.1:5000/ws"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}
