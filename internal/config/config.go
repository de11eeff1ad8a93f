// Package config defines runtime configuration for studychat.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings passed in via CLI flags or environment variables.
// Environment values become the flag defaults; flags win.
type Config struct {
	// Host is the network interface to bind the HTTP server to.
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the HTTP server port.
	Port int `envconfig:"PORT" default:"3000"`

	// StoreURL is the settings store address. The scheme picks the backend:
	// redis://, rediss://, sqlite:// or memory://.
	StoreURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	// ProviderURL is the external chat endpoint.
	ProviderURL string `envconfig:"PROVIDER_URL" default:"https://api.gemimi.ai/chat"`

	// ProviderTimeout bounds one outbound chat call.
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// LogFormat is "text" or "json".
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogDir, when set, also writes a rotated studychat.log there.
	LogDir string `envconfig:"LOG_DIR"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:3000".
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.StoreURL == "" {
		return errors.New("store url is empty")
	}
	u, err := url.Parse(c.ProviderURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("provider url %q must be an http(s) url", c.ProviderURL)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.ProviderTimeout)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
