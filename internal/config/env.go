package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POLONIEX"

// envOverrides lists the POLONIEX_* variables. Pointer fields stay nil when unset.
type envOverrides struct {
	Environment       string         `envconfig:"ENV"`
	APIKey            string         `envconfig:"API_KEY"`
	APISecret         string         `envconfig:"API_SECRET"`
	HTTPTimeout       *time.Duration `envconfig:"HTTP_TIMEOUT"`
	RateLimit         *float64       `envconfig:"RATE_LIMIT"`
	Burst             *int           `envconfig:"BURST"`
	StreamURL         string         `envconfig:"STREAM_URL"`
	LogLevel          string         `envconfig:"LOG_LEVEL"`
	LogFormat         string         `envconfig:"LOG_FORMAT"`
	TelemetryEnabled  *bool          `envconfig:"TELEMETRY_ENABLED"`
	TelemetryEndpoint string         `envconfig:"OTLP_ENDPOINT"`
	TelemetryInsecure *bool          `envconfig:"OTLP_INSECURE"`
}

// loadDotenv exports the variables of path without replacing ones already set.
func loadDotenv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	setString(&c.Environment, env.Environment)
	setString(&c.Credentials.Key, env.APIKey)
	if env.APISecret != "" {
		c.Credentials.Secret = env.APISecret
	}
	setString(&c.Stream.URL, env.StreamURL)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Log.Format, env.LogFormat)
	setString(&c.Telemetry.OTLPEndpoint, env.TelemetryEndpoint)

	if env.HTTPTimeout != nil {
		c.HTTP.Timeout = *env.HTTPTimeout
	}
	if env.RateLimit != nil {
		c.HTTP.RateLimit = *env.RateLimit
	}
	if env.Burst != nil {
		c.HTTP.Burst = *env.Burst
	}
	if env.TelemetryEnabled != nil {
		c.Telemetry.Enabled = *env.TelemetryEnabled
	}
	if env.TelemetryInsecure != nil {
		c.Telemetry.Insecure = *env.TelemetryInsecure
	}
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}
