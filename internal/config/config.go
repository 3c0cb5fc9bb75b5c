// Package config loads client and CLI configuration from YAML, .env files, and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpoliselit/poloniex/internal/telemetry"
	"github.com/rpoliselit/poloniex/pkg/poloniex"
)

// Credentials holds the API key pair used for trading commands.
type Credentials struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
}

// HTTPConfig tunes the REST transport.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
	Burst     int           `yaml:"burst"`
}

// StreamConfig tunes the websocket transport.
type StreamConfig struct {
	URL               string        `yaml:"url"`
	ReconnectInterval time.Duration `yaml:"reconnectInterval"`
	MaxReconnectDelay time.Duration `yaml:"maxReconnectDelay"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures the OTLP metrics exporter.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"serviceName"`
}

// Config is the complete configuration tree.
type Config struct {
	Environment string          `yaml:"environment"`
	Credentials Credentials     `yaml:"credentials"`
	HTTP        HTTPConfig      `yaml:"http"`
	Stream      StreamConfig    `yaml:"stream"`
	Log         LogConfig       `yaml:"log"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file or override is present.
func Default() Config {
	tel := telemetry.DefaultConfig()
	return Config{
		Environment: "development",
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			RateLimit: 6,
			Burst:     6,
		},
		Stream: StreamConfig{
			URL:               poloniex.WebsocketURL,
			ReconnectInterval: 500 * time.Millisecond,
			MaxReconnectDelay: 30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: tel.OTLPEndpoint,
			Insecure:     tel.OTLPInsecure,
			ServiceName:  tel.ServiceName,
		},
	}
}

// Load reads configPath and the .env file of the working directory. See LoadFiles.
func Load(configPath string) (Config, error) {
	return LoadFiles(configPath, ".env")
}

// LoadFiles layers defaults, the YAML file at configPath, the dotenv file at envPath,
// and POLONIEX_* environment variables, then validates the result. Empty or missing
// files are skipped.
func LoadFiles(configPath, envPath string) (Config, error) {
	cfg := Default()

	if err := cfg.mergeYAML(configPath); err != nil {
		return Config{}, err
	}
	if err := loadDotenv(envPath); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (c *Config) normalise() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Credentials.Key = strings.TrimSpace(c.Credentials.Key)
	c.Stream.URL = strings.TrimSpace(c.Stream.URL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.HTTP.RateLimit > 0 && c.HTTP.Burst <= 0 {
		c.HTTP.Burst = 1
	}
}

// Validate performs semantic validation on the configuration.
func (c Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment required")
	}
	if (c.Credentials.Key == "") != (c.Credentials.Secret == "") {
		return fmt.Errorf("credentials key and secret must be set together")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http rateLimit must be >= 0")
	}
	if c.HTTP.Burst < 0 {
		return fmt.Errorf("http burst must be >= 0")
	}
	if c.Stream.URL == "" {
		return fmt.Errorf("stream url required")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry otlpEndpoint required when telemetry is enabled")
	}
	return nil
}

// Signed reports whether trading credentials are configured.
func (c Config) Signed() bool {
	return c.Credentials.Key != "" && c.Credentials.Secret != ""
}

// TelemetrySettings converts the telemetry section for telemetry.NewProvider.
func (c Config) TelemetrySettings() telemetry.Config {
	out := telemetry.DefaultConfig()
	out.Enabled = c.Telemetry.Enabled
	out.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	out.OTLPInsecure = c.Telemetry.Insecure
	if c.Telemetry.ServiceName != "" {
		out.ServiceName = c.Telemetry.ServiceName
	}
	out.Environment = c.Environment
	return out
}
