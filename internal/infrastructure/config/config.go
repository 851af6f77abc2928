package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all bridge configuration.
type Config struct {
	Bridge    BridgeConfig
	Upstream  UpstreamConfig
	TLS       TLSConfig
	CORS      CORSConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// BridgeConfig holds HTTPS listener configuration.
type BridgeConfig struct {
	Port    int    `envconfig:"BRIDGE_PORT" default:"9443"`
	Host    string `envconfig:"BRIDGE_HOST"`
	DistDir string `envconfig:"BRIDGE_DIST_DIR" default:"dist/topaz-demo"`
}

// UpstreamConfig holds the tablet host connection settings.
type UpstreamConfig struct {
	Target  string        `envconfig:"SIGWEB_TARGET" default:"http://localhost:47289"`
	Timeout time.Duration `envconfig:"SIGWEB_TIMEOUT" default:"30s"`
}

// TLSConfig holds certificate locations.
type TLSConfig struct {
	CertPath       string `envconfig:"BRIDGE_CERT_PATH" default:"certs/localhost-cert.pem"`
	KeyPath        string `envconfig:"BRIDGE_KEY_PATH" default:"certs/localhost-key.pem"`
	WriteGenerated bool   `envconfig:"BRIDGE_WRITE_CERT" default:"false"`
}

// CORSConfig holds the optional origin allowlist. Empty means reflect any origin.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BRIDGE_ALLOWED_ORIGINS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for proxied calls.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			Port:    9443,
			DistDir: "dist/topaz-demo",
		},
		Upstream: UpstreamConfig{
			Target:  "http://localhost:47289",
			Timeout: 30 * time.Second,
		},
		TLS: TLSConfig{
			CertPath: "certs/localhost-cert.pem",
			KeyPath:  "certs/localhost-key.pem",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the listen address for the HTTPS listener.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bridge.Host, strconv.Itoa(c.Bridge.Port))
}

// TargetURL parses the upstream base URL.
func (c *Config) TargetURL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(c.Upstream.Target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGWEB_TARGET %q: %w", c.Upstream.Target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid SIGWEB_TARGET %q: scheme must be http or https", c.Upstream.Target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid SIGWEB_TARGET %q: missing host", c.Upstream.Target)
	}
	return u, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if c.Bridge.Port < 1 || c.Bridge.Port > 65535 {
		return fmt.Errorf("invalid BRIDGE_PORT %d", c.Bridge.Port)
	}
	if _, err := c.TargetURL(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_RPS %d", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Enabled && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("invalid RATE_LIMIT_BURST %d", c.RateLimit.Burst)
	}
	return nil
}

// IsLoopback reports whether the listener only accepts local connections.
func (c *Config) IsLoopback() bool {
	switch c.Bridge.Host {
	case "localhost":
		return true
	case "":
		return false
	}
	ip := net.ParseIP(c.Bridge.Host)
	return ip != nil && ip.IsLoopback()
}

// ClientConfig holds settings for the capture client CLI.
type ClientConfig struct {
	PageOrigin string        `envconfig:"SIGWEB_PAGE_ORIGIN"`
	BaseURL    string        `envconfig:"SIGWEB_BASE_URL"`
	BridgePort int           `envconfig:"BRIDGE_PORT" default:"9443"`
	Timeout    time.Duration `envconfig:"SIGWEB_CLIENT_TIMEOUT" default:"10s"`
}

// LoadClient loads the client configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	return &cfg, nil
}
