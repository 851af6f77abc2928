package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 9443, cfg.Bridge.Port)
	assert.Equal(t, "", cfg.Bridge.Host)
	assert.Equal(t, "dist/topaz-demo", cfg.Bridge.DistDir)

	assert.Equal(t, "http://localhost:47289", cfg.Upstream.Target)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)

	assert.Equal(t, "certs/localhost-cert.pem", cfg.TLS.CertPath)
	assert.Equal(t, "certs/localhost-key.pem", cfg.TLS.KeyPath)
	assert.False(t, cfg.TLS.WriteGenerated)

	assert.Empty(t, cfg.CORS.AllowedOrigins)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SIGWEB_TARGET":          "http://127.0.0.1:47290",
		"SIGWEB_TIMEOUT":         "5s",
		"BRIDGE_PORT":            "9444",
		"BRIDGE_HOST":            "127.0.0.1",
		"BRIDGE_DIST_DIR":        "/srv/demo",
		"BRIDGE_CERT_PATH":       "/tmp/cert.pem",
		"BRIDGE_KEY_PATH":        "/tmp/key.pem",
		"BRIDGE_WRITE_CERT":      "true",
		"BRIDGE_ALLOWED_ORIGINS": "https://example.github.io,http://localhost:4200",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_ENABLED":     "false",
		"METRICS_ENABLED":        "true",
	}

	for key, value := range envVars {
		err := os.Setenv(key, value)
		require.NoError(t, err)
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:47290", cfg.Upstream.Target)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 9444, cfg.Bridge.Port)
	assert.Equal(t, "127.0.0.1", cfg.Bridge.Host)
	assert.Equal(t, "/srv/demo", cfg.Bridge.DistDir)
	assert.Equal(t, "/tmp/cert.pem", cfg.TLS.CertPath)
	assert.Equal(t, "/tmp/key.pem", cfg.TLS.KeyPath)
	assert.True(t, cfg.TLS.WriteGenerated)
	assert.Equal(t, []string{"https://example.github.io", "http://localhost:4200"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9444", cfg.Addr())
}

func TestLoadRejectsMalformedPort(t *testing.T) {
	require.NoError(t, os.Setenv("BRIDGE_PORT", "not-a-port"))
	defer os.Unsetenv("BRIDGE_PORT")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Bridge.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Bridge.Port = 70000 }, wantErr: true},
		{name: "target without scheme", mutate: func(c *Config) { c.Upstream.Target = "localhost:47289" }, wantErr: true},
		{name: "target ftp", mutate: func(c *Config) { c.Upstream.Target = "ftp://localhost" }, wantErr: true},
		{name: "target trailing slash", mutate: func(c *Config) { c.Upstream.Target = "http://localhost:47289/" }},
		{name: "rate limit zero rps", mutate: func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }, wantErr: true},
		{name: "rate limit zero burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: true},
		{name: "rate limit negative burst", mutate: func(c *Config) { c.RateLimit.Burst = -1 }, wantErr: true},
		{
			name: "rate limit disabled zero rps",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.RequestsPerSecond = 0
				c.RateLimit.Burst = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetURLTrimsTrailingSlash(t *testing.T) {
	cfg := Default()
	cfg.Upstream.Target = "http://localhost:47289/"

	u, err := cfg.TargetURL()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:47289", u.String())
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"", false},
		{"0.0.0.0", false},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"192.168.1.10", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := Default()
			cfg.Bridge.Host = tt.host
			assert.Equal(t, tt.want, cfg.IsLoopback())
		})
	}
}

func TestLoadClient(t *testing.T) {
	require.NoError(t, os.Setenv("SIGWEB_PAGE_ORIGIN", "https://example.github.io"))
	defer os.Unsetenv("SIGWEB_PAGE_ORIGIN")

	cfg, err := LoadClient()
	require.NoError(t, err)

	assert.Equal(t, "https://example.github.io", cfg.PageOrigin)
	assert.Equal(t, 9443, cfg.BridgePort)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.BaseURL)
}
