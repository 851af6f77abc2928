// Package config provides 12-factor configuration for the bridge and the
// capture client.
//
// Configuration is loaded from environment variables with the defaults of the
// original Node bridge. CLI flags can override environment variables.
//
// Configuration Sections:
//   - Bridge: HTTPS listener (port, host, SPA bundle directory)
//   - Upstream: SigWeb tablet host base URL and timeout
//   - TLS: certificate and key paths
//   - CORS: optional origin allowlist
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting of proxied calls
//   - Metrics: Prometheus endpoint toggle
//
// Environment Variables:
//   - SIGWEB_TARGET, SIGWEB_TIMEOUT
//   - BRIDGE_PORT, BRIDGE_HOST, BRIDGE_DIST_DIR
//   - BRIDGE_CERT_PATH, BRIDGE_KEY_PATH, BRIDGE_WRITE_CERT
//   - BRIDGE_ALLOWED_ORIGINS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - METRICS_ENABLED
package config
