// Package logging provides structured logging using uber/zap.
//
// Two output modes:
//   - Production: JSON lines for machine parsing
//   - Development: colored console output (LOG_DEV=true)
//
// Example Usage:
//
//	logger := logging.NewFromSettings("info", false)
//	logger.Info("Bridge listening", zap.String("addr", ":9443"))
//	logger.Named("proxy").Warn("Upstream unreachable", zap.Error(err))
package logging
