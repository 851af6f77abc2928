// Package middleware provides the bridge's HTTP middleware.
//
// Middleware stack includes:
//   - CORS: origin reflection with Private Network Access support, or an
//     allowlist through gin-contrib/cors
//   - RateLimit: per-IP token bucket in front of the SigWeb proxy
//   - RequestID: X-Request-ID tagging with ULIDs
//   - AccessLog and Recovery: structured zap logging
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Recovery(log), middleware.AccessLog(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	proxy := router.Group("/sigweb", middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
