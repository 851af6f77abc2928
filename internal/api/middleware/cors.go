package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAllowOrigin         = "Access-Control-Allow-Origin"
	HeaderAllowMethods        = "Access-Control-Allow-Methods"
	HeaderAllowHeaders        = "Access-Control-Allow-Headers"
	HeaderMaxAge              = "Access-Control-Max-Age"
	HeaderAllowPrivateNetwork = "Access-Control-Allow-Private-Network"
	HeaderRequestHeaders      = "Access-Control-Request-Headers"
)

// CORSConfig defines CORS configuration options.
type CORSConfig struct {
	// AllowOrigins switches from origin reflection to an allowlist when
	// non-empty.
	AllowOrigins []string
	AllowMethods []string
	// DefaultHeaders is advertised when a preflight names no headers.
	DefaultHeaders []string
	MaxAge         time.Duration
}

// DefaultCORSConfig returns the configuration browsers need to call the
// bridge from any page, including Private Network Access preflights.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		DefaultHeaders: []string{"Content-Type"},
		MaxAge:         10 * time.Minute,
	}
}

// Reflecting reports whether the configuration reflects any origin.
func (cfg CORSConfig) Reflecting() bool {
	return len(cfg.AllowOrigins) == 0
}

// CORS returns the CORS middleware for cfg: ReflectCORS when no allowlist
// is configured, AllowlistCORS otherwise.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	if cfg.Reflecting() {
		return ReflectCORS(cfg)
	}
	return AllowlistCORS(cfg)
}

// ReflectCORS stamps CORS headers on every response, echoing the caller's
// Origin and requested headers, and answers every OPTIONS request with 204.
func ReflectCORS(cfg CORSConfig) gin.HandlerFunc {
	methods := strings.Join(cfg.AllowMethods, ",")
	defaultHeaders := strings.Join(cfg.DefaultHeaders, ",")
	maxAge := strconv.Itoa(int(cfg.MaxAge / time.Second))

	return func(c *gin.Context) {
		ApplyReflectedHeaders(c.Writer.Header(), c.Request, methods, defaultHeaders, maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ApplyReflectedHeaders writes the reflective CORS header set onto h.
func ApplyReflectedHeaders(h http.Header, r *http.Request, methods, defaultHeaders, maxAge string) {
	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set(HeaderAllowOrigin, origin)
		h.Set("Vary", "Origin")
	}
	h.Set(HeaderAllowMethods, methods)
	if requested := r.Header.Get(HeaderRequestHeaders); requested != "" {
		h.Set(HeaderAllowHeaders, requested)
	} else {
		h.Set(HeaderAllowHeaders, defaultHeaders)
	}
	h.Set(HeaderMaxAge, maxAge)
	h.Set(HeaderAllowPrivateNetwork, "true")
}

// AllowlistCORS only admits the configured origins. Requests from other
// origins are rejected with 403 by gin-contrib/cors.
func AllowlistCORS(cfg CORSConfig) gin.HandlerFunc {
	headers := append([]string{"Origin"}, cfg.DefaultHeaders...)
	headers = append(headers, "X-Request-ID")

	allow := cors.New(cors.Config{
		AllowOrigins:              cfg.AllowOrigins,
		AllowMethods:              cfg.AllowMethods,
		AllowHeaders:              headers,
		ExposeHeaders:             []string{"X-Request-ID"},
		AllowPrivateNetwork:       true,
		MaxAge:                    cfg.MaxAge,
		OptionsResponseStatusCode: http.StatusNoContent,
	})

	return func(c *gin.Context) {
		allow(c)
		if c.IsAborted() {
			return
		}
		// Same-origin and origin-less preflights fall through the library.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
		}
	}
}
