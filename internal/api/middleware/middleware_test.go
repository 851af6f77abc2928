package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/shared/id"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestReflectCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	tests := []struct {
		name         string
		method       string
		path         string
		origin       string
		reqHeaders   string
		wantStatus   int
		wantOrigin   string
		wantHeaders  string
		wantVaryOrig bool
	}{
		{
			name:         "GET reflects origin",
			method:       http.MethodGet,
			path:         "/test",
			origin:       "https://demo.example.github.io",
			wantStatus:   http.StatusOK,
			wantOrigin:   "https://demo.example.github.io",
			wantHeaders:  "Content-Type",
			wantVaryOrig: true,
		},
		{
			name:         "preflight echoes requested headers",
			method:       http.MethodOptions,
			path:         "/test",
			origin:       "https://x.example",
			reqHeaders:   "content-type,x-custom",
			wantStatus:   http.StatusNoContent,
			wantOrigin:   "https://x.example",
			wantHeaders:  "content-type,x-custom",
			wantVaryOrig: true,
		},
		{
			name:        "OPTIONS on unknown path without origin",
			method:      http.MethodOptions,
			path:        "/anything/at/all",
			wantStatus:  http.StatusNoContent,
			wantHeaders: "Content-Type",
		},
		{
			name:        "no origin header",
			method:      http.MethodGet,
			path:        "/test",
			wantStatus:  http.StatusOK,
			wantHeaders: "Content-Type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.reqHeaders != "" {
				req.Header.Set(HeaderRequestHeaders, tt.reqHeaders)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get(HeaderAllowOrigin))
			assert.Equal(t, tt.wantHeaders, w.Header().Get(HeaderAllowHeaders))
			assert.Equal(t, "GET,POST,OPTIONS", w.Header().Get(HeaderAllowMethods))
			assert.Equal(t, "600", w.Header().Get(HeaderMaxAge))
			assert.Equal(t, "true", w.Header().Get(HeaderAllowPrivateNetwork))
			if tt.wantVaryOrig {
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			} else {
				assert.Empty(t, w.Header().Get("Vary"))
			}
			if tt.method == http.MethodOptions {
				assert.Empty(t, w.Body.String())
			}
		})
	}
}

func TestAllowlistCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://demo.example"}

	router := setupTestRouter()
	router.Use(CORS(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://demo.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://demo.example", w.Header().Get(HeaderAllowOrigin))
	})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/test", nil)
		req.Header.Set("Origin", "https://demo.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Private-Network", "true")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "true", w.Header().Get(HeaderAllowPrivateNetwork))
	})

	t.Run("foreign origin rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get(HeaderAllowOrigin))
	})

	t.Run("OPTIONS without origin", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/test", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()

	limited := 0
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		IdleTTL:           time.Minute,
		OnLimited:         func(*gin.Context) { limited++ },
	}
	router.Use(RateLimit(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, limited)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		rid := w.Header().Get(HeaderRequestID)
		assert.True(t, id.IsRequestID(rid))
		assert.Equal(t, rid, w.Body.String())
	})

	t.Run("keeps well-formed incoming id", func(t *testing.T) {
		incoming := id.NewRequestID().String()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, incoming)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, incoming, w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "<script>")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEqual(t, "<script>", w.Header().Get(HeaderRequestID))
	})
}

func TestAccessLogAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &logging.Logger{Logger: zap.New(core)}

	router := setupTestRouter()
	router.Use(RequestID(), Recovery(log), AccessLog(log))
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/boom", func(c *gin.Context) { panic("tablet on fire") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	health := logs.FilterField(zap.String("path", "/health")).All()
	require.Len(t, health, 1)
	assert.Equal(t, zap.DebugLevel, health[0].Level)

	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestRecoveryCutsStartedResponses(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &logging.Logger{Logger: zap.New(core)}

	router := setupTestRouter()
	router.Use(Recovery(log))
	router.GET("/abort", func(c *gin.Context) {
		c.String(http.StatusOK, "iVBORw0KGgo")
		panic(http.ErrAbortHandler)
	})
	router.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("upstream went away")
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
	assert.Equal(t, 0, logs.FilterMessage("panic recovered").Len())

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/late", nil))
	})
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}
