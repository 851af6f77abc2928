package sigweb

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/resilience"
)

type recorded struct {
	method      string
	path        string
	noCache     string
	contentType string
	body        string
}

type fakeHost struct {
	mu       sync.Mutex
	requests []recorded
	answers  map[string]string
	status   map[string]int
}

func newFakeHost(t *testing.T) (*fakeHost, *httptest.Server) {
	t.Helper()
	h := &fakeHost{answers: map[string]string{}, status: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.requests = append(h.requests, recorded{
			method:      r.Method,
			path:        r.URL.Path,
			noCache:     r.URL.Query().Get("noCache"),
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		code, answer := h.status[r.URL.Path], h.answers[r.URL.Path]
		h.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
		}
		_, _ = io.WriteString(w, answer)
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *fakeHost) last() recorded {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[len(h.requests)-1]
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func TestClientRequests(t *testing.T) {
	host, srv := newFakeHost(t)
	host.answers["/sigweb/version"] = `"1.6.4.0"`
	client := NewClient(srv.URL+"/sigweb/", Options{Timeout: time.Second})
	ctx := context.Background()

	tests := []struct {
		name        string
		call        func() error
		method      string
		path        string
		contentType string
		body        string
		noCache     bool
	}{
		{"version", func() error { _, err := client.Version(ctx); return err }, "GET", "/sigweb/version", "", "", true},
		{"connect query", func() error { _, err := client.TabletConnectQuery(ctx); return err }, "GET", "/sigweb/TabletConnectQuery", "", "", true},
		{"open", func() error { return client.OpenTablet(ctx) }, "POST", "/sigweb/OpenTablet/0", "application/x-www-form-urlencoded", "x=", false},
		{"capture on", func() error { return client.SetCapture(ctx, true) }, "POST", "/sigweb/TabletState/1", "application/x-www-form-urlencoded", "x=", false},
		{"capture off", func() error { return client.SetCapture(ctx, false) }, "POST", "/sigweb/TabletState/0", "application/x-www-form-urlencoded", "x=", false},
		{"tablet state", func() error { _, err := client.TabletState(ctx); return err }, "GET", "/sigweb/TabletState", "", "", true},
		{"close", func() error { return client.CloseTablet(ctx) }, "POST", "/sigweb/CloseTablet", "application/x-www-form-urlencoded", "x=", false},
		{"clear", func() error { return client.ClearSignature(ctx) }, "GET", "/sigweb/ClearSignature", "", "", true},
		{"image", func() error { _, err := client.SignatureImage(ctx); return err }, "GET", "/sigweb/SigImage/0", "", "", true},
		{"sigstring", func() error { _, err := client.SigString(ctx); return err }, "GET", "/sigweb/SigString", "", "", true},
		{"set sigstring", func() error { return client.SetSigString(ctx, "ABC123") }, "POST", "/sigweb/SigString", "text/plain", "ABC123", false},
		{"strokes", func() error { _, err := client.NumberOfStrokes(ctx); return err }, "GET", "/sigweb/NumberOfStrokes", "", "", true},
		{"model", func() error { _, err := client.ModelNumber(ctx); return err }, "GET", "/sigweb/TabletModelNumber", "", "", true},
		{"serial", func() error { _, err := client.SerialNumber(ctx); return err }, "GET", "/sigweb/TabletSerialNumber", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.call())

			got := host.last()
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.path, got.path)
			if tt.contentType != "" {
				assert.Contains(t, got.contentType, tt.contentType)
			}
			assert.Equal(t, tt.body, got.body)
			if tt.noCache {
				assert.Len(t, got.noCache, 36)
			} else {
				assert.Empty(t, got.noCache)
			}
		})
	}

	v, err := client.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"1.6.4.0"`, v)
}

func TestClientNoCacheIsFresh(t *testing.T) {
	host, srv := newFakeHost(t)
	client := NewClient(srv.URL+"/sigweb", Options{})

	_, _ = client.Version(context.Background())
	first := host.last().noCache
	_, _ = client.Version(context.Background())

	assert.NotEqual(t, first, host.last().noCache)
}

func TestClientStatusError(t *testing.T) {
	host, srv := newFakeHost(t)
	host.status["/sigweb/OpenTablet/0"] = http.StatusInternalServerError
	host.answers["/sigweb/OpenTablet/0"] = "Tablet busy"
	client := NewClient(srv.URL+"/sigweb", Options{})

	err := client.OpenTablet(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "Tablet busy", statusErr.Error())
	assert.False(t, IsTransport(err))
	assert.Equal(t, 1, host.count())
}

func TestClientStatusErrorsDoNotTripBreaker(t *testing.T) {
	host, srv := newFakeHost(t)
	host.status["/sigweb/SigImage/0"] = http.StatusNotFound
	client := NewClient(srv.URL+"/sigweb", Options{})

	for i := 0; i < 10; i++ {
		_, _ = client.SignatureImage(context.Background())
	}
	assert.Equal(t, resilience.StateClosed, client.BreakerState())
}

func closedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestClientTransportError(t *testing.T) {
	client := NewClient(closedURL(t)+"/sigweb", Options{Timeout: time.Second})

	_, err := client.Version(context.Background())

	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestClientBreakerOpensOnTransportFailures(t *testing.T) {
	breaker := resilience.New("test", resilience.Settings{
		Cooldown:    time.Minute,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
		IsFailure:   IsTransport,
	})
	client := NewClient(closedURL(t)+"/sigweb", Options{Timeout: time.Second, Breaker: breaker})

	for i := 0; i < 2; i++ {
		_, _ = client.Version(context.Background())
	}
	require.Equal(t, resilience.StateOpen, client.BreakerState())

	_, err := client.Version(context.Background())
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestClientLogsBreakerTransitions(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client := NewClient(closedURL(t)+"/sigweb", Options{
		Timeout: time.Second,
		Logger:  &logging.Logger{Logger: zap.New(core)},
	})

	for i := 0; i < 5; i++ {
		_, err := client.Version(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, client.BreakerState())

	entries := logs.FilterMessage("Circuit breaker state changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "open", entries[0].ContextMap()["to"])
	assert.Equal(t, "sigweb", entries[0].ContextMap()["breaker"])
}

func TestProbeBridge(t *testing.T) {
	bridge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = io.WriteString(w, "ok")
			return
		}
		http.NotFound(w, r)
	}))
	defer bridge.Close()

	client := NewClient("http://localhost:47289/sigweb", Options{})

	assert.NoError(t, client.ProbeBridge(context.Background(), bridge.URL+"/health"))
	assert.Error(t, client.ProbeBridge(context.Background(), bridge.URL+"/nope"))
	assert.True(t, IsTransport(client.ProbeBridge(context.Background(), closedURL(t)+"/health")))
}

func TestClientHonoursContext(t *testing.T) {
	_, srv := newFakeHost(t)
	client := NewClient(srv.URL+"/sigweb", Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Version(ctx)

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
