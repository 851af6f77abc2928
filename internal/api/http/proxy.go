package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/monitoring"
)

// NewUpstreamTransport returns the transport used to reach SigWeb. The
// tablet host often serves a self-signed certificate, so verification is
// off.
func NewUpstreamTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local tablet host
	if timeout > 0 {
		t.ResponseHeaderTimeout = timeout
	}
	return t
}

func newReverseProxy(target *url.URL, transport http.RoundTripper, log *logging.Logger, metrics *monitoring.Metrics) *httputil.ReverseProxy {
	if transport == nil {
		transport = NewUpstreamTransport(0)
	}
	if metrics != nil {
		transport = &instrumentedTransport{base: transport, metrics: metrics}
	}

	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			// The incoming path keeps its /sigweb prefix.
			r.SetURL(target)
		},
		Transport:      transport,
		ModifyResponse: stripUpstreamCORS,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				log.Debug("Client went away during proxy", zap.String("path", r.URL.Path))
				return
			}
			log.Warn("SigWeb proxy error",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("target", target.String()),
				zap.String("kind", errorKind(err)),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("Bad Gateway: SigWeb did not answer at " + target.String()))
		},
	}
}

// stripUpstreamCORS drops SigWeb's own CORS headers so the bridge's set is
// the only one the browser sees, and disables caching.
func stripUpstreamCORS(resp *http.Response) error {
	for name := range resp.Header {
		if strings.HasPrefix(http.CanonicalHeaderKey(name), "Access-Control-") {
			resp.Header.Del(name)
		}
	}
	resp.Header.Set("Cache-Control", "no-store")
	return nil
}

type instrumentedTransport struct {
	base    http.RoundTripper
	metrics *monitoring.Metrics
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	timer := monitoring.NewTimer(t.metrics)
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		timer.Fail(errorKind(err))
		return nil, err
	}
	timer.Stop(resp.StatusCode)
	return resp, nil
}

func errorKind(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "refused"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "other"
	}
}
