package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/monitoring"
)

// ProxyPrefix is the path the SigWeb REST host lives under, on both sides
// of the bridge.
const ProxyPrefix = "/sigweb"

// Options configures the bridge handlers.
type Options struct {
	Target    *url.URL
	Transport http.RoundTripper
	// DistDir holds an optional prebuilt single-page app.
	DistDir string
	// BridgeURL is shown on the status page, e.g. https://localhost:9443.
	BridgeURL string
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
}

// Handlers contains the bridge's HTTP handlers
type Handlers struct {
	target    *url.URL
	bridgeURL string
	proxy     *httputil.ReverseProxy
	log       *logging.Logger

	indexPath string
	hasApp    bool
	static    http.Handler
	index     http.Handler
	status    http.Handler
}

// NewHandlers creates the handler set. Whether a built app is present is
// decided once, here.
func NewHandlers(opts Options) (*Handlers, error) {
	if opts.Target == nil {
		return nil, errors.New("proxy target is required")
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	h := &Handlers{
		target:    opts.Target,
		bridgeURL: opts.BridgeURL,
		log:       log,
	}
	h.proxy = newReverseProxy(opts.Target, opts.Transport, log, opts.Metrics)

	status, err := newStatusPage(opts.Target.String(), opts.BridgeURL)
	if err != nil {
		return nil, fmt.Errorf("status page: %w", err)
	}
	h.status = gzhttp.GzipHandler(status)

	if opts.DistDir != "" {
		h.indexPath = filepath.Join(opts.DistDir, "index.html")
		if info, err := os.Stat(h.indexPath); err == nil && info.Mode().IsRegular() {
			h.hasApp = true
			h.static = gzhttp.GzipHandler(http.FileServer(http.Dir(opts.DistDir)))
			h.index = gzhttp.GzipHandler(http.HandlerFunc(h.serveIndex))
		}
	}

	return h, nil
}

// HasApp reports whether a built app is being served
func (h *Handlers) HasApp() bool {
	return h.hasApp
}

// Health answers liveness probes without touching SigWeb
func (h *Handlers) Health(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte("ok"))
}

// Root serves the built app's index, or the bridge status page.
func (h *Handlers) Root(c *gin.Context) {
	if h.hasApp {
		h.index.ServeHTTP(c.Writer, c.Request)
		return
	}
	h.status.ServeHTTP(c.Writer, c.Request)
}

// Proxy forwards /sigweb and everything below it to the SigWeb host.
func (h *Handlers) Proxy(c *gin.Context) {
	h.proxy.ServeHTTP(c.Writer, c.Request)
}

// Fallback handles unmatched routes: static assets and SPA deep links when
// a built app exists, 404 otherwise.
func (h *Handlers) Fallback(c *gin.Context) {
	method := c.Request.Method
	if !h.hasApp || (method != http.MethodGet && method != http.MethodHead) || reserved(c.Request.URL.Path) {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}

	if h.isFile(c.Request.URL.Path) {
		h.static.ServeHTTP(c.Writer, c.Request)
		return
	}
	h.index.ServeHTTP(c.Writer, c.Request)
}

func reserved(p string) bool {
	return p == "/health" || p == ProxyPrefix || strings.HasPrefix(p, ProxyPrefix+"/")
}

func (h *Handlers) isFile(urlPath string) bool {
	dir := filepath.Dir(h.indexPath)
	name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

func (h *Handlers) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.indexPath)
	if err != nil {
		h.log.Error("Failed to open index.html", zap.String("path", h.indexPath), zap.Error(err))
		http.Error(w, "index.html unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "index.html unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
