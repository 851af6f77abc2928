package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/TopazBridge/internal/api/http"
	"github.com/GriffinCanCode/TopazBridge/internal/api/middleware"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/certs"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/monitoring"
)

// ShutdownTimeout bounds how long in-flight requests get on shutdown.
const ShutdownTimeout = 5 * time.Second

// PortInUseError is returned by Listen when the port is already bound.
type PortInUseError struct {
	Port int
	Err  error
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

func (e *PortInUseError) Unwrap() error { return e.Err }

// Diagnostic is the operator-facing explanation printed before exiting.
func (e *PortInUseError) Diagnostic() string {
	return fmt.Sprintf(heredoc.Doc(`
		ERROR: Port %[1]d is already in use.
		Close the process using that port, or start the bridge on another port:
		  set BRIDGE_PORT=%[2]d
		  topaz-bridge
		Windows helper commands:
		  netstat -ano | findstr :%[1]d
		  taskkill /PID <pid> /F
	`), e.Port, e.Port+1)
}

// Server wraps the HTTPS listener and its dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	router   *gin.Engine
	handlers *apihttp.Handlers
	metrics  *monitoring.Metrics
	certs    *certs.Pair

	httpServer *http.Server
	listener   net.Listener
}

// NewServer resolves the certificate and builds the router. Nothing is bound
// until Listen.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	target, _ := cfg.TargetURL()

	pair, err := certs.Resolve(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	logger.Info("TLS certificate ready",
		zap.String("source", string(pair.Source)),
		zap.Time("not_after", pair.Leaf.NotAfter),
	)
	if pair.Source == certs.SourceGenerated && cfg.TLS.WriteGenerated {
		if err := pair.WriteFiles(cfg.TLS.CertPath, cfg.TLS.KeyPath); err != nil {
			logger.Warn("Failed to persist generated certificate", zap.Error(err))
		} else {
			logger.Info("Persisted generated certificate",
				zap.String("cert", cfg.TLS.CertPath),
				zap.String("key", cfg.TLS.KeyPath),
			)
		}
	}

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics()
		metrics.SetCertSource(string(pair.Source))
	}

	handlers, err := apihttp.NewHandlers(apihttp.Options{
		Target:    target,
		Transport: apihttp.NewUpstreamTransport(cfg.Upstream.Timeout),
		DistDir:   cfg.Bridge.DistDir,
		BridgeURL: BridgeURL(cfg.Bridge.Port),
		Logger:    logger.Named("proxy"),
		Metrics:   metrics,
	})
	if err != nil {
		return nil, err
	}
	if handlers.HasApp() {
		logger.Info("Serving built app", zap.String("dist", cfg.Bridge.DistDir))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	if corsCfg.Reflecting() && !cfg.IsLoopback() {
		logger.Warn("Bridge reflects any Origin and is reachable beyond loopback; set BRIDGE_HOST=127.0.0.1 or BRIDGE_ALLOWED_ORIGINS",
			zap.String("host", cfg.Bridge.Host),
		)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		handlers: handlers,
		metrics:  metrics,
		certs:    pair,
	}
	s.router = NewRouter(RouterOptions{
		Handlers:  handlers,
		Logger:    logger,
		Metrics:   metrics,
		CORS:      corsCfg,
		RateLimit: rateLimitConfig(cfg, metrics),
	})
	return s, nil
}

// BridgeURL is the address browsers use to reach a bridge on port.
func BridgeURL(port int) string {
	return "https://localhost:" + strconv.Itoa(port)
}

func rateLimitConfig(cfg *config.Config, metrics *monitoring.Metrics) *middleware.RateLimitConfig {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = float64(cfg.RateLimit.RequestsPerSecond)
	rl.Burst = cfg.RateLimit.Burst
	if metrics != nil {
		rl.OnLimited = func(*gin.Context) { metrics.IncRateLimited() }
	}
	return &rl
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Handlers *apihttp.Handlers
	Logger   *logging.Logger
	// Metrics, when set, instruments every route and exposes /metrics.
	Metrics *monitoring.Metrics
	CORS    middleware.CORSConfig
	// RateLimit applies to the proxy only; nil disables it.
	RateLimit *middleware.RateLimitConfig
}

// NewRouter wires the bridge routes. CORS runs ahead of every handler so
// each response, including errors and 404s, carries the headers; preflights
// end there but still get a request ID and an access log line.
func NewRouter(opts RouterOptions) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	h := opts.Handlers

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.AccessLog(log.Named("http")))
	router.Use(middleware.CORS(opts.CORS))
	if opts.Metrics != nil {
		router.Use(monitoring.Middleware(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	router.GET("/health", h.Health)
	router.GET("/", h.Root)
	router.HEAD("/", h.Root)

	proxy := router.Group(apihttp.ProxyPrefix)
	if opts.RateLimit != nil {
		proxy.Use(middleware.RateLimit(*opts.RateLimit))
	}
	proxy.Any("", h.Proxy)
	proxy.Any("/*path", h.Proxy)

	router.NoRoute(h.Fallback)
	router.NoMethod(h.Fallback)

	return router
}

// Router exposes the handler, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Certificate returns the pair the listener serves
func (s *Server) Certificate() *certs.Pair {
	return s.certs
}

// Listen binds the TLS listener. A busy port yields *PortInUseError.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return &PortInUseError{Port: s.config.Bridge.Port, Err: err}
		}
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}

	s.httpServer = &http.Server{
		Handler:           s.router,
		TLSConfig:         s.certs.TLSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("tls").Logger),
	}
	s.listener = tls.NewListener(ln, s.httpServer.TLSConfig)
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve blocks until the server stops. Graceful shutdown returns nil.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run listens, serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down bridge...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	_ = s.logger.Sync()
	return nil
}
