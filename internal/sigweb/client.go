package sigweb

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/resilience"
)

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify accepts the bridge's self-signed certificate.
	InsecureSkipVerify bool
	// RateLimit caps requests per second; zero means unlimited.
	RateLimit float64
	// Transport replaces the pooled default transport.
	Transport http.RoundTripper
	// Breaker replaces the default circuit breaker.
	Breaker   *resilience.Breaker
	UserAgent string
	// Logger receives breaker state changes.
	Logger *logging.Logger
}

// Client implements the SigWeb capabilities over REST.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	baseURL string
	mu      sync.RWMutex
}

var (
	_ Opener          = (*Client)(nil)
	_ CaptureToggler  = (*Client)(nil)
	_ Closer          = (*Client)(nil)
	_ Clearer         = (*Client)(nil)
	_ ImageFetcher    = (*Client)(nil)
	_ VersionReader   = (*Client)(nil)
	_ ConnectQuerier  = (*Client)(nil)
	_ StateReader     = (*Client)(nil)
	_ ModelReader     = (*Client)(nil)
	_ SerialReader    = (*Client)(nil)
	_ SigStringReader = (*Client)(nil)
	_ SigStringWriter = (*Client)(nil)
	_ StrokeCounter   = (*Client)(nil)
	_ BridgeProber    = (*Client)(nil)
)

// NewClient creates a REST client rooted at baseURL (e.g.
// http://localhost:47289/sigweb). Calls are never retried: a tablet command
// such as OpenTablet must not run twice.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sigwebctl/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	transport := opts.Transport
	if transport == nil {
		// Pooled transport from retryablehttp; its retry loop stays unused.
		pooled := retryablehttp.NewClient().HTTPClient.Transport.(*http.Transport)
		if opts.InsecureSkipVerify {
			pooled.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed local bridge
		}
		transport = pooled
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetTransport(transport)

	breaker := opts.Breaker
	if breaker == nil {
		breaker = resilience.New("sigweb", resilience.Settings{
			HalfOpenProbes: 1,
			Cooldown:       5 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsFailure: func(err error) bool {
				return IsTransport(err) && !errors.Is(err, context.Canceled)
			},
			OnStateChange: breakerLogger(opts.Logger),
		})
	}

	c := &Client{
		resty:   restyClient,
		breaker: breaker,
		baseURL: restyClient.BaseURL,
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// BaseURL returns the SigWeb root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) Version(ctx context.Context) (string, error) {
	return c.get(ctx, "/version")
}

func (c *Client) TabletConnectQuery(ctx context.Context) (string, error) {
	return c.get(ctx, "/TabletConnectQuery")
}

func (c *Client) OpenTablet(ctx context.Context) error {
	return c.postForm(ctx, "/OpenTablet/0")
}

// SetCapture posts TabletState/1 to start capturing and TabletState/0 to stop.
func (c *Client) SetCapture(ctx context.Context, on bool) error {
	if on {
		return c.postForm(ctx, "/TabletState/1")
	}
	return c.postForm(ctx, "/TabletState/0")
}

func (c *Client) TabletState(ctx context.Context) (string, error) {
	return c.get(ctx, "/TabletState")
}

func (c *Client) CloseTablet(ctx context.Context) error {
	return c.postForm(ctx, "/CloseTablet")
}

func (c *Client) ClearSignature(ctx context.Context) error {
	_, err := c.get(ctx, "/ClearSignature")
	return err
}

func (c *Client) SignatureImage(ctx context.Context) (string, error) {
	return c.get(ctx, "/SigImage/0")
}

func (c *Client) SigString(ctx context.Context) (string, error) {
	return c.get(ctx, "/SigString")
}

func (c *Client) SetSigString(ctx context.Context, sigString string) error {
	_, err := c.do(ctx, http.MethodPost, "/SigString", func(r *resty.Request) {
		r.SetHeader("Content-Type", "text/plain").SetBody(sigString)
	})
	return err
}

func (c *Client) NumberOfStrokes(ctx context.Context) (string, error) {
	return c.get(ctx, "/NumberOfStrokes")
}

func (c *Client) ModelNumber(ctx context.Context) (string, error) {
	return c.get(ctx, "/TabletModelNumber")
}

func (c *Client) SerialNumber(ctx context.Context) (string, error) {
	return c.get(ctx, "/TabletSerialNumber")
}

// ProbeBridge GETs healthURL and succeeds on any 2xx answer. The breaker is
// not involved; the bridge is a different host from SigWeb.
func (c *Client) ProbeBridge(ctx context.Context, healthURL string) error {
	resp, err := c.resty.R().SetContext(ctx).Get(healthURL)
	if err != nil {
		return &TransportError{Method: http.MethodGet, URL: healthURL, Err: err}
	}
	if resp.IsError() {
		return &StatusError{Method: http.MethodGet, URL: healthURL, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

func breakerLogger(log *logging.Logger) func(string, resilience.State, resilience.State) {
	return func(name string, from, to resilience.State) {
		level := log.Info
		if to == resilience.StateOpen {
			level = log.Warn
		}
		level("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}

// get adds a fresh noCache token, as the vendor script does.
func (c *Client) get(ctx context.Context, path string) (string, error) {
	return c.do(ctx, http.MethodGet, path, func(r *resty.Request) {
		r.SetQueryParam("noCache", uuid.NewString())
	})
}

// postForm sends the fixed "x=" body SigWeb expects on commands.
func (c *Client) postForm(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPost, path, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/x-www-form-urlencoded").SetBody("x=")
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) (string, error) {
	url := c.baseURL + path

	c.mu.RLock()
	limiter := c.limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return "", &TransportError{Method: method, URL: url, Err: err}
	}

	var body string
	err := c.breaker.Execute(func() error {
		req := c.resty.R().SetContext(ctx)
		if prepare != nil {
			prepare(req)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return &TransportError{Method: method, URL: url, Err: err}
		}
		if resp.IsError() {
			return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
		}
		body = string(resp.Body())
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return "", &TransportError{Method: method, URL: url, Err: err}
	}
	return body, err
}
