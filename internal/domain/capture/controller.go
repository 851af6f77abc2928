package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TopazBridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TopazBridge/internal/sigweb"
)

const (
	EmptyImageMessage     = "SigWeb returned an empty image. This usually means no signature has been captured yet or the tablet is not connected."
	EmptySigStringMessage = "SigString is empty. Paste a value first."
)

// Controller runs operator actions against a device. The device is any
// value; each action uses only the sigweb capabilities it needs.
type Controller struct {
	device     any
	page       *url.URL
	bridgePort int
	log        *logging.Logger
	onImage    func(Image)
}

// Option configures a Controller
type Option func(*Controller)

// WithPage sets the page origin the client runs on; nil means no browser.
func WithPage(page *url.URL) Option {
	return func(c *Controller) { c.page = page }
}

func WithBridgePort(port int) Option {
	return func(c *Controller) { c.bridgePort = port }
}

func WithLogger(log *logging.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithImageHandler registers the callback Save hands each image to.
func WithImageHandler(fn func(Image)) Option {
	return func(c *Controller) { c.onImage = fn }
}

// NewController creates a controller for device
func NewController(device any, opts ...Option) *Controller {
	c := &Controller{
		device:     device,
		bridgePort: sigweb.DefaultBridgePort,
		log:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the tablet, then switches it into capture mode.
func (c *Controller) Start(ctx context.Context, s State) State {
	s = begin(s, "Start")

	if err := c.open(ctx); err != nil {
		s.LastError = c.fail("open the tablet (OpenTablet/0)", err)
	} else if err := c.setCapture(ctx, true); err != nil {
		s.LastError = c.fail("switch the tablet into capture mode (TabletState/1)", err)
	}

	return c.RefreshStatus(ctx, s)
}

// Stop leaves capture mode.
func (c *Controller) Stop(ctx context.Context, s State) State {
	s = begin(s, "Stop")
	if err := c.setCapture(ctx, false); err != nil {
		s.LastError = c.fail("stop capture (TabletState/0)", err)
	}
	return c.RefreshStatus(ctx, s)
}

// Close ends the tablet session.
func (c *Controller) Close(ctx context.Context, s State) State {
	s = begin(s, "Close")
	closer, err := sigweb.As[sigweb.Closer](c.device, sigweb.CapCloseTablet)
	if err == nil {
		err = closer.CloseTablet(ctx)
	}
	if err != nil {
		s.LastError = c.fail("close the tablet (CloseTablet)", err)
	}
	return c.RefreshStatus(ctx, s)
}

// Clear erases the pad and drops the saved image.
func (c *Controller) Clear(ctx context.Context, s State) State {
	s = begin(s, "Clear")
	clearer, err := sigweb.As[sigweb.Clearer](c.device, sigweb.CapClearSignature)
	if err == nil {
		err = clearer.ClearSignature(ctx)
	}
	if err != nil {
		s.LastError = c.fail("clear the signature (ClearSignature)", err)
	} else {
		s.Image = nil
	}
	return c.RefreshStatus(ctx, s)
}

// Save fetches the signature image, decodes it and hands it to the image
// handler.
func (c *Controller) Save(ctx context.Context, s State) State {
	s = begin(s, "Save")

	fetcher, err := sigweb.As[sigweb.ImageFetcher](c.device, sigweb.CapSignatureImage)
	var raw string
	if err == nil {
		raw, err = fetcher.SignatureImage(ctx)
	}
	if err != nil {
		s.LastError = c.fail("fetch the signature image (SigImage/0)", err)
		return s
	}

	encoded := sigweb.NormalizeText(raw)
	if encoded == "" {
		s.LastError = EmptyImageMessage
		return s
	}

	img, err := decodeImage(encoded)
	if err != nil {
		s.LastError = c.fail("decode the signature image", err)
		return s
	}
	s.Image = &img
	c.log.Debug("Signature image fetched",
		zap.String("mime", img.MIMEType),
		zap.Int("bytes", len(img.Data)),
	)
	if c.onImage != nil {
		c.onImage(img)
	}
	return s
}

func decodeImage(encoded string) (Image, error) {
	// Tolerate a data URL wrapper.
	if strings.HasPrefix(encoded, "data:") {
		if _, payload, ok := strings.Cut(encoded, ","); ok {
			encoded = payload
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Image{}, err
	}
	if len(data) == 0 {
		return Image{}, sigweb.ErrEmptyResult
	}

	mt := mimetype.Detect(data)
	return Image{
		Base64:    encoded,
		Data:      data,
		MIMEType:  mt.String(),
		Extension: mt.Extension(),
	}, nil
}

// RefreshStatus re-reads the version, the connection flag and, for HTTPS
// pages, whether the bridge answers. Failures become unknown values; the
// last action and error are left alone.
func (c *Controller) RefreshStatus(ctx context.Context, s State) State {
	var (
		wg        sync.WaitGroup
		version   = sigweb.Unknown
		connected *bool
		bridge    *bool
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		reader, err := sigweb.As[sigweb.VersionReader](c.device, sigweb.CapVersion)
		if err != nil {
			return
		}
		if v, err := reader.Version(ctx); err == nil {
			version = sigweb.NormalizeText(v)
		} else {
			c.log.Debug("Version unavailable", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		querier, err := sigweb.As[sigweb.ConnectQuerier](c.device, sigweb.CapConnectQuery)
		if err != nil {
			return
		}
		if v, err := querier.TabletConnectQuery(ctx); err == nil {
			connected = boolPtr(sigweb.NormalizeText(v) == "1")
		}
	}()
	go func() {
		defer wg.Done()
		bridge = c.probeBridge(ctx)
	}()
	wg.Wait()

	s.Version = version
	s.TabletConnected = connected
	s.BridgeDetected = bridge
	return s
}

// probeBridge is only meaningful for HTTPS pages; for others the answer
// stays unknown.
func (c *Controller) probeBridge(ctx context.Context) *bool {
	if !sigweb.IsHTTPSPage(c.page) {
		return nil
	}
	return c.probe(ctx)
}

func (c *Controller) probe(ctx context.Context) *bool {
	prober, err := sigweb.As[sigweb.BridgeProber](c.device, "ProbeBridge")
	if err != nil {
		return nil
	}
	err = prober.ProbeBridge(ctx, sigweb.BridgeHealthURL(c.page, c.bridgePort))
	return boolPtr(err == nil)
}

// RecheckAfter refreshes the status once after delay. A cancelled ctx
// returns s untouched.
func (c *Controller) RecheckAfter(ctx context.Context, delay time.Duration, s State) State {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return s
	case <-timer.C:
		return c.RefreshStatus(ctx, s)
	}
}

// DeviceInfo reads model, serial number and firmware revision.
func (c *Controller) DeviceInfo(ctx context.Context, s State) State {
	s = begin(s, "DeviceInfo")
	s.DeviceInfo = &DeviceInfo{
		Model:    readOrUnknown(c, sigweb.CapModelNumber, func(d sigweb.ModelReader) (string, error) { return d.ModelNumber(ctx) }),
		Serial:   readOrUnknown(c, sigweb.CapSerialNumber, func(d sigweb.SerialReader) (string, error) { return d.SerialNumber(ctx) }),
		Firmware: readOrUnknown(c, sigweb.CapFirmware, func(d sigweb.FirmwareReader) (string, error) { return d.FirmwareRevision(ctx) }),
	}
	return c.RefreshStatus(ctx, s)
}

// Stats reads the point and stroke counts of the current signature.
func (c *Controller) Stats(ctx context.Context, s State) State {
	s = begin(s, "Stats")
	s.Stats = &Stats{
		TotalPoints: readOrUnknown(c, sigweb.CapTotalPoints, func(d sigweb.PointCounter) (string, error) { return d.TotalPoints(ctx) }),
		Strokes:     readOrUnknown(c, sigweb.CapNumberOfStrokes, func(d sigweb.StrokeCounter) (string, error) { return d.NumberOfStrokes(ctx) }),
	}
	return c.RefreshStatus(ctx, s)
}

func readOrUnknown[T any](c *Controller, name string, read func(T) (string, error)) string {
	capability, err := sigweb.As[T](c.device, name)
	if err != nil {
		return sigweb.Unknown
	}
	v, err := read(capability)
	if err != nil {
		c.log.Debug("Read failed", zap.String("capability", name), zap.Error(err))
		return sigweb.Unknown
	}
	if v = sigweb.NormalizeText(v); v == "" {
		return sigweb.Unknown
	}
	return v
}

// ExportSigString reads the signature as a SigString.
func (c *Controller) ExportSigString(ctx context.Context, s State) State {
	s = begin(s, "ExportSigString")

	reader, err := sigweb.As[sigweb.SigStringReader](c.device, sigweb.CapSigString)
	var raw string
	if err == nil {
		raw, err = reader.SigString(ctx)
	}
	if err == nil && sigweb.NormalizeText(raw) == "" {
		err = sigweb.ErrEmptyResult
	}
	if err != nil {
		s.LastError = c.fail("read the SigString", err)
		return s
	}

	s.SigString = sigweb.NormalizeText(raw)
	return s
}

// ImportSigString loads value into the tablet. An empty value is rejected
// without contacting the device.
func (c *Controller) ImportSigString(ctx context.Context, s State, value string) State {
	s = begin(s, "ImportSigString")

	value = strings.TrimSpace(value)
	if value == "" {
		s.LastError = EmptySigStringMessage
		return s
	}

	writer, err := sigweb.As[sigweb.SigStringWriter](c.device, sigweb.CapSetSigString)
	if err == nil {
		err = writer.SetSigString(ctx, value)
	}
	if err != nil {
		s.LastError = c.fail("load the SigString", err)
		return s
	}

	s.SigString = value
	return c.RefreshStatus(ctx, s)
}

// BridgeCheck probes the bridge health URL whatever the page scheme.
func (c *Controller) BridgeCheck(ctx context.Context, s State) State {
	s = begin(s, "BridgeCheck")
	s.BridgeDetected = c.probe(ctx)
	if s.BridgeDetected != nil && !*s.BridgeDetected {
		s.LastError = "Bridge not reachable at " + sigweb.BridgeHealthURL(c.page, c.bridgePort) +
			". Start it and approve its certificate once in the browser."
	}
	return s
}

func (c *Controller) open(ctx context.Context) error {
	opener, err := sigweb.As[sigweb.Opener](c.device, sigweb.CapOpenTablet)
	if err != nil {
		return err
	}
	return opener.OpenTablet(ctx)
}

func (c *Controller) setCapture(ctx context.Context, on bool) error {
	toggler, err := sigweb.As[sigweb.CaptureToggler](c.device, sigweb.CapSetCapture)
	if err != nil {
		return err
	}
	return toggler.SetCapture(ctx, on)
}

func (c *Controller) fail(action string, err error) string {
	msg := sigweb.HelpfulMessage(action, err, sigweb.IsHTTPSPage(c.page))
	level := c.log.Warn
	if errors.Is(err, context.Canceled) {
		level = c.log.Debug
	}
	level("Action failed", zap.String("action", action), zap.Error(err))
	return msg
}
