package sigweb

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyResult is returned when SigWeb answers successfully with nothing.
var ErrEmptyResult = errors.New("sigweb returned an empty result")

// TransportError means the request never produced an HTTP response:
// connection refused, TLS failure, timeout, or an open circuit.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is an HTTP error answer from SigWeb.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return strings.TrimSpace(fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode)))
}

// CapabilityError reports that a device lacks an operation.
type CapabilityError struct {
	Name string
}

func (e *CapabilityError) Error() string {
	return e.Name + " is not available"
}

// IsTransport reports whether err is a transport-class failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

const (
	mixedContentHelp = "This page is running over HTTPS. Browsers block calls from an HTTPS page to " +
		"http://localhost (mixed content), so the request may never reach SigWeb.\n\n" +
		"Best options: run this app locally over HTTP, or use a local bridge/proxy on localhost " +
		"that serves HTTPS and forwards to SigWeb.\n\n" +
		"If you tried https://localhost:47289 and the browser shows ERR_SSL_PROTOCOL_ERROR, " +
		"it usually means SigWeb is HTTP-only on that port (no TLS)."
	unreachableHelp = "The request did not reach SigWeb (connection refused, CORS, or SigWeb not running). " +
		"Verify http://localhost:47289/sigweb/version in your browser."
)

// HelpfulMessage turns the failure of action into operator-facing text.
// action reads as the object of "Failed to", e.g. "open the tablet (OpenTablet/0)".
func HelpfulMessage(action string, err error, httpsPage bool) string {
	base := "Failed to " + action + "."
	if err == nil {
		return base
	}

	var (
		transport *TransportError
		status    *StatusError
		capErr    *CapabilityError
	)
	switch {
	case errors.As(err, &transport):
		if httpsPage {
			return base + " " + mixedContentHelp
		}
		return base + " " + unreachableHelp
	case errors.As(err, &status):
		return base + " " + status.Error()
	case errors.As(err, &capErr):
		return base + " " + capErr.Error() + "."
	case errors.Is(err, ErrEmptyResult):
		return base + " SigWeb returned an empty result."
	default:
		return base + " " + err.Error()
	}
}
