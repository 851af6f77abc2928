package sigweb

import (
	"net/url"
	"strconv"
)

const (
	// DefaultHostURL is where SigWeb listens on the workstation.
	DefaultHostURL = "http://localhost:47289"
	// DefaultBridgePort is the local HTTPS bridge's default port.
	DefaultBridgePort = 9443
	// Prefix is the SigWeb REST path prefix, kept as-is by the bridge.
	Prefix = "/sigweb"
)

// SelectBaseURL returns the SigWeb base URL for a client on page. A nil page
// means no browser context.
//
//   - https on localhost: same origin, the page is served by the bridge
//   - https elsewhere: the local bridge on bridgePort
//   - anything else: SigWeb directly over http
func SelectBaseURL(page *url.URL, bridgePort int) string {
	if page == nil {
		return DefaultHostURL + Prefix
	}
	if IsHTTPSPage(page) {
		return BridgeOrigin(page, bridgePort) + Prefix
	}
	return DefaultHostURL + Prefix
}

// IsHTTPSPage reports whether page was served over https.
func IsHTTPSPage(page *url.URL) bool {
	return page != nil && page.Scheme == "https"
}

// BridgeOrigin is the bridge origin a page should talk to: the page's own
// origin when it is https on localhost, otherwise https://localhost:<port>.
func BridgeOrigin(page *url.URL, bridgePort int) string {
	if IsHTTPSPage(page) && page.Hostname() == "localhost" {
		return page.Scheme + "://" + page.Host
	}
	if bridgePort <= 0 {
		bridgePort = DefaultBridgePort
	}
	return "https://localhost:" + strconv.Itoa(bridgePort)
}

// BridgeHealthURL is the bridge liveness endpoint for page.
func BridgeHealthURL(page *url.URL, bridgePort int) string {
	return BridgeOrigin(page, bridgePort) + "/health"
}
