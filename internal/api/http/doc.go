// Package http implements the bridge's routes: the health probe, the status
// page or built app at "/", the single-page-app fallback, and the reverse
// proxy that forwards /sigweb/* to the SigWeb REST host unchanged.
package http
