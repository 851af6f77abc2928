// Package server assembles the bridge: certificate selection, the gin
// router with its middleware, and the TLS listener with graceful shutdown.
package server
