// Command topaz-bridge runs the local HTTPS bridge in front of SigWeb.
//
// Usage:
//
//	topaz-bridge [--port 9443] [--target http://localhost:47289]
//
// If the port is taken it prints how to pick another one and exits with
// status 1.
package main
