// Package certs resolves the bridge's TLS key pair.
//
// The pair is chosen once at startup: files at the configured paths are used
// as-is when both exist, otherwise a self-signed localhost certificate is
// generated in memory. The selected pair never changes for the lifetime of
// the listener.
package certs
