// Command sigwebctl drives a Topaz signature pad through SigWeb, directly or
// through the local HTTPS bridge, and prints the resulting state.
//
// Usage:
//
//	sigwebctl status
//	sigwebctl --page-origin https://demo.example start
//	sigwebctl save --out signature.png
//	sigwebctl sigstring import 04001C00...
package main
