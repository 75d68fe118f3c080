// Package activation turns a configured extension into a running one. The
// Factory resolves the manifest, fetches the bundle and launches it in an
// isolated runtime; the Host keeps one RPC client per active extension.
package activation
