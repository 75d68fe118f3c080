// Package manifest parses and validates extension manifests. A manifest is
// either *Valid (title, description, bundle url, runtime) or *Invalid carrying
// the reason it could not be used; parsing never returns a bare error for bad
// manifest content, so callers can render or reject it deterministically.
package manifest
