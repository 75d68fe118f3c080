// Package scaffold generates a new extension from embedded templates: a
// manifest.yaml and a starter bundle for the js or go runtime.
package scaffold
