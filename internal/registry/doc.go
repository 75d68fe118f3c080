// Package registry reads the extension index: a YAML file listing every
// known extension, its details page and its released manifests. Lookups pick
// the newest release by semantic version.
package registry
