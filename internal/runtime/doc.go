// Package runtime launches extension bundles in isolated execution contexts
// and returns a Handle owning the context and its message transport. The
// Dispatch function selects the runtime from the manifest's runtime field:
// "js" bundles run in a goja VM with a Web Worker style API, "go" bundles run
// in a yaegi interpreter restricted to an allowlist of stdlib packages.
package runtime
