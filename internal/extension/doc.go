// Package extension models an extension as the host sees it: its id, its
// (possibly missing or invalid) manifest and registry metadata. ResolveManifest
// reduces a ConfiguredExtension to one of three activation outcomes.
package extension
