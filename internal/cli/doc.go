// Package cli defines the Cobra command tree for the exthost CLI. Each file
// registers a command group (subject, settings, extension, config, version)
// or a set of extension subcommands with the root command. Commands wire the
// internal packages together and only handle flag parsing, output and
// signals; app.go holds the shared wiring.
package cli
