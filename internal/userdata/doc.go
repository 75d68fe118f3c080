// Package userdata resolves the ~/.exthost/ directory layout: the config file,
// the extension registry index, the settings database and the scaffold output
// directory. Every location can be overridden with an EXTHOST_* variable so
// tests and CI can sandbox a run.
package userdata
