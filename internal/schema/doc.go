// Package schema compiles embedded JSON Schema documents and flattens
// validation failures into path-addressed issues. The manifest and settings
// packages both validate through it.
package schema
