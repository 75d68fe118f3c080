// Package bundle retrieves an extension's executable bundle over HTTP. A
// fetch is a single attempt; retry policy belongs to the caller. Responses
// are capped by a configurable byte ceiling and timeout.
package bundle
