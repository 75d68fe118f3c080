// Package rpc implements a JSON-RPC 2.0 client over an extension's message
// transport. Inbound window/log notifications are forwarded to the logger;
// inbound requests are answered with "method not found".
package rpc
