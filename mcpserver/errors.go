// Package mcpserver exposes the call copilot to MCP clients. Each strategy is
// registered as a tool; the server runs over stdio or streamable HTTP.
package mcpserver

import "errors"

var (
	// ErrMissingAssistant is returned when no assistant port is provided.
	ErrMissingAssistant = errors.New("mcpserver: assistant is required")

	// ErrEmptyInput is returned when a tool is called without its required text.
	ErrEmptyInput = errors.New("mcpserver: input is empty")
)
