// Package mcp provides an MCP (Model Context Protocol) server adapter for Scholar.
// It lets AI assistants retrieve passages, ask questions and run similarity checks.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
