// Package mcp provides an MCP (Model Context Protocol) server adapter for opptrack.
// It lets AI assistants query industry insights and document ingestion state.
package mcp

import "errors"

// ErrMissingInsightService is returned when the insight service is not provided.
var ErrMissingInsightService = errors.New("mcp: insight service is required")
