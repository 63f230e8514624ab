package mcp

import (
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// Ports are the services the MCP server queries.
type Ports struct {
	Insights driving.InsightService

	// Ingest is optional. Without it the document_status tool and the
	// document resources are not registered.
	Ingest driving.IngestService
}

// Validate reports a missing insight service. A nil *Ports is invalid.
func (p *Ports) Validate() error {
	if p == nil || p.Insights == nil {
		return ErrMissingInsightService
	}
	return nil
}
