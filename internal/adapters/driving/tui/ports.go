// Package tui provides an interactive terminal browser for industry insights
// and their documents. It is a driving adapter over the core services.
package tui

import (
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Insights answers industry, cluster and summary queries.
	Insights driving.InsightService

	// Ingest lists, inspects and deletes documents.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Insights == nil {
		return ErrMissingInsightService
	}
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	return nil
}
