// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewIndustries lists industries by document count.
	ViewIndustries ViewType = iota
	// ViewInsight shows one industry's insight and clusters.
	ViewInsight
	// ViewDocuments lists the documents of an industry.
	ViewDocuments
	// ViewDocStatus shows the ingestion state of one document.
	ViewDocStatus
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewIndustries:
		return "industries"
	case ViewInsight:
		return "insight"
	case ViewDocuments:
		return "documents"
	case ViewDocStatus:
		return "doc_status"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// IndustriesLoaded carries the industry listing.
type IndustriesLoaded struct {
	Industries []driving.IndustrySummary
	Err        error
}

// IndustrySelected is sent when an industry is opened.
type IndustrySelected struct {
	Industry string
}

// InsightLoaded carries an industry insight and its clusters.
// ClustersErr is set when the insight loaded but clustering failed.
type InsightLoaded struct {
	Industry    string
	Insight     *driving.InsightSummary
	Clusters    *driving.ClusterReport
	Err         error
	ClustersErr error
}

// SummaryLoaded carries the LLM analysis of an industry's clusters.
type SummaryLoaded struct {
	Industry string
	Summary  *driving.ClusterInsights
	Err      error
}

// InsightRebuilt is sent after an industry insight is recomputed.
type InsightRebuilt struct {
	Industry string
	Insight  *driving.InsightSummary
	Err      error
}

// DocumentsRequested is sent to open the document list of an industry.
type DocumentsRequested struct {
	Industry string
}

// DocumentsLoaded carries the documents of an industry.
type DocumentsLoaded struct {
	Industry  string
	Documents []domain.Document
	Err       error
}

// DocumentSelected is sent when a document is opened.
type DocumentSelected struct {
	DocumentID string
}

// DocumentStatusLoaded carries the ingestion state of a document.
type DocumentStatusLoaded struct {
	DocumentID string
	Status     *driving.IngestStatus
	Err        error
}

// DocumentDeleted is sent after a document is removed.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// ErrorOccurred signals an error that should be displayed.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
