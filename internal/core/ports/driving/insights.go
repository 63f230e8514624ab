package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Industry listing limits.
const (
	DefaultIndustryLimit = 50
	MaxIndustryLimit     = 500
)

// InsightService is the read-only query surface over industry insights.
type InsightService interface {
	// ListIndustries returns industries ordered by document count,
	// descending. limit must be within [1, MaxIndustryLimit]; zero means
	// DefaultIndustryLimit.
	ListIndustries(ctx context.Context, limit int) ([]IndustrySummary, error)

	// GetInsight returns the summary for one industry.
	GetInsight(ctx context.Context, industry string) (*InsightSummary, error)

	// Clusters groups an industry's documents by embedding similarity.
	Clusters(ctx context.Context, industry string) (*ClusterReport, error)

	// Summarise asks the LLM for structured insights over the clusters.
	// Returns domain.ErrLLMUnavailable if no LLM is configured.
	Summarise(ctx context.Context, industry string) (*ClusterInsights, error)

	// Rebuild recomputes an industry insight from its contributions.
	Rebuild(ctx context.Context, industry string) (*InsightSummary, error)
}

// IndustrySummary is one row of the industry listing.
type IndustrySummary struct {
	Industry  string    `json:"industry"`
	Documents int64     `json:"documents"`
	Won       int64     `json:"won"`
	Lost      int64     `json:"lost"`
	WinRate   float64   `json:"win_rate"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InsightSummary is the detailed view of one industry.
type InsightSummary struct {
	IndustrySummary

	Pages       int64          `json:"pages"`
	OCRPages    int64          `json:"ocr_pages"`
	EmptyPages  int64          `json:"empty_pages"`
	Chunks      int64          `json:"chunks"`
	Chars       int64          `json:"chars"`
	Dimensions  int            `json:"dimensions"`
	TopTerms    []domain.Count `json:"top_terms"`
	TopEntities []domain.Count `json:"top_entities"`
}

// ClusterReport is the k-means grouping of an industry's documents.
type ClusterReport struct {
	Industry string    `json:"industry"`
	K        int       `json:"k"`
	Clusters []Cluster `json:"clusters"`
}

// Cluster is one group of similar documents.
type Cluster struct {
	ID          int      `json:"id"`
	Size        int      `json:"size"`
	Won         int      `json:"won"`
	Lost        int      `json:"lost"`
	DocumentIDs []string `json:"document_ids"`
	Summary     string   `json:"summary"`
}

// ClusterInsights is the validated LLM analysis of a cluster report.
type ClusterInsights struct {
	Industry string           `json:"industry"`
	Clusters []ClusterInsight `json:"clusters"`
	Overall  OverallInsight   `json:"overall"`
}

// ClusterInsight is the LLM analysis of one cluster.
type ClusterInsight struct {
	ID          int      `json:"id"`
	Size        int      `json:"size"`
	Won         int      `json:"won"`
	Lost        int      `json:"lost"`
	Themes      []string `json:"themes"`
	ActionItems []string `json:"action_items"`
	Competitors []string `json:"competitors"`
	WinReasons  []string `json:"win_reasons"`
	LossReasons []string `json:"loss_reasons"`
}

// OverallInsight is the LLM analysis across clusters.
type OverallInsight struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}
