package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// ListIndustriesInput is the input schema for the list_industries tool.
type ListIndustriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of industries to return (1-500, default 50)"`
}

// ListIndustriesOutput is the output schema for the list_industries tool.
type ListIndustriesOutput struct {
	Industries []IndustryOutput `json:"industries"`
	Count      int              `json:"count"`
}

// IndustryOutput is one industry row.
type IndustryOutput struct {
	Industry  string  `json:"industry"`
	Documents int64   `json:"documents"`
	Won       int64   `json:"won"`
	Lost      int64   `json:"lost"`
	WinRate   float64 `json:"win_rate"`
	UpdatedAt string  `json:"updated_at"`
}

// IndustryInput names an industry.
type IndustryInput struct {
	Industry string `json:"industry" jsonschema:"the industry label, case-insensitive"`
}

// InsightOutput is the output schema for the get_insight tool.
type InsightOutput struct {
	IndustryOutput

	Pages       int64         `json:"pages"`
	OCRPages    int64         `json:"ocr_pages"`
	EmptyPages  int64         `json:"empty_pages"`
	Chunks      int64         `json:"chunks"`
	TopTerms    []CountOutput `json:"top_terms"`
	TopEntities []CountOutput `json:"top_entities"`
}

// CountOutput is a key with its frequency.
type CountOutput struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ClustersOutput is the output schema for the industry_clusters tool.
type ClustersOutput struct {
	Industry string          `json:"industry"`
	K        int             `json:"k"`
	Clusters []ClusterOutput `json:"clusters"`
}

// ClusterOutput is one group of similar documents.
type ClusterOutput struct {
	ID          int      `json:"id"`
	Size        int      `json:"size"`
	Won         int      `json:"won"`
	Lost        int      `json:"lost"`
	DocumentIDs []string `json:"document_ids"`
	Summary     string   `json:"summary"`
}

// DocumentStatusInput is the input schema for the document_status tool.
type DocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document identifier returned at upload"`
}

// DocumentStatusOutput is the output schema for the document_status tool.
type DocumentStatusOutput struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Industry   string `json:"industry"`
	Status     string `json:"status"`
	Running    bool   `json:"running"`
	Stage      string `json:"stage,omitempty"`
	Pages      int    `json:"pages"`
	OCRPages   int    `json:"ocr_pages"`
	Chunks     int    `json:"chunks"`
	LastError  string `json:"last_error,omitempty"`
	Transient  bool   `json:"transient,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_industries",
		Description: "List industries by number of ingested opportunity documents, with win rates",
	}, s.handleListIndustries)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_insight",
		Description: "Get aggregated insight for one industry: outcomes, page statistics, top terms and entities",
	}, s.handleGetInsight)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "industry_clusters",
		Description: "Group an industry's documents by content similarity",
	}, s.handleClusters)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "document_status",
			Description: "Get the ingestion state and last error of a document",
		}, s.handleDocumentStatus)
	}
}

func (s *Server) handleListIndustries(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListIndustriesInput,
) (*mcp.CallToolResult, ListIndustriesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = driving.DefaultIndustryLimit
	}

	industries, err := s.ports.Insights.ListIndustries(ctx, limit)
	if err != nil {
		return nil, ListIndustriesOutput{}, err
	}

	output := ListIndustriesOutput{
		Industries: make([]IndustryOutput, len(industries)),
		Count:      len(industries),
	}
	for i := range industries {
		output.Industries[i] = industryOutput(industries[i])
	}
	return nil, output, nil
}

func (s *Server) handleGetInsight(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndustryInput,
) (*mcp.CallToolResult, InsightOutput, error) {
	insight, err := s.ports.Insights.GetInsight(ctx, input.Industry)
	if err != nil {
		return nil, InsightOutput{}, toolError("industry", input.Industry, err)
	}

	return nil, InsightOutput{
		IndustryOutput: industryOutput(insight.IndustrySummary),
		Pages:          insight.Pages,
		OCRPages:       insight.OCRPages,
		EmptyPages:     insight.EmptyPages,
		Chunks:         insight.Chunks,
		TopTerms:       countOutputs(insight.TopTerms),
		TopEntities:    countOutputs(insight.TopEntities),
	}, nil
}

func (s *Server) handleClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndustryInput,
) (*mcp.CallToolResult, ClustersOutput, error) {
	report, err := s.ports.Insights.Clusters(ctx, input.Industry)
	if err != nil {
		return nil, ClustersOutput{}, toolError("industry", input.Industry, err)
	}

	output := ClustersOutput{
		Industry: report.Industry,
		K:        report.K,
		Clusters: make([]ClusterOutput, len(report.Clusters)),
	}
	for i, c := range report.Clusters {
		output.Clusters[i] = ClusterOutput{
			ID:          c.ID,
			Size:        c.Size,
			Won:         c.Won,
			Lost:        c.Lost,
			DocumentIDs: c.DocumentIDs,
			Summary:     c.Summary,
		}
	}
	return nil, output, nil
}

func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	st, err := s.ports.Ingest.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentStatusOutput{}, toolError("document", input.DocumentID, err)
	}

	doc := st.Document
	output := DocumentStatusOutput{
		DocumentID: doc.ID,
		Name:       doc.Name,
		Industry:   doc.Industry,
		Status:     string(doc.Status),
		Running:    st.Running,
		Stage:      string(st.Stage),
		Pages:      st.Pages,
		OCRPages:   st.OCRPages,
		Chunks:     st.Chunks,
	}
	if doc.Failure != nil {
		output.LastError = doc.Failure.Message
		output.Transient = doc.Failure.Transient
	}
	return nil, output, nil
}

// toolError gives not-found errors a message an assistant can act on.
func toolError(kind, name string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no %s %q has been ingested", kind, name)
	}
	return err
}

func industryOutput(s driving.IndustrySummary) IndustryOutput {
	out := IndustryOutput{
		Industry:  s.Industry,
		Documents: s.Documents,
		Won:       s.Won,
		Lost:      s.Lost,
		WinRate:   s.WinRate,
	}
	if !s.UpdatedAt.IsZero() {
		out.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func countOutputs(counts []domain.Count) []CountOutput {
	out := make([]CountOutput, len(counts))
	for i, c := range counts {
		out[i] = CountOutput{Key: c.Key, Count: c.Count}
	}
	return out
}
