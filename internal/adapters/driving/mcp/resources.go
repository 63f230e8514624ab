package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

const (
	// uriScheme is the custom URI scheme for opptrack resources.
	uriScheme = "opptrack://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "industries",
		Name:        "industries",
		Description: "Industries ordered by document count",
		MIMEType:    "application/json",
	}, s.handleIndustriesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "industries/{industry}",
		Name:        "industry-insight",
		Description: "Aggregated insight for one industry",
		MIMEType:    "application/json",
	}, s.handleInsightResource)

	if s.ports.Ingest != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "industries/{industry}/documents",
			Name:        "industry-documents",
			Description: "Documents ingested for one industry",
			MIMEType:    "application/json",
		}, s.handleDocumentsResource)
	}
}

// handleIndustriesResource returns the default industry listing.
func (s *Server) handleIndustriesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	industries, err := s.ports.Insights.ListIndustries(ctx, driving.DefaultIndustryLimit)
	if err != nil {
		return nil, fmt.Errorf("listing industries: %w", err)
	}

	out := make([]IndustryOutput, len(industries))
	for i := range industries {
		out[i] = industryOutput(industries[i])
	}
	return jsonResource(req.Params.URI, out)
}

// handleInsightResource returns the insight for the industry in the URI.
func (s *Server) handleInsightResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	industry := extractIndustry(req.Params.URI, "")
	if industry == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	insight, err := s.ports.Insights.GetInsight(ctx, industry)
	if err != nil {
		return nil, fmt.Errorf("getting insight: %w", err)
	}
	return jsonResource(req.Params.URI, insight)
}

// handleDocumentsResource returns documents tagged with an industry.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	industry := extractIndustry(req.Params.URI, "/documents")
	if industry == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Ingest.List(ctx, driving.DocumentFilter{Industry: industry})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	type docInfo struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Status  string `json:"status"`
		Outcome string `json:"outcome"`
	}
	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:      docs[i].ID,
			Name:    docs[i].Name,
			Status:  string(docs[i].Status),
			Outcome: string(docs[i].Outcome),
		}
	}
	return jsonResource(req.Params.URI, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractIndustry extracts the decoded industry from a URI like
// opptrack://industries/{industry}{suffix}.
func extractIndustry(uri, suffix string) string {
	const prefix = uriScheme + "industries/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(uri, prefix)
	if suffix != "" {
		if !strings.HasSuffix(rest, suffix) {
			return ""
		}
		rest = strings.TrimSuffix(rest, suffix)
	}
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	industry, err := url.PathUnescape(rest)
	if err != nil {
		return ""
	}
	return industry
}
