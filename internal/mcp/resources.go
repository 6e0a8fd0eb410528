package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// RubricURIPrefix addresses rubric definitions, e.g. rubric://quality.
	RubricURIPrefix = "rubric://"

	// QueryLogURI addresses the query log aggregates.
	QueryLogURI = "rubricrank://query_log"
)

// registerResources registers the rubric template and, when a query log is
// configured, the query_log resource.
func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "rubric",
		URITemplate: RubricURIPrefix + "{id}",
		Description: "Rubric definition with its criteria",
		MIMEType:    "application/json",
	}, s.readRubric)

	if s.queries != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "query_log",
			URI:         QueryLogURI,
			Description: "Search telemetry: mode counts, top terms, zero-result queries, latency buckets",
			MIMEType:    "application/json",
		}, s.readQueryLog)
	}
}

func (s *Server) readRubric(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	id := strings.TrimPrefix(uri, RubricURIPrefix)
	if id == uri || id == "" {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	r, err := s.manager.Store().Rubric(id)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return jsonResource(uri, r)
}

func (s *Server) readQueryLog(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(QueryLogURI, s.queries.Snapshot())
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}
