package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docqa/internal/auth"
)

// Resource URIs.
const (
	SourcesURI = "docqa://sources"
	StatusURI  = "docqa://status"
)

// registerResources exposes the source list and index status as JSON resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "sources",
		URI:         SourcesURI,
		Description: "Documents covered by the most recent rebuild",
		MIMEType:    "application/json",
	}, s.readSources)

	s.mcp.AddResource(&mcp.Resource{
		Name:        "status",
		URI:         StatusURI,
		Description: "Generation and size of the current index snapshot",
		MIMEType:    "application/json",
	}, s.readStatus)
}

func (s *Server) readSources(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(SourcesURI, s.svc.Sources(ctx, auth.Anonymous))
}

func (s *Server) readStatus(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(StatusURI, s.svc.Status())
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
