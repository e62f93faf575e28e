package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docqa/internal/auth"
	"github.com/Aman-CERP/docqa/internal/engine"
	"github.com/Aman-CERP/docqa/internal/retrieve"
	"github.com/Aman-CERP/docqa/internal/scanner"
	"github.com/Aman-CERP/docqa/pkg/version"
)

// serverName is reported in the MCP handshake.
const serverName = "docqa"

// Service is the engine surface the MCP server needs.
type Service interface {
	Rebuild(ctx context.Context, id auth.Identity) (*engine.RebuildResult, error)
	Answer(ctx context.Context, id auth.Identity, query string) (*retrieve.Answer, error)
	Sources(ctx context.Context, id auth.Identity) []scanner.FileRecord
	Status() engine.Status
}

// Server is the MCP server for docqa.
type Server struct {
	mcp    *mcp.Server
	svc    Service
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server over svc.
func NewServer(svc Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{svc: svc, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "rebuild_index", Description: rebuildDescription},
		{Name: "ask", Description: askDescription},
		{Name: "list_sources", Description: listSourcesDescription},
	}
}

// CallTool invokes a tool by name with JSON-decoded arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "rebuild_index":
		return s.rebuild(ctx)
	case "ask":
		query, ok := args["query"].(string)
		if !ok {
			return nil, NewInvalidParamsError("query parameter is required and must be a string")
		}
		return s.ask(ctx, query)
	case "list_sources":
		return s.listSources(ctx), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "rebuild_index", Description: rebuildDescription}, s.mcpRebuildHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "ask", Description: askDescription}, s.mcpAskHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "list_sources", Description: listSourcesDescription}, s.mcpListSourcesHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", 3))
}

func (s *Server) mcpRebuildHandler(ctx context.Context, _ *mcp.CallToolRequest, _ RebuildInput) (
	*mcp.CallToolResult,
	RebuildOutput,
	error,
) {
	out, err := s.rebuild(ctx)
	if err != nil {
		return nil, RebuildOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpAskHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	AskOutput,
	error,
) {
	out, err := s.ask(ctx, input.Query)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpListSourcesHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListSourcesInput) (
	*mcp.CallToolResult,
	ListSourcesOutput,
	error,
) {
	return nil, *s.listSources(ctx), nil
}

func (s *Server) rebuild(ctx context.Context) (*RebuildOutput, error) {
	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("rebuild_index started", slog.String("request_id", requestID))

	res, err := s.svc.Rebuild(ctx, auth.Anonymous)
	if err != nil {
		s.logger.Error("rebuild_index failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	files := res.IndexedFiles
	if files == nil {
		files = []string{}
	}
	s.logger.Info("rebuild_index completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("files", len(files)))
	return &RebuildOutput{IndexedFiles: files}, nil
}

func (s *Server) ask(ctx context.Context, query string) (*AskOutput, error) {
	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("ask started",
		slog.String("request_id", requestID),
		slog.Int("query_len", len(query)))

	ans, err := s.svc.Answer(ctx, auth.Anonymous, query)
	if err != nil {
		s.logger.Error("ask failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	s.logger.Info("ask completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("sources", len(sources)))
	return &AskOutput{Answer: ans.Answer, Sources: sources}, nil
}

func (s *Server) listSources(ctx context.Context) *ListSourcesOutput {
	files := s.svc.Sources(ctx, auth.Anonymous)
	if files == nil {
		files = []scanner.FileRecord{}
	}
	return &ListSourcesOutput{Sources: files}
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch strings.ToLower(transport) {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// newRequestID creates a short request ID for log correlation.
func newRequestID() string {
	return uuid.NewString()[:8]
}
