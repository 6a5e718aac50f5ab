// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes wikimapper lookups for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wikimapper/internal/lookup"
)

const mappingFormatURI = "wikimapper://mapping-format"

// Server wraps the MCP server with wikimapper tools.
type Server struct {
	mcp *server.MCPServer
	svc *lookup.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *lookup.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"wikimapper",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("resolve_uri",
		mcp.WithDescription("Resolve a candidate URI to its equivalent in the reference knowledge base. "+
			"Returns <null> when nothing matches."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Candidate category: resource, property or class")),
		mcp.WithString("uri", mcp.Required(), mcp.Description("Candidate URI, with or without angle brackets")),
	), s.resolveURI)

	s.mcp.AddTool(mcp.NewTool("classify_uri",
		mcp.WithDescription("Report which candidate category the dump scanner assigns to a URI."),
		mcp.WithString("uri", mcp.Required(), mcp.Description("URI to classify")),
	), s.classifyURI)

	s.mcp.AddTool(mcp.NewTool("check_exists",
		mcp.WithDescription("Check whether a URI exists in the reference knowledge base. Lookups are case-sensitive."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Entity kind: ontology, property or resource")),
		mcp.WithString("uri", mcp.Required(), mcp.Description("URI to look up")),
	), s.checkExists)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Reference entity counts and the totals of the latest mapping run."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("get_mapping_contract",
		mcp.WithDescription("Returns the mapping file format and the resolution rules."),
	), s.getMappingContract)

	s.mcp.AddResource(
		mcp.NewResource(mappingFormatURI, "Mapping File Format",
			mcp.WithResourceDescription("Format of the per-Source mapping files and the resolution order."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMappingFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveURI(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Resolve(ctx, category, uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) classifyURI(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Classify(uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) checkExists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uri, err := req.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Exists(ctx, kind, uri)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) getMappingContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MappingFormatContract), nil
}

func (s *Server) readMappingFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      mappingFormatURI,
			MIMEType: "text/markdown",
			Text:     MappingFormatContract,
		},
	}, nil
}
