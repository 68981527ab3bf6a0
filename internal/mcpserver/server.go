// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes read-only dayroll tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/workflow"
)

// Service is the read-only surface the tools use.
// *workflow.Inspector implements it.
type Service interface {
	Runs(limit int) ([]ledger.Run, error)
	CheckNow(ctx context.Context) *check.Report
	Schema(ctx context.Context) (*workflow.SchemaReport, error)
}

// Server wraps the MCP server with dayroll tools.
type Server struct {
	mcp *server.MCPServer
	svc Service
}

// New creates a new MCP server with all tools registered.
func New(svc Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"dayroll",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("check_consistency",
		mcp.WithDescription("Check today's state: unfinished tasks from yesterday that were not rolled over, "+
			"and missing daily, weekly or monthly review records. Read-only."),
	), s.checkConsistency)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the most recent rollover and review runs with their outcome."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("resolve_schema",
		mcp.WithDescription("Show the task database columns and which of them carry the title, date, "+
			"status, resource, duration and hint roles."),
	), s.resolveSchema)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) checkConsistency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep := s.svc.CheckNow(ctx)
	if rep.OK() {
		return mcp.NewToolResultText(fmt.Sprintf("%s: all checks passed", rep.Day)), nil
	}
	return jsonResult(rep)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}
	runs, err := s.svc.Runs(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	return jsonResult(runs)
}

func (s *Server) resolveSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Schema(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}
