// Package stdio exposes the task operation catalogue over the MCP stdio
// transport.
//
// An agent launches `orctasks stdio` from inside its worktree. The process
// working directory identifies the agent, and every tool call is resolved
// against it before dispatch.
//
// Architecture:
//
//	agent → stdio (this server) → tools.Catalogue → ledger
package stdio

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Implementation identity reported to clients.
const (
	ServerName    = "orc-tasks"
	ServerVersion = "1.0.0"
)

// Resolver places a working directory in an agent identity.
type Resolver interface {
	Resolve(ctx context.Context, workdir string) (identity.Context, error)
}

// Server serves the catalogue over stdio.
type Server struct {
	mcpServer *mcpsdk.Server
	catalogue *tools.Catalogue
	resolver  Resolver
	workdir   string
	logger    *zap.Logger
}

// NewServer creates a stdio server for catalogue. workdir is the
// directory every call is attributed to.
func NewServer(catalogue *tools.Catalogue, resolver Resolver, workdir string, logger *zap.Logger) (*Server, error) {
	if catalogue == nil {
		return nil, errors.New("catalogue cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcpServer: mcpsdk.NewServer(&mcpsdk.Implementation{Name: ServerName, Version: ServerVersion}, nil),
		catalogue: catalogue,
		resolver:  resolver,
		workdir:   workdir,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.mcpServer
}

// Run serves on stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	for _, op := range s.catalogue.List() {
		name := op.Name
		s.mcpServer.AddTool(&mcpsdk.Tool{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.Schema.JSONSchema(),
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return s.call(ctx, name, req)
		})
		s.logger.Debug("mcp tool registered", zap.String("tool", name))
	}
}

func (s *Server) call(ctx context.Context, name string, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	caller, err := s.resolver.Resolve(ctx, s.workdir)
	if err != nil {
		s.logger.Warn("identity resolution failed, continuing as maintenance", zap.Error(err))
	}

	res, err := s.catalogue.Dispatch(ctx, name, req.Params.Arguments, caller)
	if err != nil {
		// Schema mismatches are reported as tool errors so the agent can retry.
		return &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		}, nil
	}

	out := &mcpsdk.CallToolResult{
		IsError: res.IsError,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.String()}},
	}
	if res.Data != nil {
		out.StructuredContent = res.Data
	}
	return out, nil
}
