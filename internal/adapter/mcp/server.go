// Package mcp exposes the claim specialists as Model Context Protocol
// tools over streamable HTTP.
package mcp

import (
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ClaimDesk/internal/config"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// Path is where the streamable HTTP endpoint is mounted.
const Path = "/mcp"

// Server wraps the MCP server and its specialist tools.
type Server struct {
	cfg         *config.MCP
	registry    *schema.Registry
	specialists *service.SpecialistService
	mcpServer   *mcpserver.MCPServer
}

// NewServer creates an MCP server with one tool per specialist.
func NewServer(cfg *config.MCP, registry *schema.Registry, specialists *service.SpecialistService) (*Server, error) {
	s := &Server{
		cfg:         cfg,
		registry:    registry,
		specialists: specialists,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// MCPServer returns the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP handler, behind AuthMiddleware when
// an API key is configured.
func (s *Server) Handler() http.Handler {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(Path),
	)
	return AuthMiddleware(s.cfg.APIKey, streamable)
}
