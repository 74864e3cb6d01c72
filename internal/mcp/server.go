package mcp

import (
	"context"

	"pipeline-oracle/internal/cache"
	"pipeline-oracle/internal/config"
	"pipeline-oracle/internal/oracle"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "pipeline-oracle"

// Server exposes the oracle as MCP tools.
type Server struct {
	cfg    *config.AppConfig
	oracle *oracle.Oracle
	memo   *cache.Memo
	mcp    *mcp.Server
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(cfg *config.AppConfig, o *oracle.Oracle, memo *cache.Memo, version string) *Server {
	if memo == nil {
		memo = cache.NewMemo(cache.NoopProvider{}, 0, 0)
	}
	s := &Server{
		cfg:    cfg,
		oracle: o,
		memo:   memo,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Info().Msg("MCP Server starting Stdio loop")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport, used by tests and embedders.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
