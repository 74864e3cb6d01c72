package mcp

import (
	"context"

	"pipeline-oracle/internal/knobs"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListPresets(context.Context, *mcp.CallToolRequest, PresetsArgs) (*mcp.CallToolResult, any, error) {
	res := map[string]any{
		"presets":  knobs.Presets(),
		"defaults": knobs.Defaults(),
		"iterations": map[string]int{
			"min":     knobs.MinIterations,
			"max":     knobs.MaxIterations,
			"warn_at": knobs.WarnIterations,
		},
	}
	return textResult(WrapResponse(res, "", nil, nil))
}

func (s *Server) handleStageCatalog(context.Context, *mcp.CallToolRequest, CatalogArgs) (*mcp.CallToolResult, any, error) {
	c := s.oracle.Catalog()
	res := map[string]any{
		"horizon_weeks": c.HorizonWeeks,
		"stages":        c.Stages,
		"controllable":  c.Controllable(),
	}
	return textResult(WrapResponse(res, "", nil, nil))
}
