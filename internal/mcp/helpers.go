package mcp

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// WrapResponse places a tool result in the standard envelope: the payload, the
// requisition it belongs to, data-quality warnings and guidance for the assistant.
func WrapResponse(data any, reqID string, warnings, guidance []string) map[string]any {
	res := map[string]any{"data": data}
	if reqID != "" {
		res["context"] = map[string]any{"req_id": reqID}
	}
	if len(warnings) > 0 {
		res["warnings"] = warnings
	}
	if len(guidance) > 0 {
		res["guidance"] = guidance
	}
	return res
}

func textResult(data any) (*mcp.CallToolResult, any, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
	}, nil, nil
}
