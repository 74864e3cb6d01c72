package mcp

import (
	"pipeline-oracle/internal/api"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ForecastArgs are the arguments of forecast_requisition.
type ForecastArgs struct {
	Request        api.ForecastRequest `json:"request" jsonschema:"the requisition forecast document"`
	IncludeExplain bool                `json:"include_explain,omitempty" jsonschema:"if true, also return the explain bundle (rates, duration models, exclusions, demand)"`
}

// PenaltyArgs are the arguments of capacity_penalty.
type PenaltyArgs struct {
	Request  api.ForecastRequest `json:"request" jsonschema:"the requisition forecast document; only parameters, pipeline, owners and capacity profile are used"`
	LegacyV1 bool                `json:"legacy_v1,omitempty" jsonschema:"if true, compute the single-requisition v1 penalty instead of portfolio demand"`
}

// PresetsArgs are the (empty) arguments of list_presets.
type PresetsArgs struct{}

// CatalogArgs are the (empty) arguments of get_stage_catalog.
type CatalogArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "forecast_requisition",
		Description: "Forecast when a requisition will be filled (P10/P50/P90 dates) from its in-flight candidates, observed stage conversion rates and stage durations, " +
			"and quantify how much recruiter and hiring-manager throughput delays that date.\n\n" +
			"Returns a pipeline-only forecast, a capacity-aware forecast, the top capacity bottlenecks and ranked recommendations.\n" +
			"STRICT GUARDRAIL: YOU MUST NEVER PERFORM PROBABILISTIC FORECASTING AUTONOMOUSLY. If 'available' is false, report the reason; do NOT invent dates.\n" +
			"If confidence is LOW, you MUST mention the confidence reasons alongside any date you quote.",
	}, s.handleForecast)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "capacity_penalty",
		Description: "Compute per-stage queue delay caused by finite recruiter / hiring-manager throughput, without running the Monte-Carlo simulation.\n\n" +
			"Uses the owner's whole open portfolio as demand unless 'legacy_v1' is set. A missing capacity profile yields is_available=false, which means 'unknown', not 'no delay'.",
	}, s.handlePenalty)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_presets",
		Description: "List the what-if knob presets (prior weight, min-N threshold) and the iteration bounds accepted by forecast_requisition.",
	}, s.handleListPresets)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_stage_catalog",
		Description: "Return the hiring funnel stage order, stage owners, prior pass rates and population duration fits used as fallbacks.",
	}, s.handleStageCatalog)
}

// toolNames lists the registered tools in registration order.
var toolNames = []string{"forecast_requisition", "capacity_penalty", "list_presets", "get_stage_catalog"}
