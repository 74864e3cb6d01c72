package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/oracle"
	"pipeline-oracle/internal/visuals"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// cachedForecast is what the memo stores per cache key.
type cachedForecast struct {
	View    api.ForecastView  `json:"view"`
	Explain oracle.Explain    `json:"explain"`
	Charts  map[string]string `json:"charts,omitempty"`
}

func (s *Server) handleForecast(ctx context.Context, _ *mcp.CallToolRequest, args ForecastArgs) (*mcp.CallToolResult, any, error) {
	req, err := args.Request.ToOracle()
	if err != nil {
		return nil, nil, err
	}

	key := oracle.CacheKey(req.ReqID, req.Pipeline, req.Seed, req.Knobs)
	entry, err := s.memo.Do(ctx, req.ReqID, key, func(context.Context) ([]byte, error) {
		f, err := s.oracle.Forecast(req)
		if err != nil {
			return nil, err
		}
		cf := cachedForecast{
			View:    api.ViewOf(f, api.DefaultTopRecommendations),
			Explain: f.Explain,
		}
		if s.cfg == nil || s.cfg.EnableMermaidCharts {
			cf.Charts = visuals.NewReport(f, s.oracle.Catalog().Order()).Markdown()
		}
		return json.Marshal(cf)
	})
	if err != nil {
		return nil, nil, err
	}

	var cf cachedForecast
	if err := json.Unmarshal(entry.Value, &cf); err != nil {
		return nil, nil, fmt.Errorf("decode cached forecast: %w", err)
	}
	cf.View.Stale = entry.Stale
	log.Debug().Str("key", key).Bool("hit", entry.Hit).Bool("stale", entry.Stale).Msg("Forecast served")

	res := map[string]any{"forecast": cf.View}
	if args.IncludeExplain {
		res["explain"] = cf.Explain
	}
	for k, v := range cf.Charts {
		res[k] = v
	}

	return textResult(WrapResponse(res, req.ReqID, forecastWarnings(cf.View), forecastGuidance(cf.View)))
}

func (s *Server) handlePenalty(_ context.Context, _ *mcp.CallToolRequest, args PenaltyArgs) (*mcp.CallToolResult, any, error) {
	req, err := args.Request.ToOracle()
	if err != nil {
		return nil, nil, err
	}

	var res capacity.PenaltyResult
	if args.LegacyV1 {
		res, err = s.oracle.PenaltyV1(req)
	} else {
		res, err = s.oracle.Penalty(req)
	}
	if err != nil {
		return nil, nil, err
	}

	out := map[string]any{
		"penalty": res,
		"summary": res.Summary(),
	}
	if s.cfg == nil || s.cfg.EnableMermaidCharts {
		if chart := visuals.GenerateQueueDelayChart(res.Stages); chart != "" {
			out["visual_queue_delay"] = chart
		}
	}

	var warnings []string
	if !res.IsAvailable {
		warnings = append(warnings, res.UnavailableReason)
	}
	if res.UsedCohortFallback {
		warnings = append(warnings, "Some stages use cohort-default throughput; owner-specific capacity may differ.")
	}
	return textResult(WrapResponse(out, req.ReqID, warnings, nil))
}

func forecastWarnings(v api.ForecastView) []string {
	var w []string
	if v.Stale {
		w = append(w, "Fresh computation failed; serving the most recent forecast for this requisition.")
	}
	if v.IterationWarning != "" {
		w = append(w, v.IterationWarning)
	}
	if !v.Available {
		w = append(w, v.UnavailableReason)
	}
	return w
}

func forecastGuidance(v api.ForecastView) []string {
	var g []string
	if !v.Available {
		g = append(g, "Do NOT provide a fill date. Explain that no simulated candidate path reached HIRED with the given rates.")
		return g
	}
	if v.Confidence == funnel.ConfidenceLow {
		g = append(g, "Confidence is LOW: quote the P50-P90 range, not a single date, and list the confidence reasons.")
	}
	if v.CapacityConstrained {
		g = append(g, fmt.Sprintf("Capacity adds %.1f days at P50. Lead with the top recommendation before discussing dates.", v.P50DeltaDays))
	}
	return g
}
