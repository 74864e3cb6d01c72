package api

import (
	"math"

	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/funnel"
	"pipeline-oracle/internal/oracle"
	"pipeline-oracle/internal/recommend"
	"pipeline-oracle/internal/simulation"
	"pipeline-oracle/internal/stats"
)

// DefaultTopRecommendations is how many actions a view surfaces.
const DefaultTopRecommendations = 3

// PercentilesView is a simulation result without its raw samples.
type PercentilesView struct {
	P10Date             string  `json:"p10_date"`
	P50Date             string  `json:"p50_date"`
	P90Date             string  `json:"p90_date"`
	P10Days             float64 `json:"p10_days"`
	P50Days             float64 `json:"p50_days"`
	P90Days             float64 `json:"p90_days"`
	FillProbability     float64 `json:"fill_probability"`
	ConvergedIterations int     `json:"converged_iterations"`
	SeedHash            uint32  `json:"seed_hash"`
}

// ForecastView is the compact answer returned to dashboards and tool callers.
type ForecastView struct {
	ReqID               string                     `json:"req_id"`
	CacheKey            string                     `json:"cache_key"`
	Available           bool                       `json:"available"`
	UnavailableReason   string                     `json:"unavailable_reason,omitempty"`
	PipelineOnly        *PercentilesView           `json:"pipeline_only,omitempty"`
	CapacityAware       *PercentilesView           `json:"capacity_aware,omitempty"`
	CapacityConstrained bool                       `json:"capacity_constrained"`
	P50DeltaDays        float64                    `json:"p50_delta_days"`
	CapacityNote        string                     `json:"capacity_note,omitempty"`
	Confidence          funnel.Confidence          `json:"confidence"`
	ConfidenceReasons   []string                   `json:"confidence_reasons,omitempty"`
	DemandScope         demand.Scope               `json:"demand_scope,omitempty"`
	TopBottlenecks      []capacity.StageDiagnostic `json:"top_bottlenecks"`
	TotalQueueDelayDays float64                    `json:"total_queue_delay_days"`
	Recommendations     []capacity.Recommendation  `json:"recommendations"`
	IterationWarning    string                     `json:"iteration_warning,omitempty"`
	Stale               bool                       `json:"stale,omitempty"`
}

// PercentilesOf strips a simulation result down to its percentiles.
func PercentilesOf(r simulation.Result) *PercentilesView {
	return &PercentilesView{
		P10Date:             r.P10.Format(DateLayout),
		P50Date:             r.P50.Format(DateLayout),
		P90Date:             r.P90.Format(DateLayout),
		P10Days:             stats.Round1(r.P10Days),
		P50Days:             stats.Round1(r.P50Days),
		P90Days:             stats.Round1(r.P90Days),
		FillProbability:     math.Round(r.FillProbability*1000) / 1000,
		ConvergedIterations: r.ConvergedIterations,
		SeedHash:            r.Debug.SeedHash,
	}
}

// ViewOf summarises a forecast, keeping at most topN recommendations.
func ViewOf(f *oracle.Forecast, topN int) ForecastView {
	v := ForecastView{
		ReqID:               f.ReqID,
		CacheKey:            f.CacheKey,
		Available:           f.Available,
		UnavailableReason:   f.UnavailableReason,
		Confidence:          f.Confidence,
		ConfidenceReasons:   f.ConfidenceReasons,
		TopBottlenecks:      f.Penalty.TopBottlenecks,
		TotalQueueDelayDays: stats.Round1(f.Penalty.TotalQueueDelayDays),
		Recommendations:     recommend.Top(f.Recommendations, topN),
		IterationWarning:    f.Explain.IterationWarning,
	}
	if f.Penalty.Portfolio != nil {
		v.DemandScope = f.Penalty.Portfolio.DemandScope
	}
	if f.Result != nil {
		v.PipelineOnly = PercentilesOf(f.Result.PipelineOnly)
		if f.Result.CapacityAware != nil {
			v.CapacityAware = PercentilesOf(*f.Result.CapacityAware)
		}
		v.CapacityConstrained = f.Result.CapacityConstrained
		v.P50DeltaDays = stats.Round1(f.Result.P50DeltaDays)
		v.CapacityNote = f.Result.CapacityNote
	}
	return v
}
