package capacity

import (
	"fmt"
	"sort"

	"pipeline-oracle/internal/catalog"
	"pipeline-oracle/internal/demand"
	"pipeline-oracle/internal/durations"
	"pipeline-oracle/internal/funnel"

	"github.com/rs/zerolog/log"
)

// Version tags the shape of a penalty result.
type Version string

const (
	VersionV1  Version = "v1"
	VersionV11 Version = "v1.1"
)

const (
	DefaultTopN         = 4
	DefaultMaxDelayDays = 180.0
)

// Config tunes the penalty engine.
type Config struct {
	HorizonWeeks float64
	MaxDelayDays float64
	TopN         int
}

// StageDiagnostic is the capacity picture for one owned stage.
type StageDiagnostic struct {
	Stage               funnel.Stage      `json:"stage"`
	Owner               funnel.OwnerType  `json:"owner"`
	Demand              int               `json:"demand"`
	ServiceRate         float64           `json:"service_rate_per_week"`
	Capacity            float64           `json:"capacity"`
	CohortRate          float64           `json:"cohort_rate_per_week,omitempty"`
	BaseMedianDays      float64           `json:"base_median_days"`
	QueueDelayDays      float64           `json:"queue_delay_days"`
	IsBottleneck        bool              `json:"is_bottleneck"`
	BottleneckOwnerType funnel.OwnerType  `json:"bottleneck_owner_type,omitempty"`
	UsedCohortFallback  bool              `json:"used_cohort_fallback"`
	Confidence          funnel.Confidence `json:"confidence"`
	NoData              bool              `json:"no_data,omitempty"`
}

// RecommendationType names the kind of prescriptive action.
type RecommendationType string

const (
	RecIncreaseThroughput RecommendationType = "increase_throughput"
	RecReassignWorkload   RecommendationType = "reassign_workload"
	RecReduceDemand       RecommendationType = "reduce_demand"
	RecImproveData        RecommendationType = "improve_data"
)

// Recommendation is a ranked, impact-estimated action.
type Recommendation struct {
	Type                RecommendationType `json:"type"`
	Stage               funnel.Stage       `json:"stage,omitempty"`
	Owner               funnel.OwnerType   `json:"owner,omitempty"`
	Description         string             `json:"description"`
	EstimatedImpactDays float64            `json:"estimated_impact_days"`
}

// PortfolioExtension is what v1.1 adds on top of the v1 per-stage model.
type PortfolioExtension struct {
	DemandScope             demand.Scope         `json:"demand_scope"`
	OwnerID                 string               `json:"owner_id,omitempty"`
	SelectedReqByStage      map[funnel.Stage]int `json:"selected_req_by_stage"`
	PortfolioByStage        map[funnel.Stage]int `json:"portfolio_by_stage"`
	OwnerDemandByStage      map[funnel.Stage]int `json:"owner_demand_by_stage"`
	DemandConfidence        funnel.Confidence    `json:"demand_confidence"`
	DemandConfidenceReasons []string             `json:"demand_confidence_reasons,omitempty"`
	Recommendations         []Recommendation     `json:"recommendations,omitempty"`
}

// PenaltyResult is the tagged v1 / v1.1 result. Portfolio is set only for v1.1.
type PenaltyResult struct {
	Version             Version             `json:"version"`
	IsAvailable         bool                `json:"is_available"`
	UnavailableReason   string              `json:"unavailable_reason,omitempty"`
	HorizonWeeks        float64             `json:"horizon_weeks"`
	Stages              []StageDiagnostic   `json:"stages"`
	TopBottlenecks      []StageDiagnostic   `json:"top_bottlenecks"`
	TotalQueueDelayDays float64             `json:"total_queue_delay_days"`
	Confidence          funnel.Confidence   `json:"confidence"`
	UsedCohortFallback  bool                `json:"used_cohort_fallback"`
	Portfolio           *PortfolioExtension `json:"portfolio,omitempty"`
}

// StageDelays returns the per-stage queue delay of every bottleneck.
func (r PenaltyResult) StageDelays() map[funnel.Stage]float64 {
	out := make(map[funnel.Stage]float64)
	for _, d := range r.Stages {
		if d.QueueDelayDays > 0 {
			out[d.Stage] = d.QueueDelayDays
		}
	}
	return out
}

// Engine computes capacity penalties over the catalog's owner attribution table.
type Engine struct {
	owners map[funnel.Stage]funnel.OwnerType
	order  []funnel.Stage
	cfg    Config
}

// NewEngine builds a penalty engine for the given funnel.
func NewEngine(c *catalog.Catalog, cfg Config) *Engine {
	if cfg.HorizonWeeks <= 0 {
		cfg.HorizonWeeks = c.HorizonWeeks
	}
	if cfg.MaxDelayDays <= 0 {
		cfg.MaxDelayDays = DefaultMaxDelayDays
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	return &Engine{
		owners: c.Owners(),
		order:  c.Controllable(),
		cfg:    cfg,
	}
}

// OwnerOf looks a stage up in the owner attribution table.
func (e *Engine) OwnerOf(s funnel.Stage) funnel.OwnerType {
	return e.owners[s]
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Penalize is the v1 computation over a single requisition's stage counts.
func (e *Engine) Penalize(durs []durations.StageDurationInfo, demandByStage map[funnel.Stage]int, profile *Profile) PenaltyResult {
	return e.compute(VersionV1, durs, demandByStage, profile)
}

// PenalizeV11 charges each stage with the full-portfolio demand of the stage's owner. The
// selected requisition's own pipeline is reported alongside but does not drive the delay.
func (e *Engine) PenalizeV11(durs []durations.StageDurationInfo, gd demand.GlobalDemand, profile *Profile) PenaltyResult {
	byStage := make(map[funnel.Stage]int, len(e.order))
	for _, stage := range e.order {
		if n := gd.StageDemand(stage, e.owners[stage]); n > 0 {
			byStage[stage] = n
		}
	}

	res := e.compute(VersionV11, durs, byStage, profile)
	res.Portfolio = &PortfolioExtension{
		DemandScope:             gd.Scope,
		OwnerID:                 gd.OwnerID,
		SelectedReqByStage:      gd.SelectedByStage,
		PortfolioByStage:        gd.PortfolioByStage,
		OwnerDemandByStage:      byStage,
		DemandConfidence:        gd.Confidence,
		DemandConfidenceReasons: gd.ConfidenceReasons,
	}
	if res.IsAvailable {
		res.Confidence = funnel.MinConfidence(res.Confidence, gd.Confidence)
	}
	return res
}

func (e *Engine) compute(version Version, durs []durations.StageDurationInfo, demandByStage map[funnel.Stage]int, profile *Profile) PenaltyResult {
	res := PenaltyResult{
		Version:        version,
		HorizonWeeks:   e.cfg.HorizonWeeks,
		Stages:         []StageDiagnostic{},
		TopBottlenecks: []StageDiagnostic{},
		Confidence:     funnel.ConfidenceLow,
	}

	if !profile.IsAvailable() {
		res.UnavailableReason = "No capacity profile available; capacity penalty not computed"
		return res
	}
	res.IsAvailable = true
	res.UsedCohortFallback = profile.UsedCohortFallback

	medians := make(map[funnel.Stage]float64, len(durs))
	for _, d := range durs {
		medians[d.Stage] = d.MedianDays
	}

	rank := make(map[funnel.Stage]int, len(e.order))
	var contributing, computed []funnel.Confidence
	for i, stage := range e.order {
		rank[stage] = i
		owner := e.owners[stage]
		diag := StageDiagnostic{
			Stage:          stage,
			Owner:          owner,
			Demand:         demandByStage[stage],
			BaseMedianDays: medians[stage],
		}
		if cr, ok := profile.cohortRate(stage); ok {
			diag.CohortRate = cr
		}

		rate, ok := profile.resolve(stage, owner)
		if !ok {
			diag.NoData = true
			diag.Confidence = funnel.ConfidenceLow
			res.Stages = append(res.Stages, diag)
			log.Debug().Str("stage", string(stage)).Msg("No throughput for stage, skipping penalty")
			continue
		}

		diag.ServiceRate = rate.perWeek
		diag.Capacity = rate.perWeek * e.cfg.HorizonWeeks
		diag.UsedCohortFallback = rate.fallback
		diag.Confidence = rate.confidence
		diag.QueueDelayDays = QueueDelayDays(float64(diag.Demand), rate.perWeek, e.cfg.HorizonWeeks, e.cfg.MaxDelayDays)
		if diag.QueueDelayDays > 0 {
			diag.IsBottleneck = true
			diag.BottleneckOwnerType = owner
			contributing = append(contributing, diag.Confidence)
		}
		if rate.fallback {
			res.UsedCohortFallback = true
		}
		computed = append(computed, diag.Confidence)

		res.TotalQueueDelayDays += diag.QueueDelayDays
		res.Stages = append(res.Stages, diag)
	}

	switch {
	case len(contributing) > 0:
		res.Confidence = funnel.MinConfidence(contributing...)
	case profile.OverallConfidence != "":
		res.Confidence = profile.OverallConfidence
	case len(computed) > 0:
		res.Confidence = funnel.MinConfidence(computed...)
	}

	for _, d := range res.Stages {
		if d.IsBottleneck {
			res.TopBottlenecks = append(res.TopBottlenecks, d)
		}
	}
	sort.SliceStable(res.TopBottlenecks, func(i, j int) bool {
		a, b := res.TopBottlenecks[i], res.TopBottlenecks[j]
		if a.QueueDelayDays != b.QueueDelayDays {
			return a.QueueDelayDays > b.QueueDelayDays
		}
		return rank[a.Stage] < rank[b.Stage]
	})
	if len(res.TopBottlenecks) > e.cfg.TopN {
		res.TopBottlenecks = res.TopBottlenecks[:e.cfg.TopN]
	}

	log.Debug().
		Str("version", string(version)).
		Float64("totalDelayDays", res.TotalQueueDelayDays).
		Int("bottlenecks", len(res.TopBottlenecks)).
		Msg("Capacity penalty computed")

	return res
}

// Summary renders a one-line description of the dominant bottleneck.
func (r PenaltyResult) Summary() string {
	if !r.IsAvailable {
		return r.UnavailableReason
	}
	if len(r.TopBottlenecks) == 0 {
		return "No capacity bottleneck: demand is within owner throughput at every stage"
	}
	top := r.TopBottlenecks[0]
	return fmt.Sprintf("%s (%s) adds %.1f days: %d candidates against %.1f/week", top.Stage, top.BottleneckOwnerType, top.QueueDelayDays, top.Demand, top.ServiceRate)
}
